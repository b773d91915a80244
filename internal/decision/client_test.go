package decision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/credentials"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
	"github.com/xkilldash9x/screenpilot/internal/mocks"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nfake")

func testDecisionConfig(endpoint string) config.DecisionConfig {
	cfg := config.NewDefaultConfig().Decision()
	cfg.Endpoint = endpoint
	cfg.MaxRetries = 0
	cfg.RequestsPerMinute = 0
	cfg.APITimeout = 5 * time.Second
	return cfg
}

// newTestClient wires a Client to a REST transport pointed at handler.
func newTestClient(t *testing.T, creds credentials.Store, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zaptest.NewLogger(t)
	cfg := testDecisionConfig(server.URL)
	transport, err := llmclient.NewGeminiClient(cfg, logger)
	require.NoError(t, err)
	return NewClient(cfg, transport, creds, logger)
}

func screenRequest(first bool) Request {
	return Request{Task: "Open settings", Screenshot: fakePNG, FirstTurn: first, Width: 1080, Height: 2400}
}

func TestDecide_RequestShape(t *testing.T) {
	var seen llmclient.GenerateRequest
	client := newTestClient(t, credentials.Static("test-key"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &seen))
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"go_back","args":{}}}]}}]}`)
	})

	got := client.Decide(context.Background(), screenRequest(true))
	require.NotNil(t, got)
	assert.Equal(t, action.Back(), *got)

	require.Len(t, seen.Contents, 1)
	parts := seen.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "Open settings")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	decoded, err := base64.StdEncoding.DecodeString(parts[1].InlineData.Data)
	require.NoError(t, err)
	assert.Equal(t, fakePNG, decoded)

	require.Len(t, seen.Tools, 1)
	assert.Len(t, seen.Tools[0].FunctionDeclarations, 6)
	assert.InDelta(t, 0.1, seen.GenerationConfig.Temperature, 1e-6)
	assert.Equal(t, 1000, seen.GenerationConfig.MaxOutputTokens)
}

func TestDecide_ContinuationPrompt(t *testing.T) {
	client := newTestClient(t, credentials.Static("k"), nil)
	req := client.BuildRequest(screenRequest(false))
	assert.Equal(t, continuationPrompt, req.Contents[0].Parts[0].Text)
}

func TestDecide_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *action.Action
	}{
		{
			name:   "click_at on 1080x2400",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"click_at","args":{"x":500,"y":500}}}]}}]}`,
			want:   &action.Action{Kind: action.KindTap, X: 540, Y: 1200},
		},
		{
			name:   "narrative done",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{"text":"Done"}]}}]}`,
			want:   &action.Action{Kind: action.KindWait, Complete: true, Message: "Done"},
		},
		{
			name:   "empty candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			want:   nil,
		},
		{
			name:   "missing candidates",
			status: http.StatusOK,
			body:   `{}`,
			want:   nil,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":"boom"}`,
			want:   nil,
		},
		{
			name:   "garbled body",
			status: http.StatusOK,
			body:   `{"candidates": [{"content": oops`,
			want:   &action.Action{Kind: action.KindWait, Duration: 2 * time.Second, Message: action.DefaultWaitMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, credentials.Static("k"), func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			got := client.Decide(context.Background(), screenRequest(true))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decide() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecide_NoCredential(t *testing.T) {
	var calls int32
	client := newTestClient(t, credentials.Static(""), func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	assert.Nil(t, client.Decide(context.Background(), screenRequest(true)))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDecide_SafetySettings(t *testing.T) {
	client := newTestClient(t, credentials.Static("k"), nil)
	client.cfg.SafetyFilters = map[string]string{"HARM_CATEGORY_DANGEROUS_CONTENT": "BLOCK_ONLY_HIGH"}
	req := client.BuildRequest(screenRequest(true))
	require.Len(t, req.SafetySettings, 1)
	assert.Equal(t, "BLOCK_ONLY_HIGH", req.SafetySettings[0].Threshold)
}

func TestDecide_TransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *action.Action
	}{
		{"network failure is no decision", fmt.Errorf("%w: connection reset", llmclient.ErrTransport), nil},
		{"undecodable reply is the safe default", fmt.Errorf("%w: bad json", llmclient.ErrProtocol), func() *action.Action { a := action.Default(); return &a }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(mocks.MockTransport)
			tr.On("Generate", mock.Anything, "mock-key", mock.AnythingOfType("*llmclient.GenerateRequest")).Return(nil, tt.err).Once()

			cfg := testDecisionConfig("")
			client := NewClient(cfg, tr, credentials.Static("mock-key"), zaptest.NewLogger(t))
			got := client.Decide(context.Background(), screenRequest(false))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decide() mismatch (-want +got):\n%s", diff)
			}
			tr.AssertExpectations(t)
		})
	}
}

func TestDecide_CredentialErrorSkipsTransport(t *testing.T) {
	tr := new(mocks.MockTransport)
	creds := new(mocks.MockCredentialStore)
	creds.On("Credential", mock.Anything).Return("", errors.New("keyring locked"))

	client := NewClient(testDecisionConfig(""), tr, creds, zaptest.NewLogger(t))
	assert.Nil(t, client.Decide(context.Background(), screenRequest(true)))
	tr.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}
