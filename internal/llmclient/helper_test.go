package llmclient

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/screenpilot/internal/config"
)

// setupTestLogger returns a logger whose entries can be inspected.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidDecisionConfig returns a DecisionConfig suitable for transport tests.
func getValidDecisionConfig() config.DecisionConfig {
	return config.DecisionConfig{
		Transport:       config.TransportREST,
		Protocol:        config.ProtocolFunctions,
		Model:           "test-model",
		APITimeout:      5 * time.Second,
		Temperature:     0.1,
		MaxOutputTokens: 1000,
	}
}

// createTestRequest builds a minimal multimodal request.
func createTestRequest() *GenerateRequest {
	return &GenerateRequest{
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{Text: "Open settings"},
				{InlineData: &Blob{MimeType: "image/png", Data: "iVBORw0KGgo="}},
			},
		}},
		Tools: []Tool{{FunctionDeclarations: []FunctionDeclaration{{
			Name:        "click_at",
			Description: "Tap",
			Parameters: &Schema{
				Type:       "object",
				Properties: map[string]*Schema{"x": {Type: "integer"}, "y": {Type: "integer"}},
			},
		}}}},
		GenerationConfig: GenerationConfig{Temperature: 0.1, MaxOutputTokens: 1000},
	}
}
