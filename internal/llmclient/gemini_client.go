// internal/llmclient/gemini_client.go
package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/llmutil"
)

const defaultEndpointFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiClient is the REST Transport for the Gemini generateContent endpoint.
type GeminiClient struct {
	endpoint       string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	backoffFactory func() backoff.BackOff
	logger         *zap.Logger
}

var _ Transport = (*GeminiClient)(nil)

// NewGeminiClient initializes the REST transport.
func NewGeminiClient(cfg config.DecisionConfig, logger *zap.Logger) (*GeminiClient, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Model == "" {
			return nil, fmt.Errorf("a model or an explicit endpoint is required")
		}
		endpoint = fmt.Sprintf(defaultEndpointFormat, cfg.Model)
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}

	return &GeminiClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = time.Minute
			return b
		},
		logger: logger.Named("llm_client.gemini"),
	}, nil
}

// Generate POSTs req and decodes the reply, retrying transient failures.
func (c *GeminiClient) Generate(ctx context.Context, apiKey string, req *GenerateRequest) (*GenerateResponse, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is empty", ErrTransport)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrTransport, err)
	}

	var decoded *GenerateResponse
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", apiKey)

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during decision request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload GenerateResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %w (body: %s)", ErrProtocol, err, llmutil.Truncate(string(respBody), 200)))
		}

		c.logger.Debug("Decision request complete",
			zap.Duration("duration", time.Since(start)),
			zap.Int("candidates", len(payload.Candidates)),
			zap.Int("prompt_tokens", payload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", payload.UsageMetadata.CandidatesTokenCount),
		)
		decoded = &payload
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoffFactory(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, ErrProtocol) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return decoded, nil
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Decision endpoint returned error status",
		zap.Int("status", statusCode),
		zap.String("response", llmutil.Truncate(string(body), 500)))
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, llmutil.Truncate(string(body), 200))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err
	default:
		return backoff.Permanent(err)
	}
}
