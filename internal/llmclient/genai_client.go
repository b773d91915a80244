// internal/llmclient/genai_client.go
package llmclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/screenpilot/internal/config"
)

// GenAIClient is the Transport backed by the google.golang.org/genai SDK.
// SDK clients are bound to an API key, so one is cached per key.
type GenAIClient struct {
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	client    *genai.Client
	clientKey string
}

var _ Transport = (*GenAIClient)(nil)

// NewGenAIClient initializes the SDK transport.
func NewGenAIClient(cfg config.DecisionConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for the genai transport")
	}
	return &GenAIClient{
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llm_client.genai"),
	}, nil
}

func (c *GenAIClient) sdkClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.clientKey == apiKey {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, err
	}
	c.client, c.clientKey = client, apiKey
	return client, nil
}

// Generate converts req to SDK values, calls GenerateContent and converts the
// reply back. Every SDK failure is a transport failure.
func (c *GenAIClient) Generate(ctx context.Context, apiKey string, req *GenerateRequest) (*GenerateResponse, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is empty", ErrTransport)
	}
	client, err := c.sdkClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: genai client: %w", ErrTransport, err)
	}

	contents, err := toGenAIContents(req.Contents)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, toGenAIConfig(req))
	if err != nil {
		c.logger.Error("genai GenerateContent failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	out := fromGenAIResponse(resp)
	c.logger.Debug("Decision request complete", zap.Int("candidates", len(out.Candidates)))
	return out, nil
}

func toGenAIContents(in []Content) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(in))
	for _, content := range in {
		gc := &genai.Content{Role: content.Role}
		for _, p := range content.Parts {
			switch {
			case p.InlineData != nil:
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode inline data: %w", err)
				}
				gc.Parts = append(gc.Parts, &genai.Part{InlineData: &genai.Blob{MIMEType: p.InlineData.MimeType, Data: data}})
			case p.FunctionCall != nil:
				gc.Parts = append(gc.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args}})
			default:
				gc.Parts = append(gc.Parts, &genai.Part{Text: p.Text})
			}
		}
		out = append(out, gc)
	}
	return out, nil
}

func toGenAIConfig(req *GenerateRequest) *genai.GenerateContentConfig {
	temperature := req.GenerationConfig.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.GenerationConfig.MaxOutputTokens),
	}
	for _, tool := range req.Tools {
		gt := &genai.Tool{}
		for _, d := range tool.FunctionDeclarations {
			gt.FunctionDeclarations = append(gt.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  toGenAISchema(d.Parameters),
			})
		}
		cfg.Tools = append(cfg.Tools, gt)
	}
	for _, s := range req.SafetySettings {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	return cfg
}

func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	return out
}

func fromGenAIResponse(resp *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		c := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			c.Content = &Content{Role: cand.Content.Role}
			for _, p := range cand.Content.Parts {
				if p == nil {
					continue
				}
				part := Part{Text: p.Text}
				if p.FunctionCall != nil {
					part.FunctionCall = &FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args}
				}
				c.Content.Parts = append(c.Content.Parts, part)
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	if u := resp.UsageMetadata; u != nil {
		out.UsageMetadata = UsageMetadata{
			PromptTokenCount:     int(u.PromptTokenCount),
			CandidatesTokenCount: int(u.CandidatesTokenCount),
			TotalTokenCount:      int(u.TotalTokenCount),
		}
	}
	return out
}
