// internal/decision/client.go
package decision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/credentials"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
)

var (
	// ErrTransport covers network failures, non-2xx statuses and missing
	// credentials. The turn gets no decision.
	ErrTransport = llmclient.ErrTransport
	// ErrProtocol means a reply arrived but could not be decoded. The turn
	// gets the safe default action.
	ErrProtocol = llmclient.ErrProtocol
	// ErrNoCandidates means the reply carried no candidates. The turn gets no
	// decision.
	ErrNoCandidates = errors.New("decision reply has no candidates")
)

// Request is one turn's observation.
type Request struct {
	Task       string
	Screenshot []byte // PNG
	FirstTurn  bool
	// Width and Height are the device dimensions used to denormalize coordinates.
	Width, Height int
}

// Client asks the decision endpoint for the next action.
type Client struct {
	transport llmclient.Transport
	creds     credentials.Store
	catalog   Catalog
	cfg       config.DecisionConfig
	logger    *zap.Logger
}

// NewClient wires a transport and a credential store.
func NewClient(cfg config.DecisionConfig, transport llmclient.Transport, creds credentials.Store, logger *zap.Logger) *Client {
	return &Client{
		transport: transport,
		creds:     creds,
		catalog:   NewCatalog(cfg.Protocol),
		cfg:       cfg,
		logger:    logger.Named("decision"),
	}
}

// BuildRequest assembles the generateContent body for one turn.
func (c *Client) BuildRequest(req Request) *llmclient.GenerateRequest {
	out := &llmclient.GenerateRequest{
		Contents: []llmclient.Content{{
			Role: "user",
			Parts: []llmclient.Part{
				{Text: c.catalog.Prompt(req.Task, req.FirstTurn)},
				{InlineData: &llmclient.Blob{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(req.Screenshot),
				}},
			},
		}},
		Tools: c.catalog.Tools(),
		GenerationConfig: llmclient.GenerationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}
	for category, threshold := range c.cfg.SafetyFilters {
		out.SafetySettings = append(out.SafetySettings, llmclient.SafetySetting{Category: category, Threshold: threshold})
	}
	return out
}

// Decide returns the next action, or nil when no decision could be obtained
// this turn (transport failure, missing credential, no candidates). A reply
// that arrives but cannot be decoded yields the safe default action.
func (c *Client) Decide(ctx context.Context, req Request) *action.Action {
	a, err := c.decide(ctx, req)
	if err != nil {
		c.logger.Warn("No decision this turn.", zap.Error(err))
		return nil
	}
	return a
}

func (c *Client) decide(ctx context.Context, req Request) (*action.Action, error) {
	tr := translator{
		width:       req.Width,
		height:      req.Height,
		protocol:    c.catalog.Protocol,
		defaultWait: c.cfg.DefaultWait,
	}

	key, err := c.creds.Credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	resp, err := c.transport.Generate(ctx, key, c.BuildRequest(req))
	if err != nil {
		if errors.Is(err, ErrProtocol) {
			c.logger.Warn("Undecodable reply, using default action.", zap.Error(err))
			a := tr.fallback()
			return &a, nil
		}
		return nil, err
	}

	reply, err := Classify(resp)
	if err != nil {
		return nil, err
	}
	a := tr.Translate(reply)
	c.logger.Debug("Reply translated.",
		zap.Stringer("shape", reply.Shape),
		zap.Stringer("action", a),
		zap.Bool("complete", a.Complete))
	return &a, nil
}
