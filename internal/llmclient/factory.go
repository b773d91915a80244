// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/config"
)

// NewTransport creates the Transport selected by cfg.Transport.
func NewTransport(cfg config.DecisionConfig, logger *zap.Logger) (Transport, error) {
	switch cfg.Transport {
	case config.TransportREST, "":
		return NewGeminiClient(cfg, logger)
	case config.TransportGenAI:
		return NewGenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported decision transport configured: '%s'. Supported: [%s, %s]",
			cfg.Transport, config.TransportREST, config.TransportGenAI)
	}
}
