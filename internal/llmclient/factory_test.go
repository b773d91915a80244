package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/screenpilot/internal/config"
)

func TestNewTransport(t *testing.T) {
	logger, _ := setupTestLogger(t)

	tests := []struct {
		name      string
		transport string
		wantType  interface{}
		wantErr   string
	}{
		{name: "rest", transport: config.TransportREST, wantType: &GeminiClient{}},
		{name: "empty defaults to rest", transport: "", wantType: &GeminiClient{}},
		{name: "genai", transport: config.TransportGenAI, wantType: &GenAIClient{}},
		{name: "unknown", transport: "carrier-pigeon", wantErr: "unsupported decision transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidDecisionConfig()
			cfg.Transport = tt.transport

			tr, err := NewTransport(cfg, logger)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, tr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, tr)
		})
	}
}
