package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/screenpilot/internal/config"
)

func declNames(c Catalog) []string {
	names := make([]string, 0, len(c.Declarations))
	for _, d := range c.Declarations {
		names = append(names, d.Name)
	}
	return names
}

func TestNewCatalog(t *testing.T) {
	t.Run("functions protocol declares the operations", func(t *testing.T) {
		c := NewCatalog(config.ProtocolFunctions)
		assert.Equal(t, config.ProtocolFunctions, c.Protocol)
		assert.Equal(t,
			[]string{OpClickAt, OpTypeTextAt, OpScrollDocument, OpGoBack, OpSearch, OpNavigate},
			declNames(c))
	})

	t.Run("schema protocol declares perform_action", func(t *testing.T) {
		c := NewCatalog(config.ProtocolSchema)
		require.Len(t, c.Declarations, 1)
		params := c.Declarations[0].Parameters
		require.NotNil(t, params)
		for _, field := range []string{"action", "x", "y", "text", "direction", "duration", "complete", "message"} {
			assert.Contains(t, params.Properties, field)
		}
	})

	t.Run("unknown protocol falls back to functions", func(t *testing.T) {
		assert.Equal(t, config.ProtocolFunctions, NewCatalog("bogus").Protocol)
	})
}

func TestCatalogPrompt(t *testing.T) {
	c := NewCatalog(config.ProtocolFunctions)

	first := c.Prompt("Open the camera", true)
	assert.Contains(t, first, "Open the camera")
	assert.Contains(t, first, OpClickAt)

	assert.Equal(t, "Continue the task. What's the next action?", c.Prompt("Open the camera", false))

	schema := NewCatalog(config.ProtocolSchema).Prompt("x", true)
	assert.Contains(t, schema, "Respond in JSON format")
}
