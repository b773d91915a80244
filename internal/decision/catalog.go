// internal/decision/catalog.go
package decision

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
)

// Declared operation names for the functions protocol.
const (
	OpClickAt        = "click_at"
	OpTypeTextAt     = "type_text_at"
	OpScrollDocument = "scroll_document"
	OpGoBack         = "go_back"
	OpSearch         = "search"
	OpNavigate       = "navigate"

	// OpPerformAction is the single declaration of the schema protocol.
	OpPerformAction = "perform_action"
)

const continuationPrompt = "Continue the task. What's the next action?"

// Catalog is the set of operations advertised to the model plus the framing
// text that describes them.
type Catalog struct {
	Protocol     string
	Declarations []llmclient.FunctionDeclaration
	framing      string
}

func coordinate(axis string) *llmclient.Schema {
	return &llmclient.Schema{Type: "integer", Description: fmt.Sprintf("The %s-coordinate on a 0-999 grid", axis)}
}

// NewCatalog returns the catalog for a protocol name. Unknown names fall back
// to the functions protocol.
func NewCatalog(protocol string) Catalog {
	if protocol == config.ProtocolSchema {
		return schemaCatalog()
	}
	return functionsCatalog()
}

func functionsCatalog() Catalog {
	decls := []llmclient.FunctionDeclaration{
		{
			Name:        OpClickAt,
			Description: "Tap the screen at a normalized coordinate",
			Parameters: &llmclient.Schema{
				Type:       "object",
				Properties: map[string]*llmclient.Schema{"x": coordinate("x"), "y": coordinate("y")},
				Required:   []string{"x", "y"},
			},
		},
		{
			Name:        OpTypeTextAt,
			Description: "Type text into the field at a normalized coordinate",
			Parameters: &llmclient.Schema{
				Type: "object",
				Properties: map[string]*llmclient.Schema{
					"x":    coordinate("x"),
					"y":    coordinate("y"),
					"text": {Type: "string", Description: "The text to type"},
				},
				Required: []string{"x", "y", "text"},
			},
		},
		{
			Name:        OpScrollDocument,
			Description: "Scroll the current screen",
			Parameters: &llmclient.Schema{
				Type: "object",
				Properties: map[string]*llmclient.Schema{
					"direction": {Type: "string", Description: "The direction to scroll", Enum: []string{"up", "down"}},
				},
				Required: []string{"direction"},
			},
		},
		{Name: OpGoBack, Description: "Press the system back button"},
		{Name: OpSearch, Description: "Return to the home screen to start a new search"},
		{
			Name:        OpNavigate,
			Description: "Open a URL",
			Parameters: &llmclient.Schema{
				Type:       "object",
				Properties: map[string]*llmclient.Schema{"url": {Type: "string", Description: "The URL to open"}},
				Required:   []string{"url"},
			},
		},
	}

	var b strings.Builder
	b.WriteString("Available operations:\n")
	for _, d := range decls {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	b.WriteString("\nCoordinates use a 0-999 grid over the screenshot. ")
	b.WriteString("Call exactly one operation per turn. When the task is finished, reply with a short summary instead of calling an operation.")

	return Catalog{Protocol: config.ProtocolFunctions, Declarations: decls, framing: b.String()}
}

func schemaCatalog() Catalog {
	decl := llmclient.FunctionDeclaration{
		Name:        OpPerformAction,
		Description: "Performs a UI action on the device",
		Parameters: &llmclient.Schema{
			Type: "object",
			Properties: map[string]*llmclient.Schema{
				"action":    {Type: "string", Description: "The action to perform", Enum: []string{"tap", "type", "scroll", "wait", "back", "home", "navigate"}},
				"x":         coordinate("x"),
				"y":         coordinate("y"),
				"text":      {Type: "string", Description: "The text to type, or the URL to open"},
				"direction": {Type: "string", Description: "The direction to scroll"},
				"duration":  {Type: "integer", Description: "The duration to wait in milliseconds"},
				"complete":  {Type: "boolean", Description: "Whether the task is complete"},
				"message":   {Type: "string", Description: "A message to the user"},
			},
			Required: []string{"action"},
		},
	}

	framing := "Available actions:\n" +
		"- tap(x, y): Tap at coordinates\n" +
		"- type(text): Type text\n" +
		"- scroll(direction): Scroll up or down\n" +
		"- wait(ms): Wait\n" +
		"- back(): Press back\n" +
		"- home(): Go home\n" +
		"- navigate(url): Open a URL\n\n" +
		`Respond in JSON format: {"action": "tap|type|scroll|wait|back|home|navigate", "x": 0-999, "y": 0-999, ` +
		`"text": "...", "direction": "up|down", "duration": 0, "complete": false, "message": "..."}`

	return Catalog{Protocol: config.ProtocolSchema, Declarations: []llmclient.FunctionDeclaration{decl}, framing: framing}
}

// Prompt returns the text part for a turn: the full framing on the first
// turn and a short continuation afterwards.
func (c Catalog) Prompt(task string, firstTurn bool) string {
	if !firstTurn {
		return continuationPrompt
	}
	return fmt.Sprintf("You are a device automation agent. Execute this task using the available operations: %s\n\n%s", task, c.framing)
}

// Tools wraps the declarations for the request body.
func (c Catalog) Tools() []llmclient.Tool {
	return []llmclient.Tool{{FunctionDeclarations: c.Declarations}}
}
