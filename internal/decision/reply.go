// internal/decision/reply.go
package decision

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/geometry"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
	"github.com/xkilldash9x/screenpilot/internal/llmutil"
)

// Shape classifies the first candidate of a reply.
type Shape int

const (
	// ShapeEmpty is a candidate with no usable content.
	ShapeEmpty Shape = iota
	// ShapeStructured is a function call whose arguments carry an action object.
	ShapeStructured
	// ShapeEmbedded is text containing a brace-delimited JSON object.
	ShapeEmbedded
	// ShapeInvocation is a call to one of the declared operations.
	ShapeInvocation
	// ShapeNarrative is plain text with no JSON object.
	ShapeNarrative
)

func (s Shape) String() string {
	switch s {
	case ShapeStructured:
		return "structured"
	case ShapeEmbedded:
		return "embedded"
	case ShapeInvocation:
		return "invocation"
	case ShapeNarrative:
		return "narrative"
	default:
		return "empty"
	}
}

// Reply is a classified candidate. Call is set for the function-call shapes,
// Text for the text shapes.
type Reply struct {
	Shape Shape
	Call  *llmclient.FunctionCall
	Text  string
}

// Classify inspects the first candidate. A reply without candidates yields
// ErrNoCandidates. Function calls take precedence over text parts.
func Classify(resp *llmclient.GenerateResponse) (Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Reply{}, ErrNoCandidates
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return Reply{Shape: ShapeEmpty}, nil
	}

	for _, p := range content.Parts {
		if p.FunctionCall == nil {
			continue
		}
		if _, ok := p.FunctionCall.Args["action"]; ok || p.FunctionCall.Name == OpPerformAction {
			return Reply{Shape: ShapeStructured, Call: p.FunctionCall}, nil
		}
		return Reply{Shape: ShapeInvocation, Call: p.FunctionCall}, nil
	}

	var texts []string
	for _, p := range content.Parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	text := strings.Join(texts, "\n")
	switch {
	case text == "":
		return Reply{Shape: ShapeEmpty}, nil
	case llmutil.HasObjectStart(text):
		return Reply{Shape: ShapeEmbedded, Text: text}, nil
	default:
		return Reply{Shape: ShapeNarrative, Text: text}, nil
	}
}

// translator turns a classified reply into a device-space action.
type translator struct {
	width, height int
	protocol      string
	defaultWait   time.Duration
}

func (t translator) fallback() action.Action {
	a := action.Default()
	if t.defaultWait > 0 {
		a.Duration = t.defaultWait
	}
	return a
}

// Translate maps r onto the canonical action. It never fails: anything that
// cannot be decoded becomes the safe default.
func (t translator) Translate(r Reply) action.Action {
	switch r.Shape {
	case ShapeStructured:
		return t.fromFields(r.Call.Args)
	case ShapeEmbedded:
		fields, err := llmutil.ParseObject[map[string]interface{}](r.Text)
		if err != nil {
			return t.fallback()
		}
		return t.fromFields(*fields)
	case ShapeInvocation:
		return t.fromInvocation(r.Call)
	case ShapeNarrative:
		if t.protocol == config.ProtocolSchema {
			return t.fallback()
		}
		return action.Completion(r.Text)
	default:
		return t.fallback()
	}
}

// fromFields maps an action object {action,x,y,text,direction,duration,complete,message}.
// Missing coordinates are 0, a missing duration is the default wait.
func (t translator) fromFields(fields map[string]interface{}) action.Action {
	name, _ := stringArg(fields, "action")
	x, _ := intArg(fields, "x")
	y, _ := intArg(fields, "y")
	p := geometry.DenormalizePoint(x, y, t.width, t.height)
	text, _ := stringArg(fields, "text")
	direction, _ := stringArg(fields, "direction")

	var a action.Action
	kind, ok := action.ParseKind(name)
	if !ok {
		a = t.fallback()
	} else {
		switch kind {
		case action.KindTap:
			a = action.Tap(p.X, p.Y)
		case action.KindType:
			a = action.Type(text, p.X, p.Y)
		case action.KindScroll:
			a = action.Scroll(direction)
		case action.KindBack:
			a = action.Back()
		case action.KindHome:
			a = action.Home()
		case action.KindNavigate:
			if url, ok := stringArg(fields, "url"); ok && text == "" {
				text = url
			}
			a = action.Navigate(text)
		default:
			d := t.fallback().Duration
			if ms, ok := intArg(fields, "duration"); ok && ms > 0 {
				d = time.Duration(ms) * time.Millisecond
			}
			a = action.Wait(d)
		}
	}

	if complete, ok := fields["complete"].(bool); ok {
		a.Complete = complete
	}
	if msg, ok := stringArg(fields, "message"); ok && msg != "" {
		a.Message = msg
	}
	return a
}

// fromInvocation maps a declared operation call.
func (t translator) fromInvocation(call *llmclient.FunctionCall) action.Action {
	x, _ := intArg(call.Args, "x")
	y, _ := intArg(call.Args, "y")
	p := geometry.DenormalizePoint(x, y, t.width, t.height)

	switch call.Name {
	case OpClickAt:
		return action.Tap(p.X, p.Y)
	case OpTypeTextAt:
		text, _ := stringArg(call.Args, "text")
		return action.Type(text, p.X, p.Y)
	case OpScrollDocument:
		direction, _ := stringArg(call.Args, "direction")
		return action.Scroll(direction)
	case OpGoBack:
		return action.Back()
	case OpSearch:
		return action.Home()
	case OpNavigate:
		url, _ := stringArg(call.Args, "url")
		return action.Navigate(url)
	default:
		return t.fallback()
	}
}

func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// intArg accepts the numeric shapes JSON decoders produce, plus numeric strings.
// maxArg bounds numeric arguments before conversion. Converting a float
// outside the int range is implementation-defined, so huge values saturate
// here and the codec clamps them to the near edge of the grid.
const maxArg = math.MaxInt32

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return saturate(v)
	case float32:
		return saturate(float64(v))
	case int:
		return saturateInt(int64(v)), true
	case int32:
		return int(v), true
	case int64:
		return saturateInt(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return saturate(f)
	default:
		return 0, false
	}
}

func saturate(f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= maxArg:
		return maxArg, true
	case f <= -maxArg:
		return -maxArg, true
	default:
		return int(f), true
	}
}

func saturateInt(n int64) int {
	switch {
	case n > maxArg:
		return maxArg
	case n < -maxArg:
		return -maxArg
	default:
		return int(n)
	}
}
