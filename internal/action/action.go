// internal/action/action.go
package action

import (
	"fmt"
	"strings"
	"time"
)

// Kind enumerates the canonical operations a decision can resolve to. Every
// decision protocol variant is translated into one of these before execution.
type Kind string

const (
	KindTap      Kind = "tap"      // Momentary touch at a device coordinate.
	KindType     Kind = "type"     // Set text on the focused editable element.
	KindScroll   Kind = "scroll"   // Vertical swipe from the screen center.
	KindWait     Kind = "wait"     // Cooperative pause.
	KindBack     Kind = "back"     // Global back navigation.
	KindHome     Kind = "home"     // Global home navigation.
	KindNavigate Kind = "navigate" // Open a URL in an external handler.
)

// Scroll directions understood by the executor. Anything else is treated as down.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// DefaultWaitDuration is the pause used by the safe default action.
const DefaultWaitDuration = 2000 * time.Millisecond

// DefaultWaitMessage accompanies the safe default action.
const DefaultWaitMessage = "Waiting..."

// kinds is the closed set of valid kinds.
var kinds = map[Kind]struct{}{
	KindTap:      {},
	KindType:     {},
	KindScroll:   {},
	KindWait:     {},
	KindBack:     {},
	KindHome:     {},
	KindNavigate: {},
}

// Action is the protocol-independent representation of one step.
//
// Coordinates are device space (already denormalized). Only the fields relevant
// to Kind are meaningful; Complete and Message apply to every kind.
type Action struct {
	Kind      Kind          `json:"kind"`
	X         int           `json:"x,omitempty"`
	Y         int           `json:"y,omitempty"`
	Text      string        `json:"text,omitempty"`      // Text to type, or the URL for KindNavigate.
	Direction string        `json:"direction,omitempty"` // KindScroll only.
	Duration  time.Duration `json:"duration,omitempty"`  // KindWait only.

	// Complete marks the task as finished once this action has run.
	Complete bool `json:"complete,omitempty"`
	// Message is an optional note from the model; empty means absent.
	Message string `json:"message,omitempty"`
}

// Tap builds a tap at a device coordinate.
func Tap(x, y int) Action { return Action{Kind: KindTap, X: x, Y: y} }

// Type builds a text entry. The coordinate is only used to acquire focus when
// nothing editable is focused.
func Type(text string, x, y int) Action {
	return Action{Kind: KindType, Text: text, X: x, Y: y}
}

// Scroll builds a scroll in the given direction.
func Scroll(direction string) Action { return Action{Kind: KindScroll, Direction: direction} }

// Wait builds a pause of d.
func Wait(d time.Duration) Action { return Action{Kind: KindWait, Duration: d} }

// Back builds a global back navigation.
func Back() Action { return Action{Kind: KindBack} }

// Home builds a global home navigation.
func Home() Action { return Action{Kind: KindHome} }

// Navigate builds a URL open. The URL travels in Text.
func Navigate(url string) Action { return Action{Kind: KindNavigate, Text: url} }

// Default returns the safe fallback used whenever model output cannot be
// decoded: a short wait that lets the loop make forward progress.
func Default() Action {
	return Action{Kind: KindWait, Duration: DefaultWaitDuration, Message: DefaultWaitMessage}
}

// Completion returns the implicit completion produced when the model answers
// with narrative text instead of an operation.
func Completion(message string) Action {
	return Action{Kind: KindWait, Complete: true, Message: message}
}

// ParseKind resolves a model-supplied action name. Matching is case-insensitive
// and an empty name means wait, mirroring how the model omits the field when
// it has nothing to do.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return KindWait, true
	}
	k := Kind(name)
	_, ok := kinds[k]
	return k, ok
}

// Valid reports whether the action's kind is one of the canonical kinds.
func (a Action) Valid() bool {
	_, ok := kinds[a.Kind]
	return ok
}

// String renders the action for progress lines.
func (a Action) String() string {
	switch a.Kind {
	case KindTap:
		return fmt.Sprintf("tap(%d, %d)", a.X, a.Y)
	case KindType:
		return fmt.Sprintf("type(%q at %d, %d)", a.Text, a.X, a.Y)
	case KindScroll:
		return fmt.Sprintf("scroll(%s)", a.Direction)
	case KindWait:
		return fmt.Sprintf("wait(%s)", a.Duration)
	case KindNavigate:
		return fmt.Sprintf("navigate(%s)", a.Text)
	case KindBack, KindHome:
		return string(a.Kind) + "()"
	default:
		return fmt.Sprintf("unknown(%s)", a.Kind)
	}
}
