// Package device defines the device-automation capability consumed by the
// executor and the loop controller, plus the value types that cross it.
// Concrete back-ends live in subpackages.
package device

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/screenpilot/internal/geometry"
)

// ErrNoDevice is returned by back-ends that cannot reach their device.
var ErrNoDevice = errors.New("device unavailable")

// GlobalAction is a platform-wide navigation action.
type GlobalAction string

const (
	GlobalBack GlobalAction = "BACK"
	GlobalHome GlobalAction = "HOME"
)

// Screenshot is a captured frame, PNG encoded.
type Screenshot struct {
	PNG    []byte
	Width  int
	Height int
}

// Gesture is a single stroke through Points, performed over Duration.
// A one-point gesture is a press-and-release at that point.
type Gesture struct {
	Points   []geometry.Point
	Duration time.Duration
}

// TapGesture builds a momentary touch at p.
func TapGesture(p geometry.Point, d time.Duration) Gesture {
	return Gesture{Points: []geometry.Point{p}, Duration: d}
}

// SwipeGesture builds a straight stroke from one point to another.
func SwipeGesture(from, to geometry.Point, d time.Duration) Gesture {
	return Gesture{Points: []geometry.Point{from, to}, Duration: d}
}

// IsTap reports whether the gesture is a single-point press.
func (g Gesture) IsTap() bool { return len(g.Points) == 1 }

// Target identifies an editable element. Back-ends fill in what they can.
type Target struct {
	ID     string // Back-end specific handle (resource id, element path, ...).
	Class  string
	Text   string // Current contents, if known.
	Bounds string
}

// Capability is the set of primitives a device back-end provides. Every
// operation reports failure through its error; none of them is expected to
// panic.
type Capability interface {
	// CaptureScreen returns the current frame. It may block until the
	// platform delivers the image.
	CaptureScreen(ctx context.Context) (*Screenshot, error)

	// DispatchGesture synthesizes a touch stroke in device coordinates.
	DispatchGesture(ctx context.Context, g Gesture) error

	// PerformGlobalAction triggers Back or Home.
	PerformGlobalAction(ctx context.Context, a GlobalAction) error

	// FocusedEditable returns the focused editable element, or nil when no
	// editable element has focus.
	FocusedEditable(ctx context.Context) (*Target, error)

	// SetText replaces the contents of target with text.
	SetText(ctx context.Context, target Target, text string) error

	// OpenURL asks the platform to open url in an external handler.
	OpenURL(ctx context.Context, url string) error

	// ScreenDimensions returns the device resolution in pixels.
	ScreenDimensions() (width, height int)
}
