// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/geometry"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result is the structured outcome of one action.
type Result struct {
	Status       string                 `json:"status"`
	ErrorCode    ErrorCode              `json:"error_code,omitempty"`
	ErrorDetails map[string]interface{} `json:"error_details,omitempty"`
}

// OK reports whether the action succeeded.
func (r *Result) OK() bool { return r != nil && r.Status == StatusSuccess }

// Message returns the human-readable failure detail, if any.
func (r *Result) Message() string {
	if r == nil {
		return ""
	}
	if m, ok := r.ErrorDetails["message"].(string); ok {
		return m
	}
	return ""
}

// defaultFocusSettle is how long the device gets to move focus after a
// tap-to-focus before the editable target is queried again.
const defaultFocusSettle = 250 * time.Millisecond

// handler performs one action kind against the device.
type handler func(ctx context.Context, a action.Action) error

// Executor maps canonical actions onto device capability calls.
type Executor struct {
	dev         device.Capability
	cfg         config.ExecutorConfig
	logger      *zap.Logger
	handlers    map[action.Kind]handler
	focusSettle time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithFocusSettle sets the pause between a tap-to-focus and the second
// editable query.
func WithFocusSettle(d time.Duration) Option {
	return func(e *Executor) {
		e.focusSettle = d
	}
}

// New creates an Executor for dev.
func New(cfg config.ExecutorConfig, dev device.Capability, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		dev:         dev,
		cfg:         cfg,
		logger:      logger.Named("executor"),
		handlers:    make(map[action.Kind]handler),
		focusSettle: defaultFocusSettle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registerHandlers()
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[action.KindTap] = e.handleTap
	e.handlers[action.KindType] = e.handleType
	e.handlers[action.KindScroll] = e.handleScroll
	e.handlers[action.KindWait] = e.handleWait
	e.handlers[action.KindBack] = e.handleBack
	e.handlers[action.KindHome] = e.handleHome
	e.handlers[action.KindNavigate] = e.handleNavigate
}

// Execute runs a. It never returns an error and never panics; every failure
// is reported through the Result.
func (e *Executor) Execute(ctx context.Context, a action.Action) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic during action execution",
				zap.Stringer("action", a),
				zap.Any("panic_value", r),
				zap.String("stack", string(debug.Stack())))
			result = failed(ErrCodeExecutorPanic, fmt.Sprintf("panic: %v", r))
		}
	}()

	h, ok := e.handlers[a.Kind]
	if !ok {
		e.logger.Warn("Unknown action kind", zap.String("kind", string(a.Kind)))
		return failed(ErrCodeUnknownAction, fmt.Sprintf("no handler for action kind: %s", a.Kind))
	}

	if err := h(ctx, a); err != nil {
		code := classify(err)
		e.logger.Warn("Action execution failed",
			zap.Stringer("action", a),
			zap.String("error_code", string(code)),
			zap.Error(err))
		return failed(code, err.Error())
	}
	return &Result{Status: StatusSuccess}
}

func failed(code ErrorCode, message string) *Result {
	return &Result{
		Status:       StatusFailed,
		ErrorCode:    code,
		ErrorDetails: map[string]interface{}{"message": message},
	}
}

func (e *Executor) handleTap(ctx context.Context, a action.Action) error {
	g := device.TapGesture(geometry.Point{X: a.X, Y: a.Y}, e.cfg.TapDuration)
	if err := e.dev.DispatchGesture(ctx, g); err != nil {
		return withCode(ErrCodeGestureRejected, fmt.Errorf("tap at (%d, %d): %w", a.X, a.Y, err))
	}
	return nil
}

func (e *Executor) handleType(ctx context.Context, a action.Action) error {
	target, err := e.dev.FocusedEditable(ctx)
	if err != nil {
		return fmt.Errorf("failed to query focused element: %w", err)
	}

	if target == nil && e.cfg.TapToFocus {
		e.logger.Debug("No focused editable target, tapping to focus.", zap.Int("x", a.X), zap.Int("y", a.Y))
		if err := e.handleTap(ctx, a); err != nil {
			return err
		}
		if err := Sleep(ctx, e.focusSettle); err != nil {
			return err
		}
		if target, err = e.dev.FocusedEditable(ctx); err != nil {
			return fmt.Errorf("failed to query focused element: %w", err)
		}
	}

	if target == nil {
		return withCode(ErrCodeNoEditableTarget, errors.New("no editable element has focus"))
	}
	if err := e.dev.SetText(ctx, *target, a.Text); err != nil {
		return fmt.Errorf("failed to set text on %s: %w", target.Class, err)
	}
	return nil
}

// handleScroll swipes vertically from the screen center over the swipe
// duration. "up" drags toward three quarters of the height, anything else
// toward one quarter.
func (e *Executor) handleScroll(ctx context.Context, a action.Action) error {
	w, h := e.dev.ScreenDimensions()
	from := geometry.Center(w, h)
	to := geometry.Point{X: from.X, Y: h / 4}
	if a.Direction == action.DirectionUp {
		to.Y = 3 * h / 4
	}
	if err := e.dev.DispatchGesture(ctx, device.SwipeGesture(from, to, e.cfg.SwipeDuration)); err != nil {
		return withCode(ErrCodeGestureRejected, fmt.Errorf("scroll %s: %w", a.Direction, err))
	}
	return nil
}

func (e *Executor) handleWait(ctx context.Context, a action.Action) error {
	d := a.Duration
	if e.cfg.MaxWait > 0 && d > e.cfg.MaxWait {
		e.logger.Debug("Capping wait.", zap.Duration("requested", d), zap.Duration("max", e.cfg.MaxWait))
		d = e.cfg.MaxWait
	}
	return Sleep(ctx, d)
}

func (e *Executor) handleBack(ctx context.Context, _ action.Action) error {
	return e.dev.PerformGlobalAction(ctx, device.GlobalBack)
}

func (e *Executor) handleHome(ctx context.Context, _ action.Action) error {
	return e.dev.PerformGlobalAction(ctx, device.GlobalHome)
}

func (e *Executor) handleNavigate(ctx context.Context, a action.Action) error {
	if a.Text == "" {
		return withCode(ErrCodeInvalidParameters, errors.New("navigate requires a URL"))
	}
	if err := e.dev.OpenURL(ctx, a.Text); err != nil {
		return withCode(ErrCodeNavigationError, fmt.Errorf("open %s: %w", a.Text, err))
	}
	return nil
}

// Sleep waits for d or until ctx is done. A non-positive d only reports
// whether ctx is already done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
