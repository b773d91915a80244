// Package agent runs the observe, decide, act loop for one task at a time.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/decision"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/executor"
)

const defaultMaxTurns = 10

// Screen is the part of the device the loop observes directly.
type Screen interface {
	CaptureScreen(ctx context.Context) (*device.Screenshot, error)
	ScreenDimensions() (width, height int)
}

// Decider turns an observation into the next action. A nil action means no
// decision was available this turn.
type Decider interface {
	Decide(ctx context.Context, req decision.Request) *action.Action
}

// ActionExecutor performs an action on the device.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) *executor.Result
}

var (
	_ Screen         = (device.Capability)(nil)
	_ Decider        = (*decision.Client)(nil)
	_ ActionExecutor = (*executor.Executor)(nil)
)

// SleepFunc pauses for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces the delay used for backoff and inter-turn pauses.
func WithSleep(fn SleepFunc) Option {
	return func(c *Controller) { c.sleep = fn }
}

// run is the bookkeeping for one task's loop goroutine.
type run struct {
	task   Task
	done   chan struct{}
	result Result
	// interrupt cuts short the pauses between turns once Stop is requested.
	interrupt context.CancelFunc
}

// Controller owns the task state machine. All state transitions happen
// under mu, and only the controller mutates them.
type Controller struct {
	cfg      config.AgentConfig
	screen   Screen
	decider  Decider
	executor ActionExecutor
	bus      *EventBus
	logger   *zap.Logger
	sleep    SleepFunc

	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	state     State
	turnCount int
	current   *run
	last      *Result
	closed    bool
}

// NewController wires the loop collaborators.
func NewController(cfg config.AgentConfig, screen Screen, decider Decider, exec ActionExecutor, logger *zap.Logger, opts ...Option) *Controller {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:      cfg,
		screen:   screen,
		decider:  decider,
		executor: exec,
		bus:      NewEventBus(logger, cfg.EventBuffer),
		logger:   logger.Named("agent.controller"),
		sleep:    executor.Sleep,
		baseCtx:  ctx,
		cancel:   cancel,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe exposes the status and progress stream.
func (c *Controller) Subscribe(types ...EventType) (<-chan Event, func()) {
	return c.bus.Subscribe(types...)
}

// Start begins a task. While another task is Running or Stopping it leaves
// everything untouched and returns ErrTaskActive.
func (c *Controller) Start(description string) (string, error) {
	description = strings.TrimSpace(description)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.state != StateIdle {
		active := c.current.task
		c.mu.Unlock()
		c.logger.Warn("Start ignored, a task is already active.",
			zap.String("active_task_id", active.ID), zap.String("requested", description))
		c.progress(active.ID, "Task already running: %s", active.Description)
		return "", ErrTaskActive
	}
	if description == "" {
		c.mu.Unlock()
		return "", ErrEmptyTask
	}

	waitCtx, interrupt := context.WithCancel(c.baseCtx)
	r := &run{
		task:      Task{ID: uuid.New().String(), Description: description, StartedAt: time.Now().UTC()},
		done:      make(chan struct{}),
		interrupt: interrupt,
	}
	c.state = StateRunning
	c.turnCount = 0
	c.current = r
	c.mu.Unlock()

	c.logger.Info("Task started.", zap.String("task_id", r.task.ID), zap.String("task", description))
	c.bus.Publish(Event{Type: EventStatus, TaskID: r.task.ID, Running: true})
	c.progress(r.task.ID, "Starting task: %s", description)

	go c.loop(c.baseCtx, waitCtx, r)
	return r.task.ID, nil
}

// Stop asks the active task to end at the next turn boundary. Work already
// in flight finishes first. It reports whether a running task was signaled.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return false
	}
	c.state = StateStopping
	c.current.interrupt()
	c.logger.Info("Stop requested.", zap.String("task_id", c.current.task.ID))
	return true
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{State: c.state, TurnCount: c.turnCount, MaxTurns: c.cfg.MaxTurns}
	if c.current != nil {
		t := c.current.task
		s.Task = &t
	}
	if c.last != nil {
		l := *c.last
		s.Last = &l
	}
	return s
}

// Wait blocks until the active task finishes and returns its result. With no
// active task it returns the last result, if any.
func (c *Controller) Wait(ctx context.Context) (Result, error) {
	c.mu.Lock()
	r := c.current
	var last Result
	if c.last != nil {
		last = *c.last
	}
	c.mu.Unlock()

	if r == nil {
		return last, nil
	}
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close cancels any running task, waits for its loop to exit and closes
// every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	r := c.current
	c.mu.Unlock()

	c.cancel()
	if r != nil {
		<-r.done
	}
	c.bus.Shutdown()
}

// loop drives turns until completion, exhaustion, stop or a panic.
func (c *Controller) loop(ctx, waitCtx context.Context, r *run) {
	outcome, message := OutcomeNone, ""
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("Turn loop panicked.", zap.String("task_id", r.task.ID), zap.Any("panic", p), zap.Stack("stack"))
			outcome, message = OutcomeFailed, fmt.Sprintf("internal error: %v", p)
		}
		c.finish(r, outcome, message)
	}()

	for {
		turn, stop := c.beginTurn(ctx)
		if stop != OutcomeNone {
			outcome = stop
			if stop == OutcomeExhausted {
				message = "Max turns reached"
			}
			return
		}
		if complete, msg := c.turn(ctx, waitCtx, r.task, turn); complete {
			outcome, message = OutcomeCompleted, msg
			return
		}
	}
}

// beginTurn is the boundary check. It either claims the next turn or names
// the outcome that ends the loop.
func (c *Controller) beginTurn(ctx context.Context) (int, Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state != StateRunning || ctx.Err() != nil:
		return 0, OutcomeStopped
	case c.turnCount >= c.cfg.MaxTurns:
		return 0, OutcomeExhausted
	}
	c.turnCount++
	return c.turnCount, OutcomeNone
}

// turn runs one capture, decide, execute, check cycle. Failed captures and
// missing decisions back off and still consume the turn.
func (c *Controller) turn(ctx, waitCtx context.Context, task Task, n int) (bool, string) {
	log := c.logger.With(zap.String("task_id", task.ID), zap.Int("turn", n))
	c.progress(task.ID, "Turn %d/%d", n, c.cfg.MaxTurns)

	shot, err := c.screen.CaptureScreen(ctx)
	if err != nil || shot == nil {
		log.Warn("Screen capture failed.", zap.Error(err))
		c.progress(task.ID, "Screen capture failed, retrying")
		_ = c.sleep(waitCtx, c.cfg.FailureBackoff)
		return false, ""
	}

	width, height := c.screen.ScreenDimensions()
	if width <= 0 || height <= 0 {
		width, height = shot.Width, shot.Height
	}

	next := c.decider.Decide(ctx, decision.Request{
		Task:       task.Description,
		Screenshot: shot.PNG,
		FirstTurn:  n == 1,
		Width:      width,
		Height:     height,
	})
	if next == nil {
		log.Warn("No decision this turn.")
		c.progress(task.ID, "No decision available, retrying")
		_ = c.sleep(waitCtx, c.cfg.FailureBackoff)
		return false, ""
	}

	log.Info("Executing action.", zap.Stringer("action", next))
	c.progress(task.ID, "Action: %s", next)
	if next.Message != "" && !next.Complete {
		c.progress(task.ID, "Model: %s", next.Message)
	}

	res := c.executor.Execute(ctx, *next)
	if !res.OK() {
		code, details := executor.ErrCodeExecutionFailure, "no result"
		if res != nil {
			code, details = res.ErrorCode, res.Message()
		}
		log.Warn("Action failed.", zap.String("error_code", string(code)), zap.String("details", details))
		c.progress(task.ID, "Action failed (%s): %s", code, details)
	}

	if next.Complete {
		return true, next.Message
	}
	_ = c.sleep(waitCtx, c.cfg.TurnDelay)
	return false, ""
}

// finish returns the controller to Idle and publishes the outcome.
func (c *Controller) finish(r *run, outcome Outcome, message string) {
	c.mu.Lock()
	now := time.Now().UTC()
	r.result = Result{
		Task:       r.task,
		Outcome:    outcome,
		Turns:      c.turnCount,
		Message:    message,
		FinishedAt: now,
		Elapsed:    now.Sub(r.task.StartedAt),
	}
	res := r.result
	c.last = &res
	c.state = StateIdle
	c.turnCount = 0
	c.current = nil
	r.interrupt()
	c.mu.Unlock()

	c.logger.Info("Task finished.",
		zap.String("task_id", r.task.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("turns", res.Turns),
		zap.Duration("elapsed", res.Elapsed))

	switch outcome {
	case OutcomeCompleted:
		if message != "" {
			c.progress(r.task.ID, "Task complete: %s", message)
		} else {
			c.progress(r.task.ID, "Task complete")
		}
	case OutcomeExhausted:
		c.progress(r.task.ID, "Max turns reached")
	case OutcomeStopped:
		c.progress(r.task.ID, "Task stopped")
	case OutcomeFailed:
		c.progress(r.task.ID, "Task failed: %s", message)
	}
	c.bus.Publish(Event{Type: EventStatus, TaskID: r.task.ID, Running: false})
	close(r.done)
}

func (c *Controller) progress(taskID, format string, args ...interface{}) {
	c.bus.Publish(Event{Type: EventProgress, TaskID: taskID, Message: fmt.Sprintf(format, args...)})
}
