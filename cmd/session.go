package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/agent"
	"github.com/xkilldash9x/screenpilot/internal/observability"
)

// Session keeps one controller alive between interactive commands, so a task
// started by one line can be stopped or inspected by the next.
type Session struct {
	ctrl    *agent.Controller
	cleanup func()
	logger  *zap.Logger

	unsubscribe func()
	printerDone chan struct{}
	closeOnce   sync.Once
}

// NewSession loads the configuration, opens the device and streams every
// progress line of the controller to out until Close.
func NewSession(ctx context.Context, cfgFile string, out io.Writer) (*Session, error) {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := observability.GetLogger().Named("session")

	ctrl, cleanup, err := newStack(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	events, unsubscribe := ctrl.Subscribe(agent.EventProgress)
	s := &Session{
		ctrl:        ctrl,
		cleanup:     cleanup,
		logger:      logger,
		unsubscribe: unsubscribe,
		printerDone: make(chan struct{}),
	}
	go func() {
		defer close(s.printerDone)
		for ev := range events {
			fmt.Fprintln(out, ev.Message)
		}
	}()
	return s, nil
}

// Start begins task in the background.
func (s *Session) Start(task string) (string, error) {
	return s.ctrl.Start(task)
}

// Stop requests a cooperative stop and reports whether a task was running.
func (s *Session) Stop() bool {
	return s.ctrl.Stop()
}

// Status returns the controller snapshot.
func (s *Session) Status() agent.Snapshot {
	return s.ctrl.Status()
}

// Wait blocks until the current task ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (agent.Result, error) {
	return s.ctrl.Wait(ctx)
}

// Close interrupts any running task, releases the device and drains the
// progress stream.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cleanup()
		s.unsubscribe()
		<-s.printerDone
		s.logger.Debug("Session closed.")
	})
}

// FormatStatus renders a snapshot as a single line.
func FormatStatus(snap agent.Snapshot) string {
	switch {
	case snap.Task != nil:
		return fmt.Sprintf("%s: %q (turn %d/%d)", snap.State, snap.Task.Description, snap.TurnCount, snap.MaxTurns)
	case snap.Last != nil:
		line := fmt.Sprintf("%s, last task %q ended %s after %d turn(s)", snap.State, snap.Last.Task.Description, snap.Last.Outcome, snap.Last.Turns)
		if snap.Last.Message != "" {
			line += ": " + snap.Last.Message
		}
		return line
	default:
		return fmt.Sprintf("%s, no task has run", snap.State)
	}
}
