package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/mocks"
)

// waitTimeout is a helper that waits for a WaitGroup to finish but with a specified timeout.
// Returns true if the wait group finishes in time, false otherwise.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	completionChannel := make(chan struct{})
	go func() {
		defer close(completionChannel)
		wg.Wait()
	}()
	select {
	case <-completionChannel:
		return true
	case <-time.After(timeout):
		return false
	}
}

// recordingSleep stands in for real delays and remembers what was asked for.
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.calls...)
}

type fixture struct {
	ctrl   *Controller
	dev    *mocks.MockDevice
	dec    *mockDecider
	exec   *mockExecutor
	sleeps *recordingSleep
}

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		MaxTurns:       10,
		FailureBackoff: 2 * time.Second,
		TurnDelay:      1500 * time.Millisecond,
		EventBuffer:    256,
	}
}

// setupController builds a controller over mocks whose screen always
// captures successfully. The controller is closed on cleanup.
func setupController(t *testing.T, cfg config.AgentConfig) *fixture {
	t.Helper()
	f := &fixture{
		dev:    new(mocks.MockDevice),
		dec:    new(mockDecider),
		exec:   new(mockExecutor),
		sleeps: &recordingSleep{},
	}
	f.dev.On("ScreenDimensions").Return(1080, 2400).Maybe()
	f.ctrl = NewController(cfg, f.dev, f.dec, f.exec, zaptest.NewLogger(t), WithSleep(f.sleeps.sleep))
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) screenOK() {
	f.dev.On("CaptureScreen", mock.Anything).Return(&device.Screenshot{PNG: []byte("png"), Width: 1080, Height: 2400}, nil)
}

// waitResult waits for the active task with a test-friendly deadline.
func waitResult(t *testing.T, c *Controller) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Wait(ctx)
	require.NoError(t, err, "task did not finish in time")
	return res
}
