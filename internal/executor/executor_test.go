package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/geometry"
	"github.com/xkilldash9x/screenpilot/internal/mocks"
)

func setupExecutor(t *testing.T) (*Executor, *mocks.MockDevice) {
	t.Helper()
	dev := new(mocks.MockDevice)
	dev.On("ScreenDimensions").Return(1080, 2400).Maybe()
	cfg := config.NewDefaultConfig().Executor()
	e := New(cfg, dev, zaptest.NewLogger(t), WithFocusSettle(0))
	t.Cleanup(func() { dev.AssertExpectations(t) })
	return e, dev
}

func TestExecute_Tap(t *testing.T) {
	e, dev := setupExecutor(t)
	want := device.TapGesture(geometry.Point{X: 540, Y: 1200}, 100*time.Millisecond)
	dev.On("DispatchGesture", mock.Anything, want).Return(nil).Once()

	res := e.Execute(context.Background(), action.Tap(540, 1200))
	assert.True(t, res.OK())
}

func TestExecute_TapRejected(t *testing.T) {
	e, dev := setupExecutor(t)
	dev.On("DispatchGesture", mock.Anything, mock.Anything).Return(errors.New("injection refused")).Once()

	res := e.Execute(context.Background(), action.Tap(1, 1))
	assert.False(t, res.OK())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ErrCodeGestureRejected, res.ErrorCode)
	assert.Contains(t, res.ErrorDetails["message"], "injection refused")
}

func TestExecute_Scroll(t *testing.T) {
	tests := []struct {
		direction string
		toY       int
	}{
		{action.DirectionUp, 1800},
		{action.DirectionDown, 600},
		{"sideways", 600},
		{"", 600},
	}
	for _, tt := range tests {
		t.Run("direction="+tt.direction, func(t *testing.T) {
			e, dev := setupExecutor(t)
			want := device.SwipeGesture(geometry.Point{X: 540, Y: 1200}, geometry.Point{X: 540, Y: tt.toY}, 300*time.Millisecond)
			dev.On("DispatchGesture", mock.Anything, want).Return(nil).Once()

			assert.True(t, e.Execute(context.Background(), action.Scroll(tt.direction)).OK())
		})
	}
}

func TestExecute_Type(t *testing.T) {
	field := &device.Target{ID: "search", Class: "android.widget.EditText"}

	t.Run("focused field receives text", func(t *testing.T) {
		e, dev := setupExecutor(t)
		dev.On("FocusedEditable", mock.Anything).Return(field, nil).Once()
		dev.On("SetText", mock.Anything, *field, "hello").Return(nil).Once()

		assert.True(t, e.Execute(context.Background(), action.Type("hello", 10, 20)).OK())
	})

	t.Run("tap to focus then type", func(t *testing.T) {
		e, dev := setupExecutor(t)
		dev.On("FocusedEditable", mock.Anything).Return(nil, nil).Once()
		dev.On("DispatchGesture", mock.Anything, device.TapGesture(geometry.Point{X: 10, Y: 20}, 100*time.Millisecond)).Return(nil).Once()
		dev.On("FocusedEditable", mock.Anything).Return(field, nil).Once()
		dev.On("SetText", mock.Anything, *field, "hello").Return(nil).Once()

		assert.True(t, e.Execute(context.Background(), action.Type("hello", 10, 20)).OK())
	})

	t.Run("no target even after tap to focus", func(t *testing.T) {
		e, dev := setupExecutor(t)
		dev.On("FocusedEditable", mock.Anything).Return(nil, nil).Twice()
		dev.On("DispatchGesture", mock.Anything, mock.Anything).Return(nil).Once()

		res := e.Execute(context.Background(), action.Type("hello", 10, 20))
		assert.False(t, res.OK())
		assert.Equal(t, ErrCodeNoEditableTarget, res.ErrorCode)
		dev.AssertNotCalled(t, "SetText", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no target without fallback", func(t *testing.T) {
		e, dev := setupExecutor(t)
		e.cfg.TapToFocus = false
		dev.On("FocusedEditable", mock.Anything).Return(nil, nil).Once()

		res := e.Execute(context.Background(), action.Type("hello", 10, 20))
		assert.Equal(t, ErrCodeNoEditableTarget, res.ErrorCode)
		dev.AssertNotCalled(t, "DispatchGesture", mock.Anything, mock.Anything)
	})

	t.Run("set text failure", func(t *testing.T) {
		e, dev := setupExecutor(t)
		dev.On("FocusedEditable", mock.Anything).Return(field, nil).Once()
		dev.On("SetText", mock.Anything, *field, "x").Return(errors.New("read-only")).Once()

		res := e.Execute(context.Background(), action.Type("x", 0, 0))
		assert.Equal(t, ErrCodeExecutionFailure, res.ErrorCode)
	})
}

func TestExecute_Wait(t *testing.T) {
	t.Run("sleeps for the duration", func(t *testing.T) {
		e, _ := setupExecutor(t)
		start := time.Now()
		assert.True(t, e.Execute(context.Background(), action.Wait(30*time.Millisecond)).OK())
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("capped by max wait", func(t *testing.T) {
		e, _ := setupExecutor(t)
		e.cfg.MaxWait = 20 * time.Millisecond
		start := time.Now()
		assert.True(t, e.Execute(context.Background(), action.Wait(time.Hour)).OK())
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("cancellation interrupts", func(t *testing.T) {
		e, _ := setupExecutor(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := e.Execute(ctx, action.Wait(time.Second))
		assert.Equal(t, ErrCodeCanceled, res.ErrorCode)
	})
}

func TestExecute_GlobalActions(t *testing.T) {
	e, dev := setupExecutor(t)
	dev.On("PerformGlobalAction", mock.Anything, device.GlobalBack).Return(nil).Once()
	dev.On("PerformGlobalAction", mock.Anything, device.GlobalHome).Return(device.ErrNoDevice).Once()

	assert.True(t, e.Execute(context.Background(), action.Back()).OK())
	res := e.Execute(context.Background(), action.Home())
	assert.Equal(t, ErrCodeDeviceUnavailable, res.ErrorCode)
}

func TestExecute_Navigate(t *testing.T) {
	t.Run("opens url", func(t *testing.T) {
		e, dev := setupExecutor(t)
		dev.On("OpenURL", mock.Anything, "https://example.com").Return(nil).Once()
		assert.True(t, e.Execute(context.Background(), action.Navigate("https://example.com")).OK())
	})

	t.Run("no handler is a failure result", func(t *testing.T) {
		e, dev := setupExecutor(t)
		dev.On("OpenURL", mock.Anything, "weird://x").Return(errors.New("no activity found")).Once()
		res := e.Execute(context.Background(), action.Navigate("weird://x"))
		assert.Equal(t, ErrCodeNavigationError, res.ErrorCode)
	})

	t.Run("empty url", func(t *testing.T) {
		e, _ := setupExecutor(t)
		res := e.Execute(context.Background(), action.Navigate(""))
		assert.Equal(t, ErrCodeInvalidParameters, res.ErrorCode)
	})
}

func TestExecute_UnknownKind(t *testing.T) {
	e, _ := setupExecutor(t)
	res := e.Execute(context.Background(), action.Action{Kind: "teleport"})
	require.NotNil(t, res)
	assert.Equal(t, ErrCodeUnknownAction, res.ErrorCode)
}

func TestExecute_PanicIsContained(t *testing.T) {
	e, dev := setupExecutor(t)
	dev.On("DispatchGesture", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("driver exploded")
	}).Return(nil).Once()

	var res *Result
	assert.NotPanics(t, func() { res = e.Execute(context.Background(), action.Tap(0, 0)) })
	require.NotNil(t, res)
	assert.Equal(t, ErrCodeExecutorPanic, res.ErrorCode)
	assert.Contains(t, res.ErrorDetails["message"], "driver exploded")
}

func TestWithFocusSettle(t *testing.T) {
	e := New(config.NewDefaultConfig().Executor(), new(mocks.MockDevice), zaptest.NewLogger(t))
	assert.Equal(t, defaultFocusSettle, e.focusSettle)

	e = New(config.NewDefaultConfig().Executor(), new(mocks.MockDevice), zaptest.NewLogger(t), WithFocusSettle(time.Second))
	assert.Equal(t, time.Second, e.focusSettle)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
