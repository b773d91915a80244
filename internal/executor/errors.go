// internal/executor/errors.go
package executor

import (
	"context"
	"errors"

	"github.com/xkilldash9x/screenpilot/internal/device"
)

// ErrorCode is a string type used for structured error reporting from the
// executor. The loop logs it; it never aborts a task.
type ErrorCode string

const (
	// -- General Execution Errors --
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeTimeoutError      ErrorCode = "TIMEOUT_ERROR"
	ErrCodeCanceled          ErrorCode = "CANCELED"

	// -- Device Errors --
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	ErrCodeGestureRejected   ErrorCode = "GESTURE_REJECTED"
	// ErrCodeNoEditableTarget means text could not be typed because nothing
	// editable held focus, even after the tap-to-focus attempt.
	ErrCodeNoEditableTarget ErrorCode = "NO_EDITABLE_TARGET"
	ErrCodeNavigationError  ErrorCode = "NAVIGATION_ERROR"

	// -- Internal System Errors --
	ErrCodeExecutorPanic ErrorCode = "EXECUTOR_PANIC"
)

// codedError carries a specific ErrorCode out of a handler.
type codedError struct {
	code ErrorCode
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code ErrorCode, err error) error {
	return &codedError{code: code, err: err}
}

// classify maps a handler error onto an ErrorCode.
func classify(err error) ErrorCode {
	var coded *codedError
	switch {
	case errors.As(err, &coded):
		return coded.code
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeoutError
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	case errors.Is(err, device.ErrNoDevice):
		return ErrCodeDeviceUnavailable
	default:
		return ErrCodeExecutionFailure
	}
}
