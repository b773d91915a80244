// internal/device/adb/runner.go
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes one adb invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// execRunner shells out to the adb binary.
type execRunner struct {
	path    string
	serial  string
	timeout time.Duration
}

// NewExecRunner returns a Runner for the adb binary at path. A non-empty
// serial pins every call to one device.
func NewExecRunner(path, serial string, timeout time.Duration) Runner {
	return &execRunner{path: path, serial: serial, timeout: timeout}
}

func (r *execRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	full := make([]string, 0, len(args)+2)
	if r.serial != "" {
		full = append(full, "-s", r.serial)
	}
	full = append(full, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.path, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}
