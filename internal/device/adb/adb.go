// Package adb drives an Android device through the Android Debug Bridge.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/device"
)

const dumpPath = "/sdcard/screenpilot_window_dump.xml"

var (
	pngMagic   = []byte("\x89PNG\r\n\x1a\n")
	sizeRegexp = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)
)

// Device implements device.Capability over adb.
type Device struct {
	runner Runner
	logger *zap.Logger

	mu            sync.RWMutex
	width, height int
}

var _ device.Capability = (*Device)(nil)

// New connects to the device selected by cfg.
func New(ctx context.Context, cfg config.ADBConfig, logger *zap.Logger) (*Device, error) {
	return NewWithRunner(ctx, NewExecRunner(cfg.Path, cfg.Serial, cfg.Timeout), logger)
}

// NewWithRunner builds a Device on an arbitrary Runner and reads the screen size.
func NewWithRunner(ctx context.Context, runner Runner, logger *zap.Logger) (*Device, error) {
	d := &Device{runner: runner, logger: logger.Named("device.adb")}
	if err := d.refreshSize(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", device.ErrNoDevice, err)
	}
	d.logger.Info("Connected to device", zap.Int("width", d.width), zap.Int("height", d.height))
	return d, nil
}

func (d *Device) refreshSize(ctx context.Context) error {
	out, err := d.runner.Run(ctx, "shell", "wm", "size")
	if err != nil {
		return err
	}
	w, h, err := parseWMSize(string(out))
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.width, d.height = w, h
	d.mu.Unlock()
	return nil
}

// parseWMSize reads `wm size` output. An override size wins over the
// physical size since it is what input events are mapped against.
func parseWMSize(out string) (int, int, error) {
	var w, h int
	found := false
	for _, m := range sizeRegexp.FindAllStringSubmatch(out, -1) {
		mw, _ := strconv.Atoi(m[2])
		mh, _ := strconv.Atoi(m[3])
		if !found || m[1] == "Override" {
			w, h, found = mw, mh, true
		}
	}
	if !found || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("unrecognized wm size output: %q", strings.TrimSpace(out))
	}
	return w, h, nil
}

// ScreenDimensions returns the size read at connect time.
func (d *Device) ScreenDimensions() (int, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.width, d.height
}

// CaptureScreen grabs a PNG frame with screencap.
func (d *Device) CaptureScreen(ctx context.Context) (*device.Screenshot, error) {
	out, err := d.runner.Run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("screencap failed: %w", err)
	}
	if !bytes.HasPrefix(out, pngMagic) {
		return nil, fmt.Errorf("screencap returned %d bytes that are not a PNG", len(out))
	}
	shot := &device.Screenshot{PNG: out}
	if cfg, err := png.DecodeConfig(bytes.NewReader(out)); err == nil {
		shot.Width, shot.Height = cfg.Width, cfg.Height
	} else {
		shot.Width, shot.Height = d.ScreenDimensions()
	}
	return shot, nil
}

// DispatchGesture maps a gesture onto `input swipe`. A tap is a zero-length
// swipe so the press duration is honoured.
func (d *Device) DispatchGesture(ctx context.Context, g device.Gesture) error {
	if len(g.Points) == 0 {
		return fmt.Errorf("gesture has no points")
	}
	from, to := g.Points[0], g.Points[len(g.Points)-1]
	ms := g.Duration.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	_, err := d.runner.Run(ctx, "shell", "input", "swipe",
		strconv.Itoa(from.X), strconv.Itoa(from.Y),
		strconv.Itoa(to.X), strconv.Itoa(to.Y),
		strconv.FormatInt(ms, 10))
	return err
}

// PerformGlobalAction sends the matching key event.
func (d *Device) PerformGlobalAction(ctx context.Context, a device.GlobalAction) error {
	var key string
	switch a {
	case device.GlobalBack:
		key = "KEYCODE_BACK"
	case device.GlobalHome:
		key = "KEYCODE_HOME"
	default:
		return fmt.Errorf("unsupported global action %q", a)
	}
	_, err := d.runner.Run(ctx, "shell", "input", "keyevent", key)
	return err
}

// FocusedEditable dumps the window hierarchy and looks for a focused text field.
func (d *Device) FocusedEditable(ctx context.Context) (*device.Target, error) {
	if _, err := d.runner.Run(ctx, "shell", "uiautomator", "dump", dumpPath); err != nil {
		return nil, fmt.Errorf("uiautomator dump failed: %w", err)
	}
	dump, err := d.runner.Run(ctx, "exec-out", "cat", dumpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read window dump: %w", err)
	}
	return focusedEditable(dump)
}

// SetText replaces the field's contents: the cursor moves to the end, the
// known contents are deleted, then the new text is typed.
func (d *Device) SetText(ctx context.Context, target device.Target, text string) error {
	if n := len([]rune(target.Text)); n > 0 {
		args := []string{"shell", "input", "keyevent", "KEYCODE_MOVE_END"}
		for i := 0; i < n; i++ {
			args = append(args, "KEYCODE_DEL")
		}
		if _, err := d.runner.Run(ctx, args...); err != nil {
			return fmt.Errorf("failed to clear field: %w", err)
		}
	}
	if text == "" {
		return nil
	}
	_, err := d.runner.Run(ctx, "shell", "input", "text", escapeInputText(text))
	return err
}

// OpenURL fires a VIEW intent. The activity manager reports a missing
// handler on stdout rather than through its exit code.
func (d *Device) OpenURL(ctx context.Context, url string) error {
	out, err := d.runner.Run(ctx, "shell", "am", "start", "-a", "android.intent.action.VIEW", "-d", shellQuote(url))
	if err != nil {
		return err
	}
	if msg, ok := amError(out); ok {
		return fmt.Errorf("no handler for %s: %s", url, msg)
	}
	return nil
}

// amError finds an "Error:" line in activity manager output. The echoed
// intent may itself contain the word, so only a line prefix counts.
func amError(out []byte) (string, bool) {
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if bytes.HasPrefix(line, []byte("Error:")) {
			return string(line), true
		}
	}
	return "", false
}

// escapeInputText prepares text for `input text`, which runs through the
// device shell and treats %s as a space.
func escapeInputText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == ' ':
			b.WriteString("%s")
		case strings.ContainsRune(`\'"`+"`"+`$&|;<>()*~#!?[]{}`, r):
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// shellQuote wraps s in single quotes for the device shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
