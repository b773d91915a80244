// Package browser drives a headless Chrome instance emulating a phone-sized
// touch screen. It is the back-end used when no Android device is attached.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/geometry"
)

// frameInterval is the spacing between synthesized touchMove events.
const frameInterval = 16 * time.Millisecond

// Device implements device.Capability on top of chromedp.
type Device struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// launch starts Chrome on the long-lived browser context, and
	// runActions executes CDP actions against the page. Both are swapped in
	// tests.
	launch     func(browserCtx context.Context) error
	runActions func(ctx context.Context, actions ...chromedp.Action) error

	closeOnce sync.Once
}

var _ device.Capability = (*Device)(nil)

// New launches Chrome, applies mobile emulation and loads the home page.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Device, error) {
	d := newDevice(cfg, logger)
	if err := d.start(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("%w: %w", device.ErrNoDevice, err)
	}

	w, h := d.ScreenDimensions()
	d.logger.Info("Browser device ready", zap.Int("width", w), zap.Int("height", h), zap.Float64("scale", cfg.Scale))
	return d, nil
}

// newDevice prepares the allocator and browser contexts. Chrome is not
// started until start.
func newDevice(cfg config.BrowserConfig, logger *zap.Logger) *Device {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	log := logger.Named("device.browser")
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))

	d := &Device{
		cfg:           cfg,
		logger:        log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	d.launch = func(browserCtx context.Context) error {
		return chromedp.Run(browserCtx)
	}
	d.runActions = d.run
	return d
}

// start launches Chrome and then applies emulation. The process belongs to
// the context of the first chromedp.Run, so the launch runs on browserCtx
// itself and never on a per-operation context. ctx only bounds startup.
func (d *Device) start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, d.browserCancel)
	err := d.launch(d.browserCtx)
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	return d.runActions(ctx, d.setupActions()...)
}

func (d *Device) setupActions() []chromedp.Action {
	setup := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(d.cfg.Width), int64(d.cfg.Height), d.cfg.Scale, true),
		emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(1),
	}
	if d.cfg.HomeURL != "" {
		setup = append(setup, chromedp.Navigate(d.cfg.HomeURL))
	}
	return setup
}

// run executes actions on the page, bounded by both ctx and the configured
// per-operation timeout. Closing the device cancels everything in flight.
// Chrome must already be running: cancelling opCtx only abandons the call.
func (d *Device) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(d.browserCtx)
	defer cancel()
	if d.cfg.Timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, d.cfg.Timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close shuts the browser down. Safe to call more than once.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		if d.browserCancel != nil {
			d.browserCancel()
		}
		if d.allocCancel != nil {
			d.allocCancel()
		}
	})
}

// ScreenDimensions reports the emulated screen in device pixels.
func (d *Device) ScreenDimensions() (int, int) {
	return devicePixels(d.cfg.Width, d.cfg.Scale), devicePixels(d.cfg.Height, d.cfg.Scale)
}

// CaptureScreen grabs the viewport as PNG.
func (d *Device) CaptureScreen(ctx context.Context) (*device.Screenshot, error) {
	var buf []byte
	if err := d.runActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return &device.Screenshot{PNG: buf, Width: cfg.Width, Height: cfg.Height}, nil
}

// DispatchGesture replays g as a touchStart, zero or more touchMoves, and a
// touchEnd. Points arrive in device pixels and are converted to CSS pixels.
func (d *Device) DispatchGesture(ctx context.Context, g device.Gesture) error {
	if len(g.Points) == 0 {
		return errors.New("gesture has no points")
	}
	steps := strokePath(g, d.cfg.Scale)

	actions := []chromedp.Action{
		input.DispatchTouchEvent(input.TouchStart, []*input.TouchPoint{steps[0].point}),
	}
	for _, s := range steps[1:] {
		actions = append(actions,
			chromedp.Sleep(s.delay),
			input.DispatchTouchEvent(input.TouchMove, []*input.TouchPoint{s.point}),
		)
	}
	if g.IsTap() {
		actions = append(actions, chromedp.Sleep(g.Duration))
	}
	actions = append(actions, input.DispatchTouchEvent(input.TouchEnd, []*input.TouchPoint{}))

	if err := d.runActions(ctx, actions...); err != nil {
		return fmt.Errorf("dispatch touch: %w", err)
	}
	return nil
}

// PerformGlobalAction maps Back to history navigation and Home to the
// configured home page.
func (d *Device) PerformGlobalAction(ctx context.Context, a device.GlobalAction) error {
	switch a {
	case device.GlobalBack:
		var ok bool
		return d.runActions(ctx, chromedp.Evaluate(`(history.back(), true)`, &ok))
	case device.GlobalHome:
		if d.cfg.HomeURL == "" {
			return errors.New("no home_url configured")
		}
		return d.runActions(ctx, chromedp.Navigate(d.cfg.HomeURL))
	default:
		return fmt.Errorf("unsupported global action %q", a)
	}
}

// FocusedEditable inspects document.activeElement.
func (d *Device) FocusedEditable(ctx context.Context) (*device.Target, error) {
	var raw string
	err := d.runActions(ctx, chromedp.Evaluate(focusedEditableScript, &raw, returnByValue))
	if err != nil {
		return nil, fmt.Errorf("inspect focus: %w", err)
	}
	return decodeFocus(raw)
}

// SetText writes text into the focused element through the native value
// setter so framework-managed inputs observe the change.
func (d *Device) SetText(ctx context.Context, target device.Target, text string) error {
	var ok bool
	err := d.runActions(ctx, chromedp.Evaluate(setTextScript(text), &ok, returnByValue))
	if err != nil {
		return fmt.Errorf("set text: %w", err)
	}
	if !ok {
		return fmt.Errorf("element %q is no longer editable", target.ID)
	}
	return nil
}

// OpenURL navigates the page to rawURL.
func (d *Device) OpenURL(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	if err := d.runActions(ctx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

func returnByValue(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
}

// devicePixels converts a CSS length to device pixels, rounding down.
func devicePixels(css int, scale float64) int {
	if scale <= 0 {
		return css
	}
	return int(float64(css) * scale)
}

type strokeStep struct {
	point *input.TouchPoint
	delay time.Duration
}

// strokePath expands a gesture into touch points in CSS pixels. Swipes are
// interpolated at roughly one point per frame across their duration.
func strokePath(g device.Gesture, scale float64) []strokeStep {
	if scale <= 0 {
		scale = 1
	}
	toCSS := func(p geometry.Point) *input.TouchPoint {
		return &input.TouchPoint{X: float64(p.X) / scale, Y: float64(p.Y) / scale}
	}

	steps := []strokeStep{{point: toCSS(g.Points[0])}}
	if g.IsTap() {
		return steps
	}

	segments := len(g.Points) - 1
	perSegment := int(g.Duration / frameInterval / time.Duration(segments))
	if perSegment < 1 {
		perSegment = 1
	}
	delay := g.Duration / time.Duration(segments*perSegment)

	for i := 0; i < segments; i++ {
		from, to := toCSS(g.Points[i]), toCSS(g.Points[i+1])
		for s := 1; s <= perSegment; s++ {
			f := float64(s) / float64(perSegment)
			steps = append(steps, strokeStep{
				point: &input.TouchPoint{X: from.X + (to.X-from.X)*f, Y: from.Y + (to.Y-from.Y)*f},
				delay: delay,
			})
		}
	}
	return steps
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("invalid url %q: missing scheme", rawURL)
	}
	return nil
}

// focusedEditableScript yields a JSON description of the focused editable
// element, or an empty string when nothing editable has focus.
const focusedEditableScript = `(function() {
	const el = document.activeElement;
	if (!el || el === document.body) return "";
	const tag = el.tagName.toLowerCase();
	const textual = tag === "textarea" ||
		(tag === "input" && !["button","checkbox","radio","submit","reset","file","image","hidden","range","color"].includes((el.type || "").toLowerCase()));
	if (!textual && !el.isContentEditable) return "";
	if (el.disabled || el.readOnly) return "";
	const r = el.getBoundingClientRect();
	return JSON.stringify({
		id: el.id || el.name || tag,
		class: tag + (el.type ? "[" + el.type + "]" : ""),
		text: el.isContentEditable ? el.textContent : el.value,
		bounds: "[" + Math.round(r.left) + "," + Math.round(r.top) + "][" + Math.round(r.right) + "," + Math.round(r.bottom) + "]"
	});
})()`

type focusInfo struct {
	ID     string `json:"id"`
	Class  string `json:"class"`
	Text   string `json:"text"`
	Bounds string `json:"bounds"`
}

func decodeFocus(raw string) (*device.Target, error) {
	if raw == "" {
		return nil, nil
	}
	var info focusInfo
	if err := json.UnmarshalFromString(raw, &info); err != nil {
		return nil, fmt.Errorf("decode focus info: %w", err)
	}
	return &device.Target{ID: info.ID, Class: info.Class, Text: info.Text, Bounds: info.Bounds}, nil
}

func setTextScript(text string) string {
	return fmt.Sprintf(`(function(text) {
	const el = document.activeElement;
	if (!el || el === document.body) return false;
	if (el.isContentEditable) {
		el.textContent = text;
		el.dispatchEvent(new InputEvent("input", { bubbles: true }));
		return true;
	}
	const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
	const desc = Object.getOwnPropertyDescriptor(proto, "value");
	if (!desc || !desc.set) return false;
	desc.set.call(el, text);
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})(%s)`, jsonEncode(text))
}

func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
