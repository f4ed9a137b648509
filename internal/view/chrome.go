package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	appLog "voicecal/internal/log"
)

// Default browser parameters for the calendar session.
const (
	DefaultWidth       = 1280
	DefaultHeight      = 900
	DefaultLoadTimeout = 30 * time.Second
)

// ChromeOptions configures the long-lived browser behind a Chrome session.
type ChromeOptions struct {
	// BaseURL is the calendar root, e.g.
	// "https://calendar.google.com/calendar/u/0/r". Day views live under
	// BaseURL + "/day/Y/M/D".
	BaseURL string

	// ReadySelector marks a rendered day view (an hour row).
	ReadySelector string

	// UserDataDir is a persistent Chromium profile so an existing login is
	// reused across runs.
	UserDataDir string

	// ExecPath overrides the Chromium binary. Empty means auto-detect.
	ExecPath string

	UserAgent string
	Headless  bool

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// LoadTimeout bounds navigation + ready-marker wait. If zero,
	// DefaultLoadTimeout is used.
	LoadTimeout time.Duration
}

// Chrome is a Session backed by one Chromium instance. Every OpenDayView
// creates a new tab that is closed by Page.Close.
type Chrome struct {
	opts          ChromeOptions
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

var _ Session = (*Chrome)(nil)

// NewChrome launches Chromium with the configured profile and keeps it
// running until Close or until parent is canceled.
func NewChrome(parent context.Context, opts ChromeOptions) (*Chrome, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("view: BaseURL is required")
	}
	if opts.ReadySelector == "" {
		return nil, fmt.Errorf("view: ReadySelector is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.UserDataDir != "" {
		if err := os.MkdirAll(opts.UserDataDir, 0o700); err != nil {
			return nil, fmt.Errorf("view: create profile dir: %w", err)
		}
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("view: start browser: %w", err)
	}

	appLog.Info("browser started",
		"headless", opts.Headless,
		"profile", opts.UserDataDir,
		"base_url", opts.BaseURL,
	)

	return &Chrome{
		opts:          opts,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.browserCancel()
	c.allocCancel()
	appLog.Info("browser stopped")
}

// DayURL returns the day-granularity URL for day under base.
func DayURL(base string, day time.Time) string {
	return fmt.Sprintf("%s/day/%d/%d/%d", strings.TrimRight(base, "/"), day.Year(), int(day.Month()), day.Day())
}

func (c *Chrome) OpenDayView(ctx context.Context, day time.Time) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)

	// Allocate the tab without a deadline; a timeout on the first Run would
	// tear the tab down with it.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("view: open tab: %w", err)
	}

	p := &chromePage{ctx: tabCtx, cancel: tabCancel}
	url := DayURL(c.opts.BaseURL, day)

	err := p.run(ctx, c.opts.LoadTimeout,
		chromedp.EmulateViewport(int64(c.opts.Width), int64(c.opts.Height)),
		chromedp.Navigate(url),
		chromedp.WaitVisible(c.opts.ReadySelector, chromedp.ByQuery),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("view: load %s: %w", url, err)
	}

	appLog.Debug("day view loaded", "url", url)
	return p, nil
}

// chromeElement wraps a DOM node together with the selector that found it.
type chromeElement struct {
	node     *cdp.Node
	selector string
}

func (e *chromeElement) Selector() string { return e.selector }

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by timeout (if positive) and by
// the caller's ctx. Deadline expiry is reported as ErrTimeout.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var c context.CancelFunc
		runCtx, c = context.WithDeadline(runCtx, dl)
		defer c()
	}
	if timeout > 0 {
		var c context.CancelFunc
		runCtx, c = context.WithTimeout(runCtx, timeout)
		defer c()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func asNode(el Element) (*cdp.Node, error) {
	ce, ok := el.(*chromeElement)
	if !ok || ce.node == nil {
		return nil, fmt.Errorf("view: foreign element %T", el)
	}
	return ce.node, nil
}

func wrapNodes(selector string, nodes []*cdp.Node) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeElement{node: n, selector: selector})
	}
	return out
}

func (p *chromePage) PressKey(ctx context.Context, key string) error {
	return p.run(ctx, 0, chromedp.KeyEvent(key))
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return wrapNodes(selector, nodes), nil
}

func (p *chromePage) QueryWithin(ctx context.Context, scope Element, selector string) ([]Element, error) {
	root, err := asNode(scope)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err = p.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(root)))
	if err != nil {
		return nil, err
	}
	return wrapNodes(selector, nodes), nil
}

const innerTextJS = `function() { return (this.innerText || "").replace(/\s+/g, " ").trim(); }`

func (p *chromePage) LabelAndText(ctx context.Context, el Element) (string, string, error) {
	n, err := asNode(el)
	if err != nil {
		return "", "", err
	}
	label := n.AttributeValue("aria-label")

	var text string
	if err := p.run(ctx, 0, callOnNode(n, innerTextJS, &text)); err != nil {
		return "", "", err
	}
	return label, text, nil
}

func (p *chromePage) ScrollIntoView(ctx context.Context, el Element) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	return p.run(ctx, 0, chromedp.ScrollIntoView([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID))
}

func (p *chromePage) Click(ctx context.Context, el Element, opts ClickOptions) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	if opts.Force {
		return p.run(ctx, 0, chromedp.MouseClickNode(n))
	}
	return p.run(ctx, 0, chromedp.Click([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID))
}

func (p *chromePage) Fill(ctx context.Context, el Element, text string) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{n.NodeID}
	return p.run(ctx, 0,
		chromedp.Focus(ids, chromedp.ByNodeID),
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
}

// setValueJS assigns the value, fires the events reactive form bindings
// listen to and updates React's value tracker when present.
const setValueJS = `function() {
	const value = %s;
	this.value = value;
	["input", "change", "blur", "keydown", "keyup"].forEach(ev => {
		this.dispatchEvent(new Event(ev, { bubbles: true }));
	});
	if (this._valueTracker) { this._valueTracker.setValue(value); }
	return this.value;
}`

func (p *chromePage) SetValueAndDispatchEvents(ctx context.Context, el Element, value string) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	lit, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var got string
	if err := p.run(ctx, 0, callOnNode(n, fmt.Sprintf(setValueJS, lit), &got)); err != nil {
		return err
	}
	if got != value {
		appLog.Warn("field value differs after write", "selector", el.Selector(), "want", value, "got", got)
	}
	return nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, state State, timeout time.Duration) (Element, error) {
	switch state {
	case StateDetached:
		return nil, p.run(ctx, timeout, chromedp.WaitNotPresent(selector, chromedp.ByQuery))
	default:
		var nodes []*cdp.Node
		err := p.run(ctx, timeout,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Nodes(selector, &nodes, chromedp.ByQuery),
		)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, ErrNotFound
		}
		return &chromeElement{node: nodes[0], selector: selector}, nil
	}
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	var png []byte
	if err := p.run(ctx, 0, chromedp.FullScreenshot(&png, 100)); err != nil {
		return fmt.Errorf("view: screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("view: write screenshot: %w", err)
	}
	return nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// callOnNode resolves n to a remote object and calls fn with this bound to
// it, decoding the by-value result into res.
func callOnNode(n *cdp.Node, fn string, res any) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		out, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res == nil || out == nil || len(out.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(out.Value), res)
	})
}
