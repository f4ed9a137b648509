// Package view defines the capability set the scheduling core needs from a
// remote calendar UI: open a day view, query elements, click, fill, wait and
// screenshot. The production implementation drives Chromium via chromedp.
package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait elapses.
	ErrTimeout = errors.New("view: timed out")
	// ErrNotFound is returned when no candidate locator matches.
	ErrNotFound = errors.New("view: element not found")
)

// State is the element state awaited by Page.WaitFor.
type State int

const (
	StateVisible State = iota
	StateDetached
)

func (s State) String() string {
	if s == StateDetached {
		return "detached"
	}
	return "visible"
}

// Element is an opaque handle to a node in a page.
type Element interface {
	// Selector is the query that located the element, for diagnostics.
	Selector() string
}

// ClickOptions controls Page.Click. Force skips actionability checks and
// dispatches the click at the element's position.
type ClickOptions struct {
	Force bool
}

// Session opens pages on the remote calendar. Implementations are not safe
// for concurrent use; callers serialize access.
type Session interface {
	// OpenDayView navigates a fresh page to the day view for day and waits
	// for the baseline UI marker. A load timeout is fatal.
	OpenDayView(ctx context.Context, day time.Time) (Page, error)
}

// Page is a single transient view used for one operation. Close must always
// be called.
type Page interface {
	PressKey(ctx context.Context, key string) error
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	QueryWithin(ctx context.Context, scope Element, selector string) ([]Element, error)
	LabelAndText(ctx context.Context, el Element) (label, text string, err error)
	ScrollIntoView(ctx context.Context, el Element) error
	Click(ctx context.Context, el Element, opts ClickOptions) error
	Fill(ctx context.Context, el Element, text string) error
	// SetValueAndDispatchEvents writes value into the element's value store
	// and fires input, change, blur, keydown and keyup so reactive UIs pick
	// it up.
	SetValueAndDispatchEvents(ctx context.Context, el Element, value string) error
	// WaitFor waits up to timeout for the first element matching selector to
	// reach state. For StateVisible the element is returned.
	WaitFor(ctx context.Context, selector string, state State, timeout time.Duration) (Element, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Locator is one candidate way of finding an element: a CSS selector,
// optionally narrowed to elements whose label or visible text contains Text.
type Locator struct {
	Selector string
	Text     string
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.Selector
	}
	return fmt.Sprintf("%s:has-text(%q)", l.Selector, l.Text)
}

// ByLabel builds one locator per aria-label, preserving order.
func ByLabel(tag string, labels ...string) []Locator {
	out := make([]Locator, 0, len(labels))
	for _, l := range labels {
		out = append(out, Locator{Selector: fmt.Sprintf(`%s[aria-label="%s"]`, tag, l)})
	}
	return out
}

// First tries candidates in order inside scope (or the whole page when scope
// is nil) and returns the first match. ErrNotFound means no candidate
// matched; any other error comes from the page.
func First(ctx context.Context, p Page, scope Element, candidates []Locator) (Element, Locator, error) {
	for _, c := range candidates {
		var (
			els []Element
			err error
		)
		if scope == nil {
			els, err = p.QueryAll(ctx, c.Selector)
		} else {
			els, err = p.QueryWithin(ctx, scope, c.Selector)
		}
		if err != nil {
			return nil, Locator{}, fmt.Errorf("query %s: %w", c, err)
		}
		for _, el := range els {
			if c.Text == "" {
				return el, c, nil
			}
			label, text, err := p.LabelAndText(ctx, el)
			if err != nil {
				return nil, Locator{}, fmt.Errorf("read %s: %w", c, err)
			}
			if strings.Contains(label, c.Text) || strings.Contains(text, c.Text) {
				return el, c, nil
			}
		}
	}
	return nil, Locator{}, ErrNotFound
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
