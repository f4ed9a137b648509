// Package viewtest provides a scriptable in-memory view.Session for tests.
package viewtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voicecal/internal/view"
)

// Element is a fake DOM node.
type Element struct {
	ID    string
	Sel   string
	Label string
	Text  string

	// Children are returned by QueryWithin keyed by selector.
	Children map[string][]*Element
}

func (e *Element) Selector() string { return e.Sel }

// Page is a fake view.Page. Zero values are usable; populate Nodes with the
// elements each selector should return.
type Page struct {
	mu sync.Mutex

	// Nodes maps a selector to the elements QueryAll and WaitFor see.
	Nodes map[string][]*Element

	// Errors injects failures keyed by "<Method>" or "<Method>:<selector>".
	Errors map[string]error

	// Actions records every mutating call in order.
	Actions []string

	// Values records the last value written to each element id.
	Values map[string]string

	Closed bool

	session *Session
}

func (p *Page) fail(method, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.Errors[method+":"+selector]; ok {
		return err
	}
	return p.Errors[method]
}

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	p.Actions = append(p.Actions, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func elements(in []*Element) []view.Element {
	out := make([]view.Element, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}

func (p *Page) PressKey(_ context.Context, key string) error {
	if err := p.fail("PressKey", ""); err != nil {
		return err
	}
	p.record("press %s", key)
	return nil
}

func (p *Page) QueryAll(_ context.Context, selector string) ([]view.Element, error) {
	if err := p.fail("QueryAll", selector); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return elements(p.Nodes[selector]), nil
}

func (p *Page) QueryWithin(_ context.Context, scope view.Element, selector string) ([]view.Element, error) {
	if err := p.fail("QueryWithin", selector); err != nil {
		return nil, err
	}
	e, ok := scope.(*Element)
	if !ok {
		return nil, fmt.Errorf("viewtest: foreign element %T", scope)
	}
	return elements(e.Children[selector]), nil
}

func (p *Page) LabelAndText(_ context.Context, el view.Element) (string, string, error) {
	if err := p.fail("LabelAndText", el.Selector()); err != nil {
		return "", "", err
	}
	e := el.(*Element)
	return e.Label, e.Text, nil
}

func (p *Page) ScrollIntoView(_ context.Context, el view.Element) error {
	if err := p.fail("ScrollIntoView", el.Selector()); err != nil {
		return err
	}
	p.record("scroll %s", el.(*Element).ID)
	return nil
}

func (p *Page) Click(_ context.Context, el view.Element, opts view.ClickOptions) error {
	if err := p.fail("Click", el.Selector()); err != nil {
		return err
	}
	p.record("click %s force=%t", el.(*Element).ID, opts.Force)
	return nil
}

func (p *Page) Fill(_ context.Context, el view.Element, text string) error {
	if err := p.fail("Fill", el.Selector()); err != nil {
		return err
	}
	p.setValue(el.(*Element).ID, text)
	p.record("fill %s %s", el.(*Element).ID, text)
	return nil
}

func (p *Page) SetValueAndDispatchEvents(_ context.Context, el view.Element, value string) error {
	if err := p.fail("SetValueAndDispatchEvents", el.Selector()); err != nil {
		return err
	}
	p.setValue(el.(*Element).ID, value)
	p.record("set %s %s", el.(*Element).ID, value)
	return nil
}

func (p *Page) setValue(id, v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Values == nil {
		p.Values = make(map[string]string)
	}
	p.Values[id] = v
}

// WaitFor returns the first element under selector for StateVisible, or
// view.ErrTimeout when there is none. StateDetached succeeds unless an error
// is injected under "WaitFor:<selector>|detached".
func (p *Page) WaitFor(_ context.Context, selector string, state view.State, _ time.Duration) (view.Element, error) {
	key := selector + "|" + state.String()
	if err := p.fail("WaitFor", key); err != nil {
		return nil, err
	}
	p.record("wait %s", key)
	if state == view.StateDetached {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Nodes[selector]) == 0 {
		return nil, view.ErrTimeout
	}
	return p.Nodes[selector][0], nil
}

// Screenshot writes a tiny placeholder file so callers can assert on paths.
func (p *Page) Screenshot(_ context.Context, path string) error {
	if err := p.fail("Screenshot", ""); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		return err
	}
	p.record("screenshot %s", filepath.Base(path))
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
	if p.session != nil {
		p.session.closed()
	}
	return nil
}

// Did reports whether action was recorded.
func (p *Page) Did(action string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Session is a fake view.Session. Build produces the page for each
// OpenDayView call; OpenErr makes every open fail.
type Session struct {
	mu sync.Mutex

	Build   func(day time.Time) *Page
	OpenErr error

	// OnOpen runs after the page is built, outside the lock.
	OnOpen func(day time.Time)

	Opened    []time.Time
	Pages     []*Page
	active    int
	maxActive int
}

var _ view.Session = (*Session)(nil)

func (s *Session) OpenDayView(_ context.Context, day time.Time) (view.Page, error) {
	s.mu.Lock()
	s.Opened = append(s.Opened, day)
	if s.OpenErr != nil {
		err := s.OpenErr
		s.mu.Unlock()
		return nil, err
	}
	var p *Page
	if s.Build != nil {
		p = s.Build(day)
	}
	if p == nil {
		p = &Page{}
	}
	p.session = s
	s.Pages = append(s.Pages, p)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	hook := s.OnOpen
	s.mu.Unlock()

	if hook != nil {
		hook(day)
	}
	return p, nil
}

func (s *Session) closed() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

// MaxActive is the highest number of simultaneously open pages.
func (s *Session) MaxActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

// Active is the number of pages opened but not yet closed.
func (s *Session) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
