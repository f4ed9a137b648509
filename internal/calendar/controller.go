// Package calendar creates events by driving the remote calendar's day view:
// click the hour row, fill the quick-create dialog, save.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	appLog "voicecal/internal/log"
	"voicecal/internal/metrics"
	"voicecal/internal/model"
	"voicecal/internal/view"
)

var (
	// ErrSlotCount means the day view did not show the expected number of
	// hour rows. Nothing was clicked.
	ErrSlotCount = errors.New("calendar: unexpected hour row count")
	// ErrDialogTimeout means the creation dialog never became visible.
	ErrDialogTimeout = errors.New("calendar: creation dialog did not open")
	// ErrSaveControlMissing means no save button matched any candidate.
	ErrSaveControlMissing = errors.New("calendar: save control not found")
)

// Warnings attached to a successful MutationOutcome.
const (
	WarnTitleMissing    = "title field not found; title left blank"
	WarnTimesMissing    = "start/end fields not found; slot default times kept"
	WarnSaveUnconfirmed = "dialog did not close after save; assuming saved"
)

// Options configures a Controller.
type Options struct {
	HourRowSelector string
	HourRows        int
	DialogSelector  string
	DayViewKey      string

	TitleLabels []string
	StartLabels []string
	EndLabels   []string
	SaveLabels  []string

	Settle        time.Duration
	DialogVisible time.Duration
	DialogDetach  time.Duration

	// ArtifactDir receives error screenshots.
	ArtifactDir string

	Metrics *metrics.Metrics

	// Now stamps artifact names. Defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	opts Options
}

func NewController(opts Options) *Controller {
	if opts.HourRows <= 0 {
		opts.HourRows = 24
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{opts: opts}
}

// CreateEvent adds title at [start, end) on start's day. The page is always
// closed. Failures after the view opened leave a screenshot, except for the
// hour row precondition, which aborts before anything is touched.
func (c *Controller) CreateEvent(ctx context.Context, session view.Session, title string, start, end time.Time) model.MutationOutcome {
	var out model.MutationOutcome

	if session == nil {
		out.Err = errors.New("calendar: no view session")
		c.opts.Metrics.Creation(metrics.CreateFailed)
		return out
	}

	page, err := session.OpenDayView(ctx, start)
	if err != nil {
		out.Err = fmt.Errorf("open day view: %w", err)
		appLog.Error("create event: open day view failed", out.Err, "day", start.Format("2006-01-02"))
		c.opts.Metrics.Creation(metrics.CreateFailed)
		return out
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			appLog.Warn("close page failed", "err", cerr)
		}
	}()

	out.Warnings, err = c.create(ctx, page, title, start, end)
	if err != nil {
		out.Err = err
		if !errors.Is(err, ErrSlotCount) {
			out.ArtifactPath = c.capture(ctx, page)
		}
		appLog.Error("create event failed", err,
			"title", title,
			"start", start.Format(time.RFC3339),
			"artifact", out.ArtifactPath,
		)
		c.opts.Metrics.Creation(metrics.CreateFailed)
		return out
	}

	out.Success = true
	result := metrics.CreateOK
	for _, w := range out.Warnings {
		if w == WarnSaveUnconfirmed {
			result = metrics.CreateUnconfirmed
		}
	}
	c.opts.Metrics.Creation(result)
	appLog.Info("event created", "title", title, "start", start.Format(time.RFC3339), "end", end.Format(time.RFC3339), "warnings", len(out.Warnings))
	return out
}

func (c *Controller) create(ctx context.Context, page view.Page, title string, start, end time.Time) ([]string, error) {
	var warnings []string

	if c.opts.DayViewKey != "" {
		if err := page.PressKey(ctx, c.opts.DayViewKey); err != nil {
			return nil, fmt.Errorf("switch to day view: %w", err)
		}
	}
	if err := view.Sleep(ctx, c.opts.Settle); err != nil {
		return nil, err
	}

	rows, err := page.QueryAll(ctx, c.opts.HourRowSelector)
	if err != nil {
		return nil, fmt.Errorf("query hour rows: %w", err)
	}
	if len(rows) != c.opts.HourRows {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSlotCount, len(rows), c.opts.HourRows)
	}

	if start.Hour() >= len(rows) {
		return nil, fmt.Errorf("%w: no row for hour %d among %d", ErrSlotCount, start.Hour(), len(rows))
	}

	row := rows[start.Hour()]
	if err := page.ScrollIntoView(ctx, row); err != nil {
		return nil, fmt.Errorf("scroll to hour %d: %w", start.Hour(), err)
	}
	if err := page.Click(ctx, row, view.ClickOptions{Force: true}); err != nil {
		return nil, fmt.Errorf("click hour %d: %w", start.Hour(), err)
	}
	appLog.Debug("hour row clicked", "hour", start.Hour())

	dialog, err := page.WaitFor(ctx, c.opts.DialogSelector, view.StateVisible, c.opts.DialogVisible)
	if err != nil {
		if errors.Is(err, view.ErrTimeout) {
			return nil, fmt.Errorf("%w within %s", ErrDialogTimeout, c.opts.DialogVisible)
		}
		return nil, fmt.Errorf("wait for dialog: %w", err)
	}

	titleBox, loc, err := view.First(ctx, page, dialog, view.ByLabel("", c.opts.TitleLabels...))
	switch {
	case errors.Is(err, view.ErrNotFound):
		warnings = append(warnings, WarnTitleMissing)
		appLog.Warn("title field not found", "candidates", len(c.opts.TitleLabels))
	case err != nil:
		return nil, fmt.Errorf("find title field: %w", err)
	default:
		if err := page.Fill(ctx, titleBox, title); err != nil {
			return nil, fmt.Errorf("fill title: %w", err)
		}
		appLog.Debug("title filled", "via", loc.String())
	}

	startBox, _, serr := view.First(ctx, page, dialog, view.ByLabel("input", c.opts.StartLabels...))
	endBox, _, eerr := view.First(ctx, page, dialog, view.ByLabel("input", c.opts.EndLabels...))
	for _, err := range []error{serr, eerr} {
		if err != nil && !errors.Is(err, view.ErrNotFound) {
			return nil, fmt.Errorf("find time fields: %w", err)
		}
	}
	if serr == nil && eerr == nil {
		if err := page.SetValueAndDispatchEvents(ctx, startBox, start.Format("15:04")); err != nil {
			return nil, fmt.Errorf("set start time: %w", err)
		}
		if err := page.SetValueAndDispatchEvents(ctx, endBox, end.Format("15:04")); err != nil {
			return nil, fmt.Errorf("set end time: %w", err)
		}
	} else {
		warnings = append(warnings, WarnTimesMissing)
		appLog.Warn("time fields not found", "start_found", serr == nil, "end_found", eerr == nil)
	}

	save, loc, err := view.First(ctx, page, dialog, c.saveCandidates())
	if err != nil {
		if errors.Is(err, view.ErrNotFound) {
			return nil, ErrSaveControlMissing
		}
		return nil, fmt.Errorf("find save control: %w", err)
	}
	if err := page.Click(ctx, save, view.ClickOptions{Force: true}); err != nil {
		return nil, fmt.Errorf("click save: %w", err)
	}
	appLog.Debug("save clicked", "via", loc.String())

	if _, err := page.WaitFor(ctx, c.opts.DialogSelector, view.StateDetached, c.opts.DialogDetach); err != nil {
		if !errors.Is(err, view.ErrTimeout) {
			return nil, fmt.Errorf("wait for dialog to close: %w", err)
		}
		warnings = append(warnings, WarnSaveUnconfirmed)
		appLog.Warn("save not confirmed", "timeout", c.opts.DialogDetach)
	}
	return warnings, nil
}

// saveCandidates prefers an exact aria-label, then any button whose label or
// text contains the word.
func (c *Controller) saveCandidates() []view.Locator {
	out := view.ByLabel("button", c.opts.SaveLabels...)
	for _, l := range c.opts.SaveLabels {
		out = append(out, view.Locator{Selector: "button", Text: l})
	}
	return out
}

// capture writes a full-page screenshot and returns its path, or "" when the
// screenshot itself failed. It runs even when ctx has expired.
func (c *Controller) capture(ctx context.Context, page view.Page) string {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	path := filepath.Join(c.opts.ArtifactDir, ArtifactName(c.opts.Now()))
	if err := page.Screenshot(sctx, path); err != nil {
		appLog.Error("screenshot failed", err, "path", path)
		return ""
	}
	return path
}

// ArtifactName is the screenshot file name for a failure at t.
func ArtifactName(t time.Time) string {
	return "error_" + t.Format("20060102_150405") + ".png"
}
