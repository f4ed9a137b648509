// Package conflict decides whether a proposed interval collides with entries
// already on the remote calendar. Any failure while looking fails closed.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "voicecal/internal/log"
	"voicecal/internal/metrics"
	"voicecal/internal/model"
	"voicecal/internal/view"
)

// Source supplies existing intervals for a day from somewhere other than the
// scraped view, such as an ICS export of the same calendar.
type Source interface {
	DayIntervals(ctx context.Context, day time.Time) ([]model.Interval, error)
}

// Options configures a Detector.
type Options struct {
	EventSelector   string
	DayViewKey      string
	Settle          time.Duration
	DefaultDuration time.Duration

	// Feed is optional. Its intervals are merged with the scraped ones.
	Feed Source

	Metrics *metrics.Metrics
}

type Detector struct {
	opts Options
}

func NewDetector(opts Options) *Detector {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = time.Hour
	}
	return &Detector{opts: opts}
}

// CheckConflict opens the day view for day and compares every existing entry
// against [start, end). Errors never surface as "clear": the verdict is a
// conflict with Err set.
func (d *Detector) CheckConflict(ctx context.Context, session view.Session, day, start, end time.Time) model.ConflictVerdict {
	proposed := model.Interval{Start: start, End: end}

	existing, skipped, err := d.existing(ctx, session, day)
	if err != nil {
		appLog.Error("conflict check failed; blocking", err,
			"day", day.Format("2006-01-02"),
			"start", start.Format("15:04"),
			"end", end.Format("15:04"),
		)
		d.opts.Metrics.ConflictCheck(metrics.CheckFailed)
		return model.ConflictVerdict{Conflict: true, Skipped: skipped, Err: err}
	}

	v := Compare(proposed, existing)
	v.Skipped = skipped

	result := metrics.CheckClear
	if v.Conflict {
		result = metrics.CheckConflict
	}
	d.opts.Metrics.ConflictCheck(result)
	appLog.Info("conflict check done",
		"day", day.Format("2006-01-02"),
		"existing", len(existing),
		"skipped", skipped,
		"overlapping", len(v.Overlapping),
		"conflict", v.Conflict,
	)
	return v
}

// Compare lists every existing interval overlapping proposed.
func Compare(proposed model.Interval, existing []model.Interval) model.ConflictVerdict {
	var v model.ConflictVerdict
	for _, iv := range existing {
		if proposed.Overlaps(iv) {
			v.Overlapping = append(v.Overlapping, iv)
		}
	}
	v.Conflict = len(v.Overlapping) > 0
	return v
}

func (d *Detector) existing(ctx context.Context, session view.Session, day time.Time) ([]model.Interval, int, error) {
	entries, err := d.Scrape(ctx, session, day)
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []model.Interval
		skipped int
	)
	for _, e := range entries {
		iv, how := ResolveEntry(day, e, d.opts.DefaultDuration)
		d.opts.Metrics.ExistingEntry(string(how))
		if how == Unresolved {
			skipped++
			appLog.Warn("existing entry unresolvable; ignored", "label", e.RawLabel, "text", e.RawText)
			continue
		}
		appLog.Debug("existing entry",
			"via", string(how),
			"start", iv.Start.Format("15:04"),
			"end", iv.End.Format("15:04"),
			"label", e.RawLabel,
		)
		out = append(out, iv)
	}

	if d.opts.Feed != nil {
		feed, err := d.opts.Feed.DayIntervals(ctx, day)
		if err != nil {
			return nil, skipped, fmt.Errorf("feed: %w", err)
		}
		for range feed {
			d.opts.Metrics.ExistingEntry("feed")
		}
		out = append(out, feed...)
	}
	return out, skipped, nil
}

// Scrape opens the day view and reads every visible entry. Blank entries are
// dropped.
func (d *Detector) Scrape(ctx context.Context, session view.Session, day time.Time) (entries []model.ScrapedEntry, err error) {
	if session == nil {
		return nil, errors.New("no view session")
	}
	page, err := session.OpenDayView(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("open day view: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			appLog.Warn("close page failed", "err", cerr)
		}
	}()

	if d.opts.DayViewKey != "" {
		if err := page.PressKey(ctx, d.opts.DayViewKey); err != nil {
			return nil, fmt.Errorf("switch to day view: %w", err)
		}
	}
	if err := view.Sleep(ctx, d.opts.Settle); err != nil {
		return nil, err
	}

	els, err := page.QueryAll(ctx, d.opts.EventSelector)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}

	for _, el := range els {
		label, text, err := page.LabelAndText(ctx, el)
		if err != nil {
			return nil, fmt.Errorf("read entry: %w", err)
		}
		e := model.ScrapedEntry{RawLabel: label, RawText: text}
		if CombinedText(e) == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
