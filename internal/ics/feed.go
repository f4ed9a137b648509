// Package ics reads existing entries from the calendar's ICS export so the
// conflict check can see events the scraped view could not resolve.
package ics

import (
	"context"
	"fmt"
	"time"

	"voicecal/internal/model"
)

// Feed fetches, parses and expands the export on every call.
type Feed struct {
	fetcher *Fetcher
}

func NewFeed(f *Fetcher) *Feed {
	return &Feed{fetcher: f}
}

// DayIntervals returns the timed entries overlapping the local day of day.
func (f *Feed) DayIntervals(ctx context.Context, day time.Time) ([]model.Interval, error) {
	body, err := f.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	events, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return Expand(events, from, from.AddDate(0, 0, 1))
}
