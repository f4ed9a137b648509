package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecal/internal/model"
)

func calendar(events ...string) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//voicecal//test//EN",
	}
	for _, e := range events {
		lines = append(lines, strings.Split(e, "\n")...)
	}
	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n") + "\r\n"
}

const (
	single = `BEGIN:VEVENT
UID:single@test
SUMMARY:review
DTSTART:20261014T060000Z
DTEND:20261014T070000Z
END:VEVENT`

	weekly = `BEGIN:VEVENT
UID:weekly@test
SUMMARY:standup
DTSTART:20260930T010000Z
DTEND:20260930T013000Z
RRULE:FREQ=WEEKLY
EXDATE:20261007T010000Z
END:VEVENT`

	moved = `BEGIN:VEVENT
UID:weekly@test
SUMMARY:standup moved
RECURRENCE-ID:20261021T010000Z
DTSTART:20261021T030000Z
DTEND:20261021T033000Z
END:VEVENT`

	movedEarlier = `BEGIN:VEVENT
UID:weekly@test
SUMMARY:standup pulled forward
RECURRENCE-ID:20261028T010000Z
DTSTART:20261027T050000Z
DTEND:20261027T053000Z
END:VEVENT`

	allDay = `BEGIN:VEVENT
UID:allday@test
SUMMARY:holiday
DTSTART;VALUE=DATE:20261014
DTEND;VALUE=DATE:20261015
END:VEVENT`

	noUID = `BEGIN:VEVENT
SUMMARY:broken
DTSTART:20261014T060000Z
DTEND:20261014T070000Z
END:VEVENT`
)

func utc(d, h, m int) time.Time {
	return time.Date(2026, 10, d, h, m, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	events, err := Parse([]byte(calendar(single, weekly, moved, allDay, noUID)))
	require.NoError(t, err)
	require.Len(t, events, 4)

	byUID := map[string][]Event{}
	for _, ev := range events {
		byUID[ev.UID] = append(byUID[ev.UID], ev)
	}

	s := byUID["single@test"][0]
	assert.Equal(t, "review", s.Summary)
	assert.True(t, utc(14, 6, 0).Equal(s.Start))
	assert.True(t, utc(14, 7, 0).Equal(s.End))
	assert.False(t, s.AllDay)

	assert.True(t, byUID["allday@test"][0].AllDay)
	assert.Len(t, byUID["weekly@test"], 2)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("  \n"))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	events, err := Parse([]byte(calendar(single, weekly, moved, movedEarlier, allDay)))
	require.NoError(t, err)

	tests := []struct {
		name string
		day  int
		want []model.Interval
	}{
		{
			name: "series instance and single event",
			day:  14,
			want: []model.Interval{
				{Start: utc(14, 1, 0), End: utc(14, 1, 30)},
				{Start: utc(14, 6, 0), End: utc(14, 7, 0)},
			},
		},
		{
			name: "excluded date",
			day:  7,
			want: []model.Interval{},
		},
		{
			name: "overridden instance",
			day:  21,
			want: []model.Interval{{Start: utc(21, 3, 0), End: utc(21, 3, 30)}},
		},
		{
			name: "instance moved onto the day from the next",
			day:  27,
			want: []model.Interval{{Start: utc(27, 5, 0), End: utc(27, 5, 30)}},
		},
		{
			name: "instance moved away from the day",
			day:  28,
			want: []model.Interval{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := utc(tt.day, 0, 0)
			got, err := Expand(events, from, from.AddDate(0, 0, 1))
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for _, w := range tt.want {
				assert.Condition(t, func() bool {
					for _, g := range got {
						if g.Start.Equal(w.Start) && g.End.Equal(w.End) {
							return true
						}
					}
					return false
				}, "missing %v", w)
			}
		})
	}
}

func TestExpand_EmptyWindow(t *testing.T) {
	_, err := Expand(nil, utc(14, 0, 0), utc(14, 0, 0))
	assert.Error(t, err)
}

func TestFeed_DayIntervals(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(calendar(single, allDay)))
	}))
	defer srv.Close()

	feed := NewFeed(NewFetcher(srv.URL+"/private/basic.ics", srv.Client()))
	day := utc(14, 0, 0)

	got, err := feed.DayIntervals(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, utc(14, 6, 0).Equal(got[0].Start))

	_, err = feed.DayIntervals(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "feed must be fetched on every check")
}

func TestFeed_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	feed := NewFeed(NewFetcher(srv.URL, srv.Client()))
	_, err := feed.DayIntervals(context.Background(), utc(14, 0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetch_EmptyURL(t *testing.T) {
	_, err := NewFetcher("", nil).Fetch(context.Background())
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)",
		redactURL("https://calendar.example.com/ical/secret/basic.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
