package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "voicecal/internal/log"
	"voicecal/internal/model"
)

// maxOccurrences caps the instances taken from one series per window.
const maxOccurrences = 500

// Expand returns the timed occurrences of events intersecting the half-open
// window [from, to). All-day events never block a time slot and are dropped.
// Overrides (RECURRENCE-ID) replace the instance they name.
func Expand(events []Event, from, to time.Time) ([]model.Interval, error) {
	if !to.After(from) {
		return nil, errors.New("ics: empty expansion window")
	}
	window := model.Interval{Start: from, End: to}

	series := make(map[string][]Event)
	overrides := make(map[string][]*Event)
	var moved []*Event
	for i := range events {
		ev := &events[i]
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			moved = append(moved, ev)
		} else {
			series[ev.UID] = append(series[ev.UID], *ev)
		}
	}

	out := make([]model.Interval, 0)
	keep := func(ev Event, iv model.Interval) {
		if ev.AllDay {
			return
		}
		if iv.Overlaps(window) || (iv.Start.Equal(iv.End) && !iv.Start.Before(from) && iv.Start.Before(to)) {
			out = append(out, model.Interval{Start: iv.Start.In(from.Location()), End: iv.End.In(from.Location())})
		}
	}

	used := make(map[*Event]bool)
	for uid, evs := range series {
		for _, ev := range evs {
			for _, iv := range instances(ev, from, to) {
				if o := overrideFor(overrides[uid], iv.Start); o != nil {
					used[o] = true
					keep(*o, model.Interval{Start: o.Start, End: o.End})
					continue
				}
				keep(ev, iv)
			}
		}
	}

	// An occurrence moved into the window from another day has no series
	// instance here to replace.
	for _, o := range moved {
		if !used[o] {
			keep(*o, model.Interval{Start: o.Start, End: o.End})
		}
	}
	return out, nil
}

// instances lists the occurrences of ev that may touch [from, to).
func instances(ev Event, from, to time.Time) []model.Interval {
	dur := ev.End.Sub(ev.Start)
	if ev.RRule == "" {
		return []model.Interval{{Start: ev.Start, End: ev.End}}
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Warn("ics rrule unparseable; using first instance", "uid", ev.UID, "rrule", ev.RRule, "err", err)
		return []model.Interval{{Start: ev.Start, End: ev.End}}
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Start early enough to catch an instance already running at from.
	starts := set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrences {
		appLog.Warn("ics occurrences truncated", "uid", ev.UID, "cap", maxOccurrences)
		starts = starts[:maxOccurrences]
	}

	out := make([]model.Interval, 0, len(starts))
	for _, s := range starts {
		out = append(out, model.Interval{Start: s, End: s.Add(dur)})
	}
	return out
}

func overrideFor(overrides []*Event, start time.Time) *Event {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o
		}
	}
	return nil
}
