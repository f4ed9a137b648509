package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "voicecal/internal/log"
)

// Event is a VEVENT reduced to what overlap checks need.
type Event struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on a VEVENT overriding one instance of a series.
	RecurrenceID *time.Time
}

// Parse decodes an ICS payload. Broken VEVENTs are logged and skipped.
func Parse(body []byte) ([]Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0)
	for _, ve := range cal.Events() {
		ev, err := parseEvent(ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "err", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(ve *ical.VEvent) (Event, error) {
	var ev Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDate(dtStart.ICalParameters, dtStart.Value)

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, err
	}
	ev.Start = start

	// Without DTEND a timed event ends when it starts (RFC 5545 3.6.1).
	ev.End = start
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		ev.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := tzOf(p.ICalParameters)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseTime(strings.TrimSpace(part), loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseTime(p.Value, tzOf(p.ICalParameters)); err == nil {
			ev.RecurrenceID = &t
		}
	}
	return ev, nil
}

func isDate(params map[string][]string, value string) bool {
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(value, "T")
}

func tzOf(params map[string][]string) *time.Location {
	if tz := params["TZID"]; len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return time.Local
}

// parseTime handles the DATE, DATE-TIME and UTC DATE-TIME forms.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
