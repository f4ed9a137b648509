package model

import "time"

// DateQualifier is the relative-day keyword recognized in an utterance.
type DateQualifier int

const (
	Today DateQualifier = iota
	Tomorrow
	DayAfterTomorrow
	NextWeekday
)

func (q DateQualifier) String() string {
	switch q {
	case Tomorrow:
		return "tomorrow"
	case DayAfterTomorrow:
		return "day_after_tomorrow"
	case NextWeekday:
		return "next_weekday"
	default:
		return "today"
	}
}

// Mode distinguishes a single point in time from an explicit range.
type Mode int

const (
	Single Mode = iota
	Range
)

func (m Mode) String() string {
	if m == Range {
		return "range"
	}
	return "single"
}

// Meridiem is a morning/afternoon qualifier found in the text.
type Meridiem int

const (
	NoMeridiem Meridiem = iota
	AM
	PM
)

// TimeExpression is the structured form of a spoken time. Hours are already
// normalized to 0-23. A Single expression has no end; callers apply the
// default duration.
type TimeExpression struct {
	Date    DateQualifier
	Weekday time.Weekday // only meaningful when Date == NextWeekday

	Mode        Mode
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int

	AM bool
	PM bool
}

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether i and o intersect as half-open intervals.
// Back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return !(!i.End.After(o.Start) || !i.Start.Before(o.End))
}

// ScheduleRequest is a complete, validated request ready for conflict
// detection. End is always after Start.
type ScheduleRequest struct {
	Title string
	Start time.Time
	End   time.Time
}

func (r ScheduleRequest) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

// ScrapedEntry is one existing calendar block as observed in the day view.
type ScrapedEntry struct {
	RawLabel string
	RawText  string
}

// ConflictVerdict is the outcome of a conflict check. Err is set when the
// check failed and the verdict was forced to Conflict.
type ConflictVerdict struct {
	Conflict    bool
	Overlapping []Interval
	Skipped     int
	Err         error
}

// MutationOutcome is the result of one event-creation attempt.
type MutationOutcome struct {
	Success      bool
	ArtifactPath string
	Warnings     []string
	Err          error
}

// Status is the final state of a scheduling request.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusConflict   Status = "conflict"
	StatusOK         Status = "ok"
	StatusError      Status = "error"
)

// ScheduleVoiceRequest is the inbound request produced by the speech layer.
type ScheduleVoiceRequest struct {
	RawText string `json:"raw_text"`
}

// ScheduleVoiceResponse is the single outcome returned for every request.
type ScheduleVoiceResponse struct {
	RequestID        string     `json:"request_id"`
	Status           Status     `json:"status"`
	Message          string     `json:"message"`
	Title            string     `json:"title,omitempty"`
	ProposedInterval *Interval  `json:"proposed_interval,omitempty"`
	Overlapping      []Interval `json:"overlapping,omitempty"`
	Missing          []string   `json:"missing,omitempty"`
	ArtifactPath     string     `json:"artifact_path,omitempty"`
}
