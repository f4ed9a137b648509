// Package timeparse turns a spoken Chinese scheduling request into a
// structured date, time interval and title.
package timeparse

import (
	"regexp"
	"strings"
	"time"

	"voicecal/internal/model"
)

// DefaultTitle is shown in UIs when nothing is left after stripping date and
// time tokens. It never counts as a real title.
const DefaultTitle = "日程"

const (
	promptTime  = "我没有听清楚时间，请再说一次，例如：明天早上九点到十点。"
	promptTitle = "请告诉我日程的内容，例如：明天下午三点到四点开会。"
)

// Field names a piece of information missing from an utterance.
type Field string

const (
	FieldTime  Field = "time"
	FieldTitle Field = "title"
)

// IncompleteError reports that an utterance could not be turned into a
// complete ScheduleRequest. Prompt is a message asking the user to repeat.
type IncompleteError struct {
	Missing []Field
	Prompt  string
}

func (e *IncompleteError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		names = append(names, string(f))
	}
	return "incomplete schedule request: missing " + strings.Join(names, ", ")
}

// Has reports whether f is among the missing fields.
func (e *IncompleteError) Has(f Field) bool {
	for _, m := range e.Missing {
		if m == f {
			return true
		}
	}
	return false
}

// Parser resolves utterances against a clock. It holds no mutable state, so
// parsing the same text twice at the same instant yields the same result.
type Parser struct {
	now             func() time.Time
	defaultDuration time.Duration
}

// NewParser creates a Parser using the wall clock. defaultDuration is the
// length of a single-point expression; zero means one hour.
func NewParser(defaultDuration time.Duration) *Parser {
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Parser{
		now:             time.Now,
		defaultDuration: defaultDuration,
	}
}

// WithClock returns a copy of p that reads the current time from now.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	return &Parser{
		now:             now,
		defaultDuration: p.defaultDuration,
	}
}

// DefaultDuration is the span given to single-point expressions.
func (p *Parser) DefaultDuration() time.Duration {
	return p.defaultDuration
}

// ParseDate resolves the relative-day keyword in text to a calendar date at
// local midnight. Without a keyword the date is today.
func (p *Parser) ParseDate(text string) time.Time {
	q, wd := qualifierOf(text)
	return resolveDate(p.now(), q, wd)
}

// Parse builds a ScheduleRequest from text. It returns *IncompleteError when
// no usable time is found (only the time is reported missing then) or when
// nothing is left for a title.
func (p *Parser) Parse(text string) (model.ScheduleRequest, error) {
	text = strings.TrimSpace(text)

	expr, ok := ParseTime(text)
	var iv model.Interval
	if ok {
		iv = IntervalOn(resolveDate(p.now(), expr.Date, expr.Weekday), expr, p.defaultDuration)
		ok = iv.End.After(iv.Start)
	}
	if !ok {
		return model.ScheduleRequest{}, &IncompleteError{Missing: []Field{FieldTime}, Prompt: promptTime}
	}

	title := stripTitle(text)
	if title == "" {
		return model.ScheduleRequest{}, &IncompleteError{Missing: []Field{FieldTitle}, Prompt: promptTitle}
	}

	return model.ScheduleRequest{
		Title: title,
		Start: iv.Start,
		End:   iv.End,
	}, nil
}

// IntervalOn places expr on day. Single expressions last def. The end is not
// adjusted, so callers must check End > Start themselves.
func IntervalOn(day time.Time, expr model.TimeExpression, def time.Duration) model.Interval {
	start := time.Date(day.Year(), day.Month(), day.Day(), expr.StartHour, expr.StartMinute, 0, 0, day.Location())
	if expr.Mode == model.Single {
		return model.Interval{Start: start, End: start.Add(def)}
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), expr.EndHour, expr.EndMinute, 0, 0, day.Location())
	return model.Interval{Start: start, End: end}
}

// ExtractTitle returns the text left after removing date, time and meridiem
// tokens, or DefaultTitle when nothing remains.
func ExtractTitle(text string) string {
	if t := stripTitle(text); t != "" {
		return t
	}
	return DefaultTitle
}

const titleTrim = " \t\r\n，。,.!！?？、;；:："

func stripTitle(text string) string {
	t := stripDateKeywords(text)
	for _, re := range titlePatterns {
		t = re.ReplaceAllString(t, "")
	}
	t = meridiemRe.ReplaceAllString(t, "")
	t = strings.Join(strings.Fields(t), " ")
	t = strings.Trim(t, titleTrim)
	return strings.Trim(strings.TrimPrefix(t, "的"), titleTrim)
}

var titlePatterns = []*regexp.Regexp{digitRangeRe, cnRangeRe, digitSingleRe, cnSingleRe}

func stripDateKeywords(text string) string {
	t := nextWeekdayRe.ReplaceAllString(text, "")
	for _, kw := range dateKeywords {
		t = strings.ReplaceAll(t, kw, "")
	}
	return t
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
