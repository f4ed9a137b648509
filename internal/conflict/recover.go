package conflict

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"voicecal/internal/model"
	"voicecal/internal/timeparse"
)

// Resolution describes how a scraped entry was turned into an interval.
type Resolution string

const (
	ResolvedByParser   Resolution = "parser"
	ResolvedByRecovery Resolution = "recovery"
	Unresolved         Resolution = "unresolved"
)

// Scraped blocks usually show both ends of the entry, in phrasings that the
// request parser does not expect ("10:00，11:00", "下午2点 - 下午3点").
var (
	colonSpanRe = regexp.MustCompile(`(上午|下午|中午)?\s*(\d{1,2})[:：](\d{2}).*?(上午|下午|中午)?\s*(\d{1,2})[:：](\d{2})`)
	pointSpanRe = regexp.MustCompile(`(上午|下午|中午)?\s*(\d{1,2})点.*?(上午|下午|中午)?\s*(\d{1,2})点`)
)

// CombinedText is the label and the whitespace-collapsed visible text of an
// entry, joined by a space.
func CombinedText(e model.ScrapedEntry) string {
	text := strings.Join(strings.Fields(e.RawText), " ")
	return strings.TrimSpace(strings.TrimSpace(e.RawLabel) + " " + text)
}

// ResolveEntry derives the interval of an existing entry on day. The request
// parser runs first. When it fails, or only finds a single point, the
// recovery patterns get a chance to find an explicit span. A single point
// with no recoverable span lasts def. Entries ending at or before their start
// are taken to cross midnight.
func ResolveEntry(day time.Time, e model.ScrapedEntry, def time.Duration) (model.Interval, Resolution) {
	text := CombinedText(e)
	if text == "" {
		return model.Interval{}, Unresolved
	}

	expr, parsed := timeparse.ParseTime(text)
	if parsed && expr.Mode == model.Range {
		return rollover(timeparse.IntervalOn(day, expr, def)), ResolvedByParser
	}
	if iv, ok := recoverSpan(day, text); ok {
		return iv, ResolvedByRecovery
	}
	if parsed {
		return timeparse.IntervalOn(day, expr, def), ResolvedByParser
	}
	return model.Interval{}, Unresolved
}

func recoverSpan(day time.Time, text string) (model.Interval, bool) {
	if m := colonSpanRe.FindStringSubmatch(text); m != nil {
		if iv, ok := spanOf(day, m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return iv, true
		}
	}
	if m := pointSpanRe.FindStringSubmatch(text); m != nil {
		if iv, ok := spanOf(day, m[1], m[2], "", m[3], m[4], ""); ok {
			return iv, true
		}
	}
	return model.Interval{}, false
}

// spanOf builds an interval from two marker/hour/minute triples. A missing
// marker is inherited from the other bound.
func spanOf(day time.Time, m1, h1, mm1, m2, h2, mm2 string) (model.Interval, bool) {
	if m1 == "" {
		m1 = m2
	}
	if m2 == "" {
		m2 = m1
	}
	sh, sm, ok1 := clock(m1, h1, mm1)
	eh, em, ok2 := clock(m2, h2, mm2)
	if !ok1 || !ok2 {
		return model.Interval{}, false
	}
	loc := day.Location()
	iv := model.Interval{
		Start: time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc),
		End:   time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc),
	}
	return rollover(iv), true
}

func clock(marker, hour, minute string) (int, int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h > 23 {
		return 0, 0, false
	}
	m := 0
	if minute != "" {
		if m, err = strconv.Atoi(minute); err != nil || m > 59 {
			return 0, 0, false
		}
	}
	if h < 13 {
		switch marker {
		case "下午", "中午":
			if h < 12 {
				h += 12
			}
		case "上午":
			if h == 12 {
				h = 0
			}
		}
	}
	return h, m, true
}

func rollover(iv model.Interval) model.Interval {
	if !iv.End.After(iv.Start) {
		iv.End = iv.End.Add(24 * time.Hour)
	}
	return iv
}
