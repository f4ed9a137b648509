package timeparse

import (
	"regexp"
	"strings"
	"time"

	"voicecal/internal/model"
)

var nextWeekdayRe = regexp.MustCompile(`下周([一二三四五六日天])`)

// weekdays maps the character after 周 to a Go weekday.
var weekdays = map[string]time.Weekday{
	"一": time.Monday,
	"二": time.Tuesday,
	"三": time.Wednesday,
	"四": time.Thursday,
	"五": time.Friday,
	"六": time.Saturday,
	"日": time.Sunday,
	"天": time.Sunday,
}

// dateKeywords are removed from the text before titles are extracted.
// Longer keywords come first.
var dateKeywords = []string{"今天", "明天", "明日", "后天"}

// qualifierOf classifies the relative-day keyword in text. 今天 wins over
// 明天, which wins over 后天; without any keyword the date is today.
func qualifierOf(text string) (model.DateQualifier, time.Weekday) {
	switch {
	case strings.Contains(text, "今天"):
		return model.Today, 0
	case strings.Contains(text, "明天"), strings.Contains(text, "明日"), strings.Contains(text, "明早"):
		return model.Tomorrow, 0
	case strings.Contains(text, "后天"):
		return model.DayAfterTomorrow, 0
	}
	if m := nextWeekdayRe.FindStringSubmatch(text); m != nil {
		return model.NextWeekday, weekdays[m[1]]
	}
	return model.Today, 0
}

// resolveDate turns a qualifier into a calendar date (midnight) relative to now.
func resolveDate(now time.Time, q model.DateQualifier, wd time.Weekday) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch q {
	case model.Tomorrow:
		return day.AddDate(0, 0, 1)
	case model.DayAfterTomorrow:
		return day.AddDate(0, 0, 2)
	case model.NextWeekday:
		return day.AddDate(0, 0, daysUntilNext(now.Weekday(), wd))
	default:
		return day
	}
}

// daysUntilNext returns the offset to the next occurrence of target that is
// at least 7 days away. "下周一" always means the following week, even when
// Monday of the current week is still ahead.
func daysUntilNext(from, target time.Weekday) int {
	return (int(target)-int(from)+7)%7 + 7
}
