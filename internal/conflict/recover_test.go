package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voicecal/internal/model"
)

var day = time.Date(2026, 10, 14, 0, 0, 0, 0, time.Local)

func at(h, m int) time.Time {
	return time.Date(2026, 10, 14, h, m, 0, 0, time.Local)
}

func TestResolveEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry model.ScrapedEntry
		want  model.Interval
		how   Resolution
	}{
		{
			name:  "parser range with markers",
			entry: model.ScrapedEntry{RawLabel: "下午2:30至下午3:30，周会"},
			want:  model.Interval{Start: at(14, 30), End: at(15, 30)},
			how:   ResolvedByParser,
		},
		{
			name:  "label and text combined",
			entry: model.ScrapedEntry{RawLabel: "写报告", RawText: "14:30 -\n  15:30"},
			want:  model.Interval{Start: at(14, 30), End: at(15, 30)},
			how:   ResolvedByParser,
		},
		{
			name:  "colon span without connector",
			entry: model.ScrapedEntry{RawLabel: "10:00，11:00 站会"},
			want:  model.Interval{Start: at(10, 0), End: at(11, 0)},
			how:   ResolvedByRecovery,
		},
		{
			name:  "point span inherits marker",
			entry: model.ScrapedEntry{RawText: "下午2点，开会，3点结束"},
			want:  model.Interval{Start: at(14, 0), End: at(15, 0)},
			how:   ResolvedByRecovery,
		},
		{
			name:  "noon marker counts as afternoon",
			entry: model.ScrapedEntry{RawText: "中午1点 午餐 2点"},
			want:  model.Interval{Start: at(13, 0), End: at(14, 0)},
			how:   ResolvedByRecovery,
		},
		{
			name:  "single point gets default duration",
			entry: model.ScrapedEntry{RawLabel: "9点 早会"},
			want:  model.Interval{Start: at(9, 0), End: at(10, 0)},
			how:   ResolvedByParser,
		},
		{
			name:  "crosses midnight",
			entry: model.ScrapedEntry{RawLabel: "23:00-01:00 值班"},
			want:  model.Interval{Start: at(23, 0), End: at(25, 0)},
			how:   ResolvedByParser,
		},
		{
			name:  "no time at all",
			entry: model.ScrapedEntry{RawLabel: "全天 提醒"},
			how:   Unresolved,
		},
		{
			name:  "blank",
			entry: model.ScrapedEntry{RawLabel: "  ", RawText: "\n\t"},
			how:   Unresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, how := ResolveEntry(day, tt.entry, time.Hour)
			assert.Equal(t, tt.how, how)
			if tt.how != Unresolved {
				assert.True(t, tt.want.Start.Equal(got.Start), "start %s", got.Start)
				assert.True(t, tt.want.End.Equal(got.End), "end %s", got.End)
			}
		})
	}
}

func TestCombinedText(t *testing.T) {
	e := model.ScrapedEntry{RawLabel: " 周会 ", RawText: "下午2点\n\n  到   3点"}
	assert.Equal(t, "周会 下午2点 到 3点", CombinedText(e))
	assert.Equal(t, "", CombinedText(model.ScrapedEntry{}))
}

func TestClock(t *testing.T) {
	tests := []struct {
		marker, hour, minute string
		h, m                 int
		ok                   bool
	}{
		{"下午", "3", "", 15, 0, true},
		{"下午", "12", "", 12, 0, true},
		{"上午", "12", "15", 0, 15, true},
		{"上午", "9", "", 9, 0, true},
		{"下午", "15", "", 15, 0, true},
		{"", "7", "05", 7, 5, true},
		{"", "24", "", 0, 0, false},
		{"", "7", "60", 0, 0, false},
	}
	for _, tt := range tests {
		h, m, ok := clock(tt.marker, tt.hour, tt.minute)
		assert.Equal(t, tt.ok, ok, "%s%s:%s", tt.marker, tt.hour, tt.minute)
		if tt.ok {
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.m, m)
		}
	}
}
