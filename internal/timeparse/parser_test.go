package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecal/internal/model"
)

// 2026-10-14 is a Wednesday.
var fixedNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.Local)

func newTestParser() *Parser {
	return NewParser(time.Hour).WithClock(func() time.Time { return fixedNow })
}

func TestParse_Requests(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name      string
		input     string
		wantTitle string
		wantStart string // "2006-01-02 15:04"
		wantEnd   string
	}{
		{"digit range with minutes", "9:00到10:30开会", "开会", "2026-10-14 09:00", "2026-10-14 10:30"},
		{"meridiem inherited by end", "下午9点到10点打游戏", "打游戏", "2026-10-14 21:00", "2026-10-14 22:00"},
		{"single point defaults to one hour", "明天早上9点开会", "开会", "2026-10-15 09:00", "2026-10-15 10:00"},
		{"tomorrow afternoon range", "明天下午3点到4点开会", "开会", "2026-10-15 15:00", "2026-10-15 16:00"},
		{"today afternoon range", "今天下午2点到3点写报告", "写报告", "2026-10-14 14:00", "2026-10-14 15:00"},
		{"day after tomorrow", "后天上午10点半到11点半面试", "面试", "2026-10-16 10:30", "2026-10-16 11:30"},
		{"chinese numeral range", "十二点到三点吃饭", "吃饭", "2026-10-14 12:00", "2026-10-14 15:00"},
		{"chinese numeral single", "晚上八点看电影", "看电影", "2026-10-14 20:00", "2026-10-14 21:00"},
		{"next weekday", "下周一十点开会", "开会", "2026-10-26 10:00", "2026-10-26 11:00"},
		{"range crossing noon", "上午11点到1点培训", "培训", "2026-10-14 11:00", "2026-10-14 13:00"},
		{"24 hour input", "14:00-15:30 评审", "评审", "2026-10-14 14:00", "2026-10-14 15:30"},
		{"spaces and full width colon", "明天 下午 3：00 到 4：00 ，复盘会议", "复盘会议", "2026-10-15 15:00", "2026-10-15 16:00"},
		{"half hour marker", "3点半到4点喝茶", "喝茶", "2026-10-14 03:30", "2026-10-14 04:00"},
		{"trailing particle", "明天下午3点的周会", "周会", "2026-10-15 15:00", "2026-10-15 16:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, req.Title)
			assert.Equal(t, tt.wantStart, req.Start.Format("2006-01-02 15:04"))
			assert.Equal(t, tt.wantEnd, req.End.Format("2006-01-02 15:04"))
			assert.True(t, req.End.After(req.Start))
		})
	}
}

func TestParse_Incomplete(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name        string
		input       string
		wantMissing []Field
		wantPrompt  string
	}{
		{"no time", "帮我记一下开会", []Field{FieldTime}, promptTime},
		{"no title", "明天早上9点", []Field{FieldTitle}, promptTitle},
		{"empty", "   ", []Field{FieldTime}, promptTime},
		{"no time and no title", "明天", []Field{FieldTime}, promptTime},
		{"twenty o'clock is out of range", "二十点开会", []Field{FieldTime}, promptTime},
		{"twenty o'clock with marker", "晚上二十点开会", []Field{FieldTime}, promptTime},
		{"end before start", "晚上11点到1点加班", []Field{FieldTime}, promptTime},
		{"date-like dash is not a range", "2025-11-20 开会", []Field{FieldTime}, promptTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.input)
			require.Error(t, err)

			var inc *IncompleteError
			require.ErrorAs(t, err, &inc)
			assert.Equal(t, tt.wantMissing, inc.Missing)
			assert.Equal(t, tt.wantPrompt, inc.Prompt)
			for _, f := range tt.wantMissing {
				assert.True(t, inc.Has(f))
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	p := newTestParser()

	first, err := p.Parse("明天下午3点到4点开会")
	require.NoError(t, err)
	second, err := p.Parse("明天下午3点到4点开会")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  model.TimeExpression
	}{
		{
			name:  "digit range",
			input: "9:00到10:30",
			want:  model.TimeExpression{Mode: model.Range, StartHour: 9, EndHour: 10, EndMinute: 30},
		},
		{
			name:  "end marker inherited by start",
			input: "9点到下午10点",
			want:  model.TimeExpression{Mode: model.Range, StartHour: 21, EndHour: 22, PM: true},
		},
		{
			name:  "marker elsewhere in text applies to both bounds",
			input: "9点到10点 下午的会",
			want:  model.TimeExpression{Mode: model.Range, StartHour: 21, EndHour: 22, PM: true},
		},
		{
			name:  "per-bound markers win",
			input: "上午9点到下午3点",
			want:  model.TimeExpression{Mode: model.Range, StartHour: 9, EndHour: 15, AM: true, PM: true},
		},
		{
			name:  "noon crossing bump",
			input: "12点到2点",
			want:  model.TimeExpression{Mode: model.Range, StartHour: 12, EndHour: 14},
		},
		{
			name:  "late evening range is not bumped",
			input: "23:00到01:00",
			want:  model.TimeExpression{Mode: model.Range, StartHour: 23, EndHour: 1},
		},
		{
			name:  "twelve in the morning is midnight",
			input: "上午12点",
			want:  model.TimeExpression{Mode: model.Single, StartHour: 0, AM: true},
		},
		{
			name:  "24 hour hour ignores marker",
			input: "下午14点",
			want:  model.TimeExpression{Mode: model.Single, StartHour: 14, PM: true},
		},
		{
			name:  "chinese half hour",
			input: "两点半",
			want:  model.TimeExpression{Mode: model.Single, StartHour: 2, StartMinute: 30},
		},
		{
			name:  "tomorrow morning shorthand",
			input: "明早8点",
			want:  model.TimeExpression{Date: model.Tomorrow, Mode: model.Single, StartHour: 8, AM: true},
		},
		{
			name:  "next weekday qualifier",
			input: "下周五下午3点",
			want:  model.TimeExpression{Date: model.NextWeekday, Weekday: time.Friday, Mode: model.Single, StartHour: 15, PM: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTime_NoMatch(t *testing.T) {
	for _, in := range []string{"", "开会", "十三点", "25点", "9:75"} {
		_, ok := ParseTime(in)
		assert.False(t, ok, in)
	}
}

func TestParseDate(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		input string
		want  string
	}{
		{"今天开会", "2026-10-14"},
		{"明天开会", "2026-10-15"},
		{"明日开会", "2026-10-15"},
		{"后天开会", "2026-10-16"},
		{"开会", "2026-10-14"},
		// Next weekday always skips the current week.
		{"下周三", "2026-10-21"},
		{"下周五", "2026-10-23"},
		{"下周一", "2026-10-26"},
		{"下周日", "2026-10-25"},
		{"下周天", "2026-10-25"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := p.ParseDate(tt.input)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, 0, got.Hour())
		})
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"明天下午3点到4点开会", "开会"},
		{"今天下午2点到3点写报告", "写报告"},
		{"下周二十点和张三吃饭", "和张三吃饭"},
		{"明天早上9点", DefaultTitle},
		{"后天 晚上 七点 team sync", "team sync"},
		{"中午12点吃饭", "吃饭"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.input))
		})
	}
}

func TestCNToHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"零", 0, true},
		{"两", 2, true},
		{"十", 10, true},
		{"十一", 11, true},
		{"十二", 12, true},
		{"一十", 10, true},
		{"二十", 0, false},
		{"二十一", 0, false},
		{"十三", 0, false},
		{"二十三", 0, false},
		{"一十二", 12, true},
		{"百", 0, false},
	}
	for _, tt := range tests {
		got, ok := cnToHour(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
