package timeparse

import (
	"regexp"
	"strconv"

	"voicecal/internal/model"
)

const (
	markerGroup = `(上午|下午|早上|晚上|傍晚|清晨|明早)?\s*`
	connector   = `\s*(?:到|至|-|~|～|–|—)+\s*`

	digitHour   = `(\d{1,2})`
	digitSuffix = `\s*(?:([点时])\s*(半|\d{1,2})?\s*分?|[:：](\d{2}))`

	cnHour   = `([零〇一二两三四五六七八九十]{1,3})`
	cnSuffix = `\s*[点时]\s*(半)?`
)

// Time patterns in precedence order. Group layout per bound is
// marker, hour, unit, minute-after-unit, minute-after-colon (digit forms)
// or marker, hour, 半 (Chinese forms).
var (
	digitRangeRe  = regexp.MustCompile(markerGroup + digitHour + `(?:` + digitSuffix + `)?` + connector + markerGroup + digitHour + `(?:` + digitSuffix + `)?`)
	cnRangeRe     = regexp.MustCompile(markerGroup + cnHour + cnSuffix + connector + markerGroup + cnHour + `(?:` + cnSuffix + `)?`)
	digitSingleRe = regexp.MustCompile(markerGroup + digitHour + digitSuffix)
	cnSingleRe    = regexp.MustCompile(markerGroup + cnHour + cnSuffix)

	// meridiemRe also drops 中午, which is a title-only token: "中午12点"
	// is already unambiguous.
	meridiemRe = regexp.MustCompile(`上午|下午|中午|早上|晚上|傍晚|清晨|明早`)
)

var (
	pmWords = []string{"下午", "晚上", "傍晚"}
	amWords = []string{"上午", "早上", "清晨", "明早"}
)

// bound is one side of a parsed time expression before 24-hour normalization.
type bound struct {
	marker   model.Meridiem
	hour     int
	minute   int
	explicit bool // carried 点/时 or a colon
}

// ParseTime extracts the first time expression from text. Patterns are tried
// in strict order: digit range, Chinese-numeral range, digit point, Chinese
// point. The boolean is false when nothing matched.
func ParseTime(text string) (model.TimeExpression, bool) {
	am, pm := containsAny(text, amWords), containsAny(text, pmWords)
	expr := model.TimeExpression{AM: am, PM: pm}
	expr.Date, expr.Weekday = qualifierOf(text)

	global := model.NoMeridiem
	switch {
	case pm:
		global = model.PM
	case am:
		global = model.AM
	}

	body := stripDateKeywords(text)

	if b1, b2, ok := matchDigitRange(body); ok {
		return withRange(expr, b1, b2, global), true
	}
	if b1, b2, ok := matchCNRange(body); ok {
		return withRange(expr, b1, b2, global), true
	}
	if b, ok := matchDigitSingle(body); ok {
		return withSingle(expr, b, global), true
	}
	if b, ok := matchCNSingle(body); ok {
		return withSingle(expr, b, global), true
	}
	return model.TimeExpression{}, false
}

func withSingle(expr model.TimeExpression, b bound, global model.Meridiem) model.TimeExpression {
	expr.Mode = model.Single
	expr.StartHour = to24(b.hour, firstMarker(b.marker, global))
	expr.StartMinute = b.minute
	return expr
}

// withRange applies the meridiem tie-break: a bound without its own marker
// inherits the other bound's, then the marker found anywhere in the text.
func withRange(expr model.TimeExpression, b1, b2 bound, global model.Meridiem) model.TimeExpression {
	m1 := firstMarker(b1.marker, b2.marker, global)
	m2 := firstMarker(b2.marker, b1.marker, global)

	h1, h2 := to24(b1.hour, m1), to24(b2.hour, m2)

	// "11点到1点" and "12点到3点" cross noon. Ranges starting after noon
	// are left alone.
	if h1 <= 12 && h2 < 12 && b2.marker == model.NoMeridiem && h2*60+b2.minute <= h1*60+b1.minute {
		h2 += 12
	}

	expr.Mode = model.Range
	expr.StartHour, expr.StartMinute = h1, b1.minute
	expr.EndHour, expr.EndMinute = h2, b2.minute
	return expr
}

// to24 normalizes a 12-hour clock hour. Hours of 13 and above are already
// unambiguous and are returned unchanged.
func to24(h int, m model.Meridiem) int {
	if h >= 13 {
		return h
	}
	switch m {
	case model.PM:
		if h < 12 {
			h += 12
		}
	case model.AM:
		if h == 12 {
			h = 0
		}
	}
	return h
}

func firstMarker(ms ...model.Meridiem) model.Meridiem {
	for _, m := range ms {
		if m != model.NoMeridiem {
			return m
		}
	}
	return model.NoMeridiem
}

func markerOf(s string) model.Meridiem {
	switch s {
	case "":
		return model.NoMeridiem
	case "下午", "晚上", "傍晚":
		return model.PM
	default:
		return model.AM
	}
}

func matchDigitRange(text string) (bound, bound, bool) {
	for _, m := range digitRangeRe.FindAllStringSubmatch(text, -1) {
		b1, ok1 := digitBound(m[1:6])
		b2, ok2 := digitBound(m[6:11])
		if !ok1 || !ok2 {
			continue
		}
		// Two bare numbers around a dash are more likely a date than a time.
		if !b1.explicit && !b2.explicit && b1.marker == model.NoMeridiem && b2.marker == model.NoMeridiem {
			continue
		}
		return b1, b2, true
	}
	return bound{}, bound{}, false
}

func matchCNRange(text string) (bound, bound, bool) {
	for _, m := range cnRangeRe.FindAllStringSubmatch(text, -1) {
		b1, ok1 := cnBound(m[1], m[2], m[3])
		b2, ok2 := cnBound(m[4], m[5], m[6])
		if ok1 && ok2 {
			return b1, b2, true
		}
	}
	return bound{}, bound{}, false
}

func matchDigitSingle(text string) (bound, bool) {
	for _, m := range digitSingleRe.FindAllStringSubmatch(text, -1) {
		if b, ok := digitBound(m[1:6]); ok {
			return b, true
		}
	}
	return bound{}, false
}

func matchCNSingle(text string) (bound, bool) {
	for _, m := range cnSingleRe.FindAllStringSubmatch(text, -1) {
		if b, ok := cnBound(m[1], m[2], m[3]); ok {
			return b, true
		}
	}
	return bound{}, false
}

// digitBound builds a bound from the groups marker, hour, unit,
// minute-after-unit and minute-after-colon.
func digitBound(g []string) (bound, bool) {
	marker, hour, unit, pointMinute, colonMinute := g[0], g[1], g[2], g[3], g[4]

	h, err := strconv.Atoi(hour)
	if err != nil || h > 23 {
		return bound{}, false
	}
	b := bound{marker: markerOf(marker), hour: h, explicit: unit != "" || colonMinute != ""}

	switch {
	case colonMinute != "":
		mm, _ := strconv.Atoi(colonMinute)
		if mm > 59 {
			return bound{}, false
		}
		b.minute = mm
	case pointMinute == "半":
		b.minute = 30
	case pointMinute != "":
		mm, _ := strconv.Atoi(pointMinute)
		if mm > 59 {
			return bound{}, false
		}
		b.minute = mm
	}
	return b, true
}

func cnBound(marker, hour, half string) (bound, bool) {
	h, ok := cnToHour(hour)
	if !ok {
		return bound{}, false
	}
	b := bound{marker: markerOf(marker), hour: h, explicit: true}
	if half != "" {
		b.minute = 30
	}
	return b, true
}
