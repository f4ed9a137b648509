package timeparse

// cnDigits maps the spoken Chinese numerals used for clock hours.
// Only 0-12 are supported.
var cnDigits = map[string]int{
	"零": 0, "〇": 0,
	"一": 1, "二": 2, "两": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9,
	"十": 10, "十一": 11, "十二": 12,
}

// cnToHour converts a Chinese numeral hour. The long forms "一十" and
// "一十二" are accepted; anything above twelve ("十三", "二十", "二十三")
// is rejected.
func cnToHour(s string) (int, bool) {
	if v, ok := cnDigits[s]; ok {
		return v, true
	}
	r := []rune(s)
	if len(r) > 1 && r[0] == '一' && r[1] == '十' {
		if v, ok := cnDigits[string(r[1:])]; ok {
			return v, true
		}
	}
	return 0, false
}
