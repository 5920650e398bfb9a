package utils

import (
	"time"
)

// DayKeyLayout is the calendar-day key format used for daily facts and
// food log dates. Day keys sort lexicographically in chronological order.
const DayKeyLayout = "2006-01-02"

// DayKey returns the day key for t in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ParseDayKey parses a day key back into a midnight UTC time.
func ParseDayKey(key string) (time.Time, error) {
	return time.Parse(DayKeyLayout, key)
}

// AddDays shifts a day key by n calendar days. An unparseable key is
// returned unchanged.
func AddDays(key string, n int) string {
	t, err := ParseDayKey(key)
	if err != nil {
		return key
	}
	return DayKey(t.AddDate(0, 0, n))
}

// DaysBetween returns b - a in whole days. Returns 0 if either key is
// unparseable.
func DaysBetween(a, b string) int {
	ta, err := ParseDayKey(a)
	if err != nil {
		return 0
	}
	tb, err := ParseDayKey(b)
	if err != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// SameMonth reports whether two day keys fall in the same calendar month.
func SameMonth(a, b string) bool {
	return len(a) >= 7 && len(b) >= 7 && a[:7] == b[:7]
}
