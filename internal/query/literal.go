package query

import (
	"strconv"
	"strings"
	"time"
)

// parseDurationLiteral accepts the same smart-input shorthand as
// smartinput's duration token ("30m", "1h", "2d", "1w"), kept as an
// independent, narrower parser here rather than a shared dependency: the
// query grammar's literal never needs the month/year suffixes or the
// "min" spelling smart-input tolerates.
func parseDurationLiteral(v string) (time.Duration, bool) {
	lower := strings.ToLower(v)
	var unit time.Duration
	var numPart string
	switch {
	case strings.HasSuffix(lower, "h"):
		unit, numPart = time.Hour, strings.TrimSuffix(lower, "h")
	case strings.HasSuffix(lower, "d"):
		unit, numPart = 24*time.Hour, strings.TrimSuffix(lower, "d")
	case strings.HasSuffix(lower, "w"):
		unit, numPart = 7*24*time.Hour, strings.TrimSuffix(lower, "w")
	case strings.HasSuffix(lower, "m"):
		unit, numPart = time.Minute, strings.TrimSuffix(lower, "m")
	default:
		return 0, false
	}
	n, err := strconv.Atoi(numPart)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// parseDateLiteral accepts an absolute "YYYY-MM-DD" date, "today" (now's
// local midnight), or a relative "Nd"/"Nw" offset added to now, keeping
// now's time of day.
func parseDateLiteral(v string, now time.Time) (time.Time, bool) {
	if t, err := time.ParseInLocation("2006-01-02", v, now.Location()); err == nil {
		return t, true
	}
	if v == "today" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	}
	if n, ok := strings.CutSuffix(v, "d"); ok {
		if days, err := strconv.Atoi(n); err == nil {
			return now.AddDate(0, 0, days), true
		}
	}
	if n, ok := strings.CutSuffix(v, "w"); ok {
		if weeks, err := strconv.Atoi(n); err == nil {
			return now.AddDate(0, 0, weeks*7), true
		}
	}
	return time.Time{}, false
}
