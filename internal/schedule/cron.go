package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Field bounds for the 5 cron fields, in spec order.
var cronBounds = [5]struct{ min, max int }{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day-of-month
	{1, 12}, // month
	{0, 7},  // day-of-week (0 and 7 both mean Sunday)
}

// cronMatches reports whether the 5 fields match the given local instant.
//
// Day handling follows classic cron: when both day-of-month and day-of-week
// are restricted (not "*"), the day matches when EITHER field matches; when
// only one is restricted, that field alone decides.
func cronMatches(fields [5]string, local time.Time) bool {
	if !fieldMatches(fields[0], local.Minute(), 0) {
		return false
	}
	if !fieldMatches(fields[1], local.Hour(), 1) {
		return false
	}
	if !fieldMatches(fields[3], int(local.Month()), 3) {
		return false
	}

	dom, dow := fields[2], fields[4]
	domAny := strings.TrimSpace(dom) == "*"
	dowAny := strings.TrimSpace(dow) == "*"
	switch {
	case domAny && dowAny:
		return true
	case domAny:
		return fieldMatches(dow, int(local.Weekday()), 4)
	case dowAny:
		return fieldMatches(dom, local.Day(), 2)
	default:
		return fieldMatches(dom, local.Day(), 2) || fieldMatches(dow, int(local.Weekday()), 4)
	}
}

// fieldMatches reports whether one cron field matches value. A field is a
// comma-separated list of parts; any matching part matches the field.
func fieldMatches(field string, value, idx int) bool {
	field = strings.TrimSpace(field)
	if field == "*" {
		return true
	}
	for _, part := range strings.Split(field, ",") {
		if partMatches(strings.TrimSpace(part), value, idx) {
			return true
		}
	}
	return false
}

// partMatches evaluates a single comma-part: "*", a number, or a
// "start-end" range, each with an optional "/step" suffix. Ranges may wrap
// past the field maximum (e.g. hour "22-2"). Malformed or out-of-bounds
// parts never match.
func partMatches(part string, value, idx int) bool {
	if part == "" {
		return false
	}
	min, max := cronBounds[idx].min, cronBounds[idx].max

	body := part
	step := 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		body = part[:i]
		n, err := strconv.Atoi(part[i+1:])
		if err != nil || n <= 0 {
			return false
		}
		step = n
	}

	if body == "*" {
		return (value-min)%step == 0
	}

	if i := strings.IndexByte(body, '-'); i >= 0 {
		start, err1 := strconv.Atoi(body[:i])
		end, err2 := strconv.Atoi(body[i+1:])
		if err1 != nil || err2 != nil {
			return false
		}
		if start < min || start > max || end < min || end > max {
			return false
		}
		start, end = normalizeDow(start, idx), normalizeDow(end, idx)
		v := normalizeDow(value, idx)

		span := max - min + 1
		if idx == 4 {
			// after 7->0 normalization the effective day-of-week domain is 0..6
			span = 7
		}
		var dist int
		if start <= end {
			if v < start || v > end {
				return false
			}
			dist = v - start
		} else {
			// wrapping range, e.g. 22-2 on the hour field
			if v < start && v > end {
				return false
			}
			if v >= start {
				dist = v - start
			} else {
				dist = v - start + span
			}
		}
		return dist%step == 0
	}

	n, err := strconv.Atoi(body)
	if err != nil || n < min || n > max {
		return false
	}
	return normalizeDow(n, idx) == normalizeDow(value, idx)
}

// normalizeDow maps day-of-week 7 to 0 (both mean Sunday). A no-op for
// other fields.
func normalizeDow(v, idx int) int {
	if idx == 4 && v == 7 {
		return 0
	}
	return v
}
