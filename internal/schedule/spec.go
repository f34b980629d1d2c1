package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind describes the normalized kind of a schedule string.
//
// We intentionally keep this small: either a 5-field cron expression
// or a fixed interval.
type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

// Spec represents a parsed schedule string.
//
// Supported forms:
//   - Interval: "<n><m|h|d>" like "30m", "2h", "1d"
//   - Cron (5 fields): "0 * * * *", "*/15 9-18 * * 1-5"
//
// Specs are value types reconstructed from the persisted string on every
// evaluation; nothing is cached between ticks.
type Spec struct {
	Kind   Kind
	Every  time.Duration
	Fields [5]string // minute, hour, day-of-month, month, day-of-week
}

var reInterval = regexp.MustCompile(`^(\d+)\s*([mhd])$`)

// ParseSchedule parses a schedule string into either an interval duration or
// a 5-field cron spec. Cron field values are kept verbatim; their validity is
// checked lazily during matching.
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	if m := reInterval.FindStringSubmatch(s); m != nil {
		d, err := intervalDuration(m[1], m[2])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindInterval, Every: d}, nil
	}

	parts := strings.Fields(s)
	if len(parts) == 5 {
		var f [5]string
		copy(f[:], parts)
		return Spec{Kind: KindCron, Fields: f}, nil
	}

	return Spec{}, fmt.Errorf("invalid schedule %q (use an interval like '30m'/'2h'/'1d' or a 5-field cron like '0 9 * * *')", raw)
}

// ParseWindow parses a bare "<n><m|h|d>" duration string, used for
// leaderboard statistics windows. Malformed or non-positive input is an
// error, never a zero duration, so callers can tell "no window" apart from
// a zero-length one.
func ParseWindow(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	m := reInterval.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid window %q (use '<n>m', '<n>h' or '<n>d')", raw)
	}
	return intervalDuration(m[1], m[2])
}

func intervalDuration(amount, unit string) (time.Duration, error) {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	var u time.Duration
	switch unit {
	case "m":
		u = time.Minute
	case "h":
		u = time.Hour
	case "d":
		u = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return time.Duration(n) * u, nil
}
