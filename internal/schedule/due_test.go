package schedule

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, raw string) Spec {
	t.Helper()
	s, err := ParseSchedule(raw)
	if err != nil {
		t.Fatalf("ParseSchedule(%q) error: %v", raw, err)
	}
	return s
}

func ts(t *testing.T, v string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("bad test time %q: %v", v, err)
	}
	return tm
}

func TestIsDueInterval(t *testing.T) {
	t.Parallel()
	spec := mustParse(t, "30m")
	now := ts(t, "2024-05-01T10:00:00Z")

	if !IsDue(spec, nil, now, 0) {
		t.Fatal("nil lastRun should be due")
	}

	exact := now.Add(-30 * time.Minute)
	if !IsDue(spec, &exact, now, 0) {
		t.Fatal("lastRun exactly one interval ago should be due")
	}

	justShort := now.Add(-30*time.Minute + time.Millisecond)
	if IsDue(spec, &justShort, now, 0) {
		t.Fatal("lastRun 1ms short of the interval should not be due")
	}

	// Interval schedules ignore the timezone offset.
	if !IsDue(spec, &exact, now, 480) {
		t.Fatal("tz offset must not affect interval schedules")
	}
}

func TestIsDueCronTimezoneShift(t *testing.T) {
	t.Parallel()
	spec := mustParse(t, "0 9 * * *")

	utc0100 := ts(t, "2024-05-01T01:00:00Z")
	if !IsDue(spec, nil, utc0100, 480) {
		t.Fatal("01:00 UTC should match 09:00 at UTC+8")
	}
	if IsDue(spec, nil, utc0100, 0) {
		t.Fatal("01:00 UTC should not match 09:00 at UTC+0")
	}

	// 09:00 local matches, 09:01 does not.
	if IsDue(spec, nil, ts(t, "2024-05-01T01:01:00Z"), 480) {
		t.Fatal("09:01 local should not match a 09:00 cron")
	}
}

func TestIsDueCronSameMinuteSuppression(t *testing.T) {
	t.Parallel()
	spec := mustParse(t, "0 9 * * *")
	now := ts(t, "2024-05-01T09:00:30Z")

	sameMin := ts(t, "2024-05-01T09:00:05Z")
	if IsDue(spec, &sameMin, now, 0) {
		t.Fatal("lastRun in the same local minute must suppress")
	}

	prevDay := ts(t, "2024-04-30T09:00:05Z")
	if !IsDue(spec, &prevDay, now, 0) {
		t.Fatal("lastRun outside the current minute should not suppress")
	}

	// Suppression compares minutes after the same timezone shift.
	nowUTC := ts(t, "2024-05-01T01:00:30Z")
	lastUTC := ts(t, "2024-05-01T01:00:02Z")
	if IsDue(spec, &lastUTC, nowUTC, 480) {
		t.Fatal("same shifted minute must suppress under tz offset")
	}
}

func TestIsDueCronMinuteSpacedRuns(t *testing.T) {
	t.Parallel()
	// A field matching every minute: only suppression gates re-firing.
	spec := mustParse(t, "* * * * *")
	now := ts(t, "2024-05-01T09:01:10Z")

	prevMinute := ts(t, "2024-05-01T09:00:50Z")
	if !IsDue(spec, &prevMinute, now, 0) {
		t.Fatal("previous minute lastRun should fire again")
	}
	thisMinute := ts(t, "2024-05-01T09:01:01Z")
	if IsDue(spec, &thisMinute, now, 0) {
		t.Fatal("current minute lastRun must be suppressed")
	}
}

func TestCronStepAndRangeParts(t *testing.T) {
	t.Parallel()

	matchMinutes := func(field string) []int {
		var out []int
		for m := 0; m < 60; m++ {
			if fieldMatches(field, m, 0) {
				out = append(out, m)
			}
		}
		return out
	}

	equal := func(a, b []int) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	if got := matchMinutes("*/15"); !equal(got, []int{0, 15, 30, 45}) {
		t.Fatalf("*/15 matched %v", got)
	}
	if got := matchMinutes("10-20/5"); !equal(got, []int{10, 15, 20}) {
		t.Fatalf("10-20/5 matched %v", got)
	}

	// Wrapping range on the hour field.
	var hours []int
	for h := 0; h < 24; h++ {
		if fieldMatches("22-2", h, 1) {
			hours = append(hours, h)
		}
	}
	if !equal(hours, []int{0, 1, 2, 22, 23}) {
		t.Fatalf("22-2 matched hours %v", hours)
	}
}

func TestCronOutOfBoundsNeverMatches(t *testing.T) {
	t.Parallel()
	for m := 0; m < 60; m++ {
		if fieldMatches("50-70", m, 0) {
			t.Fatalf("out-of-bounds range matched minute %d", m)
		}
		if fieldMatches("99", m, 0) {
			t.Fatalf("out-of-bounds number matched minute %d", m)
		}
		if fieldMatches("*/0", m, 0) {
			t.Fatalf("zero step matched minute %d", m)
		}
	}
}

func TestCronSundayAliases(t *testing.T) {
	t.Parallel()
	spec0 := mustParse(t, "0 0 * * 0")
	spec7 := mustParse(t, "0 0 * * 7")

	// 2024-05-05 is a Sunday, 2024-05-06 a Monday.
	sunday := ts(t, "2024-05-05T00:00:00Z")
	monday := ts(t, "2024-05-06T00:00:00Z")

	for _, spec := range []Spec{spec0, spec7} {
		if !IsDue(spec, nil, sunday, 0) {
			t.Fatalf("fields %v should match Sunday midnight", spec.Fields)
		}
		if IsDue(spec, nil, monday, 0) {
			t.Fatalf("fields %v should not match Monday midnight", spec.Fields)
		}
	}
}

func TestCronDayFieldsEitherMatch(t *testing.T) {
	t.Parallel()
	// 2024-05-05 is Sunday the 5th; 2024-05-12 is Sunday the 12th;
	// 2024-05-07 is Tuesday the 7th.
	spec := mustParse(t, "0 0 5 * 2")

	if !IsDue(spec, nil, ts(t, "2024-05-05T00:00:00Z"), 0) {
		t.Fatal("day-of-month 5 should match even though weekday differs")
	}
	if !IsDue(spec, nil, ts(t, "2024-05-07T00:00:00Z"), 0) {
		t.Fatal("Tuesday should match even though day-of-month differs")
	}
	if IsDue(spec, nil, ts(t, "2024-05-12T00:00:00Z"), 0) {
		t.Fatal("neither day field matches Sunday the 12th")
	}
}

func TestCronCommaParts(t *testing.T) {
	t.Parallel()
	spec := mustParse(t, "0,30 9,18 * * *")
	if !IsDue(spec, nil, ts(t, "2024-05-01T18:30:00Z"), 0) {
		t.Fatal("18:30 should match")
	}
	if IsDue(spec, nil, ts(t, "2024-05-01T18:15:00Z"), 0) {
		t.Fatal("18:15 should not match")
	}
}
