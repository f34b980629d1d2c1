package schedule

import "time"

// IsDue decides whether a job with the given schedule should fire at instant
// now.
//
//   - Interval schedules are a pure elapsed-time gate: due when lastRun is
//     unknown or at least Every has passed. Timezone is not involved.
//   - Cron schedules shift now by tzOffsetMin minutes to obtain a "local"
//     instant and match the 5 fields against it. When lastRun (shifted the
//     same way) falls within the same calendar minute as the shifted now, the
//     job is suppressed even if the fields match. The suppression substitutes
//     for a real "already fired this tick" lock: the only durable scheduler
//     state is a timestamp, and the external trigger cadence is assumed to be
//     no finer than one minute.
//
// lastRun is nil when the job has never completed (or the persisted
// timestamp failed to parse); in that case the cron match alone decides.
func IsDue(spec Spec, lastRun *time.Time, now time.Time, tzOffsetMin int) bool {
	switch spec.Kind {
	case KindInterval:
		if lastRun == nil || lastRun.IsZero() {
			return true
		}
		return now.Sub(*lastRun) >= spec.Every
	case KindCron:
		local := shift(now, tzOffsetMin)
		if !cronMatches(spec.Fields, local) {
			return false
		}
		if lastRun != nil && !lastRun.IsZero() {
			if sameMinute(shift(*lastRun, tzOffsetMin), local) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func shift(t time.Time, offsetMin int) time.Time {
	return t.UTC().Add(time.Duration(offsetMin) * time.Minute)
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
