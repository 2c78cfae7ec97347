package domain

import "time"

const (
	sameDayLayout  = "15:04"
	otherDayLayout = "02 Jan, 15:04"
)

// FormatLastSuccess renders the last successful call for operators: only the
// clock time when it happened today, the date too when it is older. A zero
// last renders the current time.
func FormatLastSuccess(last, now time.Time) string {
	if last.IsZero() {
		return now.Format(sameDayLayout)
	}
	last = last.In(now.Location())
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	if ly == ny && lm == nm && ld == nd {
		return last.Format(sameDayLayout)
	}
	return last.Format(otherDayLayout)
}
