package billing

import "time"

// =============================================================================
// CLOCK - Wall-clock abstraction so status derivation is testable
// =============================================================================

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the production clock.
var SystemClock Clock = systemClock{}

// FixedClock always reports the same instant. For tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// =============================================================================
// DUE-DATE COMPARISON
// =============================================================================

// StartOfDay truncates t to midnight UTC. Due dates are day-granular:
// an invoice due today is not yet overdue.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PastDue reports whether dueDate's day is strictly before now's day.
func PastDue(dueDate, now time.Time) bool {
	return StartOfDay(dueDate).Before(StartOfDay(now))
}
