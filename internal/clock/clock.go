package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock reports the current instant and the calendar date in the configured local zone.
type Clock interface {
	Now() time.Time
	Today() time.Time
	Location() *time.Location
}

type zonedClock struct {
	base clockwork.Clock
	loc  *time.Location
}

// New returns a Clock backed by the given clockwork clock.
func New(base clockwork.Clock, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &zonedClock{base: base, loc: loc}
}

// NewReal returns a wall clock for the given zone.
func NewReal(loc *time.Location) Clock {
	return New(clockwork.NewRealClock(), loc)
}

func (c *zonedClock) Now() time.Time {
	return c.base.Now().UTC()
}

func (c *zonedClock) Today() time.Time {
	return DateOf(c.base.Now(), c.loc)
}

func (c *zonedClock) Location() *time.Location {
	return c.loc
}

// DateOf returns the calendar date of t in loc, encoded as midnight UTC.
// Dates are stored and compared in this form throughout.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date value.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns the instant the given calendar date begins in loc.
func StartOfDay(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b, time.UTC).Sub(DateOf(a, time.UTC)).Hours() / 24)
}
