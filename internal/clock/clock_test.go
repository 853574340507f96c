package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestToday_UsesLocalZone(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	assert.NoError(t, err)

	// 2025-01-01 20:00 UTC is already 2025-01-02 in Manila.
	fake := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC))
	c := New(fake, manila)

	assert.Equal(t, Date(2025, 1, 2), c.Today())
	assert.Equal(t, time.UTC, c.Now().Location())

	fake.Advance(24 * time.Hour)
	assert.Equal(t, Date(2025, 1, 3), c.Today())
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 1, DaysBetween(Date(2025, 1, 10), Date(2025, 1, 11)))
	assert.Equal(t, 0, DaysBetween(Date(2025, 1, 10), Date(2025, 1, 10)))
	assert.Equal(t, -3, DaysBetween(Date(2025, 1, 10), Date(2025, 1, 7)))
}

func TestStartOfDay(t *testing.T) {
	manila, _ := time.LoadLocation("Asia/Manila")
	start := StartOfDay(Date(2025, 1, 11), manila)
	assert.Equal(t, time.Date(2025, 1, 10, 16, 0, 0, 0, time.UTC), start.UTC())
}
