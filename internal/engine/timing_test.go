package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"resourcehive/internal/clock"
	"resourcehive/internal/models"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := clock.Date(y, m, d)
	return &t
}

func TestNearOverdueTrigger_EightyPercentOfWindow(t *testing.T) {
	requested := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	trigger := NearOverdueTrigger(requested, clock.Date(2025, 1, 11), time.UTC, DefaultNearOverdueFraction)

	assert.Equal(t, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), trigger)
}

func TestNearOverdueDue(t *testing.T) {
	requested := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &models.RequestItem{Status: models.ItemActive, ReturnDate: datePtr(2025, 1, 11)}

	before := time.Date(2025, 1, 8, 23, 0, 0, 0, time.UTC)
	after := time.Date(2025, 1, 9, 1, 0, 0, 0, time.UTC)

	assert.False(t, NearOverdueDue(item, requested, before, clock.DateOf(before, time.UTC), time.UTC, 0.8))
	assert.True(t, NearOverdueDue(item, requested, after, clock.DateOf(after, time.UTC), time.UTC, 0.8))

	item.NearOverdueNotified = true
	assert.False(t, NearOverdueDue(item, requested, after, clock.DateOf(after, time.UTC), time.UTC, 0.8))
}

func TestNearOverdueDue_NotAfterReturnDate(t *testing.T) {
	requested := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &models.RequestItem{Status: models.ItemActive, ReturnDate: datePtr(2025, 1, 11)}
	now := time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC)

	assert.False(t, NearOverdueDue(item, requested, now, clock.DateOf(now, time.UTC), time.UTC, 0.8))
}

func TestTimedEvent(t *testing.T) {
	today := clock.Date(2025, 3, 10)

	borrowApproved := &models.RequestItem{Status: models.ItemApproved, ReturnDate: datePtr(2025, 3, 9)}
	ev, ok := TimedEvent(models.RequestKindBorrow, borrowApproved, today)
	assert.True(t, ok)
	assert.Equal(t, EventExpire, ev)

	borrowActive := &models.RequestItem{Status: models.ItemActive, ReturnDate: datePtr(2025, 3, 9)}
	ev, ok = TimedEvent(models.RequestKindBorrow, borrowActive, today)
	assert.True(t, ok)
	assert.Equal(t, EventMarkOverdue, ev)

	dueToday := &models.RequestItem{Status: models.ItemActive, ReturnDate: datePtr(2025, 3, 10)}
	_, ok = TimedEvent(models.RequestKindBorrow, dueToday, today)
	assert.False(t, ok)

	// a pending reservation waits for its return date before expiring
	pendingRes := &models.RequestItem{Status: models.ItemPending, NeededDate: datePtr(2025, 3, 1), ReturnDate: datePtr(2025, 3, 12)}
	_, ok = TimedEvent(models.RequestKindReservation, pendingRes, today)
	assert.False(t, ok)
}

func TestActivationDue(t *testing.T) {
	item := &models.RequestItem{Status: models.ItemApproved, NeededDate: datePtr(2025, 3, 13), ReturnDate: datePtr(2025, 3, 17)}

	assert.False(t, ActivationDue(item, clock.Date(2025, 3, 12)))
	assert.True(t, ActivationDue(item, clock.Date(2025, 3, 13)))
	assert.True(t, ActivationDue(item, clock.Date(2025, 3, 17)))
	assert.False(t, ActivationDue(item, clock.Date(2025, 3, 18)))
}

func TestDaysOverdue(t *testing.T) {
	assert.Equal(t, 1, DaysOverdue(clock.Date(2025, 3, 9), clock.Date(2025, 3, 10)))
	assert.Equal(t, 0, DaysOverdue(clock.Date(2025, 3, 11), clock.Date(2025, 3, 10)))
}
