package engine

import (
	"time"

	"resourcehive/internal/clock"
	"resourcehive/internal/models"
)

// DefaultNearOverdueFraction is how far through the borrow window the reminder fires
const DefaultNearOverdueFraction = 0.8

// TimedEvent returns the date-driven event due for an item on today, if any.
// Reservation activation is decided per batch by ActivationDue.
func TimedEvent(kind models.RequestKind, item *models.RequestItem, today time.Time) (Event, bool) {
	if item.ReturnDate == nil || !item.ReturnDate.Before(today) {
		return "", false
	}
	switch kind {
	case models.RequestKindBorrow:
		switch item.Status {
		case models.ItemPending, models.ItemApproved:
			if item.ClaimedAt == nil {
				return EventExpire, true
			}
		case models.ItemActive:
			return EventMarkOverdue, true
		}
	case models.RequestKindReservation:
		if item.Status == models.ItemPending || item.Status == models.ItemApproved {
			return EventExpire, true
		}
	}
	return "", false
}

// ActivationDue reports whether an approved reservation line is inside its window
func ActivationDue(item *models.RequestItem, today time.Time) bool {
	if item.Status != models.ItemApproved || item.NeededDate == nil || item.ReturnDate == nil {
		return false
	}
	return !item.NeededDate.After(today) && !item.ReturnDate.Before(today)
}

// ReturnDeadline is the instant the borrow window closes: the start of the
// return date in the local zone.
func ReturnDeadline(returnDate time.Time, loc *time.Location) time.Time {
	return clock.StartOfDay(returnDate, loc)
}

// NearOverdueTrigger is requestedAt plus fraction of the borrow window
func NearOverdueTrigger(requestedAt, returnDate time.Time, loc *time.Location, fraction float64) time.Time {
	window := ReturnDeadline(returnDate, loc).Sub(requestedAt)
	if window <= 0 {
		return requestedAt
	}
	return requestedAt.Add(time.Duration(float64(window) * fraction))
}

// NearOverdueDue reports whether the once-only reminder should be sent now
func NearOverdueDue(item *models.RequestItem, requestedAt, now, today time.Time, loc *time.Location, fraction float64) bool {
	if item.Status != models.ItemActive || item.NearOverdueNotified || item.ReturnDate == nil {
		return false
	}
	if item.ReturnDate.Before(today) {
		return false
	}
	return !now.Before(NearOverdueTrigger(requestedAt, *item.ReturnDate, loc, fraction))
}

// DaysOverdue counts calendar days past the return date
func DaysOverdue(returnDate, today time.Time) int {
	days := clock.DaysBetween(returnDate, today)
	if days < 0 {
		return 0
	}
	return days
}
