package engine

import "resourcehive/internal/models"

type statusCounts map[models.ItemStatus]int

func count(items []*models.RequestItem) statusCounts {
	c := make(statusCounts, len(items))
	for _, it := range items {
		c[it.Status]++
	}
	return c
}

func (c statusCounts) only(total int, statuses ...models.ItemStatus) bool {
	n := 0
	for _, s := range statuses {
		n += c[s]
	}
	return n == total
}

// RollUp derives the batch status from its items. It is the only place
// batch status is computed.
func RollUp(kind models.RequestKind, items []*models.RequestItem, derived bool) models.BatchStatus {
	total := len(items)
	if total == 0 {
		return models.BatchPending
	}
	c := count(items)

	// Lines that dropped out of the batch without being fulfilled.
	dropped := c[models.ItemRejected] + c[models.ItemCancelled] + c[models.ItemExpired]
	if dropped == total {
		switch {
		case c[models.ItemCancelled] == total:
			return models.BatchCancelled
		case c[models.ItemExpired] > 0:
			return models.BatchExpired
		default:
			return models.BatchRejected
		}
	}
	live := total - dropped

	if c[models.ItemPending] > 0 {
		return models.BatchPending
	}

	switch kind {
	case models.RequestKindSupply:
		if c[models.ItemCompleted] == live {
			return models.BatchCompleted
		}
	case models.RequestKindBorrow:
		if c[models.ItemOverdue] > 0 {
			return models.BatchOverdue
		}
		if c[models.ItemActive] > 0 {
			return models.BatchActive
		}
		if c[models.ItemReturned]+c[models.ItemCompleted] == live {
			return models.BatchReturned
		}
	case models.RequestKindReservation:
		if c[models.ItemCompleted] == live {
			return models.BatchCompleted
		}
		if c[models.ItemActive] > 0 {
			return models.BatchActive
		}
	}

	if c[models.ItemApproved] == live {
		if c[models.ItemRejected] > 0 {
			return models.BatchPartiallyApproved
		}
		if derived {
			return models.BatchForClaiming
		}
		return models.BatchApproved
	}

	// Mixed approved and fulfilled lines only occur mid-claim.
	return models.BatchApproved
}

// Claimable reports whether a batch in this status can be handed out
func Claimable(status models.BatchStatus) bool {
	switch status {
	case models.BatchApproved, models.BatchForClaiming, models.BatchPartiallyApproved:
		return true
	}
	return false
}

// Decidable reports whether admins may still approve lines of the batch
func Decidable(status models.BatchStatus) bool {
	return status == models.BatchPending || status == models.BatchPartiallyApproved
}

// IsFinished reports whether the batch no longer changes
func IsFinished(status models.BatchStatus) bool {
	switch status {
	case models.BatchReturned, models.BatchCompleted, models.BatchRejected,
		models.BatchCancelled, models.BatchExpired:
		return true
	}
	return false
}
