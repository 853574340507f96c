package engine

import (
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

// ValidateSubmission checks the per-line constraints of a new batch
func ValidateSubmission(kind models.RequestKind, lines []models.RequestLine, today time.Time) error {
	if !kind.Valid() {
		return common.InvalidRequest("unknown request kind %q", kind)
	}
	if len(lines) == 0 {
		return common.InvalidRequest("a batch needs at least one item")
	}

	seen := make(map[uuid.UUID]bool, len(lines))
	for i, line := range lines {
		if line.ItemID == uuid.Nil {
			return common.InvalidRequest("line %d: item id is required", i+1)
		}
		if seen[line.ItemID] {
			return common.InvalidRequest("line %d: item %s appears more than once", i+1, line.ItemID)
		}
		seen[line.ItemID] = true

		if line.Quantity < 1 {
			return common.InvalidRequest("line %d: quantity must be at least 1", i+1)
		}

		switch kind {
		case models.RequestKindBorrow:
			if line.ReturnDate == nil {
				return common.InvalidRequest("line %d: return date is required", i+1)
			}
			if !line.ReturnDate.After(today) {
				return common.InvalidRequest("line %d: return date must be in the future", i+1)
			}
		case models.RequestKindReservation:
			if line.NeededDate == nil || line.ReturnDate == nil {
				return common.InvalidRequest("line %d: needed and return dates are required", i+1)
			}
			if line.NeededDate.Before(today) {
				return common.InvalidRequest("line %d: needed date cannot be in the past", i+1)
			}
			if line.ReturnDate.Before(*line.NeededDate) {
				return common.InvalidRequest("line %d: return date must not precede needed date", i+1)
			}
		}
	}
	return nil
}

// ValidateApproval checks the approved quantity against the requested one
func ValidateApproval(item *models.RequestItem, quantity int) error {
	if quantity < 1 || quantity > item.RequestedQuantity {
		return common.InvalidRequest("approved quantity must be between 1 and %d", item.RequestedQuantity)
	}
	return nil
}
