package notifier

import (
	"fmt"
	"strings"

	"resourcehive/internal/models"
)

// In-app message texts

func kindLabel(kind models.RequestKind) string {
	switch kind {
	case models.RequestKindSupply:
		return "supply request"
	case models.RequestKindReservation:
		return "reservation"
	default:
		return "borrow request"
	}
}

// ItemSummary renders "A (x2), B (x1)" from request lines
func ItemSummary(items []*models.RequestItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		q := it.RequestedQuantity
		if it.ApprovedQuantity != nil {
			q = *it.ApprovedQuantity
		}
		parts[i] = fmt.Sprintf("%s (x%d)", it.ItemName, q)
	}
	return strings.Join(parts, ", ")
}

func SubmittedMessage(owner *models.User, b *models.Batch, items []*models.RequestItem) string {
	return fmt.Sprintf("%s submitted a new %s: %s", owner.FullName(), kindLabel(b.Kind), ItemSummary(items))
}

func CancelledMessage(owner *models.User, b *models.Batch) string {
	return fmt.Sprintf("%s cancelled %s %s", owner.FullName(), kindLabel(b.Kind), b.ID)
}

func ApprovedMessage(b *models.Batch, item *models.RequestItem) string {
	return fmt.Sprintf("Your %s for %s has been approved (quantity %d).", kindLabel(b.Kind), item.ItemName, item.Quantity())
}

func RejectedMessage(b *models.Batch, item *models.RequestItem) string {
	return fmt.Sprintf("Your %s for %s has been rejected.", kindLabel(b.Kind), item.ItemName)
}

func ClaimedMessage(b *models.Batch, items []*models.RequestItem) string {
	return fmt.Sprintf("Your %s has been claimed: %s", kindLabel(b.Kind), ItemSummary(items))
}

func ReturnedMessage(item *models.RequestItem) string {
	return fmt.Sprintf("Return of %s (x%d) has been recorded.", item.ItemName, item.Quantity())
}

func ExpiredMessage(b *models.Batch, item *models.RequestItem) string {
	return fmt.Sprintf("Your %s for %s has expired.", kindLabel(b.Kind), item.ItemName)
}

func OverdueMessage(item *models.RequestItem) string {
	return fmt.Sprintf("Your borrowed %s (x%d) is overdue. Please return it as soon as possible.", item.ItemName, item.Quantity())
}

func ActivatedMessage(derived *models.Batch) string {
	return fmt.Sprintf("Your reservation is now active. Borrow request %s is ready for claiming.", derived.ID)
}

func NearOverdueMessage(item *models.RequestItem, returnDate string) string {
	return fmt.Sprintf("Reminder: %s (x%d) is due for return on %s.", item.ItemName, item.Quantity(), returnDate)
}

func ReactivatedMessage() string {
	return "Your account has been automatically reactivated."
}
