package notifier

import (
	"fmt"
	"strings"
)

// OverdueLine is one overdue item of a batch
type OverdueLine struct {
	Name        string
	Quantity    int
	ReturnDate  string
	DaysOverdue int
}

const smsSignOff = "\n\nThank you,\nResource Hive Team"

// OverdueSMS renders the grouped overdue reminder for one batch
func OverdueSMS(name string, lines []OverdueLine) string {
	if len(lines) == 1 {
		l := lines[0]
		return fmt.Sprintf("Hello %s,\n\nThis is a reminder that your borrow of %s (Qty: %d) is OVERDUE.\n\n"+
			"Original return date: %s\nDays overdue: %d\n\n"+
			"Please return the item at your earliest convenience.", name, l.Name, l.Quantity, l.ReturnDate, l.DaysOverdue) + smsSignOff
	}

	maxDays := 0
	parts := make([]string, 0, 3)
	for i, l := range lines {
		if l.DaysOverdue > maxDays {
			maxDays = l.DaysOverdue
		}
		if i < 3 {
			parts = append(parts, fmt.Sprintf("%s (x%d)", l.Name, l.Quantity))
		}
	}
	list := strings.Join(parts, ", ")
	if extra := len(lines) - 3; extra > 0 {
		list += fmt.Sprintf(", and %d more", extra)
	}
	return fmt.Sprintf("Hello %s,\n\nYou have %d OVERDUE item(s) from your borrow request(s):\n%s\n\n"+
		"Most overdue: %d days\n\n"+
		"Please return these items as soon as possible.", name, len(lines), list, maxDays) + smsSignOff
}
