package models

import (
	"time"

	"github.com/google/uuid"
)

// Stock is the ledger row of an item. Reserved may exceed on hand.
type Stock struct {
	ItemID           uuid.UUID `json:"item_id" db:"item_id"`
	OnHand           int       `json:"on_hand" db:"on_hand"`
	Reserved         int       `json:"reserved" db:"reserved"`
	MinimumThreshold *int      `json:"minimum_threshold,omitempty" db:"minimum_threshold"` // supply only
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Available is max(0, on_hand - reserved)
func (s Stock) Available() int {
	if s.OnHand > s.Reserved {
		return s.OnHand - s.Reserved
	}
	return 0
}

func (s Stock) Snapshot() Snapshot {
	return Snapshot{
		ItemID:    s.ItemID,
		OnHand:    s.OnHand,
		Reserved:  s.Reserved,
		Available: s.Available(),
	}
}

// Snapshot is the read view of a stock row
type Snapshot struct {
	ItemID    uuid.UUID `json:"item_id"`
	OnHand    int       `json:"on_hand"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
}
