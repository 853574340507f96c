package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemKind separates consumables from durable loanable property
type ItemKind string

const (
	ItemKindSupply   ItemKind = "supply"
	ItemKindProperty ItemKind = "property"
)

func (k ItemKind) Valid() bool {
	return k == ItemKindSupply || k == ItemKindProperty
}

// Condition of a property item
type Condition string

const (
	ConditionGood          Condition = "good"
	ConditionNeedsRepair   Condition = "needs_repair"
	ConditionUnserviceable Condition = "unserviceable"
	ConditionObsolete      Condition = "obsolete"
	ConditionNotNeeded     Condition = "not_needed"
	ConditionUnused        Condition = "unused"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionGood, ConditionNeedsRepair, ConditionUnserviceable,
		ConditionObsolete, ConditionNotNeeded, ConditionUnused:
		return true
	}
	return false
}

// Serviceable reports whether a property in this condition may be lent out
func (c Condition) Serviceable() bool {
	return c == ConditionGood || c == ConditionUnused
}

// Item is a cataloged supply or property
type Item struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Kind           ItemKind   `json:"kind" db:"kind"`
	Name           string     `json:"name" db:"name"`
	Category       *string    `json:"category,omitempty" db:"category"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty" db:"expiration_date"` // supply only
	Condition      *Condition `json:"condition,omitempty" db:"condition"`             // property only
	Archived       bool       `json:"archived" db:"archived"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Requestable applies the catalog gates: archived items, empty stock and
// non-serviceable property cannot be newly requested.
func (i *Item) Requestable(stock Stock) bool {
	if i.Archived || stock.OnHand == 0 {
		return false
	}
	if i.Kind == ItemKindProperty && i.Condition != nil && !i.Condition.Serviceable() {
		return false
	}
	return true
}

// ItemFilter holds catalog query criteria
type ItemFilter struct {
	Kind          *ItemKind `json:"kind,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Query         string    `json:"query,omitempty"`
	IncludeHidden bool      `json:"include_hidden,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}

// CatalogEntry pairs an item with its ledger snapshot
type CatalogEntry struct {
	Item     *Item    `json:"item"`
	Snapshot Snapshot `json:"stock"`
}

// ExpiringSupply is a supply whose expiration date is near or past
type ExpiringSupply struct {
	Item     *Item `json:"item"`
	OnHand   int   `json:"on_hand"`
	Expired  bool  `json:"expired"`
	DaysLeft int   `json:"days_left"`
}

// LowStockSupply is a supply at or below its minimum threshold
type LowStockSupply struct {
	Item             *Item `json:"item"`
	OnHand           int   `json:"on_hand"`
	MinimumThreshold int   `json:"minimum_threshold"`
}
