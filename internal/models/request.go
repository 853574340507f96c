package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestKind is the kind of a batched request
type RequestKind string

const (
	RequestKindSupply      RequestKind = "supply"
	RequestKindBorrow      RequestKind = "borrow"
	RequestKindReservation RequestKind = "reservation"
)

func (k RequestKind) Valid() bool {
	switch k {
	case RequestKindSupply, RequestKindBorrow, RequestKindReservation:
		return true
	}
	return false
}

// Reserves reports whether approval of this kind holds stock
func (k RequestKind) Reserves() bool {
	return k == RequestKindBorrow || k == RequestKindReservation
}

// BatchStatus is always derived from the batch items
type BatchStatus string

const (
	BatchPending           BatchStatus = "pending"
	BatchApproved          BatchStatus = "approved"
	BatchPartiallyApproved BatchStatus = "partially_approved"
	BatchForClaiming       BatchStatus = "for_claiming"
	BatchActive            BatchStatus = "active"
	BatchOverdue           BatchStatus = "overdue"
	BatchReturned          BatchStatus = "returned"
	BatchCompleted         BatchStatus = "completed"
	BatchRejected          BatchStatus = "rejected"
	BatchCancelled         BatchStatus = "cancelled"
	BatchExpired           BatchStatus = "expired"
)

// ItemStatus is the per-line state
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemApproved  ItemStatus = "approved"
	ItemRejected  ItemStatus = "rejected"
	ItemCancelled ItemStatus = "cancelled"
	ItemActive    ItemStatus = "active"
	ItemOverdue   ItemStatus = "overdue"
	ItemReturned  ItemStatus = "returned"
	ItemCompleted ItemStatus = "completed"
	ItemExpired   ItemStatus = "expired"
)

// Batch is the parent of a batched request
type Batch struct {
	ID                  uuid.UUID   `json:"id" db:"id"`
	Kind                RequestKind `json:"kind" db:"kind"`
	OwnerID             uuid.UUID   `json:"owner_id" db:"owner_id"`
	Purpose             string      `json:"purpose" db:"purpose"`
	Status              BatchStatus `json:"status" db:"status"`
	Remarks             *string     `json:"remarks,omitempty" db:"remarks"`
	SourceReservationID *uuid.UUID  `json:"source_reservation_id,omitempty" db:"source_reservation_id"`
	GeneratedBorrowID   *uuid.UUID  `json:"generated_borrow_id,omitempty" db:"generated_borrow_id"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	ApprovedAt          *time.Time  `json:"approved_at,omitempty" db:"approved_at"`
	ClaimedAt           *time.Time  `json:"claimed_at,omitempty" db:"claimed_at"`
	ReturnedAt          *time.Time  `json:"returned_at,omitempty" db:"returned_at"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`

	Items []*RequestItem `json:"items,omitempty" db:"-"`
}

// Derived reports whether the batch was generated from a reservation
func (b *Batch) Derived() bool {
	return b.SourceReservationID != nil
}

// RequestItem is one line of a batch
type RequestItem struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	BatchID             uuid.UUID  `json:"batch_id" db:"batch_id"`
	ItemID              uuid.UUID  `json:"item_id" db:"item_id"`
	ItemName            string     `json:"item_name,omitempty" db:"-"`
	RequestedQuantity   int        `json:"requested_quantity" db:"requested_quantity"`
	ApprovedQuantity    *int       `json:"approved_quantity,omitempty" db:"approved_quantity"`
	Status              ItemStatus `json:"status" db:"status"`
	Remarks             *string    `json:"remarks,omitempty" db:"remarks"`
	NeededDate          *time.Time `json:"needed_date,omitempty" db:"needed_date"`
	ReturnDate          *time.Time `json:"return_date,omitempty" db:"return_date"`
	ActualReturnDate    *time.Time `json:"actual_return_date,omitempty" db:"actual_return_date"`
	ClaimedAt           *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	NearOverdueNotified bool       `json:"near_overdue_notified" db:"near_overdue_notified"`
	OverdueNotified     bool       `json:"overdue_notified" db:"overdue_notified"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// Quantity is the approved quantity, zero before approval
func (ri *RequestItem) Quantity() int {
	if ri.ApprovedQuantity == nil {
		return 0
	}
	return *ri.ApprovedQuantity
}

// BatchFilter holds batch listing criteria
type BatchFilter struct {
	OwnerID *uuid.UUID   `json:"owner_id,omitempty"`
	Kind    *RequestKind `json:"kind,omitempty"`
	Status  *BatchStatus `json:"status,omitempty"`
	Limit   int          `json:"limit,omitempty"`
	Offset  int          `json:"offset,omitempty"`
}

// RequestLine is one line of a submission
type RequestLine struct {
	ItemID     uuid.UUID  `json:"item_id"`
	Quantity   int        `json:"quantity"`
	NeededDate *time.Time `json:"needed_date,omitempty"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}
