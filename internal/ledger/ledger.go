// Package ledger is the only writer of stock rows. A Ledger lives for one
// transaction and holds the row locks it took until that transaction ends.
package ledger

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/internal/repositories"
)

type Ledger struct {
	stock   repositories.StockRepository
	locked  map[uuid.UUID]*models.Stock
	touched []uuid.UUID
}

func New(stock repositories.StockRepository) *Ledger {
	return &Ledger{stock: stock, locked: make(map[uuid.UUID]*models.Stock)}
}

// SortIDs orders item ids the way locks must be taken
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}

// Lock takes the row locks of ids in ascending id order
func (l *Ledger) Lock(ctx context.Context, ids ...uuid.UUID) error {
	ordered := append([]uuid.UUID(nil), ids...)
	SortIDs(ordered)
	for _, id := range ordered {
		if _, err := l.row(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) row(ctx context.Context, id uuid.UUID) (*models.Stock, error) {
	if st, ok := l.locked[id]; ok {
		return st, nil
	}
	st, err := l.stock.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	l.locked[id] = st
	return st, nil
}

func (l *Ledger) write(ctx context.Context, st *models.Stock) error {
	if err := l.stock.Update(ctx, st); err != nil {
		return err
	}
	for _, id := range l.touched {
		if id == st.ItemID {
			return nil
		}
	}
	l.touched = append(l.touched, st.ItemID)
	return nil
}

func (l *Ledger) Snapshot(ctx context.Context, id uuid.UUID) (models.Snapshot, error) {
	st, err := l.row(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return st.Snapshot(), nil
}

// Reserve adds q to reserved without an availability check
func (l *Ledger) Reserve(ctx context.Context, id uuid.UUID, q int) error {
	if q < 0 {
		return common.InvalidRequest("reserve quantity must not be negative")
	}
	st, err := l.row(ctx, id)
	if err != nil {
		return err
	}
	st.Reserved += q
	return l.write(ctx, st)
}

// ReserveChecked reserves q only if it fits in available
func (l *Ledger) ReserveChecked(ctx context.Context, id uuid.UUID, q int) error {
	st, err := l.row(ctx, id)
	if err != nil {
		return err
	}
	if q > st.Available() {
		return common.InsufficientStock(q, st.OnHand, st.Reserved, st.Available())
	}
	return l.Reserve(ctx, id, q)
}

// Unreserve subtracts q from reserved, floored at zero
func (l *Ledger) Unreserve(ctx context.Context, id uuid.UUID, q int) error {
	st, err := l.row(ctx, id)
	if err != nil {
		return err
	}
	st.Reserved -= q
	if st.Reserved < 0 {
		st.Reserved = 0
	}
	return l.write(ctx, st)
}

// Consume hands out q units. unreserve releases the hold the claim was made against.
func (l *Ledger) Consume(ctx context.Context, id uuid.UUID, q int, unreserve bool) error {
	st, err := l.row(ctx, id)
	if err != nil {
		return err
	}
	if q > st.OnHand {
		return common.InsufficientStock(q, st.OnHand, st.Reserved, st.Available())
	}
	st.OnHand -= q
	if unreserve {
		st.Reserved -= q
		if st.Reserved < 0 {
			st.Reserved = 0
		}
	}
	return l.write(ctx, st)
}

func (l *Ledger) Restore(ctx context.Context, id uuid.UUID, q int) error {
	st, err := l.row(ctx, id)
	if err != nil {
		return err
	}
	st.OnHand += q
	return l.write(ctx, st)
}

// Adjust applies an operator correction. on_hand may drop below reserved, never below zero.
func (l *Ledger) Adjust(ctx context.Context, id uuid.UUID, delta int) (models.Snapshot, error) {
	st, err := l.row(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	if st.OnHand+delta < 0 {
		return st.Snapshot(), common.InvalidRequest("adjustment of %d would leave on hand at %d", delta, st.OnHand+delta)
	}
	st.OnHand += delta
	if err := l.write(ctx, st); err != nil {
		return models.Snapshot{}, err
	}
	return st.Snapshot(), nil
}

// Apply performs the ledger effect of a state transition
func (l *Ledger) Apply(ctx context.Context, id uuid.UUID, onHandDelta, reservedDelta int) error {
	switch {
	case onHandDelta < 0:
		return l.Consume(ctx, id, -onHandDelta, reservedDelta < 0)
	case onHandDelta > 0:
		return l.Restore(ctx, id, onHandDelta)
	case reservedDelta > 0:
		return l.Reserve(ctx, id, reservedDelta)
	case reservedDelta < 0:
		return l.Unreserve(ctx, id, -reservedDelta)
	}
	return nil
}

// Touched lists the items whose rows were written, in write order
func (l *Ledger) Touched() []uuid.UUID {
	return append([]uuid.UUID(nil), l.touched...)
}
