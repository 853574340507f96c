package repositories

import (
	"context"

	"github.com/google/uuid"

	"resourcehive/internal/models"
)

type RequestItemRepository interface {
	Create(ctx context.Context, item *models.RequestItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RequestItem, error)
	// ListByBatch returns the lines ordered by inventory item id, the lock order
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*models.RequestItem, error)
	Update(ctx context.Context, item *models.RequestItem) error
}

const requestItemColumns = `ri.id, ri.batch_id, ri.item_id, i.name, ri.requested_quantity, ri.approved_quantity, ri.status,
	ri.remarks, ri.needed_date, ri.return_date, ri.actual_return_date, ri.claimed_at,
	ri.near_overdue_notified, ri.overdue_notified, ri.created_at, ri.updated_at`

type requestItemRepo struct {
	db Querier
}

func NewRequestItemRepo(db Querier) RequestItemRepository {
	return &requestItemRepo{db: db}
}

func scanRequestItem(row rowScanner) (*models.RequestItem, error) {
	ri := &models.RequestItem{}
	err := row.Scan(&ri.ID, &ri.BatchID, &ri.ItemID, &ri.ItemName, &ri.RequestedQuantity, &ri.ApprovedQuantity,
		&ri.Status, &ri.Remarks, &ri.NeededDate, &ri.ReturnDate, &ri.ActualReturnDate, &ri.ClaimedAt,
		&ri.NearOverdueNotified, &ri.OverdueNotified, &ri.CreatedAt, &ri.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ri, nil
}

func (r *requestItemRepo) Create(ctx context.Context, ri *models.RequestItem) error {
	if ri.ID == uuid.Nil {
		ri.ID = uuid.New()
	}
	query := `
		INSERT INTO request_items (id, batch_id, item_id, requested_quantity, approved_quantity, status, remarks,
			needed_date, return_date, actual_return_date, claimed_at, near_overdue_notified, overdue_notified,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Exec(ctx, query, ri.ID, ri.BatchID, ri.ItemID, ri.RequestedQuantity, ri.ApprovedQuantity,
		ri.Status, ri.Remarks, ri.NeededDate, ri.ReturnDate, ri.ActualReturnDate, ri.ClaimedAt,
		ri.NearOverdueNotified, ri.OverdueNotified, ri.CreatedAt, ri.UpdatedAt)
	return err
}

func (r *requestItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestItem, error) {
	query := `SELECT ` + requestItemColumns + ` FROM request_items ri JOIN items i ON i.id = ri.item_id WHERE ri.id = $1`
	ri, err := scanRequestItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "request item", id)
	}
	return ri, nil
}

func (r *requestItemRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*models.RequestItem, error) {
	query := `
		SELECT ` + requestItemColumns + `
		FROM request_items ri JOIN items i ON i.id = ri.item_id
		WHERE ri.batch_id = $1
		ORDER BY ri.item_id
	`
	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.RequestItem
	for rows.Next() {
		ri, err := scanRequestItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ri)
	}
	return items, rows.Err()
}

func (r *requestItemRepo) Update(ctx context.Context, ri *models.RequestItem) error {
	query := `
		UPDATE request_items
		SET approved_quantity = $1, status = $2, remarks = $3, actual_return_date = $4, claimed_at = $5,
			near_overdue_notified = $6, overdue_notified = $7, updated_at = $8
		WHERE id = $9
	`
	tag, err := r.db.Exec(ctx, query, ri.ApprovedQuantity, ri.Status, ri.Remarks, ri.ActualReturnDate, ri.ClaimedAt,
		ri.NearOverdueNotified, ri.OverdueNotified, ri.UpdatedAt, ri.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgxNoRows, "request item", ri.ID)
	}
	return nil
}
