package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"resourcehive/internal/models"
)

type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	// LockForSweep locks the batch if it is unlocked and still in one of statuses.
	// ok is false when another transaction holds it or its status moved on.
	LockForSweep(ctx context.Context, id uuid.UUID, statuses []models.BatchStatus) (batch *models.Batch, ok bool, err error)
	Update(ctx context.Context, batch *models.Batch) error
	List(ctx context.Context, filter models.BatchFilter) ([]*models.Batch, error)
	ListIDs(ctx context.Context, kind models.RequestKind, statuses []models.BatchStatus) ([]uuid.UUID, error)
}

const batchColumns = `id, kind, owner_id, purpose, status, remarks, source_reservation_id, generated_borrow_id,
	created_at, approved_at, claimed_at, returned_at, completed_at, updated_at`

type batchRepo struct {
	db Querier
}

func NewBatchRepo(db Querier) BatchRepository {
	return &batchRepo{db: db}
}

func scanBatch(row rowScanner) (*models.Batch, error) {
	b := &models.Batch{}
	err := row.Scan(&b.ID, &b.Kind, &b.OwnerID, &b.Purpose, &b.Status, &b.Remarks, &b.SourceReservationID,
		&b.GeneratedBorrowID, &b.CreatedAt, &b.ApprovedAt, &b.ClaimedAt, &b.ReturnedAt, &b.CompletedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func statusStrings(statuses []models.BatchStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *batchRepo) Create(ctx context.Context, b *models.Batch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	query := `
		INSERT INTO batches (id, kind, owner_id, purpose, status, remarks, source_reservation_id, generated_borrow_id,
			created_at, approved_at, claimed_at, returned_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query, b.ID, b.Kind, b.OwnerID, b.Purpose, b.Status, b.Remarks, b.SourceReservationID,
		b.GeneratedBorrowID, b.CreatedAt, b.ApprovedAt, b.ClaimedAt, b.ReturnedAt, b.CompletedAt, b.UpdatedAt)
	return err
}

func (r *batchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	b, err := scanBatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "batch", id)
	}
	return b, nil
}

func (r *batchRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1 FOR UPDATE`
	b, err := scanBatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "batch", id)
	}
	return b, nil
}

func (r *batchRepo) LockForSweep(ctx context.Context, id uuid.UUID, statuses []models.BatchStatus) (*models.Batch, bool, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1 AND status = ANY($2) FOR UPDATE SKIP LOCKED`
	b, err := scanBatch(r.db.QueryRow(ctx, query, id, statusStrings(statuses)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *batchRepo) Update(ctx context.Context, b *models.Batch) error {
	query := `
		UPDATE batches
		SET status = $1, remarks = $2, generated_borrow_id = $3, approved_at = $4, claimed_at = $5,
			returned_at = $6, completed_at = $7, updated_at = $8
		WHERE id = $9
	`
	tag, err := r.db.Exec(ctx, query, b.Status, b.Remarks, b.GeneratedBorrowID, b.ApprovedAt, b.ClaimedAt,
		b.ReturnedAt, b.CompletedAt, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgxNoRows, "batch", b.ID)
	}
	return nil
}

func (r *batchRepo) List(ctx context.Context, filter models.BatchFilter) ([]*models.Batch, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + batchColumns + ` FROM batches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, defaultLimit(filter.Limit), filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *batchRepo) ListIDs(ctx context.Context, kind models.RequestKind, statuses []models.BatchStatus) ([]uuid.UUID, error) {
	query := `SELECT id FROM batches WHERE kind = $1 AND status = ANY($2) ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, kind, statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
