package repositories

import (
	"context"

	"github.com/google/uuid"

	"resourcehive/internal/models"
)

// StockRepository reads and writes ledger rows. Writes happen only through the ledger package.
type StockRepository interface {
	Create(ctx context.Context, stock *models.Stock) error
	Get(ctx context.Context, itemID uuid.UUID) (*models.Stock, error)
	// GetForUpdate takes the row lock for the rest of the transaction
	GetForUpdate(ctx context.Context, itemID uuid.UUID) (*models.Stock, error)
	GetMany(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]models.Stock, error)
	Update(ctx context.Context, stock *models.Stock) error
}

const stockColumns = `item_id, on_hand, reserved, minimum_threshold, updated_at`

type stockRepo struct {
	db Querier
}

func NewStockRepo(db Querier) StockRepository {
	return &stockRepo{db: db}
}

func scanStock(row rowScanner) (*models.Stock, error) {
	s := &models.Stock{}
	if err := row.Scan(&s.ItemID, &s.OnHand, &s.Reserved, &s.MinimumThreshold, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *stockRepo) Create(ctx context.Context, stock *models.Stock) error {
	query := `
		INSERT INTO stock (item_id, on_hand, reserved, minimum_threshold, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.Exec(ctx, query, stock.ItemID, stock.OnHand, stock.Reserved, stock.MinimumThreshold)
	return err
}

func (r *stockRepo) Get(ctx context.Context, itemID uuid.UUID) (*models.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stock WHERE item_id = $1`
	s, err := scanStock(r.db.QueryRow(ctx, query, itemID))
	if err != nil {
		return nil, notFound(err, "stock", itemID)
	}
	return s, nil
}

func (r *stockRepo) GetForUpdate(ctx context.Context, itemID uuid.UUID) (*models.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stock WHERE item_id = $1 FOR UPDATE`
	s, err := scanStock(r.db.QueryRow(ctx, query, itemID))
	if err != nil {
		return nil, notFound(err, "stock", itemID)
	}
	return s, nil
}

func (r *stockRepo) GetMany(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]models.Stock, error) {
	out := make(map[uuid.UUID]models.Stock, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + stockColumns + ` FROM stock WHERE item_id = ANY($1)`
	rows, err := r.db.Query(ctx, query, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out[s.ItemID] = *s
	}
	return out, rows.Err()
}

func (r *stockRepo) Update(ctx context.Context, stock *models.Stock) error {
	query := `
		UPDATE stock
		SET on_hand = $1, reserved = $2, minimum_threshold = $3, updated_at = NOW()
		WHERE item_id = $4
	`
	tag, err := r.db.Exec(ctx, query, stock.OnHand, stock.Reserved, stock.MinimumThreshold, stock.ItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgxNoRows, "stock", stock.ItemID)
	}
	return nil
}
