package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/models"
)

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetByName(ctx context.Context, kind models.ItemKind, name string) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	List(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error)
	// ListExpiringSupplies returns non-archived supplies expiring on or before cutoff
	ListExpiringSupplies(ctx context.Context, cutoff time.Time) ([]*models.ExpiringSupply, error)
	ListLowStock(ctx context.Context) ([]*models.LowStockSupply, error)
}

const itemColumns = `i.id, i.kind, i.name, i.category, i.expiration_date, i.condition, i.archived, i.created_at, i.updated_at`

type itemRepo struct {
	db Querier
}

func NewItemRepo(db Querier) ItemRepository {
	return &itemRepo{db: db}
}

func itemDest(it *models.Item) []interface{} {
	return []interface{}{&it.ID, &it.Kind, &it.Name, &it.Category, &it.ExpirationDate, &it.Condition,
		&it.Archived, &it.CreatedAt, &it.UpdatedAt}
}

func (r *itemRepo) Create(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	query := `
		INSERT INTO items (id, kind, name, category, expiration_date, condition, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, item.ID, item.Kind, item.Name, item.Category, item.ExpirationDate,
		item.Condition, item.Archived)
	return err
}

func (r *itemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item := &models.Item{}
	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.id = $1`
	if err := r.db.QueryRow(ctx, query, id).Scan(itemDest(item)...); err != nil {
		return nil, notFound(err, "item", id)
	}
	return item, nil
}

func (r *itemRepo) GetByName(ctx context.Context, kind models.ItemKind, name string) (*models.Item, error) {
	item := &models.Item{}
	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.kind = $1 AND i.name = $2`
	if err := r.db.QueryRow(ctx, query, kind, name).Scan(itemDest(item)...); err != nil {
		return nil, notFound(err, "item", name)
	}
	return item, nil
}

func (r *itemRepo) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items
		SET name = $1, category = $2, expiration_date = $3, condition = $4, archived = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, item.Name, item.Category, item.ExpirationDate, item.Condition, item.Archived, item.ID)
	return err
}

// List applies the catalog gates unless IncludeHidden is set
func (r *itemRepo) List(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Kind != nil {
		add("i.kind = $%d", *filter.Kind)
	}
	if filter.Category != nil {
		add("i.category = $%d", *filter.Category)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add("i.name ILIKE $%d", "%"+q+"%")
	}
	if !filter.IncludeHidden {
		where = append(where,
			"NOT i.archived",
			"s.on_hand > 0",
			"(i.condition IS NULL OR i.condition IN ('good', 'unused'))",
		)
	}

	query := `SELECT ` + itemColumns + ` FROM items i JOIN stock s ON s.item_id = i.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, defaultLimit(filter.Limit), filter.Offset)
	query += fmt.Sprintf(" ORDER BY i.name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item := &models.Item{}
		if err := rows.Scan(itemDest(item)...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *itemRepo) ListExpiringSupplies(ctx context.Context, cutoff time.Time) ([]*models.ExpiringSupply, error) {
	query := `
		SELECT ` + itemColumns + `, s.on_hand
		FROM items i JOIN stock s ON s.item_id = i.id
		WHERE i.kind = 'supply' AND NOT i.archived
		  AND i.expiration_date IS NOT NULL AND i.expiration_date <= $1
		ORDER BY i.expiration_date, i.name
	`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExpiringSupply
	for rows.Next() {
		es := &models.ExpiringSupply{Item: &models.Item{}}
		if err := rows.Scan(append(itemDest(es.Item), &es.OnHand)...); err != nil {
			return nil, err
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

func (r *itemRepo) ListLowStock(ctx context.Context) ([]*models.LowStockSupply, error) {
	query := `
		SELECT ` + itemColumns + `, s.on_hand, s.minimum_threshold
		FROM items i JOIN stock s ON s.item_id = i.id
		WHERE i.kind = 'supply' AND NOT i.archived
		  AND s.minimum_threshold IS NOT NULL AND s.on_hand <= s.minimum_threshold
		ORDER BY i.name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LowStockSupply
	for rows.Next() {
		ls := &models.LowStockSupply{Item: &models.Item{}}
		if err := rows.Scan(append(itemDest(ls.Item), &ls.OnHand, &ls.MinimumThreshold)...); err != nil {
			return nil, err
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}
