package repositories

import (
	"context"

	"github.com/google/uuid"

	"resourcehive/internal/models"
)

type PermissionRepository interface {
	// Upsert inserts the permission or refreshes its name, returning true when it was new
	Upsert(ctx context.Context, permission *models.Permission) (bool, error)
	List(ctx context.Context) ([]*models.Permission, error)
	Grant(ctx context.Context, userID, permissionID uuid.UUID) error
	CountGrants(ctx context.Context, userID uuid.UUID) (int, error)
	HasPermission(ctx context.Context, userID uuid.UUID, codename string) (bool, error)
}

type permissionRepo struct {
	db Querier
}

func NewPermissionRepo(db Querier) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) Upsert(ctx context.Context, p *models.Permission) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO permissions (id, codename, name, description, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (codename) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		RETURNING id, (xmax = 0) AS inserted
	`
	var inserted bool
	if err := r.db.QueryRow(ctx, query, p.ID, p.Codename, p.Name, p.Description).Scan(&p.ID, &inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *permissionRepo) List(ctx context.Context) ([]*models.Permission, error) {
	query := `SELECT id, codename, name, description, created_at FROM permissions ORDER BY codename`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*models.Permission
	for rows.Next() {
		p := &models.Permission{}
		if err := rows.Scan(&p.ID, &p.Codename, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *permissionRepo) Grant(ctx context.Context, userID, permissionID uuid.UUID) error {
	query := `
		INSERT INTO user_permissions (user_id, permission_id, granted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, permission_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID, permissionID)
	return err
}

func (r *permissionRepo) CountGrants(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_permissions WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *permissionRepo) HasPermission(ctx context.Context, userID uuid.UUID, codename string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_permissions up
			JOIN permissions p ON p.id = up.permission_id
			WHERE up.user_id = $1 AND p.codename = $2
		)
	`
	var ok bool
	err := r.db.QueryRow(ctx, query, userID, codename).Scan(&ok)
	return ok, err
}
