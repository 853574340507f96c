package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListAdmins(ctx context.Context) ([]*models.User, error)
	// ListDueForReactivation locks inactive users whose auto_enable_at has passed
	ListDueForReactivation(ctx context.Context, now time.Time) ([]*models.User, error)
	Reactivate(ctx context.Context, id uuid.UUID, at time.Time) error
}

const userColumns = `id, username, first_name, last_name, email, phone, department, role, is_active, auto_enable_at, created_at, updated_at`

type userRepo struct {
	db Querier
}

func NewUserRepo(db Querier) UserRepository {
	return &userRepo{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Department,
		&u.Role, &u.IsActive, &u.AutoEnableAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, username, first_name, last_name, email, phone, department, role, is_active, auto_enable_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, user.ID, user.Username, user.FirstName, user.LastName, user.Email,
		user.Phone, user.Department, user.Role, user.IsActive, user.AutoEnableAt)
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

func (r *userRepo) ListAdmins(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active ORDER BY username`
	return r.list(ctx, query, models.RoleAdmin)
}

func (r *userRepo) ListDueForReactivation(ctx context.Context, now time.Time) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE NOT is_active AND auto_enable_at IS NOT NULL AND auto_enable_at <= $1
		ORDER BY auto_enable_at
		FOR UPDATE SKIP LOCKED
	`
	return r.list(ctx, query, now)
}

func (r *userRepo) Reactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET is_active = TRUE, auto_enable_at = NULL, updated_at = $1 WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgxNoRows, "user", id)
	}
	return nil
}

func (r *userRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
