package repositories

import (
	"context"

	"github.com/google/uuid"

	"resourcehive/internal/models"
)

// ActivityRepository stores the append-only activity log
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListByEntity(ctx context.Context, entity, entityID string, limit, offset int) ([]*models.ActivityLog, error)
}

type activityRepo struct {
	db Querier
}

func NewActivityRepo(db Querier) ActivityRepository {
	return &activityRepo{db: db}
}

func (r *activityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `
		INSERT INTO activity_logs (id, actor_id, action, entity, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID,
		entry.Details, entry.CreatedAt)
	return err
}

func (r *activityRepo) ListByEntity(ctx context.Context, entity, entityID string, limit, offset int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, actor_id, action, entity, entity_id, details, created_at
		FROM activity_logs
		WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, entity, entityID, defaultLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ActivityLog
	for rows.Next() {
		e := &models.ActivityLog{}
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
