package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog is an append-only record of who did what to which entity
type ActivityLog struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	Action    string     `json:"action" db:"action"`
	Entity    string     `json:"entity" db:"entity"`
	EntityID  string     `json:"entity_id" db:"entity_id"`
	Details   JSONB      `json:"details,omitempty" db:"details"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Activity actions
const (
	ActionSubmit          = "submit"
	ActionApprove         = "approve"
	ActionReject          = "reject"
	ActionClaim           = "claim"
	ActionReturn          = "return"
	ActionCancel          = "cancel"
	ActionActivate        = "activate"
	ActionAdjustStock     = "adjust_stock"
	ActionRemoveBadStock  = "remove_bad_stock"
	ActionReactivateUser  = "reactivate_user"
	ActionGrantPermission = "grant_permission"
)
