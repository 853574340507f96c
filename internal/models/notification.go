package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message. Rows are append-only except IsRead.
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Message   string    `json:"message" db:"message"`
	Remarks   *string   `json:"remarks,omitempty" db:"remarks"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// JSONB is a free-form JSON object column
type JSONB map[string]interface{}
