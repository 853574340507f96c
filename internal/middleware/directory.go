package middleware

import (
	"context"

	"github.com/google/uuid"

	"resourcehive/internal/models"
	"resourcehive/internal/store"
)

// Directory reads users and grants through the store for the auth middleware
type Directory struct {
	store store.Store
}

func NewDirectory(st store.Store) *Directory {
	return &Directory{store: st}
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user *models.User
	err := d.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, id)
		return err
	})
	return user, err
}

func (d *Directory) HasPermission(ctx context.Context, userID uuid.UUID, codename string) (bool, error) {
	var ok bool
	err := d.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ok, err = tx.Permissions().HasPermission(ctx, userID, codename)
		return err
	})
	return ok, err
}

func (d *Directory) RecordActivity(ctx context.Context, entry *models.ActivityLog) error {
	return d.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Activity().Create(ctx, entry)
	})
}
