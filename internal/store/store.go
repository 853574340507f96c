// Package store runs commands as units of work over the repositories.
package store

import (
	"context"

	"resourcehive/internal/repositories"
)

// Tx exposes the repositories bound to one transaction
type Tx interface {
	Users() repositories.UserRepository
	Items() repositories.ItemRepository
	Stock() repositories.StockRepository
	Batches() repositories.BatchRepository
	RequestItems() repositories.RequestItemRepository
	Notifications() repositories.NotificationRepository
	Permissions() repositories.PermissionRepository
	Activity() repositories.ActivityRepository
}

// Store commits fn's writes atomically. An error from fn rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

type repoSet struct {
	users         repositories.UserRepository
	items         repositories.ItemRepository
	stock         repositories.StockRepository
	batches       repositories.BatchRepository
	requestItems  repositories.RequestItemRepository
	notifications repositories.NotificationRepository
	permissions   repositories.PermissionRepository
	activity      repositories.ActivityRepository
}

func (r *repoSet) Users() repositories.UserRepository                 { return r.users }
func (r *repoSet) Items() repositories.ItemRepository                 { return r.items }
func (r *repoSet) Stock() repositories.StockRepository                { return r.stock }
func (r *repoSet) Batches() repositories.BatchRepository              { return r.batches }
func (r *repoSet) RequestItems() repositories.RequestItemRepository   { return r.requestItems }
func (r *repoSet) Notifications() repositories.NotificationRepository { return r.notifications }
func (r *repoSet) Permissions() repositories.PermissionRepository     { return r.permissions }
func (r *repoSet) Activity() repositories.ActivityRepository          { return r.activity }
