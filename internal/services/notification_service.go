package services

import (
	"context"

	"github.com/google/uuid"

	"resourcehive/internal/models"
	"resourcehive/internal/store"
)

// NotificationService serves the in-app inbox
type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	store store.Store
}

func NewNotificationService(st store.Store) NotificationService {
	return &notificationService{store: st}
}

// List returns the newest notifications first
func (s *notificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Notification, error) {
	var out []*models.Notification
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Notifications().ListByUser(ctx, userID, limit, offset)
		return err
	})
	return out, err
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		n, err = tx.Notifications().CountUnread(ctx, userID)
		return err
	})
	return n, err
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Notifications().MarkRead(ctx, userID, notificationID)
	})
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		n, err = tx.Notifications().MarkAllRead(ctx, userID)
		return err
	})
	return n, err
}
