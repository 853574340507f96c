package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resourcehive/internal/caching"
	"resourcehive/internal/clock"
	"resourcehive/internal/common"
	"resourcehive/internal/engine"
	"resourcehive/internal/events"
	"resourcehive/internal/ledger"
	"resourcehive/internal/metrics"
	"resourcehive/internal/models"
	"resourcehive/internal/notifier"
	"resourcehive/internal/store"
	"resourcehive/pkg/logger"
)

var tracer = otel.Tracer("resourcehive/services")

// Core carries the collaborators shared by every service. Cache may be nil.
type Core struct {
	Store    store.Store
	Clock    clock.Clock
	Notifier *notifier.Notifier
	Events   events.Publisher
	Cache    caching.CacheService
	Metrics  *metrics.Metrics
}

// unit is the working set of one transaction
type unit struct {
	tx     store.Tx
	ledger *ledger.Ledger
	outbox *notifier.Outbox
	events []events.Event
	actor  *uuid.UUID
	now    time.Time
	today  time.Time
	loc    *time.Location
}

func (u *unit) emit(eventType string, batchID uuid.UUID, itemID *uuid.UUID, attrs map[string]string) {
	ev := events.New(eventType, batchID, u.now)
	ev.ItemID = itemID
	ev.ActorID = u.actor
	ev.Attributes = attrs
	u.events = append(u.events, ev)
}

func (u *unit) activity(ctx context.Context, action, entity, entityID string, details models.JSONB) error {
	return u.tx.Activity().Create(ctx, &models.ActivityLog{
		ActorID:   u.actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: u.now,
	})
}

// run executes fn in one transaction and releases its side effects after commit
func (c *Core) run(ctx context.Context, op string, actor *uuid.UUID, fn func(ctx context.Context, u *unit) error) error {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	var u *unit
	err := c.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := c.Clock.Now()
		u = &unit{
			tx:     tx,
			ledger: ledger.New(tx.Stock()),
			outbox: c.Notifier.Outbox(tx.Notifications(), now),
			actor:  actor,
			now:    now,
			today:  c.Clock.Today(),
			loc:    c.Clock.Location(),
		}
		return fn(ctx, u)
	})
	if err != nil {
		kind := common.KindOf(err)
		c.Metrics.Command(op, string(kind))
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		ev := logger.Warn(ctx)
		if kind == common.KindInternal {
			ev = logger.Error(ctx)
		}
		ev.Err(err).Str("op", op).Str("kind", string(kind)).Msg("command failed")
		return err
	}
	c.Metrics.Command(op, "ok")
	c.release(ctx, u)
	return nil
}

// release publishes events, delivers email and SMS and drops stale cache entries
func (c *Core) release(ctx context.Context, u *unit) {
	if len(u.events) > 0 && c.Events != nil {
		if err := c.Events.Publish(ctx, u.events...); err != nil {
			logger.Warn(ctx).Err(err).Int("count", len(u.events)).Msg("failed to publish events")
		}
	}
	c.Notifier.Flush(ctx, u.outbox.Pending())
	if touched := u.ledger.Touched(); len(touched) > 0 && c.Cache != nil {
		if err := c.Cache.InvalidateSnapshots(ctx, touched); err != nil {
			logger.Warn(ctx).Err(err).Msg("failed to invalidate availability cache")
		}
	}
}

func (c *Core) requireAdmin(ctx context.Context, u *unit) (*models.User, error) {
	if u.actor == nil {
		return nil, common.Forbidden("an authenticated administrator is required")
	}
	user, err := u.tx.Users().GetByID(ctx, *u.actor)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() || !user.IsActive {
		return nil, common.Forbidden("administrator role required")
	}
	return user, nil
}

// rollUp recomputes the batch status from items and stamps the lifecycle times
func rollUp(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem) error {
	status := engine.RollUp(batch.Kind, items, batch.Derived())
	batch.Status = status
	at := u.now
	switch status {
	case models.BatchApproved, models.BatchPartiallyApproved, models.BatchForClaiming:
		if batch.ApprovedAt == nil {
			batch.ApprovedAt = &at
		}
	case models.BatchReturned:
		if batch.ReturnedAt == nil {
			batch.ReturnedAt = &at
		}
	case models.BatchCompleted:
		if batch.CompletedAt == nil {
			batch.CompletedAt = &at
		}
	}
	batch.UpdatedAt = u.now
	return u.tx.Batches().Update(ctx, batch)
}

// lockedBatch takes the batch row lock and loads its lines
func lockedBatch(ctx context.Context, u *unit, batchID uuid.UUID) (*models.Batch, []*models.RequestItem, error) {
	batch, err := u.tx.Batches().GetForUpdate(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	items, err := u.tx.RequestItems().ListByBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return batch, items, nil
}

func findLine(items []*models.RequestItem, id uuid.UUID) *models.RequestItem {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func saveLine(ctx context.Context, u *unit, item *models.RequestItem) error {
	item.UpdatedAt = u.now
	return u.tx.RequestItems().Update(ctx, item)
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(time.DateOnly)
}

func templateData(batch *models.Batch, items []*models.RequestItem) notifier.TemplateData {
	data := notifier.TemplateData{
		BatchID: batch.ID.String(),
		Kind:    string(batch.Kind),
		Items:   make([]notifier.TemplateLine, len(items)),
	}
	for i, it := range items {
		q := it.RequestedQuantity
		if it.ApprovedQuantity != nil {
			q = *it.ApprovedQuantity
		}
		data.Items[i] = notifier.TemplateLine{Name: it.ItemName, Quantity: q, Date: formatDate(it.ReturnDate)}
		if data.ReturnDate == "" {
			data.ReturnDate = formatDate(it.ReturnDate)
		}
	}
	return data
}

func notifyAdmins(ctx context.Context, u *unit, message string) ([]*models.User, error) {
	admins, err := u.tx.Users().ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	for _, admin := range admins {
		if err := u.outbox.InApp(ctx, admin.ID, message, nil); err != nil {
			return nil, err
		}
	}
	return admins, nil
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
