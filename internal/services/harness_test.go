package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"resourcehive/internal/clock"
	"resourcehive/internal/engine"
	"resourcehive/internal/events"
	"resourcehive/internal/metrics"
	"resourcehive/internal/models"
	"resourcehive/internal/notifier"
	"resourcehive/internal/store"
)

var harnessStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []notifier.Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg notifier.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *recordingDispatcher) channel(ch notifier.Channel) []notifier.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notifier.Message
	for _, m := range d.msgs {
		if m.Channel == ch {
			out = append(out, m)
		}
	}
	return out
}

func (d *recordingDispatcher) subject(subject string) []notifier.Message {
	var out []notifier.Message
	for _, m := range d.channel(notifier.ChannelEmail) {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, msg notifier.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type countingTicker struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTicker) TickIfDue(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

// serviceHarness wires every service over the in-memory store and a fake
// clock starting at harnessStart
type serviceHarness struct {
	suite.Suite
	ctx    context.Context
	fake   *clockwork.FakeClock
	store  *store.Memory
	events *events.Recorder
	sent   *recordingDispatcher
	core   *Core

	requests    RequestService
	scheduler   SchedulerService
	inventory   InventoryService
	maintenance MaintenanceService

	admin *models.User
	user  *models.User
	items []uuid.UUID
}

func (h *serviceHarness) SetupTest() {
	h.ctx = context.Background()
	h.fake = clockwork.NewFakeClockAt(harnessStart)
	h.store = store.NewMemory()
	h.events = &events.Recorder{}
	h.sent = &recordingDispatcher{}
	h.items = nil
	h.core = &Core{
		Store:    h.store,
		Clock:    clock.New(h.fake, time.UTC),
		Notifier: notifier.New(nil, h.sent, metrics.Nop()),
		Events:   h.events,
		Metrics:  metrics.Nop(),
	}
	h.scheduler = NewSchedulerService(h.core, SchedulerOptions{})
	h.requests = NewRequestService(h.core, nil)
	h.inventory = NewInventoryService(h.core)
	h.maintenance = NewMaintenanceService(h.core, h.scheduler, 30)

	h.admin = h.addUser("admin", models.RoleAdmin, "")
	h.user = h.addUser("ana", models.RoleUser, "09170000000")
}

func (h *serviceHarness) addUser(username string, role models.Role, phone string) *models.User {
	email := username + "@example.com"
	u := &models.User{
		ID:        uuid.New(),
		Username:  username,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Tester",
		Email:     &email,
		Role:      role,
		IsActive:  true,
	}
	if phone != "" {
		u.Phone = &phone
	}
	h.Require().NoError(h.store.InTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Users().Create(ctx, u)
	}))
	return u
}

func (h *serviceHarness) addItem(kind models.ItemKind, name string, onHand int) uuid.UUID {
	item := &models.Item{ID: uuid.New(), Kind: kind, Name: name}
	h.Require().NoError(h.store.InTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Items().Create(ctx, item); err != nil {
			return err
		}
		return tx.Stock().Create(ctx, &models.Stock{ItemID: item.ID, OnHand: onHand})
	}))
	h.items = append(h.items, item.ID)
	return item.ID
}

func (h *serviceHarness) stock(itemID uuid.UUID) models.Stock {
	var st *models.Stock
	h.Require().NoError(h.store.InTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		st, err = tx.Stock().Get(ctx, itemID)
		return err
	}))
	return *st
}

func (h *serviceHarness) batch(id uuid.UUID) *models.Batch {
	b, err := h.requests.GetBatch(h.ctx, h.admin.ID, id)
	h.Require().NoError(err)
	return b
}

func (h *serviceHarness) inbox(userID uuid.UUID) []string {
	var out []string
	h.Require().NoError(h.store.InTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.Notifications().ListByUser(ctx, userID, 200, 0)
		for _, n := range list {
			out = append(out, n.Message)
		}
		return err
	}))
	return out
}

// day returns today plus n days
func (h *serviceHarness) day(n int) *time.Time {
	d := h.core.Clock.Today().AddDate(0, 0, n)
	return &d
}

func (h *serviceHarness) advanceDays(n int) {
	h.fake.Advance(time.Duration(n) * 24 * time.Hour)
}

func (h *serviceHarness) submit(kind models.RequestKind, lines ...models.RequestLine) *models.Batch {
	b, err := h.requests.SubmitBatch(h.ctx, h.user.ID, kind, "testing", lines)
	h.Require().NoError(err)
	return b
}

func (h *serviceHarness) approveAll(b *models.Batch) {
	for _, it := range b.Items {
		_, err := h.requests.ApproveItem(h.ctx, h.admin.ID, it.ID, it.RequestedQuantity, nil)
		h.Require().NoError(err)
	}
}

func (h *serviceHarness) tick() *models.RunReport {
	report, err := h.scheduler.Tick(h.ctx)
	h.Require().NoError(err)
	h.Require().Empty(report.Errors)
	return report
}

// assertLedger checks that every reserved figure equals the approved
// quantities still holding a reserve
func (h *serviceHarness) assertLedger() {
	held := make(map[uuid.UUID]int)
	h.Require().NoError(h.store.InTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		batches, err := tx.Batches().List(ctx, models.BatchFilter{Limit: 200})
		if err != nil {
			return err
		}
		for _, b := range batches {
			lines, err := tx.RequestItems().ListByBatch(ctx, b.ID)
			if err != nil {
				return err
			}
			for _, it := range lines {
				if engine.HoldsReserve(b.Kind, it.Status) {
					held[it.ItemID] += it.Quantity()
				}
			}
		}
		return nil
	}))
	for _, id := range h.items {
		h.Equal(held[id], h.stock(id).Reserved, "reserved of item %s", id)
	}
}
