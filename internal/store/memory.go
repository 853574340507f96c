package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

// Memory is an in-process Store. Transactions are serialized and see a
// private copy of the state that replaces the shared one on success.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

type memState struct {
	users         map[uuid.UUID]models.User
	items         map[uuid.UUID]models.Item
	stock         map[uuid.UUID]models.Stock
	batches       map[uuid.UUID]models.Batch
	requestItems  map[uuid.UUID]models.RequestItem
	notifications []models.Notification
	permissions   map[string]models.Permission
	grants        map[uuid.UUID]map[uuid.UUID]bool
	activity      []models.ActivityLog
}

func newMemState() *memState {
	return &memState{
		users:        make(map[uuid.UUID]models.User),
		items:        make(map[uuid.UUID]models.Item),
		stock:        make(map[uuid.UUID]models.Stock),
		batches:      make(map[uuid.UUID]models.Batch),
		requestItems: make(map[uuid.UUID]models.RequestItem),
		permissions:  make(map[string]models.Permission),
		grants:       make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	c := &memState{
		users:         copyMap(s.users),
		items:         copyMap(s.items),
		stock:         copyMap(s.stock),
		batches:       copyMap(s.batches),
		requestItems:  copyMap(s.requestItems),
		notifications: append([]models.Notification(nil), s.notifications...),
		permissions:   copyMap(s.permissions),
		grants:        make(map[uuid.UUID]map[uuid.UUID]bool, len(s.grants)),
		activity:      append([]models.ActivityLog(nil), s.activity...),
	}
	for k, v := range s.grants {
		c.grants[k] = copyMap(v)
	}
	return c
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return common.Retryable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(ctx, working.repos()); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (s *memState) repos() *repoSet {
	return &repoSet{
		users:         &memUsers{s},
		items:         &memItems{s},
		stock:         &memStock{s},
		batches:       &memBatches{s},
		requestItems:  &memRequestItems{s},
		notifications: &memNotifications{s},
		permissions:   &memPermissions{s},
		activity:      &memActivity{s},
	}
}

func page[T any](in []T, limit, offset int) []T {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset >= len(in) {
		return nil
	}
	end := offset + limit
	if end > len(in) {
		end = len(in)
	}
	return in[offset:end]
}

type memUsers struct{ s *memState }

func (r *memUsers) Create(_ context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return common.Conflict("username %q already exists", u.Username)
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.NotFound("user", id)
	}
	return &u, nil
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, common.NotFound("user", username)
}

func (r *memUsers) ListAdmins(context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.s.users {
		if u.Role == models.RoleAdmin && u.IsActive {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memUsers) ListDueForReactivation(_ context.Context, now time.Time) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.s.users {
		if !u.IsActive && u.AutoEnableAt != nil && !u.AutoEnableAt.After(now) {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AutoEnableAt.Before(*out[j].AutoEnableAt) })
	return out, nil
}

func (r *memUsers) Reactivate(_ context.Context, id uuid.UUID, at time.Time) error {
	u, ok := r.s.users[id]
	if !ok {
		return common.NotFound("user", id)
	}
	u.IsActive = true
	u.AutoEnableAt = nil
	u.UpdatedAt = at
	r.s.users[id] = u
	return nil
}

type memItems struct{ s *memState }

func (r *memItems) Create(_ context.Context, it *models.Item) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	r.s.items[it.ID] = *it
	return nil
}

func (r *memItems) GetByID(_ context.Context, id uuid.UUID) (*models.Item, error) {
	it, ok := r.s.items[id]
	if !ok {
		return nil, common.NotFound("item", id)
	}
	return &it, nil
}

func (r *memItems) GetByName(_ context.Context, kind models.ItemKind, name string) (*models.Item, error) {
	for _, it := range r.s.items {
		if it.Kind == kind && it.Name == name {
			return &it, nil
		}
	}
	return nil, common.NotFound("item", name)
}

func (r *memItems) Update(_ context.Context, it *models.Item) error {
	if _, ok := r.s.items[it.ID]; !ok {
		return common.NotFound("item", it.ID)
	}
	it.UpdatedAt = time.Now().UTC()
	r.s.items[it.ID] = *it
	return nil
}

func (r *memItems) List(_ context.Context, f models.ItemFilter) ([]*models.Item, error) {
	var out []*models.Item
	q := strings.ToLower(strings.TrimSpace(f.Query))
	for _, it := range r.s.items {
		if f.Kind != nil && it.Kind != *f.Kind {
			continue
		}
		if f.Category != nil && (it.Category == nil || *it.Category != *f.Category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) {
			continue
		}
		if !f.IncludeHidden && !it.Requestable(r.s.stock[it.ID]) {
			continue
		}
		it := it
		out = append(out, &it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, f.Limit, f.Offset), nil
}

func (r *memItems) ListExpiringSupplies(_ context.Context, cutoff time.Time) ([]*models.ExpiringSupply, error) {
	var out []*models.ExpiringSupply
	for _, it := range r.s.items {
		if it.Kind != models.ItemKindSupply || it.Archived || it.ExpirationDate == nil || it.ExpirationDate.After(cutoff) {
			continue
		}
		it := it
		out = append(out, &models.ExpiringSupply{Item: &it, OnHand: r.s.stock[it.ID].OnHand})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Item.ExpirationDate.Equal(*out[j].Item.ExpirationDate) {
			return out[i].Item.ExpirationDate.Before(*out[j].Item.ExpirationDate)
		}
		return out[i].Item.Name < out[j].Item.Name
	})
	return out, nil
}

func (r *memItems) ListLowStock(context.Context) ([]*models.LowStockSupply, error) {
	var out []*models.LowStockSupply
	for _, it := range r.s.items {
		st := r.s.stock[it.ID]
		if it.Kind != models.ItemKindSupply || it.Archived || st.MinimumThreshold == nil || st.OnHand > *st.MinimumThreshold {
			continue
		}
		it := it
		out = append(out, &models.LowStockSupply{Item: &it, OnHand: st.OnHand, MinimumThreshold: *st.MinimumThreshold})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.Name < out[j].Item.Name })
	return out, nil
}

type memStock struct{ s *memState }

func (r *memStock) Create(_ context.Context, st *models.Stock) error {
	if _, ok := r.s.stock[st.ItemID]; ok {
		return common.Conflict("stock for item %s already exists", st.ItemID)
	}
	st.UpdatedAt = time.Now().UTC()
	r.s.stock[st.ItemID] = *st
	return nil
}

func (r *memStock) Get(_ context.Context, itemID uuid.UUID) (*models.Stock, error) {
	st, ok := r.s.stock[itemID]
	if !ok {
		return nil, common.NotFound("stock", itemID)
	}
	return &st, nil
}

func (r *memStock) GetForUpdate(ctx context.Context, itemID uuid.UUID) (*models.Stock, error) {
	return r.Get(ctx, itemID)
}

func (r *memStock) GetMany(_ context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]models.Stock, error) {
	out := make(map[uuid.UUID]models.Stock, len(itemIDs))
	for _, id := range itemIDs {
		if st, ok := r.s.stock[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (r *memStock) Update(_ context.Context, st *models.Stock) error {
	if _, ok := r.s.stock[st.ItemID]; !ok {
		return common.NotFound("stock", st.ItemID)
	}
	st.UpdatedAt = time.Now().UTC()
	r.s.stock[st.ItemID] = *st
	return nil
}

type memBatches struct{ s *memState }

func (r *memBatches) Create(_ context.Context, b *models.Batch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	stored := *b
	stored.Items = nil
	r.s.batches[b.ID] = stored
	return nil
}

func (r *memBatches) GetByID(_ context.Context, id uuid.UUID) (*models.Batch, error) {
	b, ok := r.s.batches[id]
	if !ok {
		return nil, common.NotFound("batch", id)
	}
	return &b, nil
}

func (r *memBatches) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r *memBatches) LockForSweep(_ context.Context, id uuid.UUID, statuses []models.BatchStatus) (*models.Batch, bool, error) {
	b, ok := r.s.batches[id]
	if !ok {
		return nil, false, nil
	}
	for _, st := range statuses {
		if b.Status == st {
			return &b, true, nil
		}
	}
	return nil, false, nil
}

func (r *memBatches) Update(_ context.Context, b *models.Batch) error {
	if _, ok := r.s.batches[b.ID]; !ok {
		return common.NotFound("batch", b.ID)
	}
	stored := *b
	stored.Items = nil
	r.s.batches[b.ID] = stored
	return nil
}

func (r *memBatches) sorted() []*models.Batch {
	out := make([]*models.Batch, 0, len(r.s.batches))
	for _, b := range r.s.batches {
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memBatches) List(_ context.Context, f models.BatchFilter) ([]*models.Batch, error) {
	all := r.sorted()
	var out []*models.Batch
	for i := len(all) - 1; i >= 0; i-- {
		b := all[i]
		if f.OwnerID != nil && b.OwnerID != *f.OwnerID {
			continue
		}
		if f.Kind != nil && b.Kind != *f.Kind {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		out = append(out, b)
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r *memBatches) ListIDs(_ context.Context, kind models.RequestKind, statuses []models.BatchStatus) ([]uuid.UUID, error) {
	want := make(map[models.BatchStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var ids []uuid.UUID
	for _, b := range r.sorted() {
		if b.Kind == kind && want[b.Status] {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

type memRequestItems struct{ s *memState }

func (r *memRequestItems) withName(ri models.RequestItem) *models.RequestItem {
	ri.ItemName = r.s.items[ri.ItemID].Name
	return &ri
}

func (r *memRequestItems) Create(_ context.Context, ri *models.RequestItem) error {
	if ri.ID == uuid.Nil {
		ri.ID = uuid.New()
	}
	if _, ok := r.s.items[ri.ItemID]; !ok {
		return common.NotFound("item", ri.ItemID)
	}
	if _, ok := r.s.batches[ri.BatchID]; !ok {
		return common.NotFound("batch", ri.BatchID)
	}
	r.s.requestItems[ri.ID] = *ri
	return nil
}

func (r *memRequestItems) GetByID(_ context.Context, id uuid.UUID) (*models.RequestItem, error) {
	ri, ok := r.s.requestItems[id]
	if !ok {
		return nil, common.NotFound("request item", id)
	}
	return r.withName(ri), nil
}

func (r *memRequestItems) ListByBatch(_ context.Context, batchID uuid.UUID) ([]*models.RequestItem, error) {
	var out []*models.RequestItem
	for _, ri := range r.s.requestItems {
		if ri.BatchID == batchID {
			out = append(out, r.withName(ri))
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].ItemID.String(), out[j].ItemID.String()) < 0 })
	return out, nil
}

func (r *memRequestItems) Update(_ context.Context, ri *models.RequestItem) error {
	if _, ok := r.s.requestItems[ri.ID]; !ok {
		return common.NotFound("request item", ri.ID)
	}
	stored := *ri
	stored.ItemName = ""
	r.s.requestItems[ri.ID] = stored
	return nil
}

type memNotifications struct{ s *memState }

func (r *memNotifications) Create(_ context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *memNotifications) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.Notification, error) {
	var out []*models.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			out = append(out, &n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *memNotifications) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, x := range r.s.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *memNotifications) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id && r.s.notifications[i].UserID == userID {
			r.s.notifications[i].IsRead = true
			return nil
		}
	}
	return common.NotFound("notification", id)
}

func (r *memNotifications) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for i := range r.s.notifications {
		if r.s.notifications[i].UserID == userID && !r.s.notifications[i].IsRead {
			r.s.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *memNotifications) ExistsSince(_ context.Context, userID uuid.UUID, message string, since time.Time) (bool, error) {
	for _, n := range r.s.notifications {
		if n.UserID == userID && n.Message == message && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type memPermissions struct{ s *memState }

func (r *memPermissions) Upsert(_ context.Context, p *models.Permission) (bool, error) {
	if existing, ok := r.s.permissions[p.Codename]; ok {
		existing.Name = p.Name
		existing.Description = p.Description
		r.s.permissions[p.Codename] = existing
		p.ID = existing.ID
		return false, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	r.s.permissions[p.Codename] = *p
	return true, nil
}

func (r *memPermissions) List(context.Context) ([]*models.Permission, error) {
	out := make([]*models.Permission, 0, len(r.s.permissions))
	for _, p := range r.s.permissions {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codename < out[j].Codename })
	return out, nil
}

func (r *memPermissions) Grant(_ context.Context, userID, permissionID uuid.UUID) error {
	if r.s.grants[userID] == nil {
		r.s.grants[userID] = make(map[uuid.UUID]bool)
	}
	r.s.grants[userID][permissionID] = true
	return nil
}

func (r *memPermissions) CountGrants(_ context.Context, userID uuid.UUID) (int, error) {
	return len(r.s.grants[userID]), nil
}

func (r *memPermissions) HasPermission(_ context.Context, userID uuid.UUID, codename string) (bool, error) {
	p, ok := r.s.permissions[codename]
	if !ok {
		return false, nil
	}
	return r.s.grants[userID][p.ID], nil
}

type memActivity struct{ s *memState }

func (r *memActivity) Create(_ context.Context, e *models.ActivityLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.s.activity = append(r.s.activity, *e)
	return nil
}

func (r *memActivity) ListByEntity(_ context.Context, entity, entityID string, limit, offset int) ([]*models.ActivityLog, error) {
	var out []*models.ActivityLog
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		if e := r.s.activity[i]; e.Entity == entity && e.EntityID == entityID {
			out = append(out, &e)
		}
	}
	return page(out, limit, offset), nil
}
