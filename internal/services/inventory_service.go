package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/internal/store"
	"resourcehive/pkg/logger"
)

// snapshotTTL bounds how stale a catalog availability figure can be when an
// invalidation is lost
const snapshotTTL = 5 * time.Minute

type InventoryService interface {
	ListCatalog(ctx context.Context, filter models.ItemFilter) ([]*models.CatalogEntry, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.CatalogEntry, error)
	AdjustStock(ctx context.Context, actorID, itemID uuid.UUID, delta int, reason string) (models.Snapshot, error)
	RemoveBadStock(ctx context.Context, actorID, itemID uuid.UUID, quantity int, reason string) (models.Snapshot, error)
}

type inventoryService struct {
	*Core
}

func NewInventoryService(core *Core) InventoryService {
	return &inventoryService{Core: core}
}

// ListCatalog returns requestable items with availability, served from the
// cache where possible
func (s *inventoryService) ListCatalog(ctx context.Context, filter models.ItemFilter) ([]*models.CatalogEntry, error) {
	filter.Query = common.SanitizeSearchQuery(filter.Query)

	var entries []*models.CatalogEntry
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		items, err := tx.Items().List(ctx, filter)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}

		snapshots := s.cachedSnapshots(ctx, ids)
		var missing []uuid.UUID
		for _, id := range ids {
			if _, ok := snapshots[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			rows, err := tx.Stock().GetMany(ctx, missing)
			if err != nil {
				return err
			}
			fresh := make([]models.Snapshot, 0, len(rows))
			for id, st := range rows {
				snap := st.Snapshot()
				snapshots[id] = snap
				fresh = append(fresh, snap)
			}
			s.cacheSnapshots(ctx, fresh)
		}

		entries = make([]*models.CatalogEntry, 0, len(items))
		for _, it := range items {
			entries = append(entries, &models.CatalogEntry{Item: it, Snapshot: snapshots[it.ID]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *inventoryService) cachedSnapshots(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]models.Snapshot {
	if s.Cache == nil || len(ids) == 0 {
		return make(map[uuid.UUID]models.Snapshot, len(ids))
	}
	cached, err := s.Cache.GetSnapshots(ctx, ids)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("availability cache read failed")
		return make(map[uuid.UUID]models.Snapshot, len(ids))
	}
	return cached
}

func (s *inventoryService) cacheSnapshots(ctx context.Context, snapshots []models.Snapshot) {
	if s.Cache == nil || len(snapshots) == 0 {
		return
	}
	if err := s.Cache.SetSnapshots(ctx, snapshots, snapshotTTL); err != nil {
		logger.Warn(ctx).Err(err).Msg("availability cache write failed")
	}
}

// GetItem reads the ledger row directly
func (s *inventoryService) GetItem(ctx context.Context, itemID uuid.UUID) (*models.CatalogEntry, error) {
	var entry *models.CatalogEntry
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		st, err := tx.Stock().Get(ctx, itemID)
		if err != nil {
			return err
		}
		entry = &models.CatalogEntry{Item: item, Snapshot: st.Snapshot()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AdjustStock applies an operator correction to on hand. Reserved is left
// alone, so available may clamp to zero.
func (s *inventoryService) AdjustStock(ctx context.Context, actorID, itemID uuid.UUID, delta int, reason string) (models.Snapshot, error) {
	if delta == 0 {
		return models.Snapshot{}, common.InvalidRequest("adjustment must not be zero")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Snapshot{}, common.InvalidRequest("a reason is required for stock adjustments")
	}

	var snap models.Snapshot
	err := s.run(ctx, "adjust_stock", actorRef(actorID), func(ctx context.Context, u *unit) error {
		if _, err := s.requireAdmin(ctx, u); err != nil {
			return err
		}
		if _, err := u.tx.Items().GetByID(ctx, itemID); err != nil {
			return err
		}
		var err error
		snap, err = u.ledger.Adjust(ctx, itemID, delta)
		if err != nil {
			return err
		}
		return u.activity(ctx, models.ActionAdjustStock, "item", itemID.String(), models.JSONB{
			"delta":   delta,
			"reason":  reason,
			"on_hand": snap.OnHand,
		})
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	logger.Info(ctx).Str("op", "adjust_stock").Str("item_id", itemID.String()).Str("actor_id", actorID.String()).
		Int("delta", delta).Int("on_hand", snap.OnHand).Msg("stock adjusted")
	return snap, nil
}

// RemoveBadStock writes off spoiled or damaged supplies
func (s *inventoryService) RemoveBadStock(ctx context.Context, actorID, itemID uuid.UUID, quantity int, reason string) (models.Snapshot, error) {
	if quantity < 1 {
		return models.Snapshot{}, common.InvalidRequest("quantity to remove must be at least 1")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Snapshot{}, common.InvalidRequest("a reason is required to remove bad stock")
	}

	var snap models.Snapshot
	err := s.run(ctx, "remove_bad_stock", actorRef(actorID), func(ctx context.Context, u *unit) error {
		if _, err := s.requireAdmin(ctx, u); err != nil {
			return err
		}
		item, err := u.tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Kind != models.ItemKindSupply {
			return common.InvalidRequest("%s is not a supply", item.Name)
		}
		snap, err = u.ledger.Adjust(ctx, itemID, -quantity)
		if err != nil {
			return err
		}
		return u.activity(ctx, models.ActionRemoveBadStock, "item", itemID.String(), models.JSONB{
			"quantity": quantity,
			"reason":   reason,
			"on_hand":  snap.OnHand,
		})
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	logger.Info(ctx).Str("op", "remove_bad_stock").Str("item_id", itemID.String()).Str("actor_id", actorID.String()).
		Int("quantity", quantity).Msg("bad stock removed")
	return snap, nil
}
