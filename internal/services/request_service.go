package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/common"
	"resourcehive/internal/engine"
	"resourcehive/internal/events"
	"resourcehive/internal/models"
	"resourcehive/internal/notifier"
	"resourcehive/internal/store"
	"resourcehive/pkg/logger"
)

// RequestService is the command surface of the request lifecycle
type RequestService interface {
	SubmitBatch(ctx context.Context, actorID uuid.UUID, kind models.RequestKind, purpose string, lines []models.RequestLine) (*models.Batch, error)
	ApproveItem(ctx context.Context, actorID, requestItemID uuid.UUID, quantity int, remarks *string) (*models.RequestItem, error)
	RejectItem(ctx context.Context, actorID, requestItemID uuid.UUID, remarks *string) (*models.RequestItem, error)
	ClaimBatch(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error)
	ReturnItem(ctx context.Context, actorID, requestItemID uuid.UUID, actualDate *time.Time) (*models.RequestItem, error)
	CancelBatch(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error)

	GetBatch(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error)
	KindOfItem(ctx context.Context, requestItemID uuid.UUID) (models.RequestKind, error)
	ListBatches(ctx context.Context, actorID uuid.UUID, filter models.BatchFilter) ([]*models.Batch, error)
}

// ReadPathTicker runs an opportunistic sweep when one is due
type ReadPathTicker interface {
	TickIfDue(ctx context.Context)
}

type requestService struct {
	*Core
	ticker ReadPathTicker
}

// NewRequestService wires the command API. ticker may be nil.
func NewRequestService(core *Core, ticker ReadPathTicker) RequestService {
	return &requestService{Core: core, ticker: ticker}
}

// requestableKind is the catalog kind a request kind draws from
func requestableKind(kind models.RequestKind) models.ItemKind {
	if kind == models.RequestKindSupply {
		return models.ItemKindSupply
	}
	return models.ItemKindProperty
}

func (s *requestService) SubmitBatch(ctx context.Context, actorID uuid.UUID, kind models.RequestKind, purpose string, lines []models.RequestLine) (*models.Batch, error) {
	if err := engine.ValidateSubmission(kind, lines, s.Clock.Today()); err != nil {
		return nil, err
	}

	var batch *models.Batch
	err := s.run(ctx, "submit_batch", actorRef(actorID), func(ctx context.Context, u *unit) error {
		owner, err := u.tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !owner.IsActive {
			return common.Forbidden("account %s is disabled", owner.Username)
		}

		batch = &models.Batch{
			ID:        uuid.New(),
			Kind:      kind,
			OwnerID:   owner.ID,
			Purpose:   strings.TrimSpace(purpose),
			Status:    models.BatchPending,
			CreatedAt: u.now,
			UpdatedAt: u.now,
		}
		if err := u.tx.Batches().Create(ctx, batch); err != nil {
			return err
		}

		for i, line := range lines {
			item, err := u.tx.Items().GetByID(ctx, line.ItemID)
			if err != nil {
				return err
			}
			if item.Kind != requestableKind(kind) {
				return common.InvalidRequest("line %d: %s is a %s and cannot be requested in a %s request", i+1, item.Name, item.Kind, kind)
			}
			stock, err := u.tx.Stock().Get(ctx, item.ID)
			if err != nil {
				return err
			}
			if !item.Requestable(*stock) {
				return common.InvalidRequest("line %d: %s is not available for requests", i+1, item.Name)
			}

			ri := &models.RequestItem{
				ID:                uuid.New(),
				BatchID:           batch.ID,
				ItemID:            item.ID,
				ItemName:          item.Name,
				RequestedQuantity: line.Quantity,
				Status:            models.ItemPending,
				CreatedAt:         u.now,
				UpdatedAt:         u.now,
			}
			switch kind {
			case models.RequestKindBorrow:
				ri.ReturnDate = line.ReturnDate
			case models.RequestKindReservation:
				ri.NeededDate = line.NeededDate
				ri.ReturnDate = line.ReturnDate
			}
			if err := u.tx.RequestItems().Create(ctx, ri); err != nil {
				return err
			}
			batch.Items = append(batch.Items, ri)
		}

		admins, err := notifyAdmins(ctx, u, notifier.SubmittedMessage(owner, batch, batch.Items))
		if err != nil {
			return err
		}
		data := templateData(batch, batch.Items)
		data.Remarks = batch.Purpose
		for _, admin := range admins {
			u.outbox.Email(ctx, admin, notifier.TemplateBatchSubmitted, data)
		}

		u.emit(events.BatchSubmitted, batch.ID, nil, map[string]string{"kind": string(kind), "lines": strconv.Itoa(len(lines))})
		return u.activity(ctx, models.ActionSubmit, "batch", batch.ID.String(), models.JSONB{"kind": kind, "lines": len(lines)})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "submit_batch").Str("batch_id", batch.ID.String()).Str("actor_id", actorID.String()).Msg("batch submitted")
	return batch, nil
}

func (s *requestService) ApproveItem(ctx context.Context, actorID, requestItemID uuid.UUID, quantity int, remarks *string) (*models.RequestItem, error) {
	var line *models.RequestItem
	var batchID uuid.UUID
	err := s.run(ctx, "approve_item", actorRef(actorID), func(ctx context.Context, u *unit) error {
		if _, err := s.requireAdmin(ctx, u); err != nil {
			return err
		}
		ri, err := u.tx.RequestItems().GetByID(ctx, requestItemID)
		if err != nil {
			return err
		}
		batch, items, err := lockedBatch(ctx, u, ri.BatchID)
		if err != nil {
			return err
		}
		batchID = batch.ID
		line = findLine(items, requestItemID)
		if line == nil {
			return common.NotFound("request item", requestItemID)
		}
		if !engine.Decidable(batch.Status) {
			return common.InvalidRequest("batch %s is %s and no longer open for approval", batch.ID, batch.Status)
		}
		if line.Status != models.ItemPending {
			return common.InvalidRequest("request item %s is %s, only pending items can be approved", line.ID, line.Status)
		}
		if err := engine.ValidateApproval(line, quantity); err != nil {
			return err
		}

		if batch.Kind.Reserves() {
			// The availability check and the reserve share the stock row lock.
			if err := u.ledger.ReserveChecked(ctx, line.ItemID, quantity); err != nil {
				return err
			}
		}
		out, err := engine.Apply(batch.Kind, line, engine.EventApprove, quantity)
		if err != nil {
			return err
		}
		s.Metrics.Transition(string(batch.Kind), string(engine.EventApprove))
		line.Remarks = remarks
		if err := saveLine(ctx, u, line); err != nil {
			return err
		}
		if err := rollUp(ctx, u, batch, items); err != nil {
			return err
		}

		if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.ApprovedMessage(batch, line), remarks); err != nil {
			return err
		}
		owner, err := u.tx.Users().GetByID(ctx, batch.OwnerID)
		if err != nil {
			return err
		}
		data := templateData(batch, []*models.RequestItem{line})
		data.Remarks = common.SafeString(remarks)
		u.outbox.Email(ctx, owner, notifier.TemplateItemApproved, data)

		u.emit(events.ItemApproved, batch.ID, &line.ID, map[string]string{
			"quantity": strconv.Itoa(quantity),
			"reserved": strconv.Itoa(out.ReservedDelta),
		})
		return u.activity(ctx, models.ActionApprove, "request_item", line.ID.String(), models.JSONB{"quantity": quantity})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "approve_item").Str("batch_id", batchID.String()).Str("actor_id", actorID.String()).
		Int("quantity", quantity).Msg("request item approved")
	return line, nil
}

func (s *requestService) RejectItem(ctx context.Context, actorID, requestItemID uuid.UUID, remarks *string) (*models.RequestItem, error) {
	var line *models.RequestItem
	var batchID uuid.UUID
	err := s.run(ctx, "reject_item", actorRef(actorID), func(ctx context.Context, u *unit) error {
		if _, err := s.requireAdmin(ctx, u); err != nil {
			return err
		}
		ri, err := u.tx.RequestItems().GetByID(ctx, requestItemID)
		if err != nil {
			return err
		}
		batch, items, err := lockedBatch(ctx, u, ri.BatchID)
		if err != nil {
			return err
		}
		batchID = batch.ID
		line = findLine(items, requestItemID)
		if line == nil {
			return common.NotFound("request item", requestItemID)
		}

		out, err := engine.Apply(batch.Kind, line, engine.EventReject, 0)
		if err != nil {
			return err
		}
		if err := u.ledger.Apply(ctx, line.ItemID, out.OnHandDelta, out.ReservedDelta); err != nil {
			return err
		}
		s.Metrics.Transition(string(batch.Kind), string(engine.EventReject))
		line.Remarks = remarks
		if err := saveLine(ctx, u, line); err != nil {
			return err
		}
		if err := rollUp(ctx, u, batch, items); err != nil {
			return err
		}

		if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.RejectedMessage(batch, line), remarks); err != nil {
			return err
		}
		owner, err := u.tx.Users().GetByID(ctx, batch.OwnerID)
		if err != nil {
			return err
		}
		data := templateData(batch, []*models.RequestItem{line})
		data.Remarks = common.SafeString(remarks)
		u.outbox.Email(ctx, owner, notifier.TemplateItemRejected, data)

		u.emit(events.ItemRejected, batch.ID, &line.ID, map[string]string{"released": strconv.Itoa(-out.ReservedDelta)})
		return u.activity(ctx, models.ActionReject, "request_item", line.ID.String(), models.JSONB{"remarks": common.SafeString(remarks)})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "reject_item").Str("batch_id", batchID.String()).Str("actor_id", actorID.String()).Msg("request item rejected")
	return line, nil
}

func (s *requestService) ClaimBatch(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error) {
	var batch *models.Batch
	err := s.run(ctx, "claim_batch", actorRef(actorID), func(ctx context.Context, u *unit) error {
		if _, err := s.requireAdmin(ctx, u); err != nil {
			return err
		}
		var items []*models.RequestItem
		var err error
		batch, items, err = lockedBatch(ctx, u, batchID)
		if err != nil {
			return err
		}
		if batch.Kind == models.RequestKindReservation {
			return common.Conflict("reservation %s is claimed through its borrow request", batch.ID)
		}
		if !engine.Claimable(batch.Status) {
			return common.Conflict("batch %s is %s and cannot be claimed", batch.ID, batch.Status)
		}

		var claimed []*models.RequestItem
		for _, it := range items {
			if engine.IsTerminal(it.Status) {
				continue
			}
			if it.Status != models.ItemApproved {
				return common.Conflict("request item %s is %s, every open item must be approved before claiming", it.ID, it.Status)
			}
			claimed = append(claimed, it)
		}
		if len(claimed) == 0 {
			return common.Conflict("batch %s has nothing to claim", batch.ID)
		}

		ids := make([]uuid.UUID, len(claimed))
		for i, it := range claimed {
			ids[i] = it.ItemID
		}
		if err := u.ledger.Lock(ctx, ids...); err != nil {
			return err
		}
		for _, it := range claimed {
			out, err := engine.Apply(batch.Kind, it, engine.EventClaim, 0)
			if err != nil {
				return err
			}
			if err := u.ledger.Apply(ctx, it.ItemID, out.OnHandDelta, out.ReservedDelta); err != nil {
				return err
			}
			s.Metrics.Transition(string(batch.Kind), string(engine.EventClaim))
			at := u.now
			it.ClaimedAt = &at
			if err := saveLine(ctx, u, it); err != nil {
				return err
			}
		}
		at := u.now
		batch.ClaimedAt = &at
		if err := rollUp(ctx, u, batch, items); err != nil {
			return err
		}
		batch.Items = items

		if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.ClaimedMessage(batch, claimed), nil); err != nil {
			return err
		}
		if batch.Kind == models.RequestKindSupply {
			owner, err := u.tx.Users().GetByID(ctx, batch.OwnerID)
			if err != nil {
				return err
			}
			data := templateData(batch, claimed)
			data.Date = u.today.Format(time.DateOnly)
			u.outbox.Email(ctx, owner, notifier.TemplateSupplyReleased, data)
		}

		u.emit(events.BatchClaimed, batch.ID, nil, map[string]string{"lines": strconv.Itoa(len(claimed))})
		return u.activity(ctx, models.ActionClaim, "batch", batch.ID.String(), models.JSONB{"lines": len(claimed)})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "claim_batch").Str("batch_id", batchID.String()).Str("actor_id", actorID.String()).Msg("batch claimed")
	return batch, nil
}

func (s *requestService) ReturnItem(ctx context.Context, actorID, requestItemID uuid.UUID, actualDate *time.Time) (*models.RequestItem, error) {
	var line *models.RequestItem
	var batchID uuid.UUID
	err := s.run(ctx, "return_item", actorRef(actorID), func(ctx context.Context, u *unit) error {
		if _, err := s.requireAdmin(ctx, u); err != nil {
			return err
		}
		ri, err := u.tx.RequestItems().GetByID(ctx, requestItemID)
		if err != nil {
			return err
		}
		batch, items, err := lockedBatch(ctx, u, ri.BatchID)
		if err != nil {
			return err
		}
		batchID = batch.ID
		line = findLine(items, requestItemID)
		if line == nil {
			return common.NotFound("request item", requestItemID)
		}
		if batch.Kind != models.RequestKindBorrow {
			return common.Conflict("only borrowed items are returned, %s is a %s line", line.ID, batch.Kind)
		}
		if line.Quantity() < 1 {
			return common.Conflict("request item %s has no approved quantity", line.ID)
		}

		out, err := engine.Apply(batch.Kind, line, engine.EventReturn, 0)
		if err != nil {
			return err
		}
		if err := u.ledger.Apply(ctx, line.ItemID, out.OnHandDelta, out.ReservedDelta); err != nil {
			return err
		}
		s.Metrics.Transition(string(batch.Kind), string(engine.EventReturn))
		returned := u.today
		if actualDate != nil {
			returned = *actualDate
		}
		line.ActualReturnDate = &returned
		if err := saveLine(ctx, u, line); err != nil {
			return err
		}
		if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.ReturnedMessage(line), nil); err != nil {
			return err
		}

		if err := s.completeReturnedBatch(ctx, u, batch, items); err != nil {
			return err
		}

		u.emit(events.ItemReturned, batch.ID, &line.ID, map[string]string{"quantity": strconv.Itoa(line.Quantity())})
		return u.activity(ctx, models.ActionReturn, "request_item", line.ID.String(), models.JSONB{
			"quantity":           line.Quantity(),
			"actual_return_date": returned.Format(time.DateOnly),
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "return_item").Str("batch_id", batchID.String()).Str("actor_id", actorID.String()).Msg("request item returned")
	return line, nil
}

// completeReturnedBatch rolls the batch up and, once every line is back,
// completes the returned lines and the reservation the batch came from.
func (s *requestService) completeReturnedBatch(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem) error {
	if engine.RollUp(batch.Kind, items, batch.Derived()) != models.BatchReturned {
		return rollUp(ctx, u, batch, items)
	}

	for _, it := range items {
		if it.Status != models.ItemReturned {
			continue
		}
		if _, err := engine.Apply(batch.Kind, it, engine.EventComplete, 0); err != nil {
			return err
		}
		if err := saveLine(ctx, u, it); err != nil {
			return err
		}
	}
	if err := rollUp(ctx, u, batch, items); err != nil {
		return err
	}

	owner, err := u.tx.Users().GetByID(ctx, batch.OwnerID)
	if err != nil {
		return err
	}
	data := templateData(batch, items)
	data.Date = u.today.Format(time.DateOnly)
	u.outbox.Email(ctx, owner, notifier.TemplateBatchCompleted, data)

	if batch.SourceReservationID == nil {
		return nil
	}
	reservation, resItems, err := lockedBatch(ctx, u, *batch.SourceReservationID)
	if err != nil {
		return err
	}
	_, err = completeReservation(ctx, u, reservation, resItems)
	return err
}

// completeReservation moves the active lines of a reservation to completed
func completeReservation(ctx context.Context, u *unit, reservation *models.Batch, items []*models.RequestItem) (int, error) {
	n := 0
	for _, it := range items {
		if it.Status != models.ItemActive {
			continue
		}
		if _, err := engine.Apply(reservation.Kind, it, engine.EventComplete, 0); err != nil {
			return n, err
		}
		if err := saveLine(ctx, u, it); err != nil {
			return n, err
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := rollUp(ctx, u, reservation, items); err != nil {
		return n, err
	}
	return n, u.activity(ctx, models.ActionReturn, "batch", reservation.ID.String(), models.JSONB{"completed_lines": n})
}

func (s *requestService) CancelBatch(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error) {
	var batch *models.Batch
	err := s.run(ctx, "cancel_batch", actorRef(actorID), func(ctx context.Context, u *unit) error {
		var items []*models.RequestItem
		var err error
		batch, items, err = lockedBatch(ctx, u, batchID)
		if err != nil {
			return err
		}
		if batch.OwnerID != actorID {
			return common.Forbidden("only the owner can cancel batch %s", batch.ID)
		}
		if batch.Status != models.BatchPending {
			return common.Conflict("batch %s is %s, only pending batches can be cancelled", batch.ID, batch.Status)
		}
		for _, it := range items {
			if it.Status != models.ItemPending {
				return common.Conflict("batch %s already has decided items", batch.ID)
			}
		}

		for _, it := range items {
			if _, err := engine.Apply(batch.Kind, it, engine.EventCancel, 0); err != nil {
				return err
			}
			s.Metrics.Transition(string(batch.Kind), string(engine.EventCancel))
			if err := saveLine(ctx, u, it); err != nil {
				return err
			}
		}
		if err := rollUp(ctx, u, batch, items); err != nil {
			return err
		}
		batch.Items = items

		owner, err := u.tx.Users().GetByID(ctx, batch.OwnerID)
		if err != nil {
			return err
		}
		if _, err := notifyAdmins(ctx, u, notifier.CancelledMessage(owner, batch)); err != nil {
			return err
		}
		u.emit(events.BatchCancelled, batch.ID, nil, nil)
		return u.activity(ctx, models.ActionCancel, "batch", batch.ID.String(), nil)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "cancel_batch").Str("batch_id", batchID.String()).Str("actor_id", actorID.String()).Msg("batch cancelled")
	return batch, nil
}

func (s *requestService) GetBatch(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error) {
	var batch *models.Batch
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		batch, err = tx.Batches().GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.OwnerID != actorID {
			actor, err := tx.Users().GetByID(ctx, actorID)
			if err != nil {
				return err
			}
			if !actor.IsAdmin() {
				return common.Forbidden("batch %s belongs to another user", batch.ID)
			}
		}
		batch.Items, err = tx.RequestItems().ListByBatch(ctx, batch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// KindOfItem returns the kind of the batch a request item belongs to
func (s *requestService) KindOfItem(ctx context.Context, requestItemID uuid.UUID) (models.RequestKind, error) {
	var kind models.RequestKind
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ri, err := tx.RequestItems().GetByID(ctx, requestItemID)
		if err != nil {
			return err
		}
		batch, err := tx.Batches().GetByID(ctx, ri.BatchID)
		if err != nil {
			return err
		}
		kind = batch.Kind
		return nil
	})
	return kind, err
}

// ListBatches shows users their own batches and admins everything. Listing
// borrow requests gives the scheduler a chance to catch up first.
func (s *requestService) ListBatches(ctx context.Context, actorID uuid.UUID, filter models.BatchFilter) ([]*models.Batch, error) {
	if s.ticker != nil && (filter.Kind == nil || *filter.Kind == models.RequestKindBorrow) {
		s.ticker.TickIfDue(ctx)
	}

	var batches []*models.Batch
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() {
			filter.OwnerID = &actor.ID
		}
		batches, err = tx.Batches().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}
