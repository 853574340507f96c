package services

import (
	"context"
	"sync"
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

// Procedure names used in run reports
const (
	ProcedureSweep              = "sweep"
	ProcedureUpdateReservations = "update_reservation_status"
	ProcedureCheckOverdue       = "check_overdue"
)

// Run report counters
const (
	CountReservationLinesExpired = "reservation_items_expired"
	CountReservationsActivated   = "reservations_activated"
	CountReservationsCompleted   = "reservations_completed"
	CountBorrowLinesExpired      = "borrow_items_expired"
	CountBorrowLinesOverdue      = "borrow_items_overdue"
	CountOverdueNotified         = "overdue_items_notified"
	CountOverdueSMS              = "overdue_sms_sent"
	CountNearOverdueReminders    = "near_overdue_reminders"
)

const readPathLockKey = "sweep:read-path"

var (
	reservationSweepStatuses = []models.BatchStatus{
		models.BatchPending, models.BatchApproved, models.BatchPartiallyApproved, models.BatchActive,
	}
	borrowSweepStatuses = []models.BatchStatus{
		models.BatchPending, models.BatchApproved, models.BatchPartiallyApproved, models.BatchForClaiming,
		models.BatchActive, models.BatchOverdue,
	}
	overdueStatuses     = []models.BatchStatus{models.BatchOverdue}
	nearOverdueStatuses = []models.BatchStatus{models.BatchActive, models.BatchOverdue}
)

// SchedulerService advances requests by date. Every step is idempotent and
// safe to run from several processes at once.
type SchedulerService interface {
	Tick(ctx context.Context) (*models.RunReport, error)
	TickIfDue(ctx context.Context)
	UpdateReservations(ctx context.Context) (*models.RunReport, error)
	CheckOverdue(ctx context.Context) (*models.RunReport, error)
	ActivateReservation(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)
}

type SchedulerOptions struct {
	NearOverdueFraction float64
	// ReadPathInterval is the minimum gap between opportunistic sweeps
	ReadPathInterval time.Duration
}

type schedulerService struct {
	*Core
	fraction      float64
	readPathEvery time.Duration

	mu           sync.Mutex
	lastReadPath time.Time
}

func NewSchedulerService(core *Core, opts SchedulerOptions) SchedulerService {
	if opts.NearOverdueFraction <= 0 || opts.NearOverdueFraction >= 1 {
		opts.NearOverdueFraction = engine.DefaultNearOverdueFraction
	}
	if opts.ReadPathInterval <= 0 {
		opts.ReadPathInterval = time.Minute
	}
	return &schedulerService{Core: core, fraction: opts.NearOverdueFraction, readPathEvery: opts.ReadPathInterval}
}

// batchStep processes one locked batch. tally collects the counters of the
// batch and is merged into the run report only after commit.
type batchStep func(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem, tally *models.RunReport) error

func (s *schedulerService) Tick(ctx context.Context) (*models.RunReport, error) {
	start := s.Clock.Now()
	report := models.NewRunReport(ProcedureSweep, start)

	s.sweep(ctx, report, "sweep_reservations", models.RequestKindReservation, reservationSweepStatuses, s.reservationStep)
	s.sweep(ctx, report, "sweep_borrows", models.RequestKindBorrow, borrowSweepStatuses, s.borrowStep)
	s.sweep(ctx, report, "sweep_overdue_notices", models.RequestKindBorrow, overdueStatuses, s.overdueNoticeStep)
	s.sweep(ctx, report, "sweep_near_overdue", models.RequestKindBorrow, nearOverdueStatuses, s.nearOverdueStep)

	report.Finish(s.Clock.Now())
	s.Metrics.ObserveSweep(report.CompletionTime.Sub(start))
	s.Metrics.Procedure(ProcedureSweep, ctx.Err())
	logger.Info(ctx).Int("batches", report.Processed).Interface("counts", report.Counts).
		Int("failures", len(report.Errors)).Msg("sweep finished")
	return report, ctx.Err()
}

// TickIfDue sweeps at most once per interval per process, and when a cache is
// configured at most once per interval across processes
func (s *schedulerService) TickIfDue(ctx context.Context) {
	s.mu.Lock()
	now := s.Clock.Now()
	if !s.lastReadPath.IsZero() && now.Sub(s.lastReadPath) < s.readPathEvery {
		s.mu.Unlock()
		return
	}
	s.lastReadPath = now
	s.mu.Unlock()

	if s.Cache != nil {
		acquired, err := s.Cache.TryAcquire(ctx, readPathLockKey, s.readPathEvery)
		if err != nil {
			logger.Warn(ctx).Err(err).Msg("read-path sweep lock unavailable, sweeping anyway")
		} else if !acquired {
			return
		}
	}
	if _, err := s.Tick(ctx); err != nil {
		logger.Warn(ctx).Err(err).Msg("read-path sweep interrupted")
	}
}

func (s *schedulerService) UpdateReservations(ctx context.Context) (*models.RunReport, error) {
	report := models.NewRunReport(ProcedureUpdateReservations, s.Clock.Now())
	s.sweep(ctx, report, "sweep_reservations", models.RequestKindReservation, reservationSweepStatuses, s.reservationStep)
	report.Finish(s.Clock.Now())
	s.Metrics.Procedure(ProcedureUpdateReservations, ctx.Err())
	return report, ctx.Err()
}

func (s *schedulerService) CheckOverdue(ctx context.Context) (*models.RunReport, error) {
	report := models.NewRunReport(ProcedureCheckOverdue, s.Clock.Now())
	s.sweep(ctx, report, "sweep_borrows", models.RequestKindBorrow, borrowSweepStatuses, s.borrowStep)
	s.sweep(ctx, report, "sweep_overdue_notices", models.RequestKindBorrow, overdueStatuses, s.overdueNoticeStep)
	report.Finish(s.Clock.Now())
	s.Metrics.Procedure(ProcedureCheckOverdue, ctx.Err())
	return report, ctx.Err()
}

// sweep visits every batch of kind in statuses, one transaction per batch.
// Batches locked elsewhere are skipped and failures do not stop the sweep.
func (s *schedulerService) sweep(ctx context.Context, report *models.RunReport, op string, kind models.RequestKind, statuses []models.BatchStatus, step batchStep) {
	var ids []uuid.UUID
	err := s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ids, err = tx.Batches().ListIDs(ctx, kind, statuses)
		return err
	})
	if err != nil {
		logger.Error(ctx).Err(err).Str("op", op).Msg("failed to list batches for sweep")
		report.Fail(op, err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		tally := models.NewRunReport(op, report.StartTime)
		err := s.run(ctx, op, nil, func(ctx context.Context, u *unit) error {
			batch, ok, err := u.tx.Batches().LockForSweep(ctx, id, statuses)
			if err != nil || !ok {
				return err
			}
			items, err := u.tx.RequestItems().ListByBatch(ctx, id)
			if err != nil {
				return err
			}
			tally.Processed = 1
			return step(ctx, u, batch, items, tally)
		})
		if err != nil {
			report.Fail(id.String(), err)
			continue
		}
		report.Merge(tally)
	}
}

func (s *schedulerService) transition(ctx context.Context, u *unit, batch *models.Batch, item *models.RequestItem, ev engine.Event) error {
	out, err := engine.Apply(batch.Kind, item, ev, 0)
	if err != nil {
		return err
	}
	if err := u.ledger.Apply(ctx, item.ItemID, out.OnHandDelta, out.ReservedDelta); err != nil {
		return err
	}
	s.Metrics.Transition(string(batch.Kind), string(ev))
	return saveLine(ctx, u, item)
}

func (s *schedulerService) expire(ctx context.Context, u *unit, batch *models.Batch, item *models.RequestItem) error {
	if err := s.transition(ctx, u, batch, item, engine.EventExpire); err != nil {
		return err
	}
	if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.ExpiredMessage(batch, item), nil); err != nil {
		return err
	}
	u.emit(events.ItemExpired, batch.ID, &item.ID, nil)
	return nil
}

func (s *schedulerService) reservationStep(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem, tally *models.RunReport) error {
	changed := false
	for _, it := range items {
		ev, ok := engine.TimedEvent(batch.Kind, it, u.today)
		if !ok || ev != engine.EventExpire {
			continue
		}
		if err := s.expire(ctx, u, batch, it); err != nil {
			return err
		}
		tally.Add(CountReservationLinesExpired, 1)
		changed = true
	}

	if activationDue(batch, items, u.today) {
		if _, err := s.activate(ctx, u, batch, items); err != nil {
			return err
		}
		tally.Add(CountReservationsActivated, 1)
		return nil
	}

	if batch.Status == models.BatchActive && batch.GeneratedBorrowID != nil {
		derived, err := u.tx.Batches().GetByID(ctx, *batch.GeneratedBorrowID)
		if err != nil {
			return err
		}
		if engine.IsFinished(derived.Status) {
			n, err := completeReservation(ctx, u, batch, items)
			if err != nil {
				return err
			}
			if n > 0 {
				tally.Add(CountReservationsCompleted, 1)
				return nil
			}
		}
	}

	if changed {
		return rollUp(ctx, u, batch, items)
	}
	return nil
}

// activationDue reports whether a decided reservation has a line inside its window
func activationDue(batch *models.Batch, items []*models.RequestItem, today time.Time) bool {
	if batch.Kind != models.RequestKindReservation || batch.GeneratedBorrowID != nil {
		return false
	}
	switch engine.RollUp(batch.Kind, items, false) {
	case models.BatchApproved, models.BatchPartiallyApproved:
	default:
		return false
	}
	for _, it := range items {
		if engine.ActivationDue(it, today) {
			return true
		}
	}
	return false
}

// activate turns the approved lines of a reservation into a derived borrow
// batch. The reserve carries over, so the ledger is not touched.
func (s *schedulerService) activate(ctx context.Context, u *unit, reservation *models.Batch, items []*models.RequestItem) (*models.Batch, error) {
	derived := &models.Batch{
		ID:                  uuid.New(),
		Kind:                models.RequestKindBorrow,
		OwnerID:             reservation.OwnerID,
		Purpose:             reservation.Purpose,
		SourceReservationID: &reservation.ID,
		CreatedAt:           u.now,
		UpdatedAt:           u.now,
	}
	var lines []*models.RequestItem
	for _, it := range items {
		if it.Status != models.ItemApproved {
			continue
		}
		q := it.Quantity()
		line := &models.RequestItem{
			ID:                uuid.New(),
			BatchID:           derived.ID,
			ItemID:            it.ItemID,
			ItemName:          it.ItemName,
			RequestedQuantity: q,
			ApprovedQuantity:  &q,
			Status:            models.ItemApproved,
			CreatedAt:         u.now,
			UpdatedAt:         u.now,
		}
		if it.ReturnDate != nil {
			rd := *it.ReturnDate
			line.ReturnDate = &rd
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, common.Conflict("reservation %s has no approved items to activate", reservation.ID)
	}

	derived.Status = engine.RollUp(derived.Kind, lines, true)
	at := u.now
	derived.ApprovedAt = &at
	if err := u.tx.Batches().Create(ctx, derived); err != nil {
		return nil, err
	}
	for _, line := range lines {
		if err := u.tx.RequestItems().Create(ctx, line); err != nil {
			return nil, err
		}
	}
	derived.Items = lines

	for _, it := range items {
		if it.Status != models.ItemApproved {
			continue
		}
		if err := s.transition(ctx, u, reservation, it, engine.EventActivate); err != nil {
			return nil, err
		}
	}
	reservation.GeneratedBorrowID = &derived.ID
	if err := rollUp(ctx, u, reservation, items); err != nil {
		return nil, err
	}

	if err := u.outbox.InApp(ctx, reservation.OwnerID, notifier.ActivatedMessage(derived), nil); err != nil {
		return nil, err
	}
	u.emit(events.ReservationActivated, reservation.ID, nil, map[string]string{"borrow_batch_id": derived.ID.String()})
	if err := u.activity(ctx, models.ActionActivate, "batch", reservation.ID.String(), models.JSONB{
		"borrow_batch_id": derived.ID.String(),
		"lines":           len(lines),
	}); err != nil {
		return nil, err
	}
	logger.Info(ctx).Str("op", "activate_reservation").Str("batch_id", reservation.ID.String()).
		Str("borrow_batch_id", derived.ID.String()).Msg("reservation activated")
	return derived, nil
}

// ActivateReservation activates one reservation whose window has opened
func (s *schedulerService) ActivateReservation(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	var derived *models.Batch
	err := s.run(ctx, "activate_reservation", nil, func(ctx context.Context, u *unit) error {
		batch, items, err := lockedBatch(ctx, u, batchID)
		if err != nil {
			return err
		}
		if batch.Kind != models.RequestKindReservation {
			return common.InvalidRequest("batch %s is not a reservation", batch.ID)
		}
		if batch.GeneratedBorrowID != nil {
			return common.Conflict("reservation %s was already activated", batch.ID)
		}
		if !activationDue(batch, items, u.today) {
			return common.Conflict("reservation %s is %s and not due for activation", batch.ID, batch.Status)
		}
		derived, err = s.activate(ctx, u, batch, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return derived, nil
}

func (s *schedulerService) borrowStep(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem, tally *models.RunReport) error {
	changed := false
	for _, it := range items {
		ev, ok := engine.TimedEvent(batch.Kind, it, u.today)
		if !ok {
			continue
		}
		switch ev {
		case engine.EventExpire:
			if err := s.expire(ctx, u, batch, it); err != nil {
				return err
			}
			tally.Add(CountBorrowLinesExpired, 1)
		case engine.EventMarkOverdue:
			if err := s.transition(ctx, u, batch, it, ev); err != nil {
				return err
			}
			u.emit(events.ItemOverdue, batch.ID, &it.ID, map[string]string{"return_date": formatDate(it.ReturnDate)})
			tally.Add(CountBorrowLinesOverdue, 1)
		default:
			continue
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return rollUp(ctx, u, batch, items)
}

// overdueNoticeStep sends one SMS per batch covering every overdue line not
// yet notified. The flags are set even when the owner has no phone.
func (s *schedulerService) overdueNoticeStep(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem, tally *models.RunReport) error {
	var lines []notifier.OverdueLine
	for _, it := range items {
		if it.Status != models.ItemOverdue || it.OverdueNotified || it.ReturnDate == nil {
			continue
		}
		it.OverdueNotified = true
		if err := saveLine(ctx, u, it); err != nil {
			return err
		}
		if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.OverdueMessage(it), nil); err != nil {
			return err
		}
		lines = append(lines, notifier.OverdueLine{
			Name:        it.ItemName,
			Quantity:    it.Quantity(),
			ReturnDate:  formatDate(it.ReturnDate),
			DaysOverdue: engine.DaysOverdue(*it.ReturnDate, u.today),
		})
	}
	if len(lines) == 0 {
		return nil
	}
	tally.Add(CountOverdueNotified, len(lines))

	owner, err := u.tx.Users().GetByID(ctx, batch.OwnerID)
	if err != nil {
		return err
	}
	if u.outbox.SMS(owner, notifier.OverdueSMS(owner.GreetingName(), lines)) {
		tally.Add(CountOverdueSMS, 1)
	} else {
		logger.Info(ctx).Str("batch_id", batch.ID.String()).Str("user_id", owner.ID.String()).
			Msg("owner has no phone number, overdue SMS skipped")
	}
	return nil
}

// nearOverdueStep reminds owners once when a line is most of the way through
// its borrow window
func (s *schedulerService) nearOverdueStep(ctx context.Context, u *unit, batch *models.Batch, items []*models.RequestItem, tally *models.RunReport) error {
	var owner *models.User
	for _, it := range items {
		if !engine.NearOverdueDue(it, batch.CreatedAt, u.now, u.today, u.loc, s.fraction) {
			continue
		}
		it.NearOverdueNotified = true
		if err := saveLine(ctx, u, it); err != nil {
			return err
		}
		returnDate := formatDate(it.ReturnDate)
		if err := u.outbox.InApp(ctx, batch.OwnerID, notifier.NearOverdueMessage(it, returnDate), nil); err != nil {
			return err
		}
		if owner == nil {
			var err error
			if owner, err = u.tx.Users().GetByID(ctx, batch.OwnerID); err != nil {
				return err
			}
		}
		u.outbox.Email(ctx, owner, notifier.TemplateNearOverdue, templateData(batch, []*models.RequestItem{it}))
		tally.Add(CountNearOverdueReminders, 1)
	}
	return nil
}
