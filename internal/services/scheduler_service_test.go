package services

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"resourcehive/internal/caching"
	"resourcehive/internal/common"
	"resourcehive/internal/events"
	"resourcehive/internal/models"
	"resourcehive/internal/notifier"
)

type SchedulerServiceTestSuite struct {
	serviceHarness
}

func TestSchedulerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerServiceTestSuite))
}

// A reservation turns into a borrow batch on its needed date and completes
// when that borrow is returned.
func (s *SchedulerServiceTestSuite) TestReservationActivatesIntoBorrow() {
	p := s.addItem(models.ItemKindProperty, "Projector", 5)
	q := s.addItem(models.ItemKindProperty, "Speaker", 5)
	r := s.submit(models.RequestKindReservation,
		models.RequestLine{ItemID: p, Quantity: 2, NeededDate: s.day(3), ReturnDate: s.day(7)},
		models.RequestLine{ItemID: q, Quantity: 1, NeededDate: s.day(3), ReturnDate: s.day(7)},
	)
	returnDate := *s.day(7)
	s.approveAll(r)
	s.Equal(2, s.stock(p).Reserved)
	s.Equal(1, s.stock(q).Reserved)

	s.advanceDays(3)
	report := s.tick()

	s.Equal(1, report.Counts[CountReservationsActivated])
	res := s.batch(r.ID)
	s.Equal(models.BatchActive, res.Status)
	s.Require().NotNil(res.GeneratedBorrowID)
	for _, it := range res.Items {
		s.Equal(models.ItemActive, it.Status)
	}
	derived := s.batch(*res.GeneratedBorrowID)
	s.Equal(models.RequestKindBorrow, derived.Kind)
	s.Equal(models.BatchForClaiming, derived.Status)
	s.Equal(r.ID, *derived.SourceReservationID)
	s.Require().Len(derived.Items, 2)
	want := map[string]int{"Projector": 2, "Speaker": 1}
	for _, it := range derived.Items {
		s.Equal(models.ItemApproved, it.Status)
		s.Equal(want[it.ItemName], it.Quantity())
		s.Equal(returnDate, *it.ReturnDate)
	}
	s.Equal(2, s.stock(p).Reserved)
	s.Equal(1, s.stock(q).Reserved)
	s.Contains(s.events.Types(), events.ReservationActivated)
	s.Contains(s.inbox(s.user.ID), notifier.ActivatedMessage(derived))
	s.assertLedger()

	s.advanceDays(1)
	claimed, err := s.requests.ClaimBatch(s.ctx, s.admin.ID, derived.ID)
	s.Require().NoError(err)
	s.Equal(models.BatchActive, claimed.Status)
	s.Equal(models.Stock{ItemID: p, OnHand: 3}, stripTime(s.stock(p)))
	s.Equal(models.Stock{ItemID: q, OnHand: 4}, stripTime(s.stock(q)))

	s.advanceDays(2)
	for _, it := range derived.Items {
		_, err := s.requests.ReturnItem(s.ctx, s.admin.ID, it.ID, nil)
		s.Require().NoError(err)
	}

	s.Equal(models.Stock{ItemID: p, OnHand: 5}, stripTime(s.stock(p)))
	s.Equal(models.Stock{ItemID: q, OnHand: 5}, stripTime(s.stock(q)))
	derived = s.batch(derived.ID)
	s.Equal(models.BatchReturned, derived.Status)
	for _, it := range derived.Items {
		s.Equal(models.ItemCompleted, it.Status)
	}
	res = s.batch(r.ID)
	s.Equal(models.BatchCompleted, res.Status)
	s.NotNil(res.CompletedAt)
	s.assertLedger()
}

func (s *SchedulerServiceTestSuite) TestActivationCarriesReserve() {
	p := s.addItem(models.ItemKindProperty, "Projector", 5)
	r := s.submit(models.RequestKindReservation,
		models.RequestLine{ItemID: p, Quantity: 3, NeededDate: s.day(1), ReturnDate: s.day(2)},
	)
	s.approveAll(r)
	s.advanceDays(1)
	before := s.stock(p)
	s.Equal(3, before.Reserved)

	derived, err := s.scheduler.ActivateReservation(s.ctx, r.ID)

	s.Require().NoError(err)
	after := s.stock(p)
	s.Equal(before.Reserved, after.Reserved)
	s.Equal(before.OnHand, after.OnHand)
	s.Equal(models.BatchForClaiming, derived.Status)

	_, err = s.scheduler.ActivateReservation(s.ctx, r.ID)
	s.True(common.IsKind(err, common.KindConflict))
	s.assertLedger()
}

func (s *SchedulerServiceTestSuite) TestActivateReservation_NotDueYet() {
	p := s.addItem(models.ItemKindProperty, "Projector", 5)
	r := s.submit(models.RequestKindReservation,
		models.RequestLine{ItemID: p, Quantity: 1, NeededDate: s.day(3), ReturnDate: s.day(4)},
	)
	s.approveAll(r)

	_, err := s.scheduler.ActivateReservation(s.ctx, r.ID)

	s.True(common.IsKind(err, common.KindConflict))
	s.Equal(models.BatchApproved, s.batch(r.ID).Status)
}

// A reservation whose activation never happened expires after its return
// date and gives its reserve back.
func (s *SchedulerServiceTestSuite) TestMissedReservationExpires() {
	item := s.addItem(models.ItemKindProperty, "Projector", 5)
	r := s.submit(models.RequestKindReservation,
		models.RequestLine{ItemID: item, Quantity: 3, NeededDate: s.day(1), ReturnDate: s.day(2)},
	)
	s.approveAll(r)
	s.Equal(3, s.stock(item).Reserved)

	s.advanceDays(3)
	report := s.tick()

	s.Equal(1, report.Counts[CountReservationLinesExpired])
	s.Zero(report.Counts[CountReservationsActivated])
	got := s.batch(r.ID)
	s.Equal(models.BatchExpired, got.Status)
	s.Equal(models.ItemExpired, got.Items[0].Status)
	s.Equal(0, s.stock(item).Reserved)
	s.Contains(s.events.Types(), events.ItemExpired)
	s.assertLedger()
}

func (s *SchedulerServiceTestSuite) TestUnclaimedBorrowExpires() {
	item := s.addItem(models.ItemKindProperty, "Projector", 5)
	b := s.submit(models.RequestKindBorrow, models.RequestLine{ItemID: item, Quantity: 2, ReturnDate: s.day(2)})
	s.approveAll(b)

	s.advanceDays(3)
	report := s.tick()

	s.Equal(1, report.Counts[CountBorrowLinesExpired])
	s.Equal(models.BatchExpired, s.batch(b.ID).Status)
	s.Equal(0, s.stock(item).Reserved)
	s.assertLedger()
}

func (s *SchedulerServiceTestSuite) overdueBatch() *models.Batch {
	p := s.addItem(models.ItemKindProperty, "Projector", 3)
	q := s.addItem(models.ItemKindProperty, "Speaker", 3)
	b := s.submit(models.RequestKindBorrow,
		models.RequestLine{ItemID: p, Quantity: 1, ReturnDate: s.day(4)},
		models.RequestLine{ItemID: q, Quantity: 1, ReturnDate: s.day(4)},
	)
	s.approveAll(b)
	_, err := s.requests.ClaimBatch(s.ctx, s.admin.ID, b.ID)
	s.Require().NoError(err)
	s.advanceDays(5)
	return b
}

// Overdue lines of one batch produce a single grouped SMS, once.
func (s *SchedulerServiceTestSuite) TestOverdueGroupedSMS() {
	b := s.overdueBatch()

	report := s.tick()

	s.Equal(2, report.Counts[CountBorrowLinesOverdue])
	s.Equal(2, report.Counts[CountOverdueNotified])
	s.Equal(1, report.Counts[CountOverdueSMS])
	got := s.batch(b.ID)
	s.Equal(models.BatchOverdue, got.Status)
	for _, it := range got.Items {
		s.Equal(models.ItemOverdue, it.Status)
		s.True(it.OverdueNotified)
		s.Contains(s.inbox(s.user.ID), notifier.OverdueMessage(it))
	}
	sms := s.sent.channel(notifier.ChannelSMS)
	s.Require().Len(sms, 1)
	s.Equal("09170000000", sms[0].To)
	s.Contains(sms[0].Body, "Hello Ana,")
	s.Contains(sms[0].Body, "You have 2 OVERDUE item(s)")
	s.Contains(sms[0].Body, "Projector (x1)")
	s.Contains(sms[0].Body, "Speaker (x1)")
	s.Contains(sms[0].Body, "Most overdue: 1 days")

	second := s.tick()

	s.Empty(second.Counts)
	s.Len(s.sent.channel(notifier.ChannelSMS), 1)
}

func (s *SchedulerServiceTestSuite) TestOverdueWithoutPhoneStillFlags() {
	s.user = s.addUser("dan", models.RoleUser, "")
	b := s.overdueBatch()

	report := s.tick()

	s.Equal(2, report.Counts[CountOverdueNotified])
	s.Zero(report.Counts[CountOverdueSMS])
	s.Empty(s.sent.channel(notifier.ChannelSMS))
	for _, it := range s.batch(b.ID).Items {
		s.True(it.OverdueNotified)
	}
}

func (s *SchedulerServiceTestSuite) TestConcurrentTicksSendOneSMS() {
	s.overdueBatch()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.scheduler.Tick(s.ctx)
		}()
	}
	wg.Wait()

	s.Len(s.sent.channel(notifier.ChannelSMS), 1)
	s.assertLedger()
}

// The reminder fires once the borrow is 80% through its window.
func (s *SchedulerServiceTestSuite) TestNearOverdueReminder() {
	item := s.addItem(models.ItemKindProperty, "Projector", 3)
	returnDate := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	b := s.submit(models.RequestKindBorrow, models.RequestLine{ItemID: item, Quantity: 1, ReturnDate: &returnDate})
	s.approveAll(b)
	_, err := s.requests.ClaimBatch(s.ctx, s.admin.ID, b.ID)
	s.Require().NoError(err)

	s.fake.Advance(7*24*time.Hour + 23*time.Hour)
	report := s.tick()
	s.Zero(report.Counts[CountNearOverdueReminders])
	s.Empty(s.sent.subject("Return reminder"))

	s.fake.Advance(2 * time.Hour)
	report = s.tick()
	s.Equal(1, report.Counts[CountNearOverdueReminders])
	reminders := s.sent.subject("Return reminder")
	s.Require().Len(reminders, 1)
	s.Equal("ana@example.com", reminders[0].To)
	s.Contains(reminders[0].Body, "2025-01-11")
	s.True(s.batch(b.ID).Items[0].NearOverdueNotified)

	s.advanceDays(1)
	s.tick()
	s.Len(s.sent.subject("Return reminder"), 1)
}

func (s *SchedulerServiceTestSuite) TestTickIsIdempotent() {
	s.overdueBatch()
	s.tick()
	snapshot := s.states()
	sent := len(s.sent.msgs)

	report := s.tick()

	s.Empty(report.Counts)
	s.Equal(snapshot, s.states())
	s.Len(s.sent.msgs, sent)
}

func (s *SchedulerServiceTestSuite) TestBackstopCompletesReservation() {
	p := s.addItem(models.ItemKindProperty, "Projector", 5)
	r := s.submit(models.RequestKindReservation,
		models.RequestLine{ItemID: p, Quantity: 1, NeededDate: s.day(1), ReturnDate: s.day(3)},
	)
	s.approveAll(r)
	s.advanceDays(1)
	s.tick()
	res := s.batch(r.ID)
	s.Require().NotNil(res.GeneratedBorrowID)

	// Nobody claims the generated borrow, so it expires after the return date.
	s.advanceDays(3)
	report := s.tick()

	s.Equal(models.BatchExpired, s.batch(*res.GeneratedBorrowID).Status)
	s.Equal(0, s.stock(p).Reserved)
	s.tick()
	s.Equal(models.BatchCompleted, s.batch(r.ID).Status)
	s.Equal(1, report.Counts[CountBorrowLinesExpired])
	s.assertLedger()
}

func (s *SchedulerServiceTestSuite) TestTickIfDue_HonoursSharedLock() {
	mr := miniredis.RunT(s.T())
	cache := caching.NewRedisCacheService(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	s.core.Cache = cache
	s.scheduler = NewSchedulerService(s.core, SchedulerOptions{ReadPathInterval: time.Minute})
	b := s.overdueBatch()

	held, err := cache.TryAcquire(s.ctx, readPathLockKey, time.Minute)
	s.Require().NoError(err)
	s.Require().True(held)

	s.scheduler.TickIfDue(s.ctx)
	s.Equal(models.BatchActive, s.batch(b.ID).Status)

	mr.FastForward(2 * time.Minute)
	s.fake.Advance(2 * time.Minute)
	s.scheduler.TickIfDue(s.ctx)
	s.Equal(models.BatchOverdue, s.batch(b.ID).Status)
}

func (s *SchedulerServiceTestSuite) TestTickIfDue_RunsOncePerInterval() {
	s.scheduler = NewSchedulerService(s.core, SchedulerOptions{ReadPathInterval: 72 * time.Hour})
	s.scheduler.TickIfDue(s.ctx)
	item := s.addItem(models.ItemKindProperty, "Ladder", 2)
	b := s.submit(models.RequestKindBorrow, models.RequestLine{ItemID: item, Quantity: 1, ReturnDate: s.day(1)})
	s.approveAll(b)
	_, err := s.requests.ClaimBatch(s.ctx, s.admin.ID, b.ID)
	s.Require().NoError(err)

	s.advanceDays(2)
	s.scheduler.TickIfDue(s.ctx)
	s.Equal(models.BatchActive, s.batch(b.ID).Status)

	s.advanceDays(2)
	s.scheduler.TickIfDue(s.ctx)
	s.Equal(models.BatchOverdue, s.batch(b.ID).Status)
}

type lineState struct {
	Status              models.ItemStatus
	NearOverdueNotified bool
	OverdueNotified     bool
}

// states captures every batch and line status and the ledger
func (s *SchedulerServiceTestSuite) states() map[string]any {
	out := make(map[string]any)
	batches, err := s.requests.ListBatches(s.ctx, s.admin.ID, models.BatchFilter{Limit: 200})
	s.Require().NoError(err)
	for _, b := range batches {
		full := s.batch(b.ID)
		out[b.ID.String()] = full.Status
		for _, it := range full.Items {
			out[it.ID.String()] = lineState{it.Status, it.NearOverdueNotified, it.OverdueNotified}
		}
	}
	for _, id := range s.items {
		out[id.String()] = stripTime(s.stock(id))
	}
	return out
}
