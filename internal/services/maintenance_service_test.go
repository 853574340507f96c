package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"resourcehive/internal/clock"
	"resourcehive/internal/models"
	"resourcehive/internal/notifier"
	"resourcehive/internal/store"
)

type MaintenanceServiceTestSuite struct {
	serviceHarness
}

func TestMaintenanceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MaintenanceServiceTestSuite))
}

func (s *MaintenanceServiceTestSuite) TestInitializePermissions_GrantsOnce() {
	report, err := s.maintenance.InitializePermissions(s.ctx)

	s.Require().NoError(err)
	s.Equal(ProcedureInitializePermissions, report.Procedure)
	s.NotNil(report.CompletionTime)
	s.Equal(len(models.DefaultPermissions), report.Counts["permissions_created"])
	s.Equal(1, report.Counts["admins_granted"])
	s.Require().NoError(s.store.InTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		ok, err := tx.Permissions().HasPermission(ctx, s.admin.ID, models.PermApproveBorrowRequest)
		s.True(ok)
		return err
	}))

	again, err := s.maintenance.InitializePermissions(s.ctx)

	s.Require().NoError(err)
	s.Zero(again.Counts["permissions_created"])
	s.Equal(len(models.DefaultPermissions), again.Counts["permissions_updated"])
	s.Zero(again.Counts["admins_granted"])
}

func (s *MaintenanceServiceTestSuite) TestPopulateSampleData_Idempotent() {
	report, err := s.maintenance.PopulateSampleData(s.ctx)

	s.Require().NoError(err)
	s.Equal(len(sampleUsers)-1, report.Counts["users_created"])
	s.Equal(1, report.Counts["users_existing"])
	s.Equal(len(sampleSupplies), report.Counts["supplies_created"])
	s.Equal(len(sampleProperties), report.Counts["properties_created"])

	catalog, err := s.inventory.ListCatalog(s.ctx, models.ItemFilter{Limit: 100})
	s.Require().NoError(err)
	s.Len(catalog, len(sampleSupplies)+len(sampleProperties))
	today := s.core.Clock.Today()
	for _, entry := range catalog {
		if entry.Item.Kind != models.ItemKindSupply {
			continue
		}
		s.Require().NotNil(entry.Item.ExpirationDate)
		days := clock.DaysBetween(today, *entry.Item.ExpirationDate)
		s.GreaterOrEqual(days, 30)
		s.LessOrEqual(days, 365)
	}

	again, err := s.maintenance.PopulateSampleData(s.ctx)

	s.Require().NoError(err)
	s.Zero(again.Counts["users_created"])
	s.Zero(again.Counts["supplies_created"])
	s.Zero(again.Counts["properties_created"])
	s.Equal(len(sampleUsers), again.Counts["users_existing"])
}

func (s *MaintenanceServiceTestSuite) addSupply(name string, onHand, threshold int, expires time.Time) {
	item := &models.Item{ID: uuid.New(), Kind: models.ItemKindSupply, Name: name, ExpirationDate: &expires}
	s.Require().NoError(s.store.InTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Items().Create(ctx, item); err != nil {
			return err
		}
		return tx.Stock().Create(ctx, &models.Stock{ItemID: item.ID, OnHand: onHand, MinimumThreshold: &threshold})
	}))
	s.items = append(s.items, item.ID)
}

func (s *MaintenanceServiceTestSuite) TestCheckExpiringSupplies_NotifiesOncePerDay() {
	today := s.core.Clock.Today()
	s.addSupply("Alcohol", 50, 10, today.AddDate(0, 0, 10))
	s.addSupply("Face Mask", 50, 10, today.AddDate(0, 0, -2))
	s.addSupply("Ink", 3, 10, today.AddDate(1, 0, 0))
	s.addSupply("Bond Paper", 50, 10, today.AddDate(0, 6, 0))

	report, err := s.maintenance.CheckExpiringSupplies(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, report.Counts["supplies_expiring"])
	s.Equal(1, report.Counts["supplies_expired"])
	s.Equal(1, report.Counts["supplies_low_stock"])
	s.Equal(3, report.Counts["notifications_created"])
	inbox := s.inbox(s.admin.ID)
	s.Contains(inbox, ExpiryMessage("Alcohol", today.AddDate(0, 0, 10), today))
	s.Contains(inbox, "Supply Face Mask expired on "+today.AddDate(0, 0, -2).Format(time.DateOnly))
	s.Contains(inbox, LowStockMessage("Ink", 3, 10))
	s.Empty(s.inbox(s.user.ID))

	s.fake.Advance(3 * time.Hour)
	again, err := s.maintenance.CheckExpiringSupplies(s.ctx)
	s.Require().NoError(err)
	s.Zero(again.Counts["notifications_created"])

	s.advanceDays(1)
	nextDay, err := s.maintenance.CheckExpiringSupplies(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, nextDay.Counts["notifications_created"])
}

func (s *MaintenanceServiceTestSuite) TestAutoReactivateUsers() {
	due := s.core.Clock.Now().Add(time.Hour)
	suspended := &models.User{ID: uuid.New(), Username: "sam", FirstName: "Sam", Role: models.RoleUser, AutoEnableAt: &due}
	s.Require().NoError(s.store.InTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Users().Create(ctx, suspended)
	}))

	early, err := s.maintenance.AutoReactivateUsers(s.ctx)
	s.Require().NoError(err)
	s.Zero(early.Counts["users_reactivated"])

	s.fake.Advance(2 * time.Hour)
	report, err := s.maintenance.AutoReactivateUsers(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, report.Counts["users_reactivated"])
	s.Require().NoError(s.store.InTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.Users().GetByID(ctx, suspended.ID)
		s.Require().NoError(err)
		s.True(u.IsActive)
		s.Nil(u.AutoEnableAt)
		return nil
	}))
	s.Equal([]string{notifier.ReactivatedMessage()}, s.inbox(suspended.ID))
}

func (s *MaintenanceServiceTestSuite) TestCheckOverdueDelegatesToScheduler() {
	item := s.addItem(models.ItemKindProperty, "Projector", 2)
	b := s.submit(models.RequestKindBorrow, models.RequestLine{ItemID: item, Quantity: 1, ReturnDate: s.day(1)})
	s.approveAll(b)
	_, err := s.requests.ClaimBatch(s.ctx, s.admin.ID, b.ID)
	s.Require().NoError(err)
	s.advanceDays(3)

	report, err := s.maintenance.CheckOverdue(s.ctx)

	s.Require().NoError(err)
	s.Equal(ProcedureCheckOverdue, report.Procedure)
	s.Equal(1, report.Counts[CountBorrowLinesOverdue])
	s.Equal(1, report.Counts[CountOverdueSMS])
	s.Equal(models.BatchOverdue, s.batch(b.ID).Status)
}

func (s *MaintenanceServiceTestSuite) TestUpdateReservationStatusDelegatesToScheduler() {
	item := s.addItem(models.ItemKindProperty, "Projector", 2)
	r := s.submit(models.RequestKindReservation,
		models.RequestLine{ItemID: item, Quantity: 1, NeededDate: s.day(1), ReturnDate: s.day(2)},
	)
	s.approveAll(r)
	s.advanceDays(1)

	report, err := s.maintenance.UpdateReservationStatus(s.ctx)

	s.Require().NoError(err)
	s.Equal(ProcedureUpdateReservations, report.Procedure)
	s.Equal(1, report.Counts[CountReservationsActivated])
	s.Equal(models.BatchActive, s.batch(r.ID).Status)
}
