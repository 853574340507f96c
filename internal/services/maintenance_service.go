package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/clock"
	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/internal/notifier"
	"resourcehive/pkg/logger"
)

// Operational procedure names
const (
	ProcedureInitializePermissions = "initialize_permissions"
	ProcedurePopulateSampleData    = "populate_sample_data"
	ProcedureCheckExpiringSupplies = "check_expiring_supplies"
	ProcedureAutoReactivateUsers   = "auto_reactivate_users"
)

// MaintenanceService runs the one-shot operational procedures
type MaintenanceService interface {
	InitializePermissions(ctx context.Context) (*models.RunReport, error)
	PopulateSampleData(ctx context.Context) (*models.RunReport, error)
	CheckExpiringSupplies(ctx context.Context) (*models.RunReport, error)
	CheckOverdue(ctx context.Context) (*models.RunReport, error)
	UpdateReservationStatus(ctx context.Context) (*models.RunReport, error)
	AutoReactivateUsers(ctx context.Context) (*models.RunReport, error)
}

type maintenanceService struct {
	*Core
	scheduler          SchedulerService
	expiringSupplyDays int
}

func NewMaintenanceService(core *Core, scheduler SchedulerService, expiringSupplyDays int) MaintenanceService {
	if expiringSupplyDays <= 0 {
		expiringSupplyDays = 30
	}
	return &maintenanceService{Core: core, scheduler: scheduler, expiringSupplyDays: expiringSupplyDays}
}

func (s *maintenanceService) procedure(ctx context.Context, name string, fn func(ctx context.Context, u *unit, report *models.RunReport) error) (*models.RunReport, error) {
	report := models.NewRunReport(name, s.Clock.Now())
	err := s.run(ctx, name, nil, func(ctx context.Context, u *unit) error {
		// Counters restart if the transaction is attempted again.
		report.Counts = make(map[string]int)
		report.Processed = 0
		return fn(ctx, u, report)
	})
	report.Finish(s.Clock.Now())
	s.Metrics.Procedure(name, err)
	if err != nil {
		return report, err
	}
	logger.Info(ctx).Str("procedure", name).Int("processed", report.Processed).Interface("counts", report.Counts).
		Msg("procedure finished")
	return report, nil
}

// InitializePermissions upserts the permission catalog and grants it to
// administrators that have no permissions yet
func (s *maintenanceService) InitializePermissions(ctx context.Context) (*models.RunReport, error) {
	return s.procedure(ctx, ProcedureInitializePermissions, func(ctx context.Context, u *unit, report *models.RunReport) error {
		perms := make([]*models.Permission, 0, len(models.DefaultPermissions))
		for _, def := range models.DefaultPermissions {
			p := def
			p.CreatedAt = u.now
			created, err := u.tx.Permissions().Upsert(ctx, &p)
			if err != nil {
				return err
			}
			if created {
				report.Add("permissions_created", 1)
			} else {
				report.Add("permissions_updated", 1)
			}
			perms = append(perms, &p)
		}

		admins, err := u.tx.Users().ListAdmins(ctx)
		if err != nil {
			return err
		}
		for _, admin := range admins {
			report.Processed++
			granted, err := u.tx.Permissions().CountGrants(ctx, admin.ID)
			if err != nil {
				return err
			}
			if granted > 0 {
				continue
			}
			for _, p := range perms {
				if err := u.tx.Permissions().Grant(ctx, admin.ID, p.ID); err != nil {
					return err
				}
			}
			if err := u.activity(ctx, models.ActionGrantPermission, "user", admin.ID.String(), models.JSONB{"permissions": len(perms)}); err != nil {
				return err
			}
			report.Add("admins_granted", 1)
		}
		return nil
	})
}

type sampleUser struct {
	username, first, last, email, phone, department string
	role                                            models.Role
}

var sampleUsers = []sampleUser{
	{"admin", "System", "Administrator", "admin@resourcehive.local", "", "Supply Office", models.RoleAdmin},
	{"jdelacruz", "Juan", "Dela Cruz", "juan.delacruz@resourcehive.local", "09171234567", "Engineering", models.RoleUser},
	{"msantos", "Maria", "Santos", "maria.santos@resourcehive.local", "09181234567", "Accounting", models.RoleUser},
}

type sampleSupply struct {
	name, category    string
	onHand, threshold int
}

var sampleSupplies = []sampleSupply{
	{"Bond Paper A4", "Office Supplies", 500, 100},
	{"Ballpoint Pen (Black)", "Office Supplies", 200, 50},
	{"Printer Ink Cartridge", "Printing", 30, 10},
	{"Alcohol 70%", "Sanitation", 60, 20},
	{"Face Mask", "Sanitation", 300, 100},
}

type sampleProperty struct {
	name, category string
	onHand         int
}

var sampleProperties = []sampleProperty{
	{"Laptop", "IT Equipment", 10},
	{"LCD Projector", "IT Equipment", 4},
	{"Extension Cord", "Electrical", 15},
	{"Folding Table", "Furniture", 20},
	{"Digital Camera", "Media", 3},
}

// PopulateSampleData seeds users and inventory. Existing rows are left as they are.
func (s *maintenanceService) PopulateSampleData(ctx context.Context) (*models.RunReport, error) {
	return s.procedure(ctx, ProcedurePopulateSampleData, func(ctx context.Context, u *unit, report *models.RunReport) error {
		for _, su := range sampleUsers {
			report.Processed++
			_, err := u.tx.Users().GetByUsername(ctx, su.username)
			if err == nil {
				report.Add("users_existing", 1)
				continue
			}
			if !common.IsKind(err, common.KindNotFound) {
				return err
			}
			user := &models.User{
				ID:         uuid.New(),
				Username:   su.username,
				FirstName:  su.first,
				LastName:   su.last,
				Email:      common.StringPtr(su.email),
				Phone:      common.StringPtr(su.phone),
				Department: common.StringPtr(su.department),
				Role:       su.role,
				IsActive:   true,
				CreatedAt:  u.now,
				UpdatedAt:  u.now,
			}
			if err := u.tx.Users().Create(ctx, user); err != nil {
				return err
			}
			report.Add("users_created", 1)
		}

		for _, sp := range sampleSupplies {
			report.Processed++
			expires := u.today.AddDate(0, 0, 30+rand.IntN(336))
			threshold := sp.threshold
			item := &models.Item{
				Kind:           models.ItemKindSupply,
				Name:           sp.name,
				Category:       common.StringPtr(sp.category),
				ExpirationDate: &expires,
			}
			created, err := s.seedItem(ctx, u, item, sp.onHand, &threshold)
			if err != nil {
				return err
			}
			if created {
				report.Add("supplies_created", 1)
			}
		}

		for _, pp := range sampleProperties {
			report.Processed++
			condition := models.ConditionGood
			item := &models.Item{
				Kind:      models.ItemKindProperty,
				Name:      pp.name,
				Category:  common.StringPtr(pp.category),
				Condition: &condition,
			}
			created, err := s.seedItem(ctx, u, item, pp.onHand, nil)
			if err != nil {
				return err
			}
			if created {
				report.Add("properties_created", 1)
			}
		}
		return nil
	})
}

func (s *maintenanceService) seedItem(ctx context.Context, u *unit, item *models.Item, onHand int, threshold *int) (bool, error) {
	_, err := u.tx.Items().GetByName(ctx, item.Kind, item.Name)
	if err == nil {
		return false, nil
	}
	if !common.IsKind(err, common.KindNotFound) {
		return false, err
	}
	item.ID = uuid.New()
	item.CreatedAt = u.now
	item.UpdatedAt = u.now
	if err := u.tx.Items().Create(ctx, item); err != nil {
		return false, err
	}
	return true, u.tx.Stock().Create(ctx, &models.Stock{
		ItemID:           item.ID,
		OnHand:           onHand,
		MinimumThreshold: threshold,
		UpdatedAt:        u.now,
	})
}

// ExpiryMessage is the admin notice for a supply at or near its expiration date
func ExpiryMessage(name string, expiration, today time.Time) string {
	if expiration.Before(today) {
		return fmt.Sprintf("Supply %s expired on %s", name, expiration.Format(time.DateOnly))
	}
	return fmt.Sprintf("Supply %s expires on %s", name, expiration.Format(time.DateOnly))
}

// LowStockMessage is the admin notice for a supply at or below its threshold
func LowStockMessage(name string, onHand, threshold int) string {
	return fmt.Sprintf("Supply %s is low on stock: %d left (minimum %d)", name, onHand, threshold)
}

// CheckExpiringSupplies notifies administrators about supplies that expire
// soon or are low on stock. Each notice goes out at most once a day.
func (s *maintenanceService) CheckExpiringSupplies(ctx context.Context) (*models.RunReport, error) {
	return s.procedure(ctx, ProcedureCheckExpiringSupplies, func(ctx context.Context, u *unit, report *models.RunReport) error {
		admins, err := u.tx.Users().ListAdmins(ctx)
		if err != nil {
			return err
		}
		dayStart := clock.StartOfDay(u.today, u.loc)

		cutoff := u.today.AddDate(0, 0, s.expiringSupplyDays)
		expiring, err := u.tx.Items().ListExpiringSupplies(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, es := range expiring {
			report.Processed++
			exp := *es.Item.ExpirationDate
			es.Expired = exp.Before(u.today)
			es.DaysLeft = clock.DaysBetween(u.today, exp)
			if es.Expired {
				report.Add("supplies_expired", 1)
			} else {
				report.Add("supplies_expiring", 1)
			}
			n, err := s.noticeOnce(ctx, u, admins, ExpiryMessage(es.Item.Name, exp, u.today), dayStart)
			if err != nil {
				return err
			}
			report.Add("notifications_created", n)
		}

		low, err := u.tx.Items().ListLowStock(ctx)
		if err != nil {
			return err
		}
		for _, ls := range low {
			report.Processed++
			report.Add("supplies_low_stock", 1)
			n, err := s.noticeOnce(ctx, u, admins, LowStockMessage(ls.Item.Name, ls.OnHand, ls.MinimumThreshold), dayStart)
			if err != nil {
				return err
			}
			report.Add("notifications_created", n)
		}
		return nil
	})
}

func (s *maintenanceService) noticeOnce(ctx context.Context, u *unit, admins []*models.User, message string, since time.Time) (int, error) {
	created := 0
	for _, admin := range admins {
		exists, err := u.tx.Notifications().ExistsSince(ctx, admin.ID, message, since)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := u.outbox.InApp(ctx, admin.ID, message, nil); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *maintenanceService) CheckOverdue(ctx context.Context) (*models.RunReport, error) {
	return s.scheduler.CheckOverdue(ctx)
}

func (s *maintenanceService) UpdateReservationStatus(ctx context.Context) (*models.RunReport, error) {
	return s.scheduler.UpdateReservations(ctx)
}

// AutoReactivateUsers re-enables accounts whose suspension has run out
func (s *maintenanceService) AutoReactivateUsers(ctx context.Context) (*models.RunReport, error) {
	return s.procedure(ctx, ProcedureAutoReactivateUsers, func(ctx context.Context, u *unit, report *models.RunReport) error {
		due, err := u.tx.Users().ListDueForReactivation(ctx, u.now)
		if err != nil {
			return err
		}
		for _, user := range due {
			report.Processed++
			if err := u.tx.Users().Reactivate(ctx, user.ID, u.now); err != nil {
				return err
			}
			if err := u.activity(ctx, models.ActionReactivateUser, "user", user.ID.String(), models.JSONB{
				"message": "Account automatically reactivated",
			}); err != nil {
				return err
			}
			if err := u.outbox.InApp(ctx, user.ID, notifier.ReactivatedMessage(), nil); err != nil {
				return err
			}
			report.Add("users_reactivated", 1)
		}
		return nil
	})
}
