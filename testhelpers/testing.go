package testhelpers

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"resourcehive/internal/models"
	"resourcehive/internal/store"
	"resourcehive/pkg/database"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Store   store.Store
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// every table. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	truncate := `TRUNCATE activity_logs, user_permissions, permissions, notifications,
		request_items, batches, stock, items, users CASCADE`
	if _, err := pool.Exec(ctx, truncate); err != nil {
		pool.Close()
		t.Fatalf("Failed to reset test database: %v", err)
	}

	return &TestDB{
		Pool:    pool,
		Store:   store.NewPostgres(pool, 0),
		Cleanup: pool.Close,
	}
}

// SetupTestUser creates an active user with the given role
func SetupTestUser(t *testing.T, st store.Store, username string, role models.Role) *models.User {
	t.Helper()

	email := username + "@example.com"
	user := &models.User{
		ID:        uuid.New(),
		Username:  username,
		FirstName: username,
		LastName:  "Tester",
		Email:     &email,
		Role:      role,
		IsActive:  true,
	}
	err := st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// SetupTestItem creates a catalog item with its stock row
func SetupTestItem(t *testing.T, st store.Store, kind models.ItemKind, name string, onHand int) *models.Item {
	t.Helper()

	item := &models.Item{ID: uuid.New(), Kind: kind, Name: name}
	err := st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.Items().Create(ctx, item); err != nil {
			return err
		}
		return tx.Stock().Create(ctx, &models.Stock{ItemID: item.ID, OnHand: onHand})
	})
	if err != nil {
		t.Fatalf("Failed to create test item: %v", err)
	}
	return item
}
