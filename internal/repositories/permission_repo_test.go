package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resourcehive/internal/models"
)

func TestPermissionRepo_UpsertReportsInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPermissionRepo(mock)
	p := &models.Permission{ID: uuid.New(), Codename: models.PermClaimBatch, Name: "Release claimed batches"}
	existing := uuid.New()

	mock.ExpectQuery(`INSERT INTO permissions .* ON CONFLICT \(codename\) DO UPDATE`).
		WithArgs(p.ID, p.Codename, p.Name, p.Description).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(existing, false))

	inserted, err := repo.Upsert(context.Background(), p)
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, existing, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_HasPermission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPermissionRepo(mock)
	user := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(user, models.PermApproveReservation).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasPermission(context.Background(), user, models.PermApproveReservation)
	assert.NoError(t, err)
	assert.True(t, ok)
}
