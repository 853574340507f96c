package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

func TestNotificationRepo_MarkReadScopedToOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	user, id := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, user).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.MarkRead(context.Background(), user, id)
	assert.True(t, common.IsKind(err, common.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_ExistsSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	user := uuid.New()
	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(user, "Supply Gauze expires on 2025-02-20", since).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsSince(context.Background(), user, "Supply Gauze expires on 2025-02-20", since)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	n := &models.Notification{ID: uuid.New(), UserID: uuid.New(), Message: "Your request was approved", CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(n.ID, n.UserID, n.Message, n.Remarks, false, n.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}
