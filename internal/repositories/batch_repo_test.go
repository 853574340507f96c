package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"resourcehive/internal/models"
)

type BatchRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    BatchRepository
	context context.Context
}

func (suite *BatchRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewBatchRepo(mock)
	suite.context = context.Background()
}

func (suite *BatchRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestBatchRepoTestSuite(t *testing.T) {
	suite.Run(t, new(BatchRepoTestSuite))
}

func batchRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "kind", "owner_id", "purpose", "status", "remarks",
		"source_reservation_id", "generated_borrow_id", "created_at", "approved_at", "claimed_at",
		"returned_at", "completed_at", "updated_at"})
}

func (suite *BatchRepoTestSuite) TestLockForSweep_Locked() {
	id := uuid.New()
	statuses := []models.BatchStatus{models.BatchActive}
	suite.mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(id, []string{"active"}).
		WillReturnError(pgx.ErrNoRows)

	b, ok, err := suite.repo.LockForSweep(suite.context, id, statuses)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
	assert.Nil(suite.T(), b)
}

func (suite *BatchRepoTestSuite) TestLockForSweep_Acquired() {
	id, owner := uuid.New(), uuid.New()
	now := time.Now()
	suite.mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(id, []string{"active", "overdue"}).
		WillReturnRows(batchRows().AddRow(id, "borrow", owner, "field work", "active", nil, nil, nil,
			now, nil, &now, nil, nil, now))

	b, ok, err := suite.repo.LockForSweep(suite.context, id, []models.BatchStatus{models.BatchActive, models.BatchOverdue})
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), models.RequestKindBorrow, b.Kind)
	assert.Equal(suite.T(), models.BatchActive, b.Status)
	assert.NotNil(suite.T(), b.ClaimedAt)
	assert.False(suite.T(), b.Derived())
}

func (suite *BatchRepoTestSuite) TestList_BuildsFilter() {
	owner := uuid.New()
	kind := models.RequestKindReservation
	suite.mock.ExpectQuery(`SELECT .* FROM batches WHERE owner_id = \$1 AND kind = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(owner, kind, 50, 0).
		WillReturnRows(batchRows())

	batches, err := suite.repo.List(suite.context, models.BatchFilter{OwnerID: &owner, Kind: &kind})
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), batches)
}

func (suite *BatchRepoTestSuite) TestListIDs() {
	a, b := uuid.New(), uuid.New()
	suite.mock.ExpectQuery(`SELECT id FROM batches WHERE kind = \$1 AND status = ANY\(\$2\)`).
		WithArgs(models.RequestKindBorrow, []string{"pending", "approved"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a).AddRow(b))

	ids, err := suite.repo.ListIDs(suite.context, models.RequestKindBorrow,
		[]models.BatchStatus{models.BatchPending, models.BatchApproved})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []uuid.UUID{a, b}, ids)
}
