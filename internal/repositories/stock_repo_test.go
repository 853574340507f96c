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

	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

type StockRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    StockRepository
	itemID  uuid.UUID
	context context.Context
}

func (suite *StockRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewStockRepo(mock)
	suite.itemID = uuid.New()
	suite.context = context.Background()
}

func (suite *StockRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestStockRepoTestSuite(t *testing.T) {
	suite.Run(t, new(StockRepoTestSuite))
}

func (suite *StockRepoTestSuite) stockRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"item_id", "on_hand", "reserved", "minimum_threshold", "updated_at"})
}

func (suite *StockRepoTestSuite) TestGetForUpdate_LocksRow() {
	now := time.Now()
	suite.mock.ExpectQuery(`SELECT item_id, on_hand, reserved, minimum_threshold, updated_at FROM stock WHERE item_id = \$1 FOR UPDATE`).
		WithArgs(suite.itemID).
		WillReturnRows(suite.stockRows().AddRow(suite.itemID, 10, 5, nil, now))

	stock, err := suite.repo.GetForUpdate(suite.context, suite.itemID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 10, stock.OnHand)
	assert.Equal(suite.T(), 5, stock.Reserved)
	assert.Nil(suite.T(), stock.MinimumThreshold)
	assert.Equal(suite.T(), 5, stock.Available())
}

func (suite *StockRepoTestSuite) TestGet_NotFound() {
	suite.mock.ExpectQuery(`FROM stock WHERE item_id = \$1`).
		WithArgs(suite.itemID).
		WillReturnError(pgx.ErrNoRows)

	stock, err := suite.repo.Get(suite.context, suite.itemID)
	assert.Nil(suite.T(), stock)
	assert.True(suite.T(), common.IsKind(err, common.KindNotFound))
}

func (suite *StockRepoTestSuite) TestUpdate_WritesBothColumns() {
	stock := &models.Stock{ItemID: suite.itemID, OnHand: 7, Reserved: 2}
	suite.mock.ExpectExec(`UPDATE stock`).
		WithArgs(7, 2, stock.MinimumThreshold, suite.itemID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(suite.T(), suite.repo.Update(suite.context, stock))
}

func (suite *StockRepoTestSuite) TestUpdate_MissingRow() {
	stock := &models.Stock{ItemID: suite.itemID}
	suite.mock.ExpectExec(`UPDATE stock`).
		WithArgs(0, 0, stock.MinimumThreshold, suite.itemID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.Update(suite.context, stock)
	assert.True(suite.T(), common.IsKind(err, common.KindNotFound))
}

func (suite *StockRepoTestSuite) TestGetMany_EmptyInputSkipsQuery() {
	out, err := suite.repo.GetMany(suite.context, nil)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), out)
}

func (suite *StockRepoTestSuite) TestGetMany_IndexesByItem() {
	other := uuid.New()
	threshold := 3
	now := time.Now()
	ids := []uuid.UUID{suite.itemID, other}
	suite.mock.ExpectQuery(`FROM stock WHERE item_id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(suite.stockRows().
			AddRow(suite.itemID, 4, 0, &threshold, now).
			AddRow(other, 1, 1, nil, now))

	out, err := suite.repo.GetMany(suite.context, ids)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), out, 2)
	assert.Equal(suite.T(), 3, *out[suite.itemID].MinimumThreshold)
	assert.Equal(suite.T(), 0, out[other].Available())
}
