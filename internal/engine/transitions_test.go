package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

type TransitionTestSuite struct {
	suite.Suite
}

func TestTransitionTestSuite(t *testing.T) {
	suite.Run(t, new(TransitionTestSuite))
}

func (s *TransitionTestSuite) TestSupplyApprovalNeverTouchesLedger() {
	out, err := Transition(models.RequestKindSupply, models.ItemPending, EventApprove, 4)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.ItemApproved, out.Next)
	assert.Zero(s.T(), out.OnHandDelta)
	assert.Zero(s.T(), out.ReservedDelta)
	assert.Equal(s.T(), NoticeApproved, out.Notice)
}

func (s *TransitionTestSuite) TestSupplyClaimConsumesOnHand() {
	out, err := Transition(models.RequestKindSupply, models.ItemApproved, EventClaim, 4)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.ItemCompleted, out.Next)
	assert.Equal(s.T(), -4, out.OnHandDelta)
	assert.Zero(s.T(), out.ReservedDelta)
}

func (s *TransitionTestSuite) TestBorrowLedgerEffects() {
	cases := []struct {
		from     models.ItemStatus
		event    Event
		next     models.ItemStatus
		onHand   int
		reserved int
	}{
		{models.ItemPending, EventApprove, models.ItemApproved, 0, 5},
		{models.ItemPending, EventReject, models.ItemRejected, 0, 0},
		{models.ItemApproved, EventReject, models.ItemRejected, 0, -5},
		{models.ItemPending, EventCancel, models.ItemCancelled, 0, 0},
		{models.ItemApproved, EventClaim, models.ItemActive, -5, -5},
		{models.ItemActive, EventReturn, models.ItemReturned, 5, 0},
		{models.ItemOverdue, EventReturn, models.ItemReturned, 5, 0},
		{models.ItemApproved, EventExpire, models.ItemExpired, 0, -5},
		{models.ItemPending, EventExpire, models.ItemExpired, 0, 0},
		{models.ItemActive, EventMarkOverdue, models.ItemOverdue, 0, 0},
		{models.ItemReturned, EventComplete, models.ItemCompleted, 0, 0},
	}
	for _, tc := range cases {
		out, err := Transition(models.RequestKindBorrow, tc.from, tc.event, 5)
		s.Require().NoError(err, "%s on %s", tc.event, tc.from)
		assert.Equal(s.T(), tc.next, out.Next, "%s on %s", tc.event, tc.from)
		assert.Equal(s.T(), tc.onHand, out.OnHandDelta, "%s on %s", tc.event, tc.from)
		assert.Equal(s.T(), tc.reserved, out.ReservedDelta, "%s on %s", tc.event, tc.from)
	}
}

func (s *TransitionTestSuite) TestReservationActivationCarriesReserve() {
	out, err := Transition(models.RequestKindReservation, models.ItemApproved, EventActivate, 2)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.ItemActive, out.Next)
	assert.Zero(s.T(), out.ReservedDelta)
	assert.Zero(s.T(), out.OnHandDelta)
}

func (s *TransitionTestSuite) TestUndefinedTransitionIsConflict() {
	_, err := Transition(models.RequestKindSupply, models.ItemCompleted, EventCancel, 1)
	assert.True(s.T(), common.IsKind(err, common.KindConflict))

	_, err = Transition(models.RequestKindSupply, models.ItemApproved, EventExpire, 1)
	assert.True(s.T(), common.IsKind(err, common.KindConflict), "supplies do not age out")

	_, err = Transition(models.RequestKindBorrow, models.ItemActive, EventCancel, 1)
	assert.True(s.T(), common.IsKind(err, common.KindConflict))
}

func (s *TransitionTestSuite) TestApplySetsApprovedQuantity() {
	item := &models.RequestItem{RequestedQuantity: 6, Status: models.ItemPending}

	out, err := Apply(models.RequestKindBorrow, item, EventApprove, 4)
	s.Require().NoError(err)
	assert.Equal(s.T(), 4, out.ReservedDelta)
	assert.Equal(s.T(), 4, item.Quantity())
	assert.Equal(s.T(), models.ItemApproved, item.Status)

	// later events scale by the stored approved quantity
	out, err = Apply(models.RequestKindBorrow, item, EventClaim, 99)
	s.Require().NoError(err)
	assert.Equal(s.T(), -4, out.OnHandDelta)
	assert.Equal(s.T(), models.ItemActive, item.Status)
}

func (s *TransitionTestSuite) TestHoldsReserve() {
	assert.True(s.T(), HoldsReserve(models.RequestKindBorrow, models.ItemApproved))
	assert.True(s.T(), HoldsReserve(models.RequestKindReservation, models.ItemApproved))
	assert.False(s.T(), HoldsReserve(models.RequestKindReservation, models.ItemActive))
	assert.False(s.T(), HoldsReserve(models.RequestKindSupply, models.ItemApproved))
}
