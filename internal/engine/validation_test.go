package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"resourcehive/internal/clock"
	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

func TestValidateSubmission(t *testing.T) {
	today := clock.Date(2025, 5, 1)
	itemA, itemB := uuid.New(), uuid.New()

	cases := []struct {
		name  string
		kind  models.RequestKind
		lines []models.RequestLine
		ok    bool
	}{
		{"supply ok", models.RequestKindSupply, []models.RequestLine{{ItemID: itemA, Quantity: 4}}, true},
		{"empty", models.RequestKindSupply, nil, false},
		{"zero quantity", models.RequestKindSupply, []models.RequestLine{{ItemID: itemA, Quantity: 0}}, false},
		{"duplicate item", models.RequestKindSupply, []models.RequestLine{{ItemID: itemA, Quantity: 1}, {ItemID: itemA, Quantity: 2}}, false},
		{"borrow ok", models.RequestKindBorrow, []models.RequestLine{{ItemID: itemA, Quantity: 1, ReturnDate: datePtr(2025, 5, 2)}}, true},
		{"borrow returns today", models.RequestKindBorrow, []models.RequestLine{{ItemID: itemA, Quantity: 1, ReturnDate: datePtr(2025, 5, 1)}}, false},
		{"borrow without date", models.RequestKindBorrow, []models.RequestLine{{ItemID: itemA, Quantity: 1}}, false},
		{"reservation ok", models.RequestKindReservation, []models.RequestLine{
			{ItemID: itemA, Quantity: 2, NeededDate: datePtr(2025, 5, 4), ReturnDate: datePtr(2025, 5, 8)},
			{ItemID: itemB, Quantity: 1, NeededDate: datePtr(2025, 5, 1), ReturnDate: datePtr(2025, 5, 1)},
		}, true},
		{"reservation in the past", models.RequestKindReservation, []models.RequestLine{{ItemID: itemA, Quantity: 1, NeededDate: datePtr(2025, 4, 30), ReturnDate: datePtr(2025, 5, 2)}}, false},
		{"reservation inverted", models.RequestKindReservation, []models.RequestLine{{ItemID: itemA, Quantity: 1, NeededDate: datePtr(2025, 5, 4), ReturnDate: datePtr(2025, 5, 2)}}, false},
		{"unknown kind", models.RequestKind("loan"), []models.RequestLine{{ItemID: itemA, Quantity: 1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSubmission(tc.kind, tc.lines, today)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, common.IsKind(err, common.KindInvalidRequest), "got %v", err)
		})
	}
}

func TestValidateApproval(t *testing.T) {
	item := &models.RequestItem{RequestedQuantity: 5}
	assert.NoError(t, ValidateApproval(item, 5))
	assert.NoError(t, ValidateApproval(item, 1))
	assert.Error(t, ValidateApproval(item, 0))
	assert.Error(t, ValidateApproval(item, 6))
}
