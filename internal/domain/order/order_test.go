package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresItems(t *testing.T) {
	_, err := New("o1", "buyer", nil)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestNewRejectsNonPositiveQuantity(t *testing.T) {
	_, err := New("o1", "buyer", []Item{
		{ProductID: "p1", Quantity: 0, UnitPrice: decimal.RequireFromString("1.00")},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNewStampsOrderIDOnItems(t *testing.T) {
	o, err := New("o1", "buyer", []Item{
		{ProductID: "p1", Quantity: 1, UnitPrice: decimal.RequireFromString("1.00")},
		{ProductID: "p2", Quantity: 2, UnitPrice: decimal.RequireFromString("2.50")},
	})
	require.NoError(t, err)

	for _, item := range o.Items {
		assert.Equal(t, "o1", item.OrderID)
	}
}

func TestLineTotalExactDecimal(t *testing.T) {
	item := Item{Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")}
	assert.Equal(t, "19.98", item.LineTotal().StringFixed(2))

	// A case that breaks under binary floating point.
	item = Item{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")}
	assert.True(t, item.LineTotal().Equal(decimal.RequireFromString("0.30")))
}

func TestGrandTotalSumsLines(t *testing.T) {
	o, err := New("o1", "buyer", []Item{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("0.02")},
	})
	require.NoError(t, err)

	assert.Equal(t, "20.00", o.GrandTotal().StringFixed(2))
}
