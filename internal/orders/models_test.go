package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	o := &Order{
		DiscountPct: dec("10"),
		Freight:     dec("15"),
		Lines: []Line{
			{Qty: 2, UnitPrice: dec("100"), DiscountPct: dec("5"), CommissionPct: dec("10")},
			{Qty: 1, UnitPrice: dec("50")},
		},
	}
	o.ComputeTotals()

	// line 1: 2*100 = 200, -5% = 190; commission 10% = 19
	assert.True(t, o.Lines[0].Subtotal.Equal(dec("190")), "got %s", o.Lines[0].Subtotal)
	assert.True(t, o.Lines[0].CommissionValue.Equal(dec("19")), "got %s", o.Lines[0].CommissionValue)
	assert.True(t, o.Lines[1].Subtotal.Equal(dec("50")))
	assert.True(t, o.Lines[1].CommissionValue.IsZero())

	// subtotal 240, -10% = 216, +15 freight = 231
	assert.True(t, o.Subtotal.Equal(dec("240")), "got %s", o.Subtotal)
	assert.True(t, o.Total.Equal(dec("231")), "got %s", o.Total)

	assert.True(t, o.TotalCommission().Equal(dec("19")))
	assert.True(t, o.TotalNet().Equal(dec("212")))
}

func TestComputeTotalsFloorsAtZero(t *testing.T) {
	o := &Order{
		DiscountPct: dec("150"),
		Lines:       []Line{{Qty: 1, UnitPrice: dec("100")}},
	}
	o.ComputeTotals()
	assert.True(t, o.Total.IsZero(), "got %s", o.Total)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCanceled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCanceled, true},
		{StatusDelivered, StatusCanceled, false},
		{StatusCanceled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCanceled} {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus(Status("archived")))
}
