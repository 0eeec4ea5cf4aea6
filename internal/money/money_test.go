package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want int64
	}{
		{"plain", Line{UnitPriceCents: 450, Qty: 2}, 900},
		{"with modifiers", Line{UnitPriceCents: 1000, Qty: 3, Modifiers: []Modifier{{PriceDeltaCents: 150}, {PriceDeltaCents: -50}}}, 3300},
		{"zero qty", Line{UnitPriceCents: 1000, Qty: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineTotal(tt.line))
		})
	}
}

func TestOutstandingClampsAtZero(t *testing.T) {
	orders := [][]Line{
		{{ID: "a", UnitPriceCents: 500, Qty: 1}},
		{{ID: "b", UnitPriceCents: 250, Qty: 2}},
	}
	got := Outstanding(orders, map[string]int64{"a": 500, "b": 700})
	assert.Equal(t, int64(1000), got.BaseCents)
	assert.Equal(t, int64(1200), got.PaidCents)
	assert.Equal(t, int64(0), got.RemainingCents)

	got = Outstanding(orders, map[string]int64{"a": 200})
	assert.Equal(t, int64(800), got.RemainingCents)
}

func TestEvenSharesSumToRemaining(t *testing.T) {
	for remaining := int64(1); remaining <= 400; remaining += 7 {
		for n := 2; n <= 50; n++ {
			shares := EvenShares(remaining, n)
			require.Len(t, shares, n)
			assert.Equal(t, remaining, SumFirstShares(shares, n), "remaining=%d n=%d", remaining, n)
			for i := 1; i < n; i++ {
				assert.LessOrEqual(t, shares[i], shares[i-1])
			}
		}
	}
}

// Paying one share at a time and recomputing the distribution against what
// is left must reach zero after exactly n payments.
func TestEvenSharesSequentialTerminatesAtZero(t *testing.T) {
	for _, tc := range []struct {
		remaining int64
		shares    int
	}{{1000, 2}, {1000, 3}, {1001, 7}, {5, 4}, {99, 50}, {3, 2}} {
		remaining := tc.remaining
		for paid := 0; paid < tc.shares; paid++ {
			dist := EvenShares(remaining, tc.shares-paid)
			require.NotEmpty(t, dist)
			remaining -= SumFirstShares(dist, 1)
		}
		assert.Equal(t, int64(0), remaining, "case %+v", tc)
	}
}

func TestTipFromPercent(t *testing.T) {
	assert.Equal(t, int64(150), TipFromPercent(1000, 15))
	assert.Equal(t, int64(126), TipFromPercent(1005, 12.5))
	assert.Equal(t, int64(0), TipFromPercent(1000, 0))
}

func TestAllocateFirstFit(t *testing.T) {
	lines := []Line{
		{ID: "a", UnitPriceCents: 300, Qty: 1},
		{ID: "b", UnitPriceCents: 200, Qty: 1},
		{ID: "c", UnitPriceCents: 500, Qty: 1},
	}
	allocs, left := Allocate(lines, map[string]int64{"a": 300, "b": 50}, 400)
	require.Equal(t, int64(0), left)
	assert.Equal(t, []Allocation{{ItemID: "b", AmountCents: 150}, {ItemID: "c", AmountCents: 250}}, allocs)

	_, left = Allocate(lines, nil, 1500)
	assert.Equal(t, int64(500), left)
}
