// Package money computes bill totals from immutable snapshots.  Every amount
// is an int64 number of cents; nothing here performs I/O.
package money

import "math"

// Modifier is a priced option attached to a line.
type Modifier struct {
	PriceDeltaCents int64
}

// Line is the pricing view of a cart or order item.
type Line struct {
	ID             string
	UnitPriceCents int64
	Qty            int64
	Modifiers      []Modifier
}

// Totals is the outstanding view of a bill.
type Totals struct {
	BaseCents      int64 `json:"base_cents"`
	PaidCents      int64 `json:"paid_cents"`
	RemainingCents int64 `json:"remaining_cents"`
}

// LineTotal returns (unitPrice + Σ priceDelta) × qty.
func LineTotal(l Line) int64 {
	unit := l.UnitPriceCents
	for _, m := range l.Modifiers {
		unit += m.PriceDeltaCents
	}
	return unit * l.Qty
}

// OrderTotal sums the line totals of one order.
func OrderTotal(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += LineTotal(l)
	}
	return total
}

// OrdersTotal sums several orders.
func OrdersTotal(orders [][]Line) int64 {
	var total int64
	for _, o := range orders {
		total += OrderTotal(o)
	}
	return total
}

// Outstanding computes base, paid and remaining.  paidByItem holds the sum
// of allocations from PAID payments keyed by order item ID.  Remaining is
// clamped at zero.
func Outstanding(orders [][]Line, paidByItem map[string]int64) Totals {
	base := OrdersTotal(orders)
	var paid int64
	for _, v := range paidByItem {
		paid += v
	}
	remaining := base - paid
	if remaining < 0 {
		remaining = 0
	}
	return Totals{BaseCents: base, PaidCents: paid, RemainingCents: remaining}
}

// ItemRemaining is the unpaid capacity of a single line.
func ItemRemaining(l Line, paid int64) int64 {
	r := LineTotal(l) - paid
	if r < 0 {
		return 0
	}
	return r
}

// EvenShares distributes remaining over n shares.  The first remaining%n
// shares carry the extra cent so that paying n shares one at a time always
// lands exactly on zero.
func EvenShares(remaining int64, n int) []int64 {
	if n <= 0 || remaining <= 0 {
		return nil
	}
	base := remaining / int64(n)
	rem := remaining % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares
}

// SumFirstShares returns the cost of the first k shares.
func SumFirstShares(shares []int64, k int) int64 {
	var sum int64
	for i := 0; i < k && i < len(shares); i++ {
		sum += shares[i]
	}
	return sum
}

// TipFromPercent rounds base × percent / 100 half away from zero.
func TipFromPercent(base int64, percent float64) int64 {
	return int64(math.Round(float64(base) * percent / 100))
}

// Allocation is one slice of a payment assigned to a line.
type Allocation struct {
	ItemID      string
	AmountCents int64
}

// Allocate spreads amount over lines in the given order, filling each line's
// remaining capacity before moving on.  It returns the allocations and the
// part of amount that could not be placed.
func Allocate(lines []Line, paidByItem map[string]int64, amount int64) ([]Allocation, int64) {
	var out []Allocation
	left := amount
	for _, l := range lines {
		if left <= 0 {
			break
		}
		capacity := ItemRemaining(l, paidByItem[l.ID])
		if capacity <= 0 {
			continue
		}
		take := capacity
		if take > left {
			take = left
		}
		out = append(out, Allocation{ItemID: l.ID, AmountCents: take})
		left -= take
	}
	return out, left
}
