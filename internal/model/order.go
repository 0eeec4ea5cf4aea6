package model

import (
	"time"

	"github.com/iliyamo/table-settlement/internal/money"
)

// Order statuses.
const (
	OrderSubmitted = "SUBMITTED"
	OrderCancelled = "CANCELLED"
)

// Modifier is a selected menu option captured at cart-add time.
type Modifier struct {
	OptionID        string `json:"option_id"`
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

// CartItem is a line in the shared cart of a session.  Prices are copied
// from the catalog when the item is added.
type CartItem struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	MenuItemID     string     `json:"menu_item_id"`
	Name           string     `json:"name"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	Modifiers      []Modifier `json:"modifiers"`
	Note           string     `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LineTotalCents int64      `json:"line_total_cents"`
}

// Order groups the items submitted together from one cart snapshot.  Seq
// orders submissions within a session.
type Order struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Seq       int         `json:"seq"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	Items     []OrderItem `json:"items"`
}

// OrderItem is immutable once created.  PaidCents and RemainingCents are
// filled by the state assembler from PAID allocations.
type OrderItem struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	SessionID      string     `json:"session_id"`
	Position       int        `json:"position"`
	MenuItemID     string     `json:"menu_item_id"`
	Name           string     `json:"name"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	Modifiers      []Modifier `json:"modifiers"`
	LineTotalCents int64      `json:"line_total_cents"`
	PaidCents      int64      `json:"paid_cents"`
	RemainingCents int64      `json:"remaining_cents"`
}

// Line converts the item to its pricing view.
func (i OrderItem) Line() money.Line {
	return money.Line{ID: i.ID, UnitPriceCents: i.UnitPriceCents, Qty: int64(i.Qty), Modifiers: moneyModifiers(i.Modifiers)}
}

// Line converts the cart item to its pricing view.
func (c CartItem) Line() money.Line {
	return money.Line{ID: c.ID, UnitPriceCents: c.UnitPriceCents, Qty: int64(c.Qty), Modifiers: moneyModifiers(c.Modifiers)}
}

// Lines returns the pricing view of every item of the order.
func (o Order) Lines() []money.Line {
	lines := make([]money.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, it.Line())
	}
	return lines
}

func moneyModifiers(mods []Modifier) []money.Modifier {
	out := make([]money.Modifier, 0, len(mods))
	for _, m := range mods {
		out = append(out, money.Modifier{PriceDeltaCents: m.PriceDeltaCents})
	}
	return out
}
