package model

import "github.com/iliyamo/table-settlement/internal/money"

// SessionState is the canonical snapshot returned after every mutating
// guest operation and pushed to connected clients.
type SessionState struct {
	Session      TableSession    `json:"session"`
	Cart         []CartItem      `json:"cart"`
	OrdersActive []Order         `json:"orders_active"`
	Payments     []PaymentIntent `json:"payments"`
	Outstanding  money.Totals    `json:"outstanding"`
	StateVersion int64           `json:"state_version"`
	MenuVersion  int64           `json:"menu_version"`
}
