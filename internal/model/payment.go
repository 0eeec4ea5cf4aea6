package model

import (
	"encoding/json"
	"time"
)

// Payment modes.
const (
	ModeFull     = "FULL"
	ModeEven     = "EVEN"
	ModeSelected = "SELECTED"
)

// Payment intent statuses.
const (
	PaymentCreated   = "CREATED"
	PaymentPending   = "PENDING"
	PaymentPaid      = "PAID"
	PaymentFailed    = "FAILED"
	PaymentCancelled = "CANCELLED"
)

// PaymentIntent records one guest payment.  It is created in CREATED and
// moved to PAID in the same transaction that writes its allocations; it is
// never mutated after PAID.  AmountCents = BaseCents + TipCents.
type PaymentIntent struct {
	ID          string              `json:"id"`
	SessionID   string              `json:"session_id"`
	Mode        string              `json:"mode"`
	Status      string              `json:"status"`
	AmountCents int64               `json:"amount_cents"`
	BaseCents   int64               `json:"base_cents"`
	TipCents    int64               `json:"tip_cents"`
	SplitPlanID *string             `json:"split_plan_id,omitempty"`
	SharesPaid  *int                `json:"shares_paid,omitempty"`
	ProviderRef string              `json:"provider_ref,omitempty"`
	Payload     json.RawMessage     `json:"payload,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	PaidAt      *time.Time          `json:"paid_at,omitempty"`
	Allocations []PaymentAllocation `json:"allocations,omitempty"`
}

// PaymentAllocation assigns part of a payment to an order item.
type PaymentAllocation struct {
	PaymentID   string `json:"payment_id"`
	OrderItemID string `json:"order_item_id"`
	AmountCents int64  `json:"amount_cents"`
}

// ItemShare is one entry of a SELECTED breakdown.
type ItemShare struct {
	OrderItemID string `json:"order_item_id"`
	AmountCents int64  `json:"amount_cents"`
}

// Breakdown explains how a quote amount was derived.  Only the fields of
// the quote's mode are set.
type Breakdown struct {
	Mode            string      `json:"mode"`
	RemainingBefore int64       `json:"remaining_before"`
	Items           []ItemShare `json:"items,omitempty"`
	ShareCosts      []int64     `json:"share_costs,omitempty"`
	TotalShares     int         `json:"total_shares,omitempty"`
	PaidShares      int         `json:"paid_shares,omitempty"`
	TipCents        int64       `json:"tip_cents"`
	TipPercent      *float64    `json:"tip_percent,omitempty"`
}

// PaymentQuote binds an amount to the StateVersion it was computed against.
// Quotes never mutate the bill; they are consumed or expire.
type PaymentQuote struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Mode         string    `json:"mode"`
	AmountCents  int64     `json:"amount_cents"`
	BaseCents    int64     `json:"base_cents"`
	TipCents     int64     `json:"tip_cents"`
	TipPercent   *float64  `json:"tip_percent,omitempty"`
	StateVersion int64     `json:"state_version"`
	SplitPlanID  *string   `json:"split_plan_id,omitempty"`
	SharesToPay  *int      `json:"shares_to_pay,omitempty"`
	Breakdown    Breakdown `json:"breakdown"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// SelectedItemIDs returns the order item IDs of a SELECTED quote.
func (q *PaymentQuote) SelectedItemIDs() []string {
	ids := make([]string, 0, len(q.Breakdown.Items))
	for _, it := range q.Breakdown.Items {
		ids = append(ids, it.OrderItemID)
	}
	return ids
}
