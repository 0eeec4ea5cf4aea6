// Package queue defines the messages exchanged over the broker and the
// consumer that audits settled payments.
package queue

import (
	"encoding/json"
	"time"
)

// Exchange is the topic exchange every table event is published to.  The
// routing key is the event name, so consumers bind to "payment.*" or "#".
const Exchange = "table.events"

// TableEvent is the envelope published for each broadcast.  Room names the
// audience (a table session), Event the kind of change, Payload the body
// clients receive.
type TableEvent struct {
	Room       string          `json:"room"`
	Event      string          `json:"event"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewTableEvent encodes payload into an envelope stamped with now.
func NewTableEvent(room, event string, payload any, now time.Time) (TableEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return TableEvent{}, err
	}
	return TableEvent{
		Room:       room,
		Event:      event,
		OccurredAt: now.UTC().Format(time.RFC3339),
		Payload:    body,
	}, nil
}

// PaymentSettled is the subset of a payment the audit consumer needs.
type PaymentSettled struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Mode        string `json:"mode"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	BaseCents   int64  `json:"base_cents"`
	TipCents    int64  `json:"tip_cents"`
	SharesPaid  *int   `json:"shares_paid,omitempty"`
	ProviderRef string `json:"provider_ref,omitempty"`
	Allocations []struct {
		OrderItemID string `json:"order_item_id"`
		AmountCents int64  `json:"amount_cents"`
	} `json:"allocations"`
}
