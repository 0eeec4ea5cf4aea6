package model

import "time"

// Split plan share bounds.
const (
	MinShares = 2
	MaxShares = 50
)

// SplitPlan is an even-split arrangement for a session.  Once a share has
// been paid the plan is locked and TotalShares can no longer change.
type SplitPlan struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	TotalShares int       `json:"total_shares"`
	BaseVersion int64     `json:"base_version"`
	Locked      bool      `json:"locked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
