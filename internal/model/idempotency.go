package model

import "time"

// IdempotencyRecord caches the first response produced for (Scope, Key).
// A nil StatusCode means the first request is still executing.
type IdempotencyRecord struct {
	Scope        string
	Key          string
	RequestHash  string
	StatusCode   *int
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Completed reports whether a response has been stored.
func (r *IdempotencyRecord) Completed() bool { return r.StatusCode != nil }

// Expired reports whether the record is past its expiry at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }
