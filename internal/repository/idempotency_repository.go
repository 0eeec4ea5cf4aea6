package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/table-settlement/internal/model"
)

// IdempotencyRepo provides access to idempotency_keys.  It works outside of
// any caller transaction: the placeholder insert must be visible to other
// requests before the wrapped handler starts.
type IdempotencyRepo struct {
	db *sql.DB
}

// NewIdempotencyRepo returns a new IdempotencyRepo bound to the provided database.
func NewIdempotencyRepo(db *sql.DB) *IdempotencyRepo { return &IdempotencyRepo{db: db} }

// Get loads the record for (scope, key).
func (r *IdempotencyRepo) Get(ctx context.Context, scope, key string) (*model.IdempotencyRecord, error) {
	var (
		rec                  model.IdempotencyRecord
		status               sql.NullInt64
		body                 []byte
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT scope, idem_key, request_hash, status_code, response_body, expires_at, created_at
		 FROM idempotency_keys WHERE scope = ? AND idem_key = ?`, scope, key).Scan(
		&rec.Scope, &rec.Key, &rec.RequestHash, &status, &body, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.StatusCode = intPtr(status)
	rec.ResponseBody = body
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.CreatedAt = fromMillis(createdAt)
	return &rec, nil
}

// Insert stores a placeholder record.  It returns ErrDuplicate when another
// writer already holds (scope, key).
func (r *IdempotencyRepo) Insert(ctx context.Context, rec *model.IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (scope, idem_key, request_hash, status_code, response_body, expires_at, created_at)
		 VALUES (?, ?, ?, NULL, NULL, ?, ?)`,
		rec.Scope, rec.Key, rec.RequestHash, toMillis(rec.ExpiresAt), toMillis(rec.CreatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Complete stores the response of the first execution.
func (r *IdempotencyRepo) Complete(ctx context.Context, scope, key string, status int, body []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_keys SET status_code = ?, response_body = ? WHERE scope = ? AND idem_key = ?`,
		status, body, scope, key)
	return err
}

// Delete removes a record.  hash guards against deleting a record that a
// different request re-created in the meantime.
func (r *IdempotencyRepo) Delete(ctx context.Context, scope, key, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE scope = ? AND idem_key = ? AND request_hash = ?`, scope, key, hash)
	return err
}

// DeleteExpired purges records past their expiry.
func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
