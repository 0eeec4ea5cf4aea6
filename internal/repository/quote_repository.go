package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/table-settlement/internal/model"
)

// QuoteRepo provides access to payment_quotes.
type QuoteRepo struct {
	db *sql.DB
}

// NewQuoteRepo returns a new QuoteRepo bound to the provided database.
func NewQuoteRepo(db *sql.DB) *QuoteRepo { return &QuoteRepo{db: db} }

const quoteColumns = `id, session_id, mode, amount_cents, base_cents, tip_cents, tip_percent, state_version, split_plan_id, shares_to_pay, breakdown, expires_at, created_at`

// CreateTx stores a quote.
func (r *QuoteRepo) CreateTx(ctx context.Context, tx *sql.Tx, q *model.PaymentQuote) error {
	breakdown, err := json.Marshal(q.Breakdown)
	if err != nil {
		return err
	}
	var pct sql.NullFloat64
	if q.TipPercent != nil {
		pct = sql.NullFloat64{Float64: *q.TipPercent, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_quotes (`+quoteColumns+`) VALUES (`+placeholders(13)+`)`,
		q.ID, q.SessionID, q.Mode, q.AmountCents, q.BaseCents, q.TipCents, pct, q.StateVersion,
		nullString(q.SplitPlanID), nullInt(q.SharesToPay), string(breakdown),
		toMillis(q.ExpiresAt), toMillis(q.CreatedAt))
	return err
}

// GetTx loads a quote by ID.
func (r *QuoteRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.PaymentQuote, error) {
	var (
		q                    model.PaymentQuote
		pct                  sql.NullFloat64
		planID               sql.NullString
		shares               sql.NullInt64
		breakdown            string
		expiresAt, createdAt int64
	)
	err := tx.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM payment_quotes WHERE id = ?`, id).Scan(
		&q.ID, &q.SessionID, &q.Mode, &q.AmountCents, &q.BaseCents, &q.TipCents, &pct, &q.StateVersion,
		&planID, &shares, &breakdown, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if pct.Valid {
		v := pct.Float64
		q.TipPercent = &v
	}
	q.SplitPlanID = stringPtr(planID)
	q.SharesToPay = intPtr(shares)
	if err := json.Unmarshal([]byte(breakdown), &q.Breakdown); err != nil {
		return nil, err
	}
	q.ExpiresAt = fromMillis(expiresAt)
	q.CreatedAt = fromMillis(createdAt)
	return &q, nil
}

// DeleteTx removes a consumed quote.
func (r *QuoteRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM payment_quotes WHERE id = ?`, id)
	return err
}

// DeleteExpired removes quotes whose expiry is at or before now.
func (r *QuoteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_quotes WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
