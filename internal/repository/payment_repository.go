package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/table-settlement/internal/model"
)

// PaymentRepo provides access to payment_intents and payment_allocations.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, session_id, mode, status, amount_cents, base_cents, tip_cents, split_plan_id, shares_paid, provider_ref, payload, created_at, paid_at`

// CreateIntentTx inserts a payment intent.
func (r *PaymentRepo) CreateIntentTx(ctx context.Context, tx *sql.Tx, p *model.PaymentIntent) error {
	payload := string(p.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_intents (`+paymentColumns+`) VALUES (`+placeholders(13)+`)`,
		p.ID, p.SessionID, p.Mode, p.Status, p.AmountCents, p.BaseCents, p.TipCents,
		nullString(p.SplitPlanID), nullInt(p.SharesPaid), p.ProviderRef, payload,
		toMillis(p.CreatedAt), nullMillis(p.PaidAt))
	return err
}

// CreateAllocationsTx writes the allocations of one payment.
func (r *PaymentRepo) CreateAllocationsTx(ctx context.Context, tx *sql.Tx, allocs []model.PaymentAllocation) error {
	if len(allocs) == 0 {
		return nil
	}
	query := `INSERT INTO payment_allocations (payment_id, order_item_id, amount_cents) VALUES `
	args := make([]any, 0, len(allocs)*3)
	for i, a := range allocs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, a.PaymentID, a.OrderItemID, a.AmountCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarkPaidTx moves a CREATED intent to PAID.  It returns ErrConflict when the
// intent is not in CREATED.
func (r *PaymentRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id string, paidAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents SET status = ?, paid_at = ? WHERE id = ? AND status = ?`,
		model.PaymentPaid, toMillis(paidAt), id, model.PaymentCreated)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ListBySessionTx returns every intent of a session, oldest first, with
// allocations attached.
func (r *PaymentRepo) ListBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.PaymentIntent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_intents WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	payments := make([]model.PaymentIntent, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			p         model.PaymentIntent
			planID    sql.NullString
			shares    sql.NullInt64
			payload   string
			createdAt int64
			paidAt    sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Mode, &p.Status, &p.AmountCents, &p.BaseCents,
			&p.TipCents, &planID, &shares, &p.ProviderRef, &payload, &createdAt, &paidAt); err != nil {
			rows.Close()
			return nil, err
		}
		p.SplitPlanID = stringPtr(planID)
		p.SharesPaid = intPtr(shares)
		p.Payload = []byte(payload)
		p.CreatedAt = fromMillis(createdAt)
		p.PaidAt = timePtr(paidAt)
		index[p.ID] = len(payments)
		payments = append(payments, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return payments, nil
	}

	allocRows, err := tx.QueryContext(ctx,
		`SELECT a.payment_id, a.order_item_id, a.amount_cents
		 FROM payment_allocations a
		 JOIN payment_intents p ON p.id = a.payment_id
		 WHERE p.session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var a model.PaymentAllocation
		if err := allocRows.Scan(&a.PaymentID, &a.OrderItemID, &a.AmountCents); err != nil {
			return nil, err
		}
		if i, ok := index[a.PaymentID]; ok {
			payments[i].Allocations = append(payments[i].Allocations, a)
		}
	}
	return payments, allocRows.Err()
}

// PaidByItemTx sums allocations from PAID payments per order item.
func (r *PaymentRepo) PaidByItemTx(ctx context.Context, tx *sql.Tx, sessionID string) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT a.order_item_id, SUM(a.amount_cents)
		 FROM payment_allocations a
		 JOIN payment_intents p ON p.id = a.payment_id
		 WHERE p.session_id = ? AND p.status = ?
		 GROUP BY a.order_item_id`, sessionID, model.PaymentPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	paid := make(map[string]int64)
	for rows.Next() {
		var (
			itemID string
			sum    int64
		)
		if err := rows.Scan(&itemID, &sum); err != nil {
			return nil, err
		}
		paid[itemID] = sum
	}
	return paid, rows.Err()
}

// CountAllocationsForItemTx counts allocations on an item regardless of
// the payment's status.
func (r *PaymentRepo) CountAllocationsForItemTx(ctx context.Context, tx *sql.Tx, itemID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_allocations WHERE order_item_id = ?`, itemID).Scan(&n)
	return n, err
}

// PaidSharesTx sums shares_paid over PAID payments referencing a plan.
func (r *PaymentRepo) PaidSharesTx(ctx context.Context, tx *sql.Tx, planID string) (int, error) {
	var n sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT SUM(shares_paid) FROM payment_intents WHERE split_plan_id = ? AND status = ?`,
		planID, model.PaymentPaid).Scan(&n)
	return int(n.Int64), err
}
