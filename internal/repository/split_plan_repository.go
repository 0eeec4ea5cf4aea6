package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/table-settlement/internal/model"
)

// SplitPlanRepo provides access to split_plans.  The lock variants take a
// row lock so that concurrent share purchases on one plan serialise.
type SplitPlanRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSplitPlanRepo returns a new SplitPlanRepo bound to the provided database.
func NewSplitPlanRepo(db *sql.DB, dialect Dialect) *SplitPlanRepo {
	return &SplitPlanRepo{db: db, dialect: dialect}
}

const splitPlanColumns = `id, session_id, total_shares, base_version, locked, created_at, updated_at`

func scanSplitPlan(row rowScanner) (*model.SplitPlan, error) {
	var (
		p                    model.SplitPlan
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.TotalShares, &p.BaseVersion, &p.Locked, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// LatestTx returns the most recently created plan of a session.  When lock
// is true the row is locked for the rest of the transaction.
func (r *SplitPlanRepo) LatestTx(ctx context.Context, tx *sql.Tx, sessionID string, lock bool) (*model.SplitPlan, error) {
	q := `SELECT ` + splitPlanColumns + ` FROM split_plans WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	if lock {
		q += forUpdate(r.dialect)
	}
	return scanSplitPlan(tx.QueryRowContext(ctx, q, sessionID))
}

// GetTx loads a plan by ID, optionally locking it.
func (r *SplitPlanRepo) GetTx(ctx context.Context, tx *sql.Tx, id string, lock bool) (*model.SplitPlan, error) {
	q := `SELECT ` + splitPlanColumns + ` FROM split_plans WHERE id = ?`
	if lock {
		q += forUpdate(r.dialect)
	}
	return scanSplitPlan(tx.QueryRowContext(ctx, q, id))
}

// CreateTx inserts a plan.
func (r *SplitPlanRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.SplitPlan) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO split_plans (`+splitPlanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.TotalShares, p.BaseVersion, p.Locked, toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	return err
}

// UpdateTx persists total_shares, base_version and locked.
func (r *SplitPlanRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.SplitPlan) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE split_plans SET total_shares = ?, base_version = ?, locked = ?, updated_at = ? WHERE id = ?`,
		p.TotalShares, p.BaseVersion, p.Locked, toMillis(p.UpdatedAt), p.ID)
	return err
}

// LockPlanTx marks a plan locked.
func (r *SplitPlanRepo) LockPlanTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE split_plans SET locked = ?, updated_at = ? WHERE id = ?`, true, toMillis(now), id)
	return err
}
