package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/table-settlement/internal/model"
)

// SessionRepo provides access to the table_sessions table.  Every method
// that changes the bill takes the caller's transaction so that the version
// bump commits or rolls back together with the change it fences.
type SessionRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSessionRepo returns a new SessionRepo bound to the provided database.
func NewSessionRepo(db *sql.DB, dialect Dialect) *SessionRepo {
	return &SessionRepo{db: db, dialect: dialect}
}

const sessionColumns = `id, venue_id, table_id, status, people_count, opened_at, closed_at, last_active_at, state_version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.TableSession, error) {
	var (
		s                      model.TableSession
		openedAt, lastActiveAt int64
		closedAt               sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.VenueID, &s.TableID, &s.Status, &s.PeopleCount,
		&openedAt, &closedAt, &lastActiveAt, &s.StateVersion); err != nil {
		return nil, err
	}
	s.OpenedAt = fromMillis(openedAt)
	s.LastActiveAt = fromMillis(lastActiveAt)
	s.ClosedAt = timePtr(closedAt)
	return &s, nil
}

// CreateTx inserts a new session.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.TableSession) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO table_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.VenueID, s.TableID, s.Status, s.PeopleCount,
		toMillis(s.OpenedAt), nullMillis(s.ClosedAt), toMillis(s.LastActiveAt), s.StateVersion)
	return err
}

// GetTx loads a session by ID.  It returns ErrNotFound when absent.
func (r *SessionRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.TableSession, error) {
	s, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM table_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetForUpdateTx is GetTx holding the row lock until the transaction ends.
// Mutations make it their first read: on MySQL the snapshot of later plain
// reads is then taken after every earlier writer of the session committed.
func (r *SessionRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.TableSession, error) {
	s, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM table_sessions WHERE id = ?`+forUpdate(r.dialect), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// LockVenueTx locks the venue row so that concurrent joins of the same
// venue run one after the other.  It returns ErrNotFound for an unknown
// venue.
func (r *SessionRepo) LockVenueTx(ctx context.Context, tx *sql.Tx, venueID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM venues WHERE id = ?`+forUpdate(r.dialect), venueID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// TouchTx records guest activity without changing the bill.
func (r *SessionRepo) TouchTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE table_sessions SET last_active_at = ? WHERE id = ?`, toMillis(now), id)
	return err
}

// Get loads a session outside of any transaction.
func (r *SessionRepo) Get(ctx context.Context, id string) (*model.TableSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM table_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// FindLiveByTableTx returns the newest non-closed session of a table.
func (r *SessionRepo) FindLiveByTableTx(ctx context.Context, tx *sql.Tx, venueID, tableID string) (*model.TableSession, error) {
	s, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM table_sessions
		 WHERE venue_id = ? AND table_id = ? AND status <> ?
		 ORDER BY opened_at DESC LIMIT 1`,
		venueID, tableID, model.SessionClosed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// BumpVersionTx increments state_version unconditionally, touches
// last_active_at and returns the new version.
func (r *SessionRepo) BumpVersionTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE table_sessions SET state_version = state_version + 1, last_active_at = ? WHERE id = ?`,
		toMillis(now), id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	var v int64
	err = tx.QueryRowContext(ctx, `SELECT state_version FROM table_sessions WHERE id = ?`, id).Scan(&v)
	return v, err
}

// BumpVersionIfTx increments state_version only when it still equals
// expected.  It returns ErrConflict when another writer moved the version
// first; this compare-and-set is the authoritative concurrency fence.
func (r *SessionRepo) BumpVersionIfTx(ctx context.Context, tx *sql.Tx, id string, expected int64, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE table_sessions SET state_version = state_version + 1, last_active_at = ?
		 WHERE id = ? AND state_version = ?`,
		toMillis(now), id, expected)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrConflict
	}
	return expected + 1, nil
}

// SetStatusTx changes the status and optionally the closing timestamp.
func (r *SessionRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id, status string, closedAt *time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE table_sessions SET status = ?, closed_at = ? WHERE id = ?`,
		status, nullMillis(closedAt), id)
	return err
}

// ListIdle returns IDs of live sessions inactive since before cutoff.
func (r *SessionRepo) ListIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	return r.listIDs(ctx,
		`SELECT id FROM table_sessions WHERE status <> ? AND last_active_at < ?`,
		model.SessionClosed, toMillis(cutoff))
}

// ListClosedBefore returns IDs of sessions closed before cutoff.
func (r *SessionRepo) ListClosedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return r.listIDs(ctx,
		`SELECT id FROM table_sessions WHERE status = ? AND closed_at IS NOT NULL AND closed_at < ?`,
		model.SessionClosed, toMillis(cutoff))
}

func (r *SessionRepo) listIDs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteTx hard-deletes a session; child rows cascade.
func (r *SessionRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM table_sessions WHERE id = ?`, id)
	return err
}
