package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/table-settlement/internal/model"
)

// SessionSearchQuery defines filters & pagination for listing a venue's
// table sessions.
type SessionSearchQuery struct {
	VenueID  string
	Status   string // OPEN, CHECKOUT, CLOSED, "live" (OPEN or CHECKOUT) or "" for all
	TableID  string
	Page     int
	PageSize int
}

// Search lists sessions newest first and reports the total number of
// matches.
func (r *SessionRepo) Search(ctx context.Context, q SessionSearchQuery) ([]model.TableSession, int64, error) {
	where := []string{"venue_id = ?"}
	args := []any{q.VenueID}

	switch strings.ToUpper(q.Status) {
	case "":
	case "LIVE":
		where = append(where, "status <> ?")
		args = append(args, model.SessionClosed)
	default:
		where = append(where, "status = ?")
		args = append(args, strings.ToUpper(q.Status))
	}
	if q.TableID != "" {
		where = append(where, "table_id = ?")
		args = append(args, q.TableID)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM table_sessions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM table_sessions WHERE `+cond+`
		 ORDER BY opened_at DESC, id LIMIT ? OFFSET ?`, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.TableSession, 0, limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
