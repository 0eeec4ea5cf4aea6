package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// MaxPeopleCount bounds the party size declared on join.
const MaxPeopleCount = 50

// JoinResult is returned to a device joining a table.
type JoinResult struct {
	Session model.TableSession  `json:"session"`
	Token   string              `json:"token"`
	State   *model.SessionState `json:"state"`
}

// JoinTable attaches a device to the live session of a table, opening one
// when the table has none, and issues a session token.
func (e *Engine) JoinTable(ctx context.Context, venueID, tableID string, peopleCount int) (*JoinResult, error) {
	if venueID == "" || tableID == "" {
		return nil, apperr.Validation("venue_id and table_id are required")
	}
	if peopleCount < 1 || peopleCount > MaxPeopleCount {
		return nil, apperr.Validation(fmt.Sprintf("people_count must be between 1 and %d", MaxPeopleCount))
	}
	menuVersion, err := e.catalog.MenuVersion(ctx, venueID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(http.StatusNotFound, apperr.CodeVenueNotFound, "venue not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load venue: %w", err)
	}

	var (
		st      *model.SessionState
		created bool
	)
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		// joins of one venue are serialised so a table never gets two live
		// sessions
		if err := e.store.Sessions.LockVenueTx(ctx, tx, venueID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.New(http.StatusNotFound, apperr.CodeVenueNotFound, "venue not found")
			}
			return fmt.Errorf("lock venue: %w", err)
		}
		sess, err := e.store.Sessions.FindLiveByTableTx(ctx, tx, venueID, tableID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			now := e.clock()
			sess = &model.TableSession{
				ID:           uuid.NewString(),
				VenueID:      venueID,
				TableID:      tableID,
				Status:       model.SessionOpen,
				PeopleCount:  peopleCount,
				OpenedAt:     now,
				LastActiveAt: now,
				StateVersion: 1,
			}
			if err := e.store.Sessions.CreateTx(ctx, tx, sess); err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("find session: %w", err)
		default:
			if err := e.store.Sessions.TouchTx(ctx, tx, sess.ID, e.clock()); err != nil {
				return fmt.Errorf("touch session: %w", err)
			}
		}
		st, err = e.stateTx(ctx, tx, sess.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	st.MenuVersion = menuVersion

	token, err := e.tokens.Issue(ctx, st.Session.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	slog.Info("billing: device joined table", "session_id", st.Session.ID, "venue_id", venueID,
		"table_id", tableID, "new_session", created)
	return &JoinResult{Session: st.Session, Token: token, State: st}, nil
}

// CloseSession ends a session on behalf of staff.  Tokens are revoked so
// guests can no longer act on it.  Closing a closed session is a no-op.
func (e *Engine) CloseSession(ctx context.Context, sessionID string) (*model.SessionState, error) {
	var (
		st      *model.SessionState
		changed bool
	)
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		changed, err = e.closeTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		st, err = e.stateTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := e.tokens.RevokeAll(ctx, sessionID); err != nil {
		slog.Warn("billing: token revocation failed", "session_id", sessionID, "error", err)
	}
	st.MenuVersion = e.menuVersion(ctx, st.Session.VenueID)
	if changed {
		e.publish(ctx, sessionID, EventStateChanged, st)
	}
	return st, nil
}

func (e *Engine) closeTx(ctx context.Context, tx *sql.Tx, sessionID string) (bool, error) {
	sess, err := e.lockedSessionTx(ctx, tx, sessionID)
	if err != nil {
		return false, err
	}
	if !sess.Live() {
		return false, nil
	}
	now := e.clock()
	if err := e.store.Sessions.SetStatusTx(ctx, tx, sessionID, model.SessionClosed, &now); err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	if _, err := e.store.Sessions.BumpVersionTx(ctx, tx, sessionID, now); err != nil {
		return false, fmt.Errorf("bump version: %w", err)
	}
	return true, nil
}
