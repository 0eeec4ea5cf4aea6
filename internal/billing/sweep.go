package billing

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// SweepReport counts what one sweep removed.
type SweepReport struct {
	Closed        int
	Purged        int
	QuotesExpired int64
	KeysExpired   int64
}

// Sweep closes sessions idle since before now-idleTimeout, hard-deletes
// sessions closed before now-retention with all of their records, drops
// expired quotes and idempotency keys and revokes the affected tokens.
// A failure on one session is logged and the sweep moves on.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var rep SweepReport

	idle, err := e.store.Sessions.ListIdle(ctx, now.Add(-e.idleTimeout))
	if err != nil {
		return rep, err
	}
	for _, id := range idle {
		var changed bool
		err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			changed, err = e.closeTx(ctx, tx, id)
			return err
		})
		if err != nil {
			slog.Warn("sweep: close failed", "session_id", id, "error", err)
			continue
		}
		if changed {
			rep.Closed++
		}
		e.revoke(ctx, id)
	}

	expired, err := e.store.Sessions.ListClosedBefore(ctx, now.Add(-e.retention))
	if err != nil {
		return rep, err
	}
	for _, id := range expired {
		err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
			return e.store.Sessions.DeleteTx(ctx, tx, id)
		})
		if err != nil {
			slog.Warn("sweep: purge failed", "session_id", id, "error", err)
			continue
		}
		rep.Purged++
		e.revoke(ctx, id)
	}

	if rep.QuotesExpired, err = e.store.Quotes.DeleteExpired(ctx, now); err != nil {
		return rep, err
	}
	if rep.KeysExpired, err = e.store.Idempotency.DeleteExpired(ctx, now); err != nil {
		return rep, err
	}
	return rep, nil
}

func (e *Engine) revoke(ctx context.Context, sessionID string) {
	if err := e.tokens.RevokeAll(ctx, sessionID); err != nil {
		slog.Warn("sweep: token revocation failed", "session_id", sessionID, "error", err)
	}
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := e.Sweep(ctx, e.clock())
			if err != nil {
				slog.Error("sweep failed", "error", err)
				continue
			}
			if rep != (SweepReport{}) {
				slog.Info("sweep finished", "closed", rep.Closed, "purged", rep.Purged,
					"quotes_expired", rep.QuotesExpired, "keys_expired", rep.KeysExpired)
			}
		}
	}
}
