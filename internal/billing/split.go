package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// SplitPlanResult reports a plan and how many of its shares are paid.
type SplitPlanResult struct {
	Plan            model.SplitPlan `json:"plan"`
	PaidShares      int             `json:"paid_shares"`
	RemainingShares int             `json:"remaining_shares"`
	StateVersion    int64           `json:"state_version"`
}

// CreateOrUpdateSplitPlan sets the share count of the session's latest
// plan, creating one when none exists.  Once any share has been paid the
// denominator is frozen and only a no-op update is accepted.
func (e *Engine) CreateOrUpdateSplitPlan(ctx context.Context, sessionID string, totalShares int) (*SplitPlanResult, error) {
	if totalShares < model.MinShares || totalShares > model.MaxShares {
		return nil, apperr.New(http.StatusBadRequest, apperr.CodeInvalidSplit,
			fmt.Sprintf("total shares must be between %d and %d", model.MinShares, model.MaxShares)).
			With("total_shares", totalShares)
	}
	var res SplitPlanResult
	st, err := e.mutate(ctx, sessionID, func(tx *sql.Tx, s *model.TableSession) error {
		now := e.clock()
		plan, err := e.store.SplitPlans.LatestTx(ctx, tx, s.ID, true)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			plan = &model.SplitPlan{
				ID:          uuid.NewString(),
				SessionID:   s.ID,
				TotalShares: totalShares,
				BaseVersion: s.StateVersion,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := e.store.SplitPlans.CreateTx(ctx, tx, plan); err != nil {
				return fmt.Errorf("create split plan: %w", err)
			}
			res = SplitPlanResult{Plan: *plan, RemainingShares: totalShares}
			return nil
		case err != nil:
			return fmt.Errorf("load split plan: %w", err)
		}

		paid, err := e.store.Payments.PaidSharesTx(ctx, tx, plan.ID)
		if err != nil {
			return fmt.Errorf("count paid shares: %w", err)
		}
		if plan.Locked || paid > 0 {
			if plan.TotalShares != totalShares {
				return apperr.New(http.StatusConflict, apperr.CodeSplitPlanLocked,
					"split plan already has paid shares").
					With("total_shares", plan.TotalShares).
					With("paid_shares", paid)
			}
			if !plan.Locked {
				if err := e.store.SplitPlans.LockPlanTx(ctx, tx, plan.ID, now); err != nil {
					return fmt.Errorf("lock split plan: %w", err)
				}
				plan.Locked = true
				plan.UpdatedAt = now
			}
		} else {
			plan.TotalShares = totalShares
			plan.BaseVersion = s.StateVersion
			plan.UpdatedAt = now
			if err := e.store.SplitPlans.UpdateTx(ctx, tx, plan); err != nil {
				return fmt.Errorf("update split plan: %w", err)
			}
		}
		res = SplitPlanResult{Plan: *plan, PaidShares: paid, RemainingShares: plan.TotalShares - paid}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.StateVersion = st.StateVersion
	return &res, nil
}
