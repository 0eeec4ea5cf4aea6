package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/money"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// pricing is the mode-specific base amount computed from a bill, together
// with the lines the amount may be allocated to.
type pricing struct {
	base      int64
	breakdown model.Breakdown
	planID    *string
	shares    *int
	targets   []money.Line
}

func priceFull(b *bill) pricing {
	return pricing{
		base:      b.totals.RemainingCents,
		breakdown: model.Breakdown{Mode: model.ModeFull, RemainingBefore: b.totals.RemainingCents},
		targets:   b.lines(),
	}
}

// priceEven resolves the split plan and charges the first shares of the
// even distribution of what remains.  When exact is false the requested
// share count is clamped; when true it must still fit.
func (e *Engine) priceEven(ctx context.Context, tx *sql.Tx, sessionID string, b *bill,
	planID *string, requested *int, exact bool) (pricing, error) {
	var (
		plan *model.SplitPlan
		err  error
	)
	lock := exact
	if planID != nil && *planID != "" {
		plan, err = e.store.SplitPlans.GetTx(ctx, tx, *planID, lock)
		if err == nil && plan.SessionID != sessionID {
			err = repository.ErrNotFound
		}
		if errors.Is(err, repository.ErrNotFound) {
			return pricing{}, apperr.New(http.StatusNotFound, apperr.CodeSplitPlanNotFound, "split plan not found")
		}
	} else {
		plan, err = e.store.SplitPlans.LatestTx(ctx, tx, sessionID, lock)
		if errors.Is(err, repository.ErrNotFound) {
			return pricing{}, apperr.New(http.StatusConflict, apperr.CodeSplitPlanRequired,
				"create a split plan before paying a share")
		}
	}
	if err != nil {
		return pricing{}, fmt.Errorf("load split plan: %w", err)
	}

	paid, err := e.store.Payments.PaidSharesTx(ctx, tx, plan.ID)
	if err != nil {
		return pricing{}, fmt.Errorf("count paid shares: %w", err)
	}
	remainingShares := plan.TotalShares - paid
	if remainingShares <= 0 || b.totals.RemainingCents <= 0 {
		return pricing{}, apperr.NothingToPay().With("split_plan_id", plan.ID)
	}

	shares := 1
	if requested != nil {
		shares = *requested
	}
	if exact {
		if shares < 1 || shares > remainingShares {
			return pricing{}, apperr.Stale("shares left on the split plan changed")
		}
	} else {
		shares = max(1, min(shares, remainingShares))
	}

	dist := money.EvenShares(b.totals.RemainingCents, remainingShares)
	id := plan.ID
	return pricing{
		base: money.SumFirstShares(dist, shares),
		breakdown: model.Breakdown{
			Mode:            model.ModeEven,
			RemainingBefore: b.totals.RemainingCents,
			ShareCosts:      dist[:shares],
			TotalShares:     plan.TotalShares,
			PaidShares:      paid,
		},
		planID:  &id,
		shares:  &shares,
		targets: b.lines(),
	}, nil
}

// priceSelected charges the remaining amount of each selected item.  An
// unknown or fully paid item fails the whole request.
func priceSelected(b *bill, itemIDs []string) (pricing, error) {
	if len(itemIDs) == 0 {
		return pricing{}, apperr.Validation("item_ids is required for SELECTED payments")
	}
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var conflicts []string
	for id := range wanted {
		l, ok := b.item(id)
		if !ok || money.ItemRemaining(l, b.paid[id]) <= 0 {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		slices.Sort(conflicts)
		return pricing{}, apperr.New(http.StatusConflict, apperr.CodeItemsAlreadyPaid,
			"some selected items are already paid").With("conflicts", conflicts)
	}

	p := pricing{breakdown: model.Breakdown{Mode: model.ModeSelected, RemainingBefore: b.totals.RemainingCents}}
	// session order keeps the breakdown and allocation deterministic
	for _, l := range b.lines() {
		if !wanted[l.ID] {
			continue
		}
		r := money.ItemRemaining(l, b.paid[l.ID])
		p.base += r
		p.breakdown.Items = append(p.breakdown.Items, model.ItemShare{OrderItemID: l.ID, AmountCents: r})
		p.targets = append(p.targets, l)
	}
	return p, nil
}

func invalidTip(msg string) *apperr.Error {
	return apperr.New(http.StatusBadRequest, apperr.CodeInvalidTip, msg)
}

func checkTipPercent(pct *float64) error {
	if pct != nil && (*pct < 0 || *pct > 100) {
		return invalidTip("tip percent must be between 0 and 100")
	}
	return nil
}

// resolveTip applies explicit cents first, then a percentage of base.
func resolveTip(base int64, tipCents *int64, tipPercent *float64) (int64, error) {
	if tipCents != nil {
		if *tipCents < 0 {
			return 0, invalidTip("tip must not be negative")
		}
		return *tipCents, nil
	}
	if err := checkTipPercent(tipPercent); err != nil {
		return 0, err
	}
	if tipPercent != nil {
		return money.TipFromPercent(base, *tipPercent), nil
	}
	return 0, nil
}
