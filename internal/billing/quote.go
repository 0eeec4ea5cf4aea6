package billing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
)

// QuoteRequest asks for the amount of a payment at a known stateVersion.
type QuoteRequest struct {
	Mode         string
	StateVersion int64
	SplitPlanID  *string
	SharesToPay  *int
	ItemIDs      []string
	TipCents     *int64
	TipPercent   *float64
}

// QuoteResult is a stored quote with display data.
type QuoteResult struct {
	Quote           model.PaymentQuote `json:"quote"`
	Currency        string             `json:"currency"`
	RemainingBefore int64              `json:"remaining_before"`
}

func validMode(mode string) bool {
	switch mode {
	case model.ModeFull, model.ModeEven, model.ModeSelected:
		return true
	}
	return false
}

// CreatePaymentQuote computes and stores a quote.  Quotes never change the
// bill; settlement re-checks everything against the live state.
func (e *Engine) CreatePaymentQuote(ctx context.Context, sessionID string, req QuoteRequest) (*QuoteResult, error) {
	if !validMode(req.Mode) {
		return nil, apperr.New(http.StatusBadRequest, apperr.CodeInvalidMode, "mode must be FULL, EVEN or SELECTED").
			With("mode", req.Mode)
	}
	if req.TipCents != nil && *req.TipCents < 0 {
		return nil, invalidTip("tip must not be negative")
	}
	if err := checkTipPercent(req.TipPercent); err != nil {
		return nil, err
	}

	var (
		quote *model.PaymentQuote
		sess  *model.TableSession
	)
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		sess, err = e.liveSessionTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		b, err := e.loadBillTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if req.StateVersion != sess.StateVersion {
			return apperr.Stale("the bill changed since it was displayed").
				With("expected_version", sess.StateVersion)
		}
		if b.totals.RemainingCents <= 0 {
			return apperr.NothingToPay()
		}

		var p pricing
		switch req.Mode {
		case model.ModeFull:
			p = priceFull(b)
		case model.ModeEven:
			p, err = e.priceEven(ctx, tx, sessionID, b, req.SplitPlanID, req.SharesToPay, false)
		case model.ModeSelected:
			p, err = priceSelected(b, req.ItemIDs)
		}
		if err != nil {
			return err
		}

		tip, err := resolveTip(p.base, req.TipCents, req.TipPercent)
		if err != nil {
			return err
		}
		amount := p.base + tip
		if amount <= 0 || p.base > b.totals.RemainingCents {
			return apperr.NothingToPay()
		}
		p.breakdown.TipCents = tip
		p.breakdown.TipPercent = req.TipPercent

		now := e.clock()
		quote = &model.PaymentQuote{
			ID:           uuid.NewString(),
			SessionID:    sessionID,
			Mode:         req.Mode,
			AmountCents:  amount,
			BaseCents:    p.base,
			TipCents:     tip,
			TipPercent:   req.TipPercent,
			StateVersion: sess.StateVersion,
			SplitPlanID:  p.planID,
			SharesToPay:  p.shares,
			Breakdown:    p.breakdown,
			ExpiresAt:    now.Add(e.quoteTTL),
			CreatedAt:    now,
		}
		if err := e.store.Quotes.CreateTx(ctx, tx, quote); err != nil {
			return fmt.Errorf("store quote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, e.withFreshState(ctx, sessionID, err)
	}

	e.observer.QuoteCreated(quote.Mode)
	slog.Debug("billing: quote created", "session_id", sessionID, "quote_id", quote.ID,
		"mode", quote.Mode, "amount_cents", quote.AmountCents, "state_version", quote.StateVersion)
	return &QuoteResult{
		Quote:           *quote,
		Currency:        e.venueCurrency(ctx, sess.VenueID),
		RemainingBefore: quote.Breakdown.RemainingBefore,
	}, nil
}
