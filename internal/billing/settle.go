package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/money"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// SettleOptions are the client-supplied extras of a settlement.
type SettleOptions struct {
	// TipPercent, when set, must reproduce the quote's tip.
	TipPercent  *float64
	ProviderRef *string
}

// SettleResult is the settled payment and the state after it.
type SettleResult struct {
	Payment model.PaymentIntent `json:"payment"`
	State   *model.SessionState `json:"state"`
}

type paymentPayload struct {
	Mode      string          `json:"mode"`
	Breakdown model.Breakdown `json:"breakdown"`
	TipCents  int64           `json:"tip_cents"`
}

// CreatePaymentForQuote settles a quote in one transaction.  The bill is
// re-read and the amount recomputed from scratch; the quote's stored amount
// is only compared against.  The session's stateVersion is moved with a
// compare-and-set so two settlements of quotes taken at the same version
// cannot both commit.
func (e *Engine) CreatePaymentForQuote(ctx context.Context, sessionID, quoteID string, opts SettleOptions) (*SettleResult, error) {
	if err := checkTipPercent(opts.TipPercent); err != nil {
		return nil, err
	}

	var (
		payment *model.PaymentIntent
		st      *model.SessionState
		mode    = "UNKNOWN"
	)
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		// lock before the first read; a missing session is reported after
		// the quote checks
		if _, err := e.store.Sessions.GetForUpdateTx(ctx, tx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lock session: %w", err)
		}
		now := e.clock()
		q, err := e.store.Quotes.GetTx(ctx, tx, quoteID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.QuoteInvalid()
		}
		if err != nil {
			return fmt.Errorf("load quote: %w", err)
		}
		if q.SessionID != sessionID || !now.Before(q.ExpiresAt) {
			return apperr.QuoteInvalid()
		}
		mode = q.Mode

		sess, err := e.liveSessionTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		b, err := e.loadBillTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if q.StateVersion != sess.StateVersion {
			return apperr.Stale("the bill changed after the quote was made")
		}

		var p pricing
		switch q.Mode {
		case model.ModeFull:
			p = priceFull(b)
		case model.ModeEven:
			p, err = e.priceEven(ctx, tx, sessionID, b, q.SplitPlanID, q.SharesToPay, true)
		case model.ModeSelected:
			p, err = priceSelected(b, q.SelectedItemIDs())
		default:
			return apperr.QuoteInvalid()
		}
		if err != nil {
			return err
		}
		if p.base <= 0 {
			return apperr.NothingToPay()
		}
		if p.base+q.TipCents != q.AmountCents {
			return apperr.Stale("the quoted amount no longer matches the bill")
		}

		allocs, left := money.Allocate(p.targets, b.paid, p.base)
		if left != 0 {
			return apperr.Stale("the amount could not be allocated to the bill")
		}
		if opts.TipPercent != nil && money.TipFromPercent(p.base, *opts.TipPercent) != q.TipCents {
			return apperr.New(http.StatusBadRequest, apperr.CodeTipMismatch,
				"tip percent does not match the quoted tip").
				With("tip_cents", q.TipCents)
		}

		version, err := e.store.Sessions.BumpVersionIfTx(ctx, tx, sessionID, q.StateVersion, now)
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Stale("another payment was settled first")
		}
		if err != nil {
			return fmt.Errorf("advance version: %w", err)
		}

		payload, err := json.Marshal(paymentPayload{Mode: q.Mode, Breakdown: p.breakdown, TipCents: q.TipCents})
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payment = &model.PaymentIntent{
			ID:          uuid.NewString(),
			SessionID:   sessionID,
			Mode:        q.Mode,
			Status:      model.PaymentCreated,
			AmountCents: q.AmountCents,
			BaseCents:   p.base,
			TipCents:    q.TipCents,
			SplitPlanID: p.planID,
			SharesPaid:  p.shares,
			Payload:     payload,
			CreatedAt:   now,
		}
		if opts.ProviderRef != nil {
			payment.ProviderRef = *opts.ProviderRef
		}
		if err := e.store.Payments.CreateIntentTx(ctx, tx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		payment.Allocations = make([]model.PaymentAllocation, 0, len(allocs))
		for _, a := range allocs {
			payment.Allocations = append(payment.Allocations,
				model.PaymentAllocation{PaymentID: payment.ID, OrderItemID: a.ItemID, AmountCents: a.AmountCents})
		}
		if err := e.store.Payments.CreateAllocationsTx(ctx, tx, payment.Allocations); err != nil {
			return fmt.Errorf("write allocations: %w", err)
		}
		if err := e.store.Payments.MarkPaidTx(ctx, tx, payment.ID, now); err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		payment.Status = model.PaymentPaid
		payment.PaidAt = &now

		if p.planID != nil {
			if err := e.store.SplitPlans.LockPlanTx(ctx, tx, *p.planID, now); err != nil {
				return fmt.Errorf("lock split plan: %w", err)
			}
		}
		if err := e.store.Quotes.DeleteTx(ctx, tx, q.ID); err != nil {
			return fmt.Errorf("consume quote: %w", err)
		}
		if b.totals.RemainingCents-p.base == 0 && sess.Status == model.SessionOpen {
			if err := e.store.Sessions.SetStatusTx(ctx, tx, sessionID, model.SessionCheckout, nil); err != nil {
				return fmt.Errorf("enter checkout: %w", err)
			}
		}

		st, err = e.stateTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if st.StateVersion != version {
			return fmt.Errorf("state version %d after settlement, expected %d", st.StateVersion, version)
		}
		return nil
	})
	if err != nil {
		e.observer.SettlementResult(mode, resultLabel(err))
		return nil, e.withFreshState(ctx, sessionID, err)
	}

	st.MenuVersion = e.menuVersion(ctx, st.Session.VenueID)
	e.observer.SettlementResult(mode, "paid")
	slog.Info("billing: payment settled", "session_id", sessionID, "payment_id", payment.ID,
		"mode", payment.Mode, "amount_cents", payment.AmountCents, "remaining_cents", st.Outstanding.RemainingCents)
	e.publish(ctx, sessionID, EventPaymentUpdated, payment)
	e.publish(ctx, sessionID, EventStateChanged, st)
	return &SettleResult{Payment: *payment, State: st}, nil
}

// resultLabel maps a settlement failure to a metric label.
func resultLabel(err error) string {
	if ae, ok := apperr.As(err); ok {
		return ae.Code
	}
	return "error"
}
