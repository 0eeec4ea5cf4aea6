package billing

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
)

func TestEvenSplitTwoWays(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger")
	_, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeEven, SharesToPay: intp(1)})
		assert.Equal(t, int64(500), q.Quote.AmountCents, "share %d", i+1)
		res := f.settle(sess.ID, q.Quote.ID)
		assert.Equal(t, model.PaymentPaid, res.Payment.Status)
		require.NotNil(t, res.Payment.SharesPaid)
		assert.Equal(t, 1, *res.Payment.SharesPaid)
	}

	st := f.state(sess.ID)
	assert.Equal(t, int64(0), st.Outstanding.RemainingCents)
	assert.Equal(t, int64(1000), st.Outstanding.PaidCents)
	assert.Equal(t, model.SessionCheckout, st.Session.Status)

	_, err = f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeEven, StateVersion: st.StateVersion})
	requireCode(t, err, apperr.CodeNothingToPay)
}

func TestFullSettlementAllocatesFirstFit(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	ids := itemIDs(f.order(sess.ID, "burger", "fries"))
	f.pub.reset()

	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull, TipCents: int64p(100)})
	res, err := f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{ProviderRef: strp("mock-1")})
	require.NoError(t, err)

	p := res.Payment
	assert.Equal(t, int64(1550), p.AmountCents)
	assert.Equal(t, int64(1450), p.BaseCents)
	assert.Equal(t, int64(100), p.TipCents)
	assert.Equal(t, "mock-1", p.ProviderRef)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, []model.PaymentAllocation{
		{PaymentID: p.ID, OrderItemID: ids[0], AmountCents: 1000},
		{PaymentID: p.ID, OrderItemID: ids[1], AmountCents: 450},
	}, p.Allocations)

	var payload paymentPayload
	require.NoError(t, json.Unmarshal(p.Payload, &payload))
	assert.Equal(t, model.ModeFull, payload.Mode)
	assert.Equal(t, int64(100), payload.TipCents)

	assert.Equal(t, int64(0), res.State.Outstanding.RemainingCents)
	assert.Equal(t, q.Quote.StateVersion+1, res.State.StateVersion)
	require.Len(t, res.State.Payments, 1)
	assert.Equal(t, []string{EventPaymentUpdated, EventStateChanged}, f.pub.names())
	assert.Equal(t, Room(sess.ID), f.pub.events[0].Room)

	_, err = f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{})
	requireCode(t, err, apperr.CodeQuoteInvalid)
}

func TestSettlementRejectsStaleQuote(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger")
	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull})

	_, err := f.engine.AddCartItemForSession(f.ctx, sess.ID, AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: 1})
	require.NoError(t, err)

	_, err = f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{})
	ae := requireCode(t, err, apperr.CodeStaleState)
	fresh, ok := ae.Context["state"].(*model.SessionState)
	require.True(t, ok)
	assert.Equal(t, q.Quote.StateVersion+1, fresh.StateVersion)
	assert.Empty(t, fresh.Payments, "nothing persisted by the failed settlement")
}

func TestOverlappingSelectedQuotes(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	ids := itemIDs(f.order(sess.ID, "burger", "fries"))

	a := f.quote(sess.ID, QuoteRequest{Mode: model.ModeSelected, ItemIDs: []string{ids[0]}})
	b := f.quote(sess.ID, QuoteRequest{Mode: model.ModeSelected, ItemIDs: []string{ids[0], ids[1]}})
	require.Equal(t, a.Quote.StateVersion, b.Quote.StateVersion)

	f.settle(sess.ID, a.Quote.ID)
	_, err := f.engine.CreatePaymentForQuote(f.ctx, sess.ID, b.Quote.ID, SettleOptions{})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeStaleState) || apperr.HasCode(err, apperr.CodeItemsAlreadyPaid), err.Error())

	st := f.state(sess.ID)
	assert.Equal(t, int64(1000), st.Outstanding.PaidCents)
	assert.Equal(t, int64(450), st.Outstanding.RemainingCents)
}

func TestSettlementQuoteValidity(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	other := f.join("T2").Session
	f.order(sess.ID, "burger")

	_, err := f.engine.CreatePaymentForQuote(f.ctx, sess.ID, "missing", SettleOptions{})
	requireCode(t, err, apperr.CodeQuoteInvalid)

	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull})
	_, err = f.engine.CreatePaymentForQuote(f.ctx, other.ID, q.Quote.ID, SettleOptions{})
	requireCode(t, err, apperr.CodeQuoteInvalid)

	f.clock.Advance(DefaultQuoteTTL)
	_, err = f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{})
	requireCode(t, err, apperr.CodeQuoteInvalid)
}

func TestSettlementTipPercentCheck(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger")
	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull, TipPercent: floatp(10)})
	require.Equal(t, int64(100), q.Quote.TipCents)

	_, err := f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{TipPercent: floatp(15)})
	requireCode(t, err, apperr.CodeTipMismatch)

	res, err := f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{TipPercent: floatp(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1100), res.Payment.AmountCents)
	assert.Equal(t, int64(1000), res.State.Outstanding.PaidCents, "tips are not allocated to items")
}

func TestConcurrentSettlementsOfOneVersion(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger", "fries")
	_, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 4)
	require.NoError(t, err)

	const n = 6
	quotes := make([]*QuoteResult, n)
	for i := range quotes {
		mode := model.ModeEven
		if i%2 == 1 {
			mode = model.ModeFull
		}
		quotes[i] = f.quote(sess.ID, QuoteRequest{Mode: mode})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		paid     int
		failures []error
	)
	for _, q := range quotes {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.engine.CreatePaymentForQuote(f.ctx, sess.ID, id, SettleOptions{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				paid++
				return
			}
			failures = append(failures, err)
		}(q.Quote.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, paid)
	for _, err := range failures {
		assert.True(t, apperr.HasCode(err, apperr.CodeStaleState), err.Error())
	}
	st := f.state(sess.ID)
	require.Len(t, st.Payments, 1)
	assert.Equal(t, st.Payments[0].BaseCents, st.Outstanding.PaidCents)
}

func TestSweepLifecycle(t *testing.T) {
	f := newFixture(t)
	idle := f.join("T1")
	f.order(idle.Session.ID, "soda")
	q := f.quote(idle.Session.ID, QuoteRequest{Mode: model.ModeFull})

	start := f.clock.Now()
	rep, err := f.engine.Sweep(f.ctx, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, rep, "nothing is idle or expired yet")

	f.clock.Advance(4 * time.Hour)
	rep, err = f.engine.Sweep(f.ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Closed)
	assert.Equal(t, int64(1), rep.QuotesExpired)
	assert.Equal(t, model.SessionClosed, f.state(idle.Session.ID).Session.Status)
	ok, err := f.engine.Tokens().Validate(f.ctx, idle.Session.ID, idle.Token)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = f.engine.CreatePaymentForQuote(f.ctx, idle.Session.ID, q.Quote.ID, SettleOptions{})
	requireCode(t, err, apperr.CodeQuoteInvalid)

	f.clock.Advance(DefaultRetention + time.Hour)
	rep, err = f.engine.Sweep(f.ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Purged)
	_, err = f.engine.SessionState(f.ctx, idle.Session.ID)
	requireCode(t, err, apperr.CodeSessionNotFound)
}
