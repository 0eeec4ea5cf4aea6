package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
)

func TestQuoteModes(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	st := f.order(sess.ID, "burger", "fries", "soda")
	ids := itemIDs(st)

	full := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull})
	assert.Equal(t, int64(1750), full.Quote.AmountCents)
	assert.Equal(t, int64(1750), full.RemainingBefore)
	assert.Equal(t, "EUR", full.Currency)
	assert.Equal(t, st.StateVersion, full.Quote.StateVersion)
	assert.Equal(t, full.Quote.CreatedAt.Add(DefaultQuoteTTL), full.Quote.ExpiresAt)

	sel := f.quote(sess.ID, QuoteRequest{Mode: model.ModeSelected, ItemIDs: []string{ids[2], ids[0]}})
	assert.Equal(t, int64(1300), sel.Quote.AmountCents)
	require.Len(t, sel.Quote.Breakdown.Items, 2)
	assert.Equal(t, ids[0], sel.Quote.Breakdown.Items[0].OrderItemID, "breakdown follows session order")

	_, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 3)
	require.NoError(t, err)
	even := f.quote(sess.ID, QuoteRequest{Mode: model.ModeEven, SharesToPay: intp(2)})
	// 1750 / 3 -> 584, 583, 583
	assert.Equal(t, int64(584+583), even.Quote.AmountCents)
	assert.Equal(t, []int64{584, 583}, even.Quote.Breakdown.ShareCosts)
	require.NotNil(t, even.Quote.SharesToPay)
	assert.Equal(t, 2, *even.Quote.SharesToPay)

	clamped := f.quote(sess.ID, QuoteRequest{Mode: model.ModeEven, SharesToPay: intp(10)})
	assert.Equal(t, int64(1750), clamped.Quote.AmountCents)
	assert.Equal(t, 3, *clamped.Quote.SharesToPay)
}

func TestQuoteTips(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger")

	pct := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull, TipPercent: floatp(12.5)})
	assert.Equal(t, int64(125), pct.Quote.TipCents)
	assert.Equal(t, int64(1125), pct.Quote.AmountCents)
	assert.Equal(t, int64(1000), pct.Quote.BaseCents)

	explicit := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull, TipCents: int64p(200), TipPercent: floatp(50)})
	assert.Equal(t, int64(200), explicit.Quote.TipCents, "explicit cents win over a percentage")

	v := f.state(sess.ID).StateVersion
	_, err := f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeFull, StateVersion: v, TipCents: int64p(-1)})
	requireCode(t, err, apperr.CodeInvalidTip)
	_, err = f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeFull, StateVersion: v, TipPercent: floatp(101)})
	requireCode(t, err, apperr.CodeInvalidTip)
}

func TestQuoteRejections(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session

	v := f.state(sess.ID).StateVersion
	_, err := f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeFull, StateVersion: v})
	requireCode(t, err, apperr.CodeNothingToPay)

	st := f.order(sess.ID, "burger")
	_, err = f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: "HALF", StateVersion: st.StateVersion})
	requireCode(t, err, apperr.CodeInvalidMode)

	_, err = f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeEven, StateVersion: st.StateVersion})
	requireCode(t, err, apperr.CodeSplitPlanRequired)

	other := f.join("T2").Session
	plan, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, other.ID, 2)
	require.NoError(t, err)
	_, err = f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{
		Mode: model.ModeEven, StateVersion: st.StateVersion, SplitPlanID: strp(plan.Plan.ID)})
	requireCode(t, err, apperr.CodeSplitPlanNotFound)

	_, err = f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeSelected, StateVersion: st.StateVersion})
	requireCode(t, err, apperr.CodeValidation)

	_, err = f.engine.CreatePaymentQuote(f.ctx, "missing", QuoteRequest{Mode: model.ModeFull, StateVersion: 1})
	requireCode(t, err, apperr.CodeSessionNotFound)
}

func TestQuoteStaleVersionAttachesState(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	st := f.order(sess.ID, "burger")

	_, err := f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeFull, StateVersion: st.StateVersion - 1})
	ae := requireCode(t, err, apperr.CodeStaleState)
	fresh, ok := ae.Context["state"].(*model.SessionState)
	require.True(t, ok)
	assert.Equal(t, st.StateVersion, fresh.StateVersion)
	assert.Equal(t, int64(1000), fresh.Outstanding.RemainingCents)
	assert.Equal(t, int64(3), fresh.MenuVersion)
}

func TestSelectedQuoteForPaidItemConflicts(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	ids := itemIDs(f.order(sess.ID, "burger", "fries"))

	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeSelected, ItemIDs: []string{ids[0]}})
	f.settle(sess.ID, q.Quote.ID)

	v := f.state(sess.ID).StateVersion
	for _, sel := range [][]string{{ids[0]}, {ids[0], ids[1]}} {
		_, err := f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeSelected, StateVersion: v, ItemIDs: sel})
		ae := requireCode(t, err, apperr.CodeItemsAlreadyPaid)
		assert.Equal(t, []string{ids[0]}, ae.Context["conflicts"], "no partial quote for %v", sel)
	}

	_, err := f.engine.CreatePaymentQuote(f.ctx, sess.ID, QuoteRequest{Mode: model.ModeSelected, StateVersion: v, ItemIDs: []string{"ghost"}})
	ae := requireCode(t, err, apperr.CodeItemsAlreadyPaid)
	assert.Equal(t, []string{"ghost"}, ae.Context["conflicts"])
}
