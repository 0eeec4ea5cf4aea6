package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
)

func TestSplitPlanBounds(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	for _, n := range []int{-1, 0, 1, 51} {
		_, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, n)
		requireCode(t, err, apperr.CodeInvalidSplit)
	}
	for _, n := range []int{2, 50} {
		res, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, n)
		require.NoError(t, err)
		assert.Equal(t, n, res.Plan.TotalShares)
	}
}

func TestSplitPlanUpdatesFreelyUntilAShareIsPaid(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger")

	first, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, first.RemainingShares)
	assert.False(t, first.Plan.Locked)

	second, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.Plan.ID, second.Plan.ID, "the latest plan is updated in place")
	assert.Equal(t, 3, second.Plan.TotalShares)
	assert.Greater(t, second.StateVersion, first.StateVersion)

	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeEven})
	assert.Equal(t, int64(334), q.Quote.AmountCents)
	f.settle(sess.ID, q.Quote.ID)

	_, err = f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 5)
	ae := requireCode(t, err, apperr.CodeSplitPlanLocked)
	assert.Equal(t, 1, ae.Context["paid_shares"])

	same, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 3)
	require.NoError(t, err)
	assert.True(t, same.Plan.Locked)
	assert.Equal(t, 1, same.PaidShares)
	assert.Equal(t, 2, same.RemainingShares)
}

func TestSplitPlanChangeInvalidatesQuotes(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "burger")
	_, err := f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 2)
	require.NoError(t, err)
	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeEven})

	_, err = f.engine.CreateOrUpdateSplitPlan(f.ctx, sess.ID, 4)
	require.NoError(t, err)

	_, err = f.engine.CreatePaymentForQuote(f.ctx, sess.ID, q.Quote.ID, SettleOptions{})
	requireCode(t, err, apperr.CodeStaleState)
}
