package billing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
)

func TestAddCartItemSnapshotsPriceAndModifiers(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session

	st, err := f.engine.AddCartItemForSession(f.ctx, sess.ID, AddCartItem{
		MenuItemID: f.menu.Items["burger"],
		Qty:        2,
		OptionIDs:  []string{f.menu.Options["cheese"], f.menu.Options["bacon"], f.menu.Options["cheese"]},
		Note:       "no onions",
	})
	require.NoError(t, err)
	require.Len(t, st.Cart, 1)
	line := st.Cart[0]
	assert.Equal(t, "Burger", line.Name)
	assert.Equal(t, int64(1000), line.UnitPriceCents)
	assert.Len(t, line.Modifiers, 2)
	assert.Equal(t, int64(2*(1000+150+200)), line.LineTotalCents)
	assert.Equal(t, "no onions", line.Note)
	assert.Equal(t, sess.StateVersion+1, st.StateVersion)
	assert.Equal(t, int64(3), st.MenuVersion)
	assert.Equal(t, []string{EventStateChanged}, f.pub.names())
}

func TestAddCartItemRejections(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session

	tests := []struct {
		name string
		req  AddCartItem
		code string
	}{
		{"qty zero", AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: 0}, apperr.CodeInvalidQty},
		{"qty too large", AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: MaxQty + 1}, apperr.CodeInvalidQty},
		{"unknown item", AddCartItem{MenuItemID: "nope", Qty: 1}, apperr.CodeMenuItemNotFound},
		{"inactive item", AddCartItem{MenuItemID: f.menu.Items["cake"], Qty: 1}, apperr.CodeMenuItemNotFound},
		{"foreign option", AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: 1, OptionIDs: []string{f.menu.Options["cheese"]}}, apperr.CodeMenuItemNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.AddCartItemForSession(f.ctx, sess.ID, tt.req)
			requireCode(t, err, tt.code)
		})
	}
	assert.Equal(t, sess.StateVersion, f.state(sess.ID).StateVersion, "rejections must not bump the version")

	_, err := f.engine.AddCartItemForSession(f.ctx, "missing", AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: 1})
	requireCode(t, err, apperr.CodeSessionNotFound)
}

func TestUpdateAndRemoveCartItems(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	st, err := f.engine.AddCartItemForSession(f.ctx, sess.ID, AddCartItem{MenuItemID: f.menu.Items["fries"], Qty: 1})
	require.NoError(t, err)
	cartID := st.Cart[0].ID

	st, err = f.engine.UpdateCartItemQtyForSession(f.ctx, sess.ID, cartID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Cart[0].Qty)
	assert.Equal(t, int64(1350), st.Cart[0].LineTotalCents)

	_, err = f.engine.UpdateCartItemQtyForSession(f.ctx, sess.ID, cartID, -1)
	requireCode(t, err, apperr.CodeInvalidQty)

	st, err = f.engine.UpdateCartItemQtyForSession(f.ctx, sess.ID, cartID, 0)
	require.NoError(t, err)
	assert.Empty(t, st.Cart)

	_, err = f.engine.RemoveCartItemForSession(f.ctx, sess.ID, cartID)
	requireCode(t, err, apperr.CodeCartItemNotFound)
	_, err = f.engine.UpdateCartItemQtyForSession(f.ctx, sess.ID, cartID, 2)
	requireCode(t, err, apperr.CodeCartItemNotFound)
}

func TestSubmitOrder(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session

	_, err := f.engine.SubmitOrderForSession(f.ctx, sess.ID)
	requireCode(t, err, apperr.CodeEmptyCart)

	st := f.order(sess.ID, "burger", "fries")
	assert.Empty(t, st.Cart)
	require.Len(t, st.OrdersActive, 1)
	o := st.OrdersActive[0]
	assert.Equal(t, 1, o.Seq)
	assert.Equal(t, model.OrderSubmitted, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Burger", o.Items[0].Name)
	assert.Equal(t, "Fries", o.Items[1].Name)
	assert.Equal(t, int64(1450), st.Outstanding.BaseCents)
	assert.Equal(t, int64(1450), st.Outstanding.RemainingCents)
	// join=1, two adds, one submit
	assert.Equal(t, int64(4), st.StateVersion)

	st = f.order(sess.ID, "soda")
	require.Len(t, st.OrdersActive, 2)
	assert.Equal(t, 2, st.OrdersActive[1].Seq)
}

func TestConcurrentAddAndSubmitKeepEveryLine(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	_, err := f.engine.AddCartItemForSession(f.ctx, sess.ID, AddCartItem{MenuItemID: f.menu.Items["burger"], Qty: 1})
	require.NoError(t, err)

	const adds = 10
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.engine.AddCartItemForSession(f.ctx, sess.ID, AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: 1})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.engine.SubmitOrderForSession(f.ctx, sess.ID)
			if err != nil {
				assert.True(t, apperr.HasCode(err, apperr.CodeEmptyCart), err.Error())
			}
		}()
	}
	wg.Wait()

	st := f.state(sess.ID)
	lines := len(st.Cart) + len(itemIDs(st))
	assert.Equal(t, adds+1, lines, "every added line is either ordered or still in the cart")
}

func TestSubmitReopensCheckout(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	f.order(sess.ID, "soda")
	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeFull})
	res := f.settle(sess.ID, q.Quote.ID)
	require.Equal(t, model.SessionCheckout, res.State.Session.Status)

	st := f.order(sess.ID, "fries")
	assert.Equal(t, model.SessionOpen, st.Session.Status)
	assert.Equal(t, int64(450), st.Outstanding.RemainingCents)
}

func TestCartRejectedOnClosedSession(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	_, err := f.engine.CloseSession(f.ctx, sess.ID)
	require.NoError(t, err)

	_, err = f.engine.AddCartItemForSession(f.ctx, sess.ID, AddCartItem{MenuItemID: f.menu.Items["soda"], Qty: 1})
	requireCode(t, err, apperr.CodeSessionClosed)
	_, err = f.engine.SubmitOrderForSession(f.ctx, sess.ID)
	requireCode(t, err, apperr.CodeSessionClosed)
}

func TestRemoveOrderItemAlwaysRejects(t *testing.T) {
	f := newFixture(t)
	sess := f.join("T1").Session
	st := f.order(sess.ID, "burger", "fries")
	ids := itemIDs(st)

	_, err := f.engine.RemoveOrderItemForSession(f.ctx, sess.ID, ids[0])
	requireCode(t, err, apperr.CodeOrderLocked)

	q := f.quote(sess.ID, QuoteRequest{Mode: model.ModeSelected, ItemIDs: []string{ids[0]}})
	f.settle(sess.ID, q.Quote.ID)

	_, err = f.engine.RemoveOrderItemForSession(f.ctx, sess.ID, ids[0])
	ae := requireCode(t, err, apperr.CodePaidItem)
	assert.Equal(t, ids[0], ae.Context["order_item_id"])
	_, err = f.engine.RemoveOrderItemForSession(f.ctx, sess.ID, ids[1])
	requireCode(t, err, apperr.CodeOrderLocked)
	_, err = f.engine.RemoveOrderItemForSession(f.ctx, sess.ID, "nope")
	requireCode(t, err, apperr.CodeOrderItemNotFound)

	assert.Len(t, itemIDs(f.state(sess.ID)), 2)
}

func TestCanRemoveOrderItem(t *testing.T) {
	item := model.OrderItem{ID: "it-1"}
	assert.True(t, apperr.HasCode(CanRemoveOrderItem(item, 0), apperr.CodeOrderLocked))
	assert.True(t, apperr.HasCode(CanRemoveOrderItem(item, 1), apperr.CodePaidItem))
}
