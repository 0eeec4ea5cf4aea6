package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/money"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// bill is the payment-relevant view of a session read inside a transaction.
type bill struct {
	orders []model.Order
	paid   map[string]int64
	totals money.Totals
}

func (e *Engine) loadBillTx(ctx context.Context, tx *sql.Tx, sessionID string) (*bill, error) {
	orders, err := e.store.Orders.ListActiveTx(ctx, tx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	paid, err := e.store.Payments.PaidByItemTx(ctx, tx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	b := &bill{orders: orders, paid: paid}
	b.totals = money.Outstanding(b.orderLines(), paid)
	return b, nil
}

func (b *bill) orderLines() [][]money.Line {
	out := make([][]money.Line, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o.Lines())
	}
	return out
}

// lines returns every order item in session order: orders by submission,
// then items by position.
func (b *bill) lines() []money.Line {
	var out []money.Line
	for _, o := range b.orders {
		out = append(out, o.Lines()...)
	}
	return out
}

// item finds an order item by ID.
func (b *bill) item(id string) (money.Line, bool) {
	for _, o := range b.orders {
		for _, it := range o.Items {
			if it.ID == id {
				return it.Line(), true
			}
		}
	}
	return money.Line{}, false
}

// AssembleState composes the canonical snapshot.  It fills the computed
// line totals of cart and order items and the paid/remaining amounts of
// each order item from PAID allocations.
func AssembleState(sess model.TableSession, cart []model.CartItem, orders []model.Order,
	payments []model.PaymentIntent, paidByItem map[string]int64, menuVersion int64) *model.SessionState {
	lines := make([][]money.Line, 0, len(orders))
	for i := range orders {
		for j := range orders[i].Items {
			it := &orders[i].Items[j]
			it.LineTotalCents = money.LineTotal(it.Line())
			it.PaidCents = paidByItem[it.ID]
			it.RemainingCents = money.ItemRemaining(it.Line(), it.PaidCents)
		}
		lines = append(lines, orders[i].Lines())
	}
	for i := range cart {
		cart[i].LineTotalCents = money.LineTotal(cart[i].Line())
	}
	if cart == nil {
		cart = []model.CartItem{}
	}
	if orders == nil {
		orders = []model.Order{}
	}
	if payments == nil {
		payments = []model.PaymentIntent{}
	}
	return &model.SessionState{
		Session:      sess,
		Cart:         cart,
		OrdersActive: orders,
		Payments:     payments,
		Outstanding:  money.Outstanding(lines, paidByItem),
		StateVersion: sess.StateVersion,
		MenuVersion:  menuVersion,
	}
}

// stateTx builds the snapshot of a session inside tx.  MenuVersion is left
// for the caller to fill once the transaction is released, since the
// catalog may share the store's connection.
func (e *Engine) stateTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.SessionState, error) {
	sess, err := e.sessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	cart, err := e.store.Cart.ListTx(ctx, tx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	b, err := e.loadBillTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	payments, err := e.store.Payments.ListBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return AssembleState(*sess, cart, b.orders, payments, b.paid, 0), nil
}

// sessionTx loads a session, translating a missing row.
func (e *Engine) sessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.TableSession, error) {
	return e.loadSessionTx(ctx, tx, sessionID, false)
}

// lockedSessionTx is sessionTx taking the session row lock.
func (e *Engine) lockedSessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.TableSession, error) {
	return e.loadSessionTx(ctx, tx, sessionID, true)
}

func (e *Engine) loadSessionTx(ctx context.Context, tx *sql.Tx, sessionID string, lock bool) (*model.TableSession, error) {
	get := e.store.Sessions.GetTx
	if lock {
		get = e.store.Sessions.GetForUpdateTx
	}
	sess, err := get(ctx, tx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.SessionNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// liveSessionTx locks the session and rejects it when closed.
func (e *Engine) liveSessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.TableSession, error) {
	sess, err := e.lockedSessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Live() {
		return nil, apperr.SessionClosed()
	}
	return sess, nil
}

// SessionState returns the canonical snapshot of a session.
func (e *Engine) SessionState(ctx context.Context, sessionID string) (*model.SessionState, error) {
	var st *model.SessionState
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		st, err = e.stateTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	st.MenuVersion = e.menuVersion(ctx, st.Session.VenueID)
	return st, nil
}

// ComputeOutstanding returns base, paid and remaining for a session.
func (e *Engine) ComputeOutstanding(ctx context.Context, sessionID string) (money.Totals, error) {
	var totals money.Totals
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.sessionTx(ctx, tx, sessionID); err != nil {
			return err
		}
		b, err := e.loadBillTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		totals = b.totals
		return nil
	})
	return totals, err
}

// withFreshState attaches the current snapshot to a STALE_STATE error so
// the client can resync without another round trip.  The snapshot is read
// after the failed transaction has been rolled back.
func (e *Engine) withFreshState(ctx context.Context, sessionID string, err error) error {
	ae, ok := apperr.As(err)
	if !ok || ae.Code != apperr.CodeStaleState {
		return err
	}
	if _, has := ae.Context["state"]; has {
		return err
	}
	st, stErr := e.SessionState(ctx, sessionID)
	if stErr != nil {
		return err
	}
	return ae.With("state", st)
}

// mutate runs fn against a live session inside one transaction, bumps the
// stateVersion and returns the new snapshot, which is broadcast after
// commit.
func (e *Engine) mutate(ctx context.Context, sessionID string, fn func(tx *sql.Tx, sess *model.TableSession) error) (*model.SessionState, error) {
	var st *model.SessionState
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		sess, err := e.liveSessionTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(tx, sess); err != nil {
			return err
		}
		if _, err := e.store.Sessions.BumpVersionTx(ctx, tx, sessionID, e.clock()); err != nil {
			return fmt.Errorf("bump version: %w", err)
		}
		st, err = e.stateTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	st.MenuVersion = e.menuVersion(ctx, st.Session.VenueID)
	e.publish(ctx, sessionID, EventStateChanged, st)
	return st, nil
}
