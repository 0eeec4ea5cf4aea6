package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
	"github.com/iliyamo/table-settlement/internal/testutil"
)

// fakeClock advances by a millisecond on every read so that rows written
// by consecutive operations keep a stable order.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type event struct {
	Room    string
	Name    string
	Payload any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(_ context.Context, room, name string, payload any) error {
	r.mu.Lock()
	r.events = append(r.events, event{Room: room, Name: name, Payload: payload})
	r.mu.Unlock()
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *repository.Store
	engine *Engine
	menu   testutil.MenuFixture
	pub    *recorder
	clock  *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		menu:  testutil.SeedMenu(t, store.DB()),
		pub:   &recorder{},
		clock: &fakeClock{now: time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)},
	}
	f.engine = New(store, WithPublisher(f.pub), WithClock(f.clock.Now))
	return f
}

func (f *fixture) join(table string) *JoinResult {
	f.t.Helper()
	res, err := f.engine.JoinTable(f.ctx, f.menu.VenueID, table, 2)
	require.NoError(f.t, err)
	return res
}

// order adds the named menu items (qty 1 each) and submits them.
func (f *fixture) order(sessionID string, names ...string) *model.SessionState {
	f.t.Helper()
	for _, n := range names {
		_, err := f.engine.AddCartItemForSession(f.ctx, sessionID, AddCartItem{MenuItemID: f.menu.Items[n], Qty: 1})
		require.NoError(f.t, err)
	}
	st, err := f.engine.SubmitOrderForSession(f.ctx, sessionID)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) state(sessionID string) *model.SessionState {
	f.t.Helper()
	st, err := f.engine.SessionState(f.ctx, sessionID)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) quote(sessionID string, req QuoteRequest) *QuoteResult {
	f.t.Helper()
	if req.StateVersion == 0 {
		req.StateVersion = f.state(sessionID).StateVersion
	}
	q, err := f.engine.CreatePaymentQuote(f.ctx, sessionID, req)
	require.NoError(f.t, err)
	return q
}

func (f *fixture) settle(sessionID, quoteID string) *SettleResult {
	f.t.Helper()
	res, err := f.engine.CreatePaymentForQuote(f.ctx, sessionID, quoteID, SettleOptions{})
	require.NoError(f.t, err)
	return res
}

// itemIDs returns the order item IDs of a state in session order.
func itemIDs(st *model.SessionState) []string {
	var ids []string
	for _, o := range st.OrdersActive {
		for _, it := range o.Items {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	require.Equal(t, code, ae.Code, ae.Message)
	return ae
}

func intp(v int) *int           { return &v }
func int64p(v int64) *int64     { return &v }
func floatp(v float64) *float64 { return &v }
func strp(v string) *string     { return &v }
