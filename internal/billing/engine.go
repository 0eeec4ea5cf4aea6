// Package billing is the table-session engine: the shared cart, submitted
// orders, split plans, payment quotes and settlement.  Every mutation runs
// in one store transaction and bumps the session's stateVersion, which is
// the fence payment operations are checked against.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
	"github.com/iliyamo/table-settlement/internal/session"
)

// Broadcast events.
const (
	EventPaymentUpdated = "payment.updated"
	EventStateChanged   = "table.stateChanged"
)

// Defaults applied when an option is not supplied.
const (
	DefaultQuoteTTL    = 5 * time.Minute
	DefaultIdleTimeout = 3 * time.Hour
	DefaultRetention   = 72 * time.Hour
	DefaultCurrency    = "EUR"
)

// Room returns the broadcast room of a session.
func Room(sessionID string) string { return "table_session:" + sessionID }

// Publisher delivers events to the clients connected to a room.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// Catalog is the read-only menu API consumed at cart-add time.
type Catalog interface {
	MenuItem(ctx context.Context, venueID, itemID string) (*model.MenuItem, error)
	MenuVersion(ctx context.Context, venueID string) (int64, error)
	Currency(ctx context.Context, venueID string) (string, error)
}

// Observer receives engine outcomes for metrics.
type Observer interface {
	QuoteCreated(mode string)
	SettlementResult(mode, result string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }

type nopObserver struct{}

func (nopObserver) QuoteCreated(string)             {}
func (nopObserver) SettlementResult(string, string) {}

// StoreCatalog serves the Catalog from the menu tables of the store.
type StoreCatalog struct {
	Menu *repository.MenuRepo
}

func (c StoreCatalog) MenuItem(ctx context.Context, venueID, itemID string) (*model.MenuItem, error) {
	return c.Menu.MenuItem(ctx, venueID, itemID)
}

func (c StoreCatalog) MenuVersion(ctx context.Context, venueID string) (int64, error) {
	v, err := c.Menu.Venue(ctx, venueID)
	if err != nil {
		return 0, err
	}
	return v.MenuVersion, nil
}

func (c StoreCatalog) Currency(ctx context.Context, venueID string) (string, error) {
	v, err := c.Menu.Venue(ctx, venueID)
	if err != nil {
		return "", err
	}
	return v.Currency, nil
}

// Engine implements the guest and staff operations on table sessions.
type Engine struct {
	store     *repository.Store
	catalog   Catalog
	publisher Publisher
	tokens    session.Registry
	observer  Observer
	now       func() time.Time

	quoteTTL    time.Duration
	idleTimeout time.Duration
	retention   time.Duration
	currency    string
}

// Option configures an Engine.
type Option func(*Engine)

func WithCatalog(c Catalog) Option           { return func(e *Engine) { e.catalog = c } }
func WithPublisher(p Publisher) Option       { return func(e *Engine) { e.publisher = p } }
func WithRegistry(r session.Registry) Option { return func(e *Engine) { e.tokens = r } }
func WithObserver(o Observer) Option         { return func(e *Engine) { e.observer = o } }
func WithClock(now func() time.Time) Option  { return func(e *Engine) { e.now = now } }

// WithQuoteTTL sets how long a quote can be settled.
func WithQuoteTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.quoteTTL = d
		}
	}
}

// WithLifecycle sets the inactivity timeout and the retention of closed
// sessions used by Sweep.
func WithLifecycle(idle, retention time.Duration) Option {
	return func(e *Engine) {
		if idle > 0 {
			e.idleTimeout = idle
		}
		if retention > 0 {
			e.retention = retention
		}
	}
}

// WithDefaultCurrency sets the currency reported when the venue has none.
func WithDefaultCurrency(c string) Option {
	return func(e *Engine) {
		if c != "" {
			e.currency = c
		}
	}
}

// New returns an Engine over store.  Without options the catalog is read
// from the store, events are dropped and tokens live in process memory.
func New(store *repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		catalog:     StoreCatalog{Menu: store.Menu},
		publisher:   nopPublisher{},
		tokens:      session.NewMemoryRegistry(),
		observer:    nopObserver{},
		now:         time.Now,
		quoteTTL:    DefaultQuoteTTL,
		idleTimeout: DefaultIdleTimeout,
		retention:   DefaultRetention,
		currency:    DefaultCurrency,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Tokens exposes the capability registry the engine issues tokens into.
func (e *Engine) Tokens() session.Registry { return e.tokens }

func (e *Engine) clock() time.Time { return e.now().UTC() }

// publish delivers an event after commit.  Delivery failures are logged:
// clients resync from SessionState on reconnect.
func (e *Engine) publish(ctx context.Context, sessionID, event string, payload any) {
	if err := e.publisher.Publish(ctx, Room(sessionID), event, payload); err != nil {
		slog.Warn("billing: publish failed", "session_id", sessionID, "event", event, "error", err)
	}
}

// menuVersion reads the catalog version for a venue.  An unknown venue
// reports 0.
func (e *Engine) menuVersion(ctx context.Context, venueID string) int64 {
	v, err := e.catalog.MenuVersion(ctx, venueID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("billing: menu version lookup failed", "venue_id", venueID, "error", err)
		}
		return 0
	}
	return v
}

func (e *Engine) venueCurrency(ctx context.Context, venueID string) string {
	c, err := e.catalog.Currency(ctx, venueID)
	if err != nil || c == "" {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("billing: currency lookup failed", "venue_id", venueID, "error", err)
		}
		return e.currency
	}
	return c
}
