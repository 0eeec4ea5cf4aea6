// Package testutil builds throwaway SQLite stores for tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/database"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// NewStore opens a migrated SQLite store in a temp directory.  It is closed
// when the test ends.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, "sqlite"))
	store := repository.NewStore(db, repository.DialectSQLite)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MenuFixture describes the catalog seeded by SeedMenu.
type MenuFixture struct {
	VenueID string
	// Item IDs by name: "burger" (1000), "fries" (450), "soda" (300),
	// "cake" (650, inactive).
	Items map[string]string
	// Option IDs by name: "cheese" (+150 on burger), "bacon" (+200 on burger).
	Options map[string]string
}

// SeedMenu inserts a small venue catalog.
func SeedMenu(t testing.TB, db *sql.DB) MenuFixture {
	t.Helper()
	ctx := context.Background()
	f := MenuFixture{
		VenueID: "venue-1",
		Items:   map[string]string{"burger": "item-burger", "fries": "item-fries", "soda": "item-soda", "cake": "item-cake"},
		Options: map[string]string{"cheese": "opt-cheese", "bacon": "opt-bacon"},
	}
	exec := func(q string, args ...any) {
		_, err := db.ExecContext(ctx, q, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO venues (id, name, currency, menu_version) VALUES (?, ?, ?, ?)`, f.VenueID, "Corner Bistro", "EUR", 3)
	exec(`INSERT INTO menu_items (id, venue_id, name, price_cents, active) VALUES (?, ?, ?, ?, ?)`, "item-burger", f.VenueID, "Burger", 1000, true)
	exec(`INSERT INTO menu_items (id, venue_id, name, price_cents, active) VALUES (?, ?, ?, ?, ?)`, "item-fries", f.VenueID, "Fries", 450, true)
	exec(`INSERT INTO menu_items (id, venue_id, name, price_cents, active) VALUES (?, ?, ?, ?, ?)`, "item-soda", f.VenueID, "Soda", 300, true)
	exec(`INSERT INTO menu_items (id, venue_id, name, price_cents, active) VALUES (?, ?, ?, ?, ?)`, "item-cake", f.VenueID, "Cake", 650, false)
	exec(`INSERT INTO modifier_options (id, menu_item_id, name, price_delta_cents) VALUES (?, ?, ?, ?)`, "opt-cheese", "item-burger", "Cheese", 150)
	exec(`INSERT INTO modifier_options (id, menu_item_id, name, price_delta_cents) VALUES (?, ?, ?, ?)`, "opt-bacon", "item-burger", "Bacon", 200)
	return f
}
