package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/table-settlement/internal/model"
)

// MenuRepo reads the venue catalog.  The catalog is maintained by other
// tooling; this service only reads prices and modifiers from it.
type MenuRepo struct {
	db *sql.DB
}

// NewMenuRepo returns a new MenuRepo bound to the provided database.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// Venue loads a venue.
func (r *MenuRepo) Venue(ctx context.Context, venueID string) (*model.Venue, error) {
	var v model.Venue
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, currency, menu_version FROM venues WHERE id = ?`, venueID).Scan(
		&v.ID, &v.Name, &v.Currency, &v.MenuVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MenuItem loads one item of a venue with its options.
func (r *MenuRepo) MenuItem(ctx context.Context, venueID, itemID string) (*model.MenuItem, error) {
	var m model.MenuItem
	err := r.db.QueryRowContext(ctx,
		`SELECT id, venue_id, name, price_cents, active FROM menu_items WHERE id = ? AND venue_id = ?`,
		itemID, venueID).Scan(&m.ID, &m.VenueID, &m.Name, &m.PriceCents, &m.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	opts, err := r.options(ctx, `WHERE menu_item_id = ?`, itemID)
	if err != nil {
		return nil, err
	}
	m.Options = opts[itemID]
	if m.Options == nil {
		m.Options = []model.ModifierOption{}
	}
	return &m, nil
}

// Menu lists the active items of a venue.
func (r *MenuRepo) Menu(ctx context.Context, venueID string) ([]model.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, venue_id, name, price_cents, active FROM menu_items
		 WHERE venue_id = ? AND active = ? ORDER BY name, id`, venueID, true)
	if err != nil {
		return nil, err
	}
	items := make([]model.MenuItem, 0)
	for rows.Next() {
		var m model.MenuItem
		if err := rows.Scan(&m.ID, &m.VenueID, &m.Name, &m.PriceCents, &m.Active); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	opts, err := r.options(ctx,
		`WHERE menu_item_id IN (SELECT id FROM menu_items WHERE venue_id = ?)`, venueID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Options = opts[items[i].ID]
		if items[i].Options == nil {
			items[i].Options = []model.ModifierOption{}
		}
	}
	return items, nil
}

func (r *MenuRepo) options(ctx context.Context, where string, args ...any) (map[string][]model.ModifierOption, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, menu_item_id, name, price_delta_cents FROM modifier_options `+where+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]model.ModifierOption)
	for rows.Next() {
		var o model.ModifierOption
		if err := rows.Scan(&o.ID, &o.MenuItemID, &o.Name, &o.PriceDeltaCents); err != nil {
			return nil, err
		}
		out[o.MenuItemID] = append(out[o.MenuItemID], o)
	}
	return out, rows.Err()
}
