package model

// Venue is the catalog view of a venue.  MenuVersion changes whenever the
// venue's menu is edited by staff tooling.
type Venue struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	MenuVersion int64  `json:"menu_version"`
}

// MenuItem is a sellable item with its modifier options.
type MenuItem struct {
	ID         string           `json:"id"`
	VenueID    string           `json:"venue_id"`
	Name       string           `json:"name"`
	PriceCents int64            `json:"price_cents"`
	Active     bool             `json:"active"`
	Options    []ModifierOption `json:"options"`
}

// ModifierOption is a priced choice for a menu item.
type ModifierOption struct {
	ID              string `json:"id"`
	MenuItemID      string `json:"menu_item_id"`
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

// Option returns the option with the given ID.
func (m *MenuItem) Option(id string) (ModifierOption, bool) {
	for _, o := range m.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ModifierOption{}, false
}
