package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/iliyamo/table-settlement/internal/model"
)

// CartRepo provides access to cart_items.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the provided database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

const cartColumns = `id, session_id, menu_item_id, name, unit_price_cents, qty, modifiers, note, created_at`

func scanCartItem(row rowScanner) (*model.CartItem, error) {
	var (
		c         model.CartItem
		mods      string
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.SessionID, &c.MenuItemID, &c.Name, &c.UnitPriceCents,
		&c.Qty, &mods, &c.Note, &createdAt); err != nil {
		return nil, err
	}
	if err := decodeModifiers(mods, &c.Modifiers); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

func encodeModifiers(mods []model.Modifier) (string, error) {
	if mods == nil {
		mods = []model.Modifier{}
	}
	b, err := json.Marshal(mods)
	return string(b), err
}

func decodeModifiers(s string, out *[]model.Modifier) error {
	*out = []model.Modifier{}
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}

// ListTx returns the cart of a session in insertion order.
func (r *CartRepo) ListTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.CartItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.CartItem, 0)
	for rows.Next() {
		c, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// GetTx loads one cart item belonging to sessionID.
func (r *CartRepo) GetTx(ctx context.Context, tx *sql.Tx, sessionID, id string) (*model.CartItem, error) {
	c, err := scanCartItem(tx.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE id = ? AND session_id = ?`, id, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// InsertTx adds a cart item.
func (r *CartRepo) InsertTx(ctx context.Context, tx *sql.Tx, c *model.CartItem) error {
	mods, err := encodeModifiers(c.Modifiers)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cart_items (`+cartColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.MenuItemID, c.Name, c.UnitPriceCents, c.Qty, mods, c.Note, toMillis(c.CreatedAt))
	return err
}

// UpdateQtyTx changes the quantity of a cart item.
func (r *CartRepo) UpdateQtyTx(ctx context.Context, tx *sql.Tx, sessionID, id string, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cart_items SET qty = ? WHERE id = ? AND session_id = ?`, qty, id, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTx removes a cart item.
func (r *CartRepo) DeleteTx(ctx context.Context, tx *sql.Tx, sessionID, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND session_id = ?`, id, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTx removes the given lines from the cart of a session.  Lines added
// after the caller listed the cart are left in place.
func (r *CartRepo) ClearTx(ctx context.Context, tx *sql.Tx, sessionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, sessionID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE session_id = ? AND id IN (?`+strings.Repeat(", ?", len(ids)-1)+`)`, args...)
	return err
}
