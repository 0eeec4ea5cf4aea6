package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/table-settlement/internal/model"
)

// OrderRepo provides access to orders and order_items.  Order items are
// append-only: the repository offers no update or delete for them.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderItemColumns = `id, order_id, session_id, position, menu_item_id, name, unit_price_cents, qty, modifiers`

func scanOrderItem(row rowScanner) (*model.OrderItem, error) {
	var (
		it   model.OrderItem
		mods string
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.SessionID, &it.Position, &it.MenuItemID,
		&it.Name, &it.UnitPriceCents, &it.Qty, &mods); err != nil {
		return nil, err
	}
	if err := decodeModifiers(mods, &it.Modifiers); err != nil {
		return nil, err
	}
	return &it, nil
}

// NextSeqTx returns the sequence number for the next order of a session.
func (r *OrderRepo) NextSeqTx(ctx context.Context, tx *sql.Tx, sessionID string) (int, error) {
	var max sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM orders WHERE session_id = ?`, sessionID).Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

// CreateTx inserts an order together with all of its items.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, session_id, seq, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.SessionID, o.Seq, o.Status, toMillis(o.CreatedAt)); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (` + orderItemColumns + `) VALUES `
	args := make([]any, 0, len(o.Items)*9)
	for i, it := range o.Items {
		if i > 0 {
			query += ","
		}
		query += "(" + placeholders(9) + ")"
		mods, err := encodeModifiers(it.Modifiers)
		if err != nil {
			return err
		}
		args = append(args, it.ID, o.ID, o.SessionID, it.Position, it.MenuItemID,
			it.Name, it.UnitPriceCents, it.Qty, mods)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListActiveTx returns the non-cancelled orders of a session with their
// items, ordered by submission then position.  This is the allocation order
// used by settlement.
func (r *OrderRepo) ListActiveTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.Order, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, session_id, seq, status, created_at FROM orders
		 WHERE session_id = ? AND status <> ? ORDER BY seq`,
		sessionID, model.OrderCancelled)
	if err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			o         model.Order
			createdAt int64
		)
		if err := rows.Scan(&o.ID, &o.SessionID, &o.Seq, &o.Status, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		o.CreatedAt = fromMillis(createdAt)
		o.Items = []model.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := tx.QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		it, err := scanOrderItem(itemRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, *it)
		}
	}
	return orders, itemRows.Err()
}

// GetItemTx loads one order item of a session.
func (r *OrderRepo) GetItemTx(ctx context.Context, tx *sql.Tx, sessionID, itemID string) (*model.OrderItem, error) {
	it, err := scanOrderItem(tx.QueryRowContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = ? AND session_id = ?`, itemID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return it, err
}
