package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// SubmitOrderForSession turns the cart snapshot into an order and empties
// the cart.  A session in CHECKOUT returns to OPEN since the bill grew.
func (e *Engine) SubmitOrderForSession(ctx context.Context, sessionID string) (*model.SessionState, error) {
	return e.mutate(ctx, sessionID, func(tx *sql.Tx, s *model.TableSession) error {
		cart, err := e.store.Cart.ListTx(ctx, tx, s.ID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if len(cart) == 0 {
			return apperr.New(http.StatusBadRequest, apperr.CodeEmptyCart, "cart is empty")
		}
		seq, err := e.store.Orders.NextSeqTx(ctx, tx, s.ID)
		if err != nil {
			return fmt.Errorf("next order seq: %w", err)
		}
		order := &model.Order{
			ID:        uuid.NewString(),
			SessionID: s.ID,
			Seq:       seq,
			Status:    model.OrderSubmitted,
			CreatedAt: e.clock(),
		}
		lineIDs := make([]string, 0, len(cart))
		for i, c := range cart {
			lineIDs = append(lineIDs, c.ID)
			order.Items = append(order.Items, model.OrderItem{
				ID:             uuid.NewString(),
				OrderID:        order.ID,
				SessionID:      s.ID,
				Position:       i,
				MenuItemID:     c.MenuItemID,
				Name:           c.Name,
				UnitPriceCents: c.UnitPriceCents,
				Qty:            c.Qty,
				Modifiers:      c.Modifiers,
			})
		}
		if err := e.store.Orders.CreateTx(ctx, tx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := e.store.Cart.ClearTx(ctx, tx, s.ID, lineIDs); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if s.Status == model.SessionCheckout {
			if err := e.store.Sessions.SetStatusTx(ctx, tx, s.ID, model.SessionOpen, nil); err != nil {
				return fmt.Errorf("reopen session: %w", err)
			}
		}
		return nil
	})
}

// CanRemoveOrderItem is the guest-path guard for submitted items.  It never
// succeeds: an item with any allocation, whatever the payment status, is
// PAID_ITEM; any other submitted item is ORDER_LOCKED.
func CanRemoveOrderItem(item model.OrderItem, allocations int) error {
	if allocations > 0 {
		return apperr.New(http.StatusConflict, apperr.CodePaidItem, "item has payments allocated").
			With("order_item_id", item.ID)
	}
	return apperr.New(http.StatusConflict, apperr.CodeOrderLocked, "submitted items cannot be removed").
		With("order_item_id", item.ID)
}

// RemoveOrderItemForSession applies CanRemoveOrderItem and therefore always
// fails; submitted orders are append-only.
func (e *Engine) RemoveOrderItemForSession(ctx context.Context, sessionID, orderItemID string) (*model.SessionState, error) {
	return e.mutate(ctx, sessionID, func(tx *sql.Tx, s *model.TableSession) error {
		item, err := e.store.Orders.GetItemTx(ctx, tx, s.ID, orderItemID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(http.StatusNotFound, apperr.CodeOrderItemNotFound, "order item not found")
		}
		if err != nil {
			return fmt.Errorf("load order item: %w", err)
		}
		n, err := e.store.Payments.CountAllocationsForItemTx(ctx, tx, item.ID)
		if err != nil {
			return fmt.Errorf("count allocations: %w", err)
		}
		return CanRemoveOrderItem(*item, n)
	})
}
