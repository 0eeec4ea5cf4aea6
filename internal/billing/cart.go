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

// Cart quantity bounds.
const (
	MinQty = 1
	MaxQty = 99
)

// AddCartItem is a request to put a menu item into the shared cart.
type AddCartItem struct {
	MenuItemID string
	Qty        int
	OptionIDs  []string
	Note       string
}

func invalidQty() *apperr.Error {
	return apperr.New(http.StatusBadRequest, apperr.CodeInvalidQty,
		fmt.Sprintf("qty must be between %d and %d", MinQty, MaxQty))
}

func menuItemNotFound() *apperr.Error {
	return apperr.New(http.StatusNotFound, apperr.CodeMenuItemNotFound, "menu item not found")
}

func cartItemNotFound() *apperr.Error {
	return apperr.New(http.StatusNotFound, apperr.CodeCartItemNotFound, "cart item not found")
}

// AddCartItemForSession snapshots the price and chosen modifiers of a menu
// item into the cart.
func (e *Engine) AddCartItemForSession(ctx context.Context, sessionID string, req AddCartItem) (*model.SessionState, error) {
	if req.Qty < MinQty || req.Qty > MaxQty {
		return nil, invalidQty()
	}
	sess, err := e.store.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.SessionNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.Live() {
		return nil, apperr.SessionClosed()
	}

	// Catalog reads happen before the transaction opens.
	item, err := e.catalog.MenuItem(ctx, sess.VenueID, req.MenuItemID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, menuItemNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load menu item: %w", err)
	}
	if !item.Active {
		return nil, menuItemNotFound()
	}
	mods := make([]model.Modifier, 0, len(req.OptionIDs))
	seen := make(map[string]bool, len(req.OptionIDs))
	for _, id := range req.OptionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		opt, ok := item.Option(id)
		if !ok {
			return nil, menuItemNotFound().With("option_id", id)
		}
		mods = append(mods, model.Modifier{OptionID: opt.ID, Name: opt.Name, PriceDeltaCents: opt.PriceDeltaCents})
	}

	return e.mutate(ctx, sessionID, func(tx *sql.Tx, s *model.TableSession) error {
		c := &model.CartItem{
			ID:             uuid.NewString(),
			SessionID:      s.ID,
			MenuItemID:     item.ID,
			Name:           item.Name,
			UnitPriceCents: item.PriceCents,
			Qty:            req.Qty,
			Modifiers:      mods,
			Note:           req.Note,
			CreatedAt:      e.clock(),
		}
		if err := e.store.Cart.InsertTx(ctx, tx, c); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
		return nil
	})
}

// UpdateCartItemQtyForSession changes the quantity of a cart line.  A
// quantity of zero removes it.
func (e *Engine) UpdateCartItemQtyForSession(ctx context.Context, sessionID, cartItemID string, qty int) (*model.SessionState, error) {
	if qty == 0 {
		return e.RemoveCartItemForSession(ctx, sessionID, cartItemID)
	}
	if qty < MinQty || qty > MaxQty {
		return nil, invalidQty()
	}
	return e.mutate(ctx, sessionID, func(tx *sql.Tx, s *model.TableSession) error {
		err := e.store.Cart.UpdateQtyTx(ctx, tx, s.ID, cartItemID, qty)
		if errors.Is(err, repository.ErrNotFound) {
			return cartItemNotFound()
		}
		return err
	})
}

// RemoveCartItemForSession deletes a cart line.
func (e *Engine) RemoveCartItemForSession(ctx context.Context, sessionID, cartItemID string) (*model.SessionState, error) {
	return e.mutate(ctx, sessionID, func(tx *sql.Tx, s *model.TableSession) error {
		err := e.store.Cart.DeleteTx(ctx, tx, s.ID, cartItemID)
		if errors.Is(err, repository.ErrNotFound) {
			return cartItemNotFound()
		}
		return err
	})
}
