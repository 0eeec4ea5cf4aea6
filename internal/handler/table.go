package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/billing"
	"github.com/iliyamo/table-settlement/internal/idempotency"
)

// TableHandler serves the guest surface of table sessions.  Routes under
// /v1/sessions/:id assume SessionToken middleware has admitted the caller.
type TableHandler struct {
	Engine    *billing.Engine
	Idem      *idempotency.Executor
	Validator *Validator
}

// NewTableHandler wires the handler.  engine must be non-nil; idem may be
// nil, in which case Idempotency-Key headers are ignored.
func NewTableHandler(engine *billing.Engine, idem *idempotency.Executor) *TableHandler {
	if engine == nil {
		panic("nil engine passed to NewTableHandler")
	}
	return &TableHandler{Engine: engine, Idem: idem, Validator: NewValidator()}
}

type joinRequest struct {
	VenueID     string `json:"venue_id" validate:"required,max=64"`
	TableID     string `json:"table_id" validate:"required,max=64"`
	PeopleCount int    `json:"people_count" validate:"gte=0"`
}

type addCartItemRequest struct {
	MenuItemID string   `json:"menu_item_id" validate:"required"`
	Qty        int      `json:"qty"`
	OptionIDs  []string `json:"option_ids" validate:"omitempty,dive,required"`
	Note       string   `json:"note" validate:"max=500"`
}

type updateQtyRequest struct {
	Qty *int `json:"qty" validate:"required"`
}

type splitRequest struct {
	TotalShares int `json:"total_shares"`
}

type quoteRequest struct {
	Mode         string   `json:"mode" validate:"required"`
	StateVersion *int64   `json:"state_version" validate:"required"`
	SplitPlanID  *string  `json:"split_plan_id"`
	SharesToPay  *int     `json:"shares_to_pay"`
	ItemIDs      []string `json:"item_ids"`
	TipCents     *int64   `json:"tip_cents"`
	TipPercent   *float64 `json:"tip_percent"`
}

type payRequest struct {
	QuoteID     string   `json:"quote_id" validate:"required"`
	TipPercent  *float64 `json:"tip_percent"`
	ProviderRef *string  `json:"provider_ref" validate:"omitempty,max=255"`
}

// Join handles POST /v1/tables/join.  It returns the live session of the
// table (opening one if needed) together with a fresh session token.
func (h *TableHandler) Join(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	var req joinRequest
	if err := decode(h.Validator, body, &req); err != nil {
		return err
	}
	if req.PeopleCount == 0 {
		req.PeopleCount = 1
	}
	res, err := h.Engine.JoinTable(c.Request().Context(), req.VenueID, req.TableID, req.PeopleCount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// State handles GET /v1/sessions/:id/state.
func (h *TableHandler) State(c echo.Context) error {
	st, err := h.Engine.SessionState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

// Outstanding handles GET /v1/sessions/:id/outstanding.
func (h *TableHandler) Outstanding(c echo.Context) error {
	totals, err := h.Engine.ComputeOutstanding(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, totals)
}

// AddCartItem handles POST /v1/sessions/:id/cart/items.
func (h *TableHandler) AddCartItem(c echo.Context) error {
	sid := c.Param("id")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, body []byte) (int, any, error) {
		var req addCartItemRequest
		if err := decode(h.Validator, body, &req); err != nil {
			return 0, nil, err
		}
		st, err := h.Engine.AddCartItemForSession(ctx, sid, billing.AddCartItem{
			MenuItemID: req.MenuItemID,
			Qty:        req.Qty,
			OptionIDs:  req.OptionIDs,
			Note:       req.Note,
		})
		return http.StatusCreated, st, err
	})
}

// UpdateCartItem handles PATCH /v1/sessions/:id/cart/items/:itemId.  A
// quantity of zero removes the line.
func (h *TableHandler) UpdateCartItem(c echo.Context) error {
	sid, itemID := c.Param("id"), c.Param("itemId")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, body []byte) (int, any, error) {
		var req updateQtyRequest
		if err := decode(h.Validator, body, &req); err != nil {
			return 0, nil, err
		}
		st, err := h.Engine.UpdateCartItemQtyForSession(ctx, sid, itemID, *req.Qty)
		return http.StatusOK, st, err
	})
}

// RemoveCartItem handles DELETE /v1/sessions/:id/cart/items/:itemId.
func (h *TableHandler) RemoveCartItem(c echo.Context) error {
	sid, itemID := c.Param("id"), c.Param("itemId")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, _ []byte) (int, any, error) {
		st, err := h.Engine.RemoveCartItemForSession(ctx, sid, itemID)
		return http.StatusOK, st, err
	})
}

// SubmitOrder handles POST /v1/sessions/:id/orders.
func (h *TableHandler) SubmitOrder(c echo.Context) error {
	sid := c.Param("id")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, _ []byte) (int, any, error) {
		st, err := h.Engine.SubmitOrderForSession(ctx, sid)
		return http.StatusCreated, st, err
	})
}

// RemoveOrderItem handles DELETE /v1/sessions/:id/order-items/:itemId.
// Submitted items are immutable, so this reports why removal is refused.
func (h *TableHandler) RemoveOrderItem(c echo.Context) error {
	sid, itemID := c.Param("id"), c.Param("itemId")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, _ []byte) (int, any, error) {
		st, err := h.Engine.RemoveOrderItemForSession(ctx, sid, itemID)
		return http.StatusOK, st, err
	})
}

// Split handles POST /v1/sessions/:id/split.
func (h *TableHandler) Split(c echo.Context) error {
	sid := c.Param("id")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, body []byte) (int, any, error) {
		var req splitRequest
		if err := decode(h.Validator, body, &req); err != nil {
			return 0, nil, err
		}
		res, err := h.Engine.CreateOrUpdateSplitPlan(ctx, sid, req.TotalShares)
		return http.StatusOK, res, err
	})
}

// Quote handles POST /v1/sessions/:id/payments/quote.
func (h *TableHandler) Quote(c echo.Context) error {
	sid := c.Param("id")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, body []byte) (int, any, error) {
		var req quoteRequest
		if err := decode(h.Validator, body, &req); err != nil {
			return 0, nil, err
		}
		res, err := h.Engine.CreatePaymentQuote(ctx, sid, billing.QuoteRequest{
			Mode:         req.Mode,
			StateVersion: *req.StateVersion,
			SplitPlanID:  req.SplitPlanID,
			SharesToPay:  req.SharesToPay,
			ItemIDs:      req.ItemIDs,
			TipCents:     req.TipCents,
			TipPercent:   req.TipPercent,
		})
		return http.StatusCreated, res, err
	})
}

// Pay handles POST /v1/sessions/:id/payments.  The quote is settled in a
// single transaction; a retry with the same Idempotency-Key replays the
// original outcome instead of charging twice.
func (h *TableHandler) Pay(c echo.Context) error {
	sid := c.Param("id")
	return runIdempotent(c, h.Idem, sid, func(ctx context.Context, body []byte) (int, any, error) {
		var req payRequest
		if err := decode(h.Validator, body, &req); err != nil {
			return 0, nil, err
		}
		res, err := h.Engine.CreatePaymentForQuote(ctx, sid, req.QuoteID, billing.SettleOptions{
			TipPercent:  req.TipPercent,
			ProviderRef: req.ProviderRef,
		})
		return http.StatusCreated, res, err
	})
}
