package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/handler"
	"github.com/iliyamo/table-settlement/internal/middleware"
	"github.com/iliyamo/table-settlement/internal/session"
)

// RegisterGuest registers the table-session endpoints under
// /v1/sessions/:id.  Every route requires the X-Session-Token issued on
// join and runs through the rate limiter after authentication, so the
// limiter can key on the session.
func RegisterGuest(e *echo.Echo, h *handler.TableHandler, tokens session.Registry, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/sessions/:id",
		middleware.SessionToken(tokens),
		limiter,
	)
	g.GET("/state", h.State)
	g.GET("/outstanding", h.Outstanding)

	// ---- Cart ----
	g.POST("/cart/items", h.AddCartItem)
	g.PATCH("/cart/items/:itemId", h.UpdateCartItem)
	g.DELETE("/cart/items/:itemId", h.RemoveCartItem)

	// ---- Orders ----
	g.POST("/orders", h.SubmitOrder)
	g.DELETE("/order-items/:itemId", h.RemoveOrderItem)

	// ---- Payments ----
	g.POST("/split", h.Split)
	g.POST("/payments/quote", h.Quote)
	g.POST("/payments", h.Pay)
}
