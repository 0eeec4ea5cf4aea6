package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/handler"
	"github.com/iliyamo/table-settlement/internal/middleware"
)

// RegisterStaff registers staff-scoped endpoints under /v1/staff.  All
// routes require a valid staff JWT with the STAFF or OWNER role.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, jwtSecret string) {
	g := e.Group(
		"/v1/staff",
		middleware.StaffAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleStaff, middleware.RoleOwner),
	)
	g.GET("/sessions", h.ListSessions)
	g.POST("/sessions/:id/close", h.CloseSession)
}
