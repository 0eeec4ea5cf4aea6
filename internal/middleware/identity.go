package middleware

import "github.com/labstack/echo/v4"

// Context keys set by the authentication middleware.
const (
	CtxSessionID = "session_id"
	CtxStaffID   = "staff_id"
	CtxRole      = "role"
	CtxVenueID   = "venue_id"
)

// actorID identifies who is calling: the authenticated table session, the
// staff member, or "anon".
func actorID(c echo.Context) string {
	if v, ok := c.Get(CtxSessionID).(string); ok && v != "" {
		return "session:" + v
	}
	if v, ok := c.Get(CtxStaffID).(string); ok && v != "" {
		return "staff:" + v
	}
	return "anon"
}
