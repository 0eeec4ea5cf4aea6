package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/session"
)

// SessionTokenHeader carries the capability token issued on join.
const SessionTokenHeader = "X-Session-Token"

// SessionToken admits a request to /sessions/:id only when the header token
// belongs to that session.  On success the session ID is stored under
// CtxSessionID.
func SessionToken(reg session.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID := c.Param("id")
			token := c.Request().Header.Get(SessionTokenHeader)
			if sessionID == "" || token == "" {
				return unauthorized(c, "invalid session token")
			}
			ok, err := reg.Validate(c.Request().Context(), sessionID, token)
			if err != nil {
				slog.Error("session token lookup failed", "session_id", sessionID, "error", err)
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"error":   apperr.CodeServiceUnavailable,
					"message": "token registry unavailable",
				})
			}
			if !ok {
				return unauthorized(c, "invalid session token")
			}
			c.Set(CtxSessionID, sessionID)
			return next(c)
		}
	}
}
