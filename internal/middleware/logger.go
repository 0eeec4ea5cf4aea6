package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/metrics"
)

// RequestLogger logs one structured line per request and counts it.  m may
// be nil.
func RequestLogger(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// resolve the status through the error handler before logging
				c.Error(err)
			}
			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if m != nil {
				m.Request(req.Method, route, strconv.Itoa(status))
			}

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			}
			slog.Log(req.Context(), level, "request",
				"method", req.Method,
				"route", route,
				"path", req.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"actor", actorID(c),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}
