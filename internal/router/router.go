package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql" // database handle for the readiness probe

	"github.com/labstack/echo/v4"                    // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware"  // request ID and panic recovery
	"github.com/prometheus/client_golang/prometheus" // gatherer served on /metrics

	"github.com/iliyamo/table-settlement/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/table-settlement/internal/metrics"    // request counters
	"github.com/iliyamo/table-settlement/internal/middleware" // request logging
)

// New builds an Echo instance with the shared error renderer, validator and
// the middleware every route runs through.  m may be nil.
func New(m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(m))
	e.Use(echomw.Recover())
	return e
}

// RegisterRoutes registers the operational endpoints: liveness, readiness
// against the database and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB, g prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(g)))
}

// RegisterPublic registers endpoints that need no credentials: the venue
// menu (served through cache, which may be a pass-through) and joining a
// table.
func RegisterPublic(e *echo.Echo, m *handler.MenuHandler, t *handler.TableHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/venues/:venueId/menu", m.Menu, cache)
	e.POST("/v1/tables/join", t.Join)
}
