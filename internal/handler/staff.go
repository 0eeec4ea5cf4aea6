package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/billing"
	"github.com/iliyamo/table-settlement/internal/middleware"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// StaffHandler serves venue staff.  StaffAuth and RequireRole run first.
type StaffHandler struct {
	Engine   *billing.Engine
	Sessions *repository.SessionRepo
}

func NewStaffHandler(engine *billing.Engine, sessions *repository.SessionRepo) *StaffHandler {
	if engine == nil || sessions == nil {
		panic("nil dependency passed to NewStaffHandler")
	}
	return &StaffHandler{Engine: engine, Sessions: sessions}
}

// ListSessions handles GET /v1/staff/sessions.  The venue comes from the
// staff token, or from ?venue_id= for tokens without one.  Filters:
// status (OPEN, CHECKOUT, CLOSED, live), table_id, page, page_size.
func (h *StaffHandler) ListSessions(c echo.Context) error {
	venue, _ := c.Get(middleware.CtxVenueID).(string)
	if venue == "" {
		venue = strings.TrimSpace(c.QueryParam("venue_id"))
	}
	if venue == "" {
		return apperr.Validation("venue_id is required")
	}
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	switch status {
	case "", "LIVE", model.SessionOpen, model.SessionCheckout, model.SessionClosed:
	default:
		return apperr.Validation("status must be OPEN, CHECKOUT, CLOSED or live")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}

	items, total, err := h.Sessions.Search(c.Request().Context(), repository.SessionSearchQuery{
		VenueID:  venue,
		Status:   status,
		TableID:  strings.TrimSpace(c.QueryParam("table_id")),
		Page:     page,
		PageSize: ps,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      items,
		"total":     total,
		"page":      page,
		"page_size": ps,
	})
}

// CloseSession handles POST /v1/staff/sessions/:id/close.  Staff tokens
// scoped to a venue may only close that venue's sessions.
func (h *StaffHandler) CloseSession(c echo.Context) error {
	ctx := c.Request().Context()
	sid := c.Param("id")
	st, err := h.Engine.SessionState(ctx, sid)
	if err != nil {
		return err
	}
	if venue, _ := c.Get(middleware.CtxVenueID).(string); venue != "" && venue != st.Session.VenueID {
		return apperr.New(http.StatusForbidden, apperr.CodeForbidden, "session belongs to another venue")
	}
	st, err = h.Engine.CloseSession(ctx, sid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
