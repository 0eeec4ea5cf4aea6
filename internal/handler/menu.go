package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// MenuHandler exposes the read-only venue catalog.
type MenuHandler struct {
	Repo *repository.MenuRepo
}

func NewMenuHandler(menu *repository.MenuRepo) *MenuHandler { return &MenuHandler{Repo: menu} }

func venueNotFound() error {
	return apperr.New(http.StatusNotFound, apperr.CodeVenueNotFound, "venue not found")
}

// Menu handles GET /v1/venues/:venueId/menu and lists active items with
// their options.
func (h *MenuHandler) Menu(c echo.Context) error {
	ctx := c.Request().Context()
	venue, err := h.Repo.Venue(ctx, c.Param("venueId"))
	if errors.Is(err, repository.ErrNotFound) {
		return venueNotFound()
	}
	if err != nil {
		return err
	}
	items, err := h.Repo.Menu(ctx, venue.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"venue": venue, "items": items})
}

// MenuVersion resolves the cache version of the requested venue.
func (h *MenuHandler) MenuVersion(c echo.Context) (int64, error) {
	venue, err := h.Repo.Venue(c.Request().Context(), c.Param("venueId"))
	if err != nil {
		return 0, err
	}
	return venue.MenuVersion, nil
}
