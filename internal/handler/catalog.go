package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/catalog"
)

// CatalogHandler serves films, theatres and ticket types.
type CatalogHandler struct {
	cat *catalog.Catalog
	log *zap.Logger
}

// NewCatalogHandler panics if cat is nil.
func NewCatalogHandler(cat *catalog.Catalog, log *zap.Logger) *CatalogHandler {
	if cat == nil {
		panic("nil catalog passed to NewCatalogHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogHandler{cat: cat, log: log}
}

// idsParam splits ?ids=a,b,c; it returns nil when the parameter is absent.
func idsParam(c echo.Context) []string {
	raw := strings.TrimSpace(c.QueryParam("ids"))
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *CatalogHandler) CreateFilm(c echo.Context) error {
	var in catalog.FilmInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	id, err := h.cat.CreateFilm(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return created(c, "film", id)
}

func (h *CatalogHandler) GetFilm(c echo.Context) error {
	f, err := h.cat.GetFilm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, f)
}

// ListFilms handles GET /v1/films; ?ids= selects a batch.
func (h *CatalogHandler) ListFilms(c echo.Context) error {
	ctx := c.Request().Context()
	if ids := idsParam(c); ids != nil {
		items, err := h.cat.GetFilms(ctx, ids)
		if err != nil {
			return fail(c, h.log, err)
		}
		return c.JSON(http.StatusOK, items)
	}
	items, err := h.cat.ListFilms(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) UpdateFilm(c echo.Context) error {
	var in catalog.FilmUpdate
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	if err := h.cat.UpdateFilm(c.Request().Context(), c.Param("id"), in); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "film updated")
}

func (h *CatalogHandler) DeleteFilm(c echo.Context) error {
	if err := h.cat.DeleteFilm(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "film deleted")
}

func (h *CatalogHandler) CreateTheatre(c echo.Context) error {
	var in catalog.TheatreInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	id, err := h.cat.CreateTheatre(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return created(c, "theatre", id)
}

func (h *CatalogHandler) GetTheatre(c echo.Context) error {
	t, err := h.cat.GetTheatre(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListTheatres handles GET /v1/theatres; ?ids= selects a batch.
func (h *CatalogHandler) ListTheatres(c echo.Context) error {
	ctx := c.Request().Context()
	if ids := idsParam(c); ids != nil {
		items, err := h.cat.GetTheatres(ctx, ids)
		if err != nil {
			return fail(c, h.log, err)
		}
		return c.JSON(http.StatusOK, items)
	}
	items, err := h.cat.ListTheatres(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) UpdateTheatre(c echo.Context) error {
	var in catalog.TheatreUpdate
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	if err := h.cat.UpdateTheatre(c.Request().Context(), c.Param("id"), in); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "theatre updated")
}

func (h *CatalogHandler) DeleteTheatre(c echo.Context) error {
	if err := h.cat.DeleteTheatre(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "theatre deleted")
}

func (h *CatalogHandler) CreateTicketType(c echo.Context) error {
	var in catalog.TicketTypeInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	id, err := h.cat.CreateTicketType(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return created(c, "ticket type", id)
}

func (h *CatalogHandler) GetTicketType(c echo.Context) error {
	tt, err := h.cat.GetTicketType(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, tt)
}

// ListTicketTypes handles GET /v1/ticket-types; ?ids= selects a batch.
func (h *CatalogHandler) ListTicketTypes(c echo.Context) error {
	ctx := c.Request().Context()
	if ids := idsParam(c); ids != nil {
		items, err := h.cat.GetTicketTypes(ctx, ids)
		if err != nil {
			return fail(c, h.log, err)
		}
		return c.JSON(http.StatusOK, items)
	}
	items, err := h.cat.ListTicketTypes(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) UpdateTicketType(c echo.Context) error {
	var in catalog.TicketTypeUpdate
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	if err := h.cat.UpdateTicketType(c.Request().Context(), c.Param("id"), in); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "ticket type updated")
}

func (h *CatalogHandler) DeleteTicketType(c echo.Context) error {
	if err := h.cat.DeleteTicketType(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "ticket type deleted")
}
