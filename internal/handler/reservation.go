package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/reservation"
)

// ReservationHandler serves bookings, tickets and screenings.
type ReservationHandler struct {
	coord *reservation.Coordinator
	log   *zap.Logger
}

// NewReservationHandler panics if coord is nil.
func NewReservationHandler(coord *reservation.Coordinator, log *zap.Logger) *ReservationHandler {
	if coord == nil {
		panic("nil coordinator passed to NewReservationHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{coord: coord, log: log}
}

// CreateBooking handles POST /v1/bookings.
func (h *ReservationHandler) CreateBooking(c echo.Context) error {
	var in reservation.CreateBookingInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	id, err := h.coord.CreateBooking(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return created(c, "booking", id)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *ReservationHandler) GetBooking(c echo.Context) error {
	b, err := h.coord.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListBookings handles GET /v1/bookings.
func (h *ReservationHandler) ListBookings(c echo.Context) error {
	items, err := h.coord.ListBookings(c.Request().Context())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

// UpdateBooking handles PUT /v1/bookings/:id.
func (h *ReservationHandler) UpdateBooking(c echo.Context) error {
	var in reservation.UpdateBookingInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	if err := h.coord.UpdateBooking(c.Request().Context(), c.Param("id"), in); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "booking updated")
}

// DeleteBooking handles DELETE /v1/bookings/:id.
func (h *ReservationHandler) DeleteBooking(c echo.Context) error {
	if err := h.coord.DeleteBooking(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "booking deleted")
}

// CreateTicket handles POST /v1/tickets.
func (h *ReservationHandler) CreateTicket(c echo.Context) error {
	var in reservation.CreateTicketInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	id, err := h.coord.CreateTicket(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return created(c, "ticket", id)
}

// GetTicket handles GET /v1/tickets/:id.
func (h *ReservationHandler) GetTicket(c echo.Context) error {
	t, err := h.coord.GetTicket(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListTickets handles GET /v1/tickets with an optional ScreeningID filter.
func (h *ReservationHandler) ListTickets(c echo.Context) error {
	items, err := h.coord.ListTickets(c.Request().Context(), c.QueryParam("ScreeningID"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

// UpdateTicket handles PUT /v1/tickets/:id.
func (h *ReservationHandler) UpdateTicket(c echo.Context) error {
	var in reservation.UpdateTicketInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	if err := h.coord.UpdateTicket(c.Request().Context(), c.Param("id"), in); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "ticket updated")
}

// DeleteTicket handles DELETE /v1/tickets/:id.
func (h *ReservationHandler) DeleteTicket(c echo.Context) error {
	if err := h.coord.DeleteTicket(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "ticket deleted")
}

// CreateScreening handles POST /v1/screenings.
func (h *ReservationHandler) CreateScreening(c echo.Context) error {
	var in reservation.CreateScreeningInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	id, err := h.coord.CreateScreening(c.Request().Context(), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return created(c, "screening", id)
}

// GetScreening handles GET /v1/screenings/:id.
func (h *ReservationHandler) GetScreening(c echo.Context) error {
	s, err := h.coord.GetScreening(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// ListScreenings handles GET /v1/screenings.
func (h *ReservationHandler) ListScreenings(c echo.Context) error {
	items, err := h.coord.ListScreenings(c.Request().Context())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

// ScreeningsForFilm handles GET /v1/screenings/byFilm/:filmID.
func (h *ReservationHandler) ScreeningsForFilm(c echo.Context) error {
	items, err := h.coord.ScreeningsForFilm(c.Request().Context(), c.Param("filmID"))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, items)
}

// UpdateScreening handles PUT /v1/screenings/:id.
func (h *ReservationHandler) UpdateScreening(c echo.Context) error {
	var in reservation.UpdateScreeningInput
	if err := bind(c, &in); err != nil {
		return fail(c, h.log, err)
	}
	if err := h.coord.UpdateScreening(c.Request().Context(), c.Param("id"), in); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "screening updated")
}

// DeleteScreening handles DELETE /v1/screenings/:id.
func (h *ReservationHandler) DeleteScreening(c echo.Context) error {
	if err := h.coord.DeleteScreening(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.log, err)
	}
	return done(c, "screening deleted")
}
