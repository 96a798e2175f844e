// Package router registers the HTTP routes of the service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/handler"
)

// RegisterRoutes maps the health check and every reservation and catalog
// endpoint under /v1.  Extra middleware (cache, rate limiting) is applied
// to the /v1 group.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, r *handler.ReservationHandler, c *handler.CatalogHandler, mw ...echo.MiddlewareFunc) {
	e.GET("/healthz", health)

	v1 := e.Group("/v1", mw...)

	v1.POST("/bookings", r.CreateBooking)
	v1.GET("/bookings", r.ListBookings)
	v1.GET("/bookings/:id", r.GetBooking)
	v1.PUT("/bookings/:id", r.UpdateBooking)
	v1.DELETE("/bookings/:id", r.DeleteBooking)

	v1.POST("/tickets", r.CreateTicket)
	v1.GET("/tickets", r.ListTickets)
	v1.GET("/tickets/:id", r.GetTicket)
	v1.PUT("/tickets/:id", r.UpdateTicket)
	v1.DELETE("/tickets/:id", r.DeleteTicket)

	v1.POST("/screenings", r.CreateScreening)
	v1.GET("/screenings", r.ListScreenings)
	v1.GET("/screenings/byFilm/:filmID", r.ScreeningsForFilm)
	v1.GET("/screenings/:id", r.GetScreening)
	v1.PUT("/screenings/:id", r.UpdateScreening)
	v1.DELETE("/screenings/:id", r.DeleteScreening)

	v1.POST("/films", c.CreateFilm)
	v1.GET("/films", c.ListFilms)
	v1.GET("/films/:id", c.GetFilm)
	v1.PUT("/films/:id", c.UpdateFilm)
	v1.DELETE("/films/:id", c.DeleteFilm)

	v1.POST("/theatres", c.CreateTheatre)
	v1.GET("/theatres", c.ListTheatres)
	v1.GET("/theatres/:id", c.GetTheatre)
	v1.PUT("/theatres/:id", c.UpdateTheatre)
	v1.DELETE("/theatres/:id", c.DeleteTheatre)

	v1.POST("/ticket-types", c.CreateTicketType)
	v1.GET("/ticket-types", c.ListTicketTypes)
	v1.GET("/ticket-types/:id", c.GetTicketType)
	v1.PUT("/ticket-types/:id", c.UpdateTicketType)
	v1.DELETE("/ticket-types/:id", c.DeleteTicketType)
}
