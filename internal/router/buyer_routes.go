package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/box-office/internal/handler"
)

// RegisterBuyer registers the ticket-buyer endpoints.  They are open; the
// hold and booking writes sit behind the rate limiter when one is given.
func RegisterBuyer(e *echo.Echo, h *handler.ReservationHandler, rateLimit echo.MiddlewareFunc) {
	e.GET("/events/:id", h.GetEventStatus)
	e.POST("/holds", h.CreateHold, optional(rateLimit)...)
	e.POST("/book", h.ConfirmBooking, optional(rateLimit)...)
}
