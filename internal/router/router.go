// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/box-office/internal/handler"
	"github.com/iliyamo/box-office/internal/middleware"
)

// Deps is everything the routes need.  RateLimit and Cache may be nil.
type Deps struct {
	Handler        *handler.ReservationHandler
	OperatorSecret string
	RateLimit      echo.MiddlewareFunc
	Cache          echo.MiddlewareFunc
}

// New builds the Echo instance with the shared middleware stack and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))

	RegisterRoutes(e)
	RegisterBuyer(e, d.Handler, d.RateLimit)
	RegisterOperator(e, d.Handler, d.OperatorSecret, d.Cache)
	return e
}

// RegisterRoutes registers routes that never require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.Health)
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found", "code": "not_found"})
	})
}

func optional(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := mws[:0]
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
