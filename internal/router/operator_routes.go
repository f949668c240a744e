package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/box-office/internal/handler"
	"github.com/iliyamo/box-office/internal/middleware"
)

// RegisterOperator registers event creation and the metrics endpoints.
// With a secret they require an OPERATOR token; the JSON rollup is cached
// after authentication so a cached response is never served unauthenticated.
func RegisterOperator(e *echo.Echo, h *handler.ReservationHandler, secret string, cache echo.MiddlewareFunc) {
	e.POST("/events", h.CreateEvent, middleware.OperatorOnly(secret)...)
	e.GET("/metrics", h.GetMetrics, optional(append(middleware.OperatorOnly(secret), cache)...)...)
	e.GET("/metrics/prometheus", echo.WrapHandler(promhttp.Handler()), middleware.OperatorOnly(secret)...)
}
