package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/box-office/internal/logging"
)

// RequestLogger tags every request with a correlation id, taken from the
// X-Correlation-ID header or generated, echoes it back and logs one line
// per request once the handler returns.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(logging.CorrelationIDHeader)
			if id == "" {
				id = logging.NewCorrelationID()
			}
			ctx := logging.ContextWithCorrelationID(req.Context(), id)
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(logging.CorrelationIDHeader, id)

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}

			entry := logging.FromContext(ctx).WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
			})
			switch status := c.Response().Status; {
			case status >= 500:
				entry.WithError(err).Error("request failed")
			case status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request handled")
			}
			return nil
		}
	}
}
