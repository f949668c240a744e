package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/box-office/internal/logging"
	"github.com/iliyamo/box-office/internal/model"
)

// writeError maps a service error onto its HTTP status and machine code.
// Anything unrecognised is logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	var ice *model.InsufficientCapacityError
	switch {
	case errors.As(err, &ice):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     ice.Error(),
			"code":      "insufficient_capacity",
			"requested": ice.Requested,
			"available": ice.Available,
		})
	case errors.Is(err, model.ErrInvalidInput):
		return errorJSON(c, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, model.ErrEventNotFound):
		return errorJSON(c, http.StatusNotFound, "event_not_found", "event not found")
	case errors.Is(err, model.ErrHoldNotFound):
		return errorJSON(c, http.StatusNotFound, "hold_not_found", "hold not found")
	case errors.Is(err, model.ErrInvalidToken):
		return errorJSON(c, http.StatusForbidden, "invalid_token", "invalid payment token")
	case errors.Is(err, model.ErrHoldExpired):
		return errorJSON(c, http.StatusGone, "hold_expired", "hold has expired")
	case errors.Is(err, model.ErrHoldAlreadyBooked):
		return errorJSON(c, http.StatusConflict, "hold_already_booked", "hold is already booked")
	case errors.Is(err, model.ErrPersistenceConflict):
		return errorJSON(c, http.StatusConflict, "persistence_conflict", "request conflicts with stored data")
	case errors.Is(err, model.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		logging.FromContext(c.Request().Context()).WithError(err).Error("store unavailable")
		return errorJSON(c, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable")
	default:
		logging.FromContext(c.Request().Context()).WithError(err).Error("unhandled error")
		return errorJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func errorJSON(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}
