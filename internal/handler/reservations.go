package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/service"
)

// Reservations is the part of the reservation core the HTTP layer uses.
type Reservations interface {
	CreateEvent(ctx context.Context, name string, totalSeats int) (model.Event, error)
	GetEventStatus(ctx context.Context, eventID string) (model.EventStatus, error)
	CreateHold(ctx context.Context, in service.CreateHoldInput) (model.HoldResult, error)
	ConfirmBooking(ctx context.Context, holdID, paymentToken string) (model.BookingResult, error)
	GetMetrics(ctx context.Context) (model.Metrics, error)
}

// ReservationHandler exposes the reservation operations over JSON.
type ReservationHandler struct {
	svc Reservations
}

func NewReservationHandler(svc Reservations) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

type createEventRequest struct {
	Name       string `json:"name"`
	TotalSeats int    `json:"total_seats"`
}

type eventResponse struct {
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	TotalSeats int       `json:"total_seats"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateEvent handles POST /events.
func (h *ReservationHandler) CreateEvent(c echo.Context) error {
	var body createEventRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_input", "invalid request body")
	}
	e, err := h.svc.CreateEvent(c.Request().Context(), body.Name, body.TotalSeats)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, eventResponse{
		EventID:    e.ID,
		Name:       e.Name,
		TotalSeats: e.TotalSeats,
		CreatedAt:  e.CreatedAt,
	})
}

// GetEventStatus handles GET /events/:id.
func (h *ReservationHandler) GetEventStatus(c echo.Context) error {
	st, err := h.svc.GetEventStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// createHoldRequest accepts the quantity as either "qty" or "quantity".
type createHoldRequest struct {
	EventID      string `json:"event_id"`
	Qty          *int   `json:"qty"`
	Quantity     *int   `json:"quantity"`
	AllowPartial bool   `json:"allow_partial"`
	TTLMinutes   *int   `json:"ttl_minutes"`
}

type holdResponse struct {
	HoldID             string    `json:"hold_id"`
	PaymentToken       string    `json:"payment_token"`
	ExpiresAt          time.Time `json:"expires_at"`
	QuantityHeld       int       `json:"quantity_held"`
	QuantityRequested  int       `json:"quantity_requested"`
	PartialFulfillment bool      `json:"partial_fulfillment"`
}

// CreateHold handles POST /holds.  It returns 201 with the payment token
// the caller must present to confirm.
func (h *ReservationHandler) CreateHold(c echo.Context) error {
	var body createHoldRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_input", "invalid request body")
	}
	qty := body.Qty
	if qty == nil {
		qty = body.Quantity
	}
	if qty == nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_input", "qty is required")
	}

	res, err := h.svc.CreateHold(c.Request().Context(), service.CreateHoldInput{
		EventID:      body.EventID,
		Quantity:     *qty,
		AllowPartial: body.AllowPartial,
		TTLMinutes:   body.TTLMinutes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, holdResponse{
		HoldID:             res.Hold.ID,
		PaymentToken:       res.Hold.PaymentToken,
		ExpiresAt:          res.Hold.ExpiresAt,
		QuantityHeld:       res.Hold.Quantity,
		QuantityRequested:  res.QuantityRequested,
		PartialFulfillment: res.Partial,
	})
}

type bookRequest struct {
	HoldID       string `json:"hold_id"`
	PaymentToken string `json:"payment_token"`
}

type bookingResponse struct {
	BookingID string    `json:"booking_id"`
	HoldID    string    `json:"hold_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfirmBooking handles POST /book: 201 for a new booking, 200 when the
// same (hold_id, payment_token) was already confirmed.
func (h *ReservationHandler) ConfirmBooking(c echo.Context) error {
	var body bookRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_input", "invalid request body")
	}
	res, err := h.svc.ConfirmBooking(c.Request().Context(), body.HoldID, body.PaymentToken)
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, bookingResponse{
		BookingID: res.Booking.ID,
		HoldID:    res.Booking.HoldID,
		CreatedAt: res.Booking.CreatedAt,
	})
}

// GetMetrics handles GET /metrics.
func (h *ReservationHandler) GetMetrics(c echo.Context) error {
	m, err := h.svc.GetMetrics(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}
