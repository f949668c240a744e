package model

import "time"

// Booking is the permanent conversion of a hold into a sale.  There is at
// most one booking per hold, and the (HoldID, PaymentToken) pair is the
// idempotency key for confirmation requests.
type Booking struct {
	ID           string    `db:"id"`            // bookings.id
	HoldID       string    `db:"hold_id"`       // bookings.hold_id
	PaymentToken string    `db:"payment_token"` // bookings.payment_token
	CreatedAt    time.Time `db:"created_at"`    // bookings.created_at
}

// BookingResult wraps a booking with whether this call created it or
// replayed an earlier confirmation.
type BookingResult struct {
	Booking Booking
	Created bool
}
