// Package queue carries booking notifications over RabbitMQ: the payload
// exchanged on the booking.confirmed queue, the publisher the booking
// confirmer hands it to, and the background consumer that records it.
package queue

import "time"

// BookingQueueName is the durable queue confirmed bookings are published to.
const BookingQueueName = "booking.confirmed"

// BookingConfirmedEvent is published when a hold is converted into a
// booking.  It contains enough information for downstream consumers to log,
// notify or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   string `json:"booking_id"`
	HoldID      string `json:"hold_id"`
	EventID     string `json:"event_id"`
	EventName   string `json:"event_name"`
	Quantity    int    `json:"quantity"`
	ConfirmedAt string `json:"confirmed_at"`
}

// FormatTime renders timestamps the way every payload field carries them.
func FormatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
