package model

import "time"

// Hold is a time-bounded claim on some quantity of an event's capacity.
// A hold counts against capacity while it is active: not flagged expired,
// not past ExpiresAt and not yet booked.  Once booked its seats count as
// booked forever, regardless of ExpiresAt.
//
// Fields:
//
//	ID           – opaque UUID identifier.
//	EventID      – event the seats are claimed from.
//	Quantity     – number of seats claimed, always greater than zero.
//	PaymentToken – secret capability required to confirm the hold.
//	ExpiresAt    – instant after which the hold no longer counts.
//	IsExpired    – set by the expiry sweeper; only ever goes false→true.
//	CreatedAt    – creation timestamp (UTC).
type Hold struct {
	ID           string    `db:"id"`            // holds.id
	EventID      string    `db:"event_id"`      // holds.event_id
	Quantity     int       `db:"quantity"`      // holds.quantity
	PaymentToken string    `db:"payment_token"` // holds.payment_token
	ExpiresAt    time.Time `db:"expires_at"`    // holds.expires_at
	IsExpired    bool      `db:"is_expired"`    // holds.is_expired
	CreatedAt    time.Time `db:"created_at"`    // holds.created_at
}

// ExpiredAt reports whether the hold has lapsed at now, either because the
// sweeper flagged it or because its window has elapsed.
func (h Hold) ExpiredAt(now time.Time) bool {
	return h.IsExpired || !h.ExpiresAt.After(now)
}

// HoldResult is what the hold manager hands back to a caller.  It carries
// the quantity that was asked for next to the quantity actually granted so
// clients can tell a partial fulfillment apart from a full one.
type HoldResult struct {
	Hold              Hold
	QuantityRequested int
	Partial           bool
}
