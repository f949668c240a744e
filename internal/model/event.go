package model

import "time"

// Event is a sellable pool of seats.  Capacity is tracked as a single
// aggregate integer; there is no per-seat inventory.  Events are immutable
// once created.
//
// Fields:
//
//	ID         – opaque UUID identifier.
//	Name       – display name, never empty.
//	TotalSeats – capacity of the event, always greater than zero.
//	CreatedAt  – creation timestamp (UTC).
type Event struct {
	ID         string    `db:"id"`          // events.id
	Name       string    `db:"name"`        // events.name
	TotalSeats int       `db:"total_seats"` // events.total_seats
	CreatedAt  time.Time `db:"created_at"`  // events.created_at
}

// EventStatus is the seat accounting of one event at a point in time.
// Available is always Total - Held - Booked.
type EventStatus struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Held      int `json:"held"`
	Booked    int `json:"booked"`
}
