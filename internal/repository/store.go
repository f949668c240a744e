package repository

import (
	"context"
	"time"

	"github.com/iliyamo/box-office/internal/model"
)

// Queries is the set of reads and writes the reservation core performs
// against the entity store.  A Queries value is only valid inside the
// callback that received it; it is bound to exactly one transaction.
//
// Every "active hold" predicate used here is the same one: not flagged
// expired, expires_at strictly after now, and no booking referencing it.
type Queries interface {
	// CreateEvent inserts a new event.
	CreateEvent(ctx context.Context, e model.Event) error
	// GetEvent returns model.ErrEventNotFound when id does not resolve.
	GetEvent(ctx context.Context, id string) (model.Event, error)
	// LockEvent is GetEvent that also takes an exclusive row lock on the
	// event for the rest of the transaction.  Every capacity-affecting
	// transaction calls it before computing availability.
	LockEvent(ctx context.Context, id string) (model.Event, error)

	// SumHeld sums the quantity of active holds of an event at now.
	SumHeld(ctx context.Context, eventID string, now time.Time) (int, error)
	// SumBooked sums the quantity of holds of an event that have a booking.
	SumBooked(ctx context.Context, eventID string) (int, error)

	// CreateHold inserts a hold.  A duplicate payment token is reported as
	// model.ErrPersistenceConflict.
	CreateHold(ctx context.Context, h model.Hold) error
	// GetHold returns model.ErrHoldNotFound when id does not resolve.
	GetHold(ctx context.Context, id string) (model.Hold, error)

	// FindBooking returns the booking for exactly this (hold, token) pair,
	// or nil when there is none.
	FindBooking(ctx context.Context, holdID, token string) (*model.Booking, error)
	// FindBookingByHold returns the booking for a hold under any token, or
	// nil when there is none.
	FindBookingByHold(ctx context.Context, holdID string) (*model.Booking, error)
	// CreateBooking inserts a booking.  A second booking for the same hold
	// is reported as model.ErrPersistenceConflict.
	CreateBooking(ctx context.Context, b model.Booking) error

	// ExpireHolds flags every unbooked hold whose window elapsed at or
	// before now and returns how many rows changed.
	ExpireHolds(ctx context.Context, now time.Time) (int64, error)
	// Rollup computes the global metrics at now; soon bounds the
	// "expiring soon" window.
	Rollup(ctx context.Context, now, soon time.Time) (model.Metrics, error)
}

// Store hands out transactions.  Implementations roll back on every error
// returned from fn and commit otherwise; fn must not retain q.
type Store interface {
	// WithTx runs fn in a read-write transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
	// ReadOnly runs fn in a read-only transaction with a consistent view.
	ReadOnly(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}
