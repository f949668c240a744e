package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, the services and the HTTP layer.
// Compare with errors.Is; the store wraps them with operation context.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrHoldNotFound         = errors.New("hold not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInvalidToken         = errors.New("invalid payment token")
	ErrHoldExpired          = errors.New("hold expired")
	ErrHoldAlreadyBooked    = errors.New("hold already booked")
	ErrPersistenceConflict  = errors.New("persistence conflict")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrInvariantViolation   = errors.New("seat accounting invariant violated")
)

// InsufficientCapacityError is returned when a hold cannot be granted.  It
// carries the counts a client needs to retry with a smaller quantity.
type InsufficientCapacityError struct {
	Requested int
	Available int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("not enough seats available: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

// InvalidInputf wraps ErrInvalidInput with a formatted detail message.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
