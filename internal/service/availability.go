package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/repository"
)

// Availability is the seat accounting of one event at one instant.
type Availability struct {
	Total     int
	Held      int
	Booked    int
	Available int
}

// ComputeAvailability derives the free seats.  A negative result means
// the store already holds more than the event's capacity; it is reported,
// never clamped.
func ComputeAvailability(total, held, booked int) (Availability, error) {
	a := Availability{Total: total, Held: held, Booked: booked, Available: total - held - booked}
	if a.Available < 0 {
		return a, fmt.Errorf("%w: total=%d held=%d booked=%d", model.ErrInvariantViolation, total, held, booked)
	}
	return a, nil
}

// availability reads held and booked seats inside the caller's transaction.
func availability(ctx context.Context, q repository.Queries, e model.Event, now time.Time) (Availability, error) {
	held, err := q.SumHeld(ctx, e.ID, now)
	if err != nil {
		return Availability{}, err
	}
	booked, err := q.SumBooked(ctx, e.ID)
	if err != nil {
		return Availability{}, err
	}
	return ComputeAvailability(e.TotalSeats, held, booked)
}

func (a Availability) Status() model.EventStatus {
	return model.EventStatus{Total: a.Total, Available: a.Available, Held: a.Held, Booked: a.Booked}
}
