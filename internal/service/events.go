package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/box-office/internal/logging"
	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/repository"
)

// CreateEvent registers a new event with a fixed capacity.
func (s *Service) CreateEvent(ctx context.Context, name string, totalSeats int) (model.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Event{}, model.InvalidInputf("name is required")
	}
	if totalSeats <= 0 {
		return model.Event{}, model.InvalidInputf("total_seats must be greater than zero")
	}

	e := model.Event{
		ID:         uuid.NewString(),
		Name:       name,
		TotalSeats: totalSeats,
		CreatedAt:  s.clock.Now(),
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		return q.CreateEvent(ctx, e)
	})
	if err != nil {
		return model.Event{}, err
	}

	logging.FromContext(ctx).WithField("event_id", e.ID).
		WithField("total_seats", e.TotalSeats).Info("event created")
	return e, nil
}

// GetEventStatus reports total, held, booked and available seats.
func (s *Service) GetEventStatus(ctx context.Context, eventID string) (model.EventStatus, error) {
	if err := parseID("event_id", eventID); err != nil {
		return model.EventStatus{}, err
	}

	var status model.EventStatus
	err := s.store.ReadOnly(ctx, func(ctx context.Context, q repository.Queries) error {
		e, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		a, err := availability(ctx, q, e, s.clock.Now())
		if err != nil {
			return err
		}
		status = a.Status()
		return nil
	})
	return status, err
}
