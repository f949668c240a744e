package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/box-office/internal/logging"
	"github.com/iliyamo/box-office/internal/metrics"
	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/queue"
	"github.com/iliyamo/box-office/internal/repository"
)

// ConfirmBooking converts a hold into a booking.  It is idempotent on
// (holdID, paymentToken): a repeated call returns the existing booking with
// Created set to false.  The checks run in this order:
//
//  1. an existing booking for exactly this pair is replayed;
//  2. the hold must exist (ErrHoldNotFound);
//  3. a hold booked under another token is ErrHoldAlreadyBooked;
//  4. the token must match in full (ErrInvalidToken);
//  5. the hold must be unexpired at now (ErrHoldExpired).
func (s *Service) ConfirmBooking(ctx context.Context, holdID, paymentToken string) (model.BookingResult, error) {
	if err := parseID("hold_id", holdID); err != nil {
		return model.BookingResult{}, err
	}
	if paymentToken == "" {
		return model.BookingResult{}, model.InvalidInputf("payment_token is required")
	}

	var (
		result model.BookingResult
		event  model.Event
		hold   model.Hold
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		existing, err := q.FindBooking(ctx, holdID, paymentToken)
		if err != nil {
			return err
		}
		if existing != nil && sameToken(existing.PaymentToken, paymentToken) {
			result = model.BookingResult{Booking: *existing}
			return nil
		}

		h, err := q.GetHold(ctx, holdID)
		if err != nil {
			return err
		}
		// Serialize with hold creation and other confirmations on the event.
		if event, err = q.LockEvent(ctx, h.EventID); err != nil {
			return err
		}
		now := s.clock.Now()

		// Re-read both rows now that the lock is held.
		if hold, err = q.GetHold(ctx, holdID); err != nil {
			return err
		}
		booked, err := q.FindBookingByHold(ctx, holdID)
		if err != nil {
			return err
		}
		if booked != nil {
			if sameToken(booked.PaymentToken, paymentToken) {
				result = model.BookingResult{Booking: *booked}
				return nil
			}
			return model.ErrHoldAlreadyBooked
		}

		if !sameToken(hold.PaymentToken, paymentToken) {
			return model.ErrInvalidToken
		}
		if hold.ExpiredAt(now) {
			return model.ErrHoldExpired
		}

		b := model.Booking{
			ID:           uuid.NewString(),
			HoldID:       hold.ID,
			PaymentToken: paymentToken,
			CreatedAt:    now,
		}
		if err := q.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, model.ErrPersistenceConflict) {
				return fmt.Errorf("%w: %w", model.ErrHoldAlreadyBooked, err)
			}
			return err
		}
		result = model.BookingResult{Booking: b, Created: true}
		return nil
	})
	if err != nil {
		return model.BookingResult{}, err
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"hold_id":    result.Booking.HoldID,
		"booking_id": result.Booking.ID,
	})
	if !result.Created {
		metrics.BookingsConfirmed.WithLabelValues("replay").Inc()
		log.Info("booking replayed")
		return result, nil
	}

	metrics.BookingsConfirmed.WithLabelValues("new").Inc()
	log.WithField("event_id", event.ID).Info("booking confirmed")
	s.notify(ctx, queue.BookingConfirmedEvent{
		BookingID:   result.Booking.ID,
		HoldID:      hold.ID,
		EventID:     event.ID,
		EventName:   event.Name,
		Quantity:    hold.Quantity,
		ConfirmedAt: queue.FormatTime(result.Booking.CreatedAt),
	})
	return result, nil
}

// sameToken compares tokens byte for byte in constant time, whatever
// collation the store applied to find them.
func sameToken(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// notify publishes after commit.  A failure is logged and counted; the
// booking stands.
func (s *Service) notify(ctx context.Context, ev queue.BookingConfirmedEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		metrics.NotificationsFailed.Inc()
		logging.FromContext(ctx).WithError(err).
			WithField("booking_id", ev.BookingID).Warn("booking notification failed")
	}
}
