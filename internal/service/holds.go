package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/box-office/internal/logging"
	"github.com/iliyamo/box-office/internal/metrics"
	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/repository"
)

const (
	DefaultHoldTTLMinutes = 2
	MinHoldTTLMinutes     = 1
	MaxHoldTTLMinutes     = 60
)

type CreateHoldInput struct {
	EventID      string
	Quantity     int
	AllowPartial bool
	// TTLMinutes is clamped into [MinHoldTTLMinutes, MaxHoldTTLMinutes];
	// nil means DefaultHoldTTLMinutes.
	TTLMinutes *int
}

// HoldTTL resolves the lifetime of a new hold.
func HoldTTL(minutes *int) time.Duration {
	m := DefaultHoldTTLMinutes
	if minutes != nil {
		m = lo.Clamp(*minutes, MinHoldTTLMinutes, MaxHoldTTLMinutes)
	}
	return time.Duration(m) * time.Minute
}

// grant decides how many seats a request receives.  It returns 0 when the
// request must be refused.
func grant(requested, available int, allowPartial bool) int {
	switch {
	case available >= requested:
		return requested
	case allowPartial && available > 0:
		return available
	default:
		return 0
	}
}

// CreateHold reserves seats of an event for a limited time.  With
// AllowPartial a request larger than the free capacity is granted whatever
// is left; otherwise it fails with *model.InsufficientCapacityError.
func (s *Service) CreateHold(ctx context.Context, in CreateHoldInput) (model.HoldResult, error) {
	if err := parseID("event_id", in.EventID); err != nil {
		return model.HoldResult{}, err
	}
	if in.Quantity <= 0 {
		return model.HoldResult{}, model.InvalidInputf("quantity must be greater than zero")
	}
	ttl := HoldTTL(in.TTLMinutes)

	token, err := newPaymentToken()
	if err != nil {
		return model.HoldResult{}, err
	}

	var result model.HoldResult
	err = s.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		e, err := q.LockEvent(ctx, in.EventID)
		if err != nil {
			return err
		}
		// Read after the lock so expiry decisions are ordered with it.
		now := s.clock.Now()

		a, err := availability(ctx, q, e, now)
		if err != nil {
			return err
		}
		qty := grant(in.Quantity, a.Available, in.AllowPartial)
		if qty == 0 {
			return &model.InsufficientCapacityError{Requested: in.Quantity, Available: a.Available}
		}

		h := model.Hold{
			ID:           uuid.NewString(),
			EventID:      e.ID,
			Quantity:     qty,
			PaymentToken: token,
			ExpiresAt:    now.Add(ttl),
			CreatedAt:    now,
		}
		if err := q.CreateHold(ctx, h); err != nil {
			return err
		}
		result = model.HoldResult{Hold: h, QuantityRequested: in.Quantity, Partial: qty < in.Quantity}
		return nil
	})
	if err != nil {
		if ice, ok := lo.ErrorsAs[*model.InsufficientCapacityError](err); ok {
			metrics.HoldsRejected.WithLabelValues("insufficient_capacity").Inc()
			logging.FromContext(ctx).WithFields(logrus.Fields{
				"event_id":  in.EventID,
				"requested": ice.Requested,
				"available": ice.Available,
			}).Info("hold refused")
		}
		return model.HoldResult{}, err
	}

	metrics.HoldsCreated.WithLabelValues(strconv.FormatBool(result.Partial)).Inc()
	metrics.SeatsHeld.Add(float64(result.Hold.Quantity))
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"event_id":   result.Hold.EventID,
		"hold_id":    result.Hold.ID,
		"quantity":   result.Hold.Quantity,
		"requested":  result.QuantityRequested,
		"partial":    result.Partial,
		"expires_at": result.Hold.ExpiresAt,
	}).Info("hold created")
	return result, nil
}
