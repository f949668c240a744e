package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/box-office/internal/model"
)

var t0 = time.Date(2030, time.March, 14, 9, 30, 0, 0, time.UTC)

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, s Store) {
	t.Run("event round trip", func(t *testing.T) { testEventRoundTrip(t, s) })
	t.Run("constraints", func(t *testing.T) { testConstraints(t, s) })
	t.Run("rollback on error", func(t *testing.T) { testRollback(t, s) })
	t.Run("sums and lookups", func(t *testing.T) { testSums(t, s) })
	t.Run("tokens match exactly", func(t *testing.T) { testTokenCase(t, s) })
	t.Run("expire holds", func(t *testing.T) { testExpireHolds(t, s) })
	t.Run("rollup", func(t *testing.T) { testRollup(t, s) })
	t.Run("no overselling under contention", func(t *testing.T) { testContention(t, s) })
}

func newEvent(seats int) model.Event {
	return model.Event{ID: uuid.NewString(), Name: "Concert", TotalSeats: seats, CreatedAt: t0}
}

func newHold(eventID string, qty int, expiresAt time.Time) model.Hold {
	return model.Hold{
		ID:           uuid.NewString(),
		EventID:      eventID,
		Quantity:     qty,
		PaymentToken: uuid.NewString() + uuid.NewString(),
		ExpiresAt:    expiresAt,
		CreatedAt:    t0,
	}
}

func mustTx(t *testing.T, s Store, fn func(ctx context.Context, q Queries) error) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), fn))
}

func testEventRoundTrip(t *testing.T, s Store) {
	e := newEvent(10)
	mustTx(t, s, func(ctx context.Context, q Queries) error { return q.CreateEvent(ctx, e) })

	err := s.ReadOnly(context.Background(), func(ctx context.Context, q Queries) error {
		got, err := q.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.Name, got.Name)
		assert.Equal(t, e.TotalSeats, got.TotalSeats)
		assert.True(t, e.CreatedAt.Equal(got.CreatedAt))

		_, err = q.GetEvent(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrEventNotFound)
		_, err = q.GetHold(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrHoldNotFound)
		return nil
	})
	require.NoError(t, err)
}

func testConstraints(t *testing.T, s Store) {
	ctx := context.Background()
	e := newEvent(10)
	mustTx(t, s, func(ctx context.Context, q Queries) error { return q.CreateEvent(ctx, e) })

	err := s.WithTx(ctx, func(ctx context.Context, q Queries) error { return q.CreateEvent(ctx, newEvent(0)) })
	assert.ErrorIs(t, err, model.ErrPersistenceConflict, "non-positive capacity")

	h := newHold(e.ID, 2, t0.Add(time.Minute))
	mustTx(t, s, func(ctx context.Context, q Queries) error { return q.CreateHold(ctx, h) })

	dup := newHold(e.ID, 1, t0.Add(time.Minute))
	dup.PaymentToken = h.PaymentToken
	err = s.WithTx(ctx, func(ctx context.Context, q Queries) error { return q.CreateHold(ctx, dup) })
	assert.ErrorIs(t, err, model.ErrPersistenceConflict, "duplicate token")

	err = s.WithTx(ctx, func(ctx context.Context, q Queries) error {
		return q.CreateHold(ctx, newHold(e.ID, 0, t0.Add(time.Minute)))
	})
	assert.ErrorIs(t, err, model.ErrPersistenceConflict, "non-positive quantity")

	b := model.Booking{ID: uuid.NewString(), HoldID: h.ID, PaymentToken: h.PaymentToken, CreatedAt: t0}
	mustTx(t, s, func(ctx context.Context, q Queries) error { return q.CreateBooking(ctx, b) })

	second := model.Booking{ID: uuid.NewString(), HoldID: h.ID, PaymentToken: h.PaymentToken, CreatedAt: t0}
	err = s.WithTx(ctx, func(ctx context.Context, q Queries) error { return q.CreateBooking(ctx, second) })
	assert.ErrorIs(t, err, model.ErrPersistenceConflict, "second booking for a hold")
}

func testRollback(t *testing.T, s Store) {
	ctx := context.Background()
	e := newEvent(5)
	h := newHold(e.ID, 1, t0.Add(time.Minute))
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, q Queries) error {
		require.NoError(t, q.CreateEvent(ctx, e))
		require.NoError(t, q.CreateHold(ctx, h))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.ReadOnly(ctx, func(ctx context.Context, q Queries) error {
		_, err := q.GetEvent(ctx, e.ID)
		assert.ErrorIs(t, err, model.ErrEventNotFound)
		_, err = q.GetHold(ctx, h.ID)
		assert.ErrorIs(t, err, model.ErrHoldNotFound)
		return nil
	})
	require.NoError(t, err)

	// The rolled back token is free again.
	mustTx(t, s, func(ctx context.Context, q Queries) error {
		if err := q.CreateEvent(ctx, e); err != nil {
			return err
		}
		return q.CreateHold(ctx, h)
	})
}

func testSums(t *testing.T, s Store) {
	e := newEvent(20)
	active := newHold(e.ID, 3, t0.Add(time.Minute))
	lapsed := newHold(e.ID, 4, t0)
	booked := newHold(e.ID, 5, t0.Add(-time.Hour))

	mustTx(t, s, func(ctx context.Context, q Queries) error {
		require.NoError(t, q.CreateEvent(ctx, e))
		for _, h := range []model.Hold{active, lapsed, booked} {
			require.NoError(t, q.CreateHold(ctx, h))
		}
		return q.CreateBooking(ctx, model.Booking{
			ID: uuid.NewString(), HoldID: booked.ID, PaymentToken: booked.PaymentToken, CreatedAt: t0,
		})
	})

	mustTx(t, s, func(ctx context.Context, q Queries) error {
		locked, err := q.LockEvent(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, locked.ID)

		held, err := q.SumHeld(ctx, e.ID, t0)
		require.NoError(t, err)
		assert.Equal(t, 3, held, "expires_at == now is not active")

		bookedSeats, err := q.SumBooked(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, bookedSeats, "booked seats count past their expiry")

		got, err := q.FindBooking(ctx, booked.ID, booked.PaymentToken)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, booked.ID, got.HoldID)

		got, err = q.FindBooking(ctx, booked.ID, "other-token")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = q.FindBookingByHold(ctx, booked.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)

		got, err = q.FindBookingByHold(ctx, active.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		return nil
	})
}

func testTokenCase(t *testing.T, s Store) {
	e := newEvent(10)
	h := newHold(e.ID, 1, t0.Add(time.Minute))
	mustTx(t, s, func(ctx context.Context, q Queries) error {
		require.NoError(t, q.CreateEvent(ctx, e))
		require.NoError(t, q.CreateHold(ctx, h))
		return q.CreateBooking(ctx, model.Booking{
			ID: uuid.NewString(), HoldID: h.ID, PaymentToken: h.PaymentToken, CreatedAt: t0,
		})
	})

	upper := strings.ToUpper(h.PaymentToken)
	require.NotEqual(t, h.PaymentToken, upper)
	err := s.ReadOnly(context.Background(), func(ctx context.Context, q Queries) error {
		b, err := q.FindBooking(ctx, h.ID, upper)
		require.NoError(t, err)
		assert.Nil(t, b)

		b, err = q.FindBooking(ctx, h.ID, h.PaymentToken)
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, h.PaymentToken, b.PaymentToken)
		return nil
	})
	require.NoError(t, err)

	// A token differing only in case is a different token.
	other := newHold(e.ID, 1, t0.Add(time.Minute))
	other.PaymentToken = upper
	mustTx(t, s, func(ctx context.Context, q Queries) error { return q.CreateHold(ctx, other) })
}

func testExpireHolds(t *testing.T, s Store) {
	ctx := context.Background()
	e := newEvent(20)
	due := newHold(e.ID, 1, t0.Add(-time.Second))
	edge := newHold(e.ID, 1, t0)
	future := newHold(e.ID, 1, t0.Add(time.Second))
	booked := newHold(e.ID, 1, t0.Add(-time.Minute))

	mustTx(t, s, func(ctx context.Context, q Queries) error {
		require.NoError(t, q.CreateEvent(ctx, e))
		for _, h := range []model.Hold{due, edge, future, booked} {
			require.NoError(t, q.CreateHold(ctx, h))
		}
		return q.CreateBooking(ctx, model.Booking{
			ID: uuid.NewString(), HoldID: booked.ID, PaymentToken: booked.PaymentToken, CreatedAt: t0,
		})
	})

	var n int64
	mustTx(t, s, func(ctx context.Context, q Queries) (err error) {
		n, err = q.ExpireHolds(ctx, t0)
		return err
	})
	// Other subtests may share the store, so only this event's holds are asserted.
	assert.GreaterOrEqual(t, n, int64(2))

	err := s.ReadOnly(ctx, func(ctx context.Context, q Queries) error {
		for h, want := range map[string]bool{due.ID: true, edge.ID: true, future.ID: false, booked.ID: false} {
			got, err := q.GetHold(ctx, h)
			require.NoError(t, err)
			assert.Equal(t, want, got.IsExpired, h)
		}
		return nil
	})
	require.NoError(t, err)

	mustTx(t, s, func(ctx context.Context, q Queries) (err error) {
		n, err = q.ExpireHolds(ctx, t0)
		return err
	})
	assert.Zero(t, n, "sweep is idempotent")
}

func testRollup(t *testing.T, s Store) {
	ctx := context.Background()
	var before model.Metrics
	require.NoError(t, s.ReadOnly(ctx, func(ctx context.Context, q Queries) (err error) {
		before, err = q.Rollup(ctx, t0, t0.Add(5*time.Minute))
		return err
	}))

	e := newEvent(50)
	soon := newHold(e.ID, 2, t0.Add(time.Minute))
	later := newHold(e.ID, 3, t0.Add(time.Hour))
	lapsed := newHold(e.ID, 4, t0.Add(-time.Minute))
	booked := newHold(e.ID, 6, t0.Add(time.Minute))
	mustTx(t, s, func(ctx context.Context, q Queries) error {
		require.NoError(t, q.CreateEvent(ctx, e))
		for _, h := range []model.Hold{soon, later, lapsed, booked} {
			require.NoError(t, q.CreateHold(ctx, h))
		}
		return q.CreateBooking(ctx, model.Booking{
			ID: uuid.NewString(), HoldID: booked.ID, PaymentToken: booked.PaymentToken, CreatedAt: t0,
		})
	})

	var after model.Metrics
	require.NoError(t, s.ReadOnly(ctx, func(ctx context.Context, q Queries) (err error) {
		after, err = q.Rollup(ctx, t0, t0.Add(5*time.Minute))
		return err
	}))

	assert.Equal(t, 1, after.TotalEvents-before.TotalEvents)
	assert.Equal(t, 4, after.TotalHolds-before.TotalHolds)
	assert.Equal(t, 2, after.ActiveHolds-before.ActiveHolds)
	assert.Equal(t, 1, after.ExpiredHolds-before.ExpiredHolds)
	assert.Equal(t, 1, after.TotalBookings-before.TotalBookings)
	assert.Equal(t, 6, after.TotalSeatsBooked-before.TotalSeatsBooked)
	assert.Equal(t, 5, after.TotalSeatsHeld-before.TotalSeatsHeld)
	assert.Equal(t, 1, after.HoldsExpiringSoon-before.HoldsExpiringSoon)
}

// testContention races single-seat holds against one event and checks that
// the lock taken by LockEvent keeps the granted total within capacity.
func testContention(t *testing.T, s Store) {
	const seats, callers = 5, 20
	e := newEvent(seats)
	mustTx(t, s, func(ctx context.Context, q Queries) error { return q.CreateEvent(ctx, e) })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(context.Background(), func(ctx context.Context, q Queries) error {
				if _, err := q.LockEvent(ctx, e.ID); err != nil {
					return err
				}
				held, err := q.SumHeld(ctx, e.ID, t0)
				if err != nil {
					return err
				}
				if seats-held < 1 {
					return model.ErrInsufficientCapacity
				}
				return q.CreateHold(ctx, newHold(e.ID, 1, t0.Add(time.Hour)))
			})
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, model.ErrInsufficientCapacity, fmt.Sprintf("unexpected error: %v", err))
		}()
	}
	wg.Wait()

	assert.Equal(t, seats, granted)
	require.NoError(t, s.ReadOnly(context.Background(), func(ctx context.Context, q Queries) error {
		held, err := q.SumHeld(ctx, e.ID, t0)
		require.NoError(t, err)
		assert.Equal(t, seats, held)
		return nil
	}))
}
