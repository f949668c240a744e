package service

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/box-office/internal/model"
)

func TestHoldTTL(t *testing.T) {
	tests := []struct {
		name string
		in   *int
		want time.Duration
	}{
		{"default", nil, 2 * time.Minute},
		{"zero clamps up", ptr(0), time.Minute},
		{"negative clamps up", ptr(-10), time.Minute},
		{"in range", ptr(15), 15 * time.Minute},
		{"upper bound", ptr(60), 60 * time.Minute},
		{"over clamps down", ptr(61), 60 * time.Minute},
		{"far over clamps down", ptr(10_000), 60 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HoldTTL(tt.in))
		})
	}
}

func TestCreateHold(t *testing.T) {
	ctx := context.Background()

	t.Run("full grant", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 10)

		res, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 4, TTLMinutes: ptr(5)})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Hold.Quantity)
		assert.Equal(t, 4, res.QuantityRequested)
		assert.False(t, res.Partial)
		assert.Equal(t, now0.Add(5*time.Minute), res.Hold.ExpiresAt)
		assert.Equal(t, e.ID, res.Hold.EventID)

		raw, err := hex.DecodeString(res.Hold.PaymentToken)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		assert.Equal(t, model.EventStatus{Total: 10, Available: 6, Held: 4}, f.status(t, e.ID))
	})

	t.Run("partial grant takes exactly what is left", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 5)
		f.hold(t, e.ID, 2)

		res, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 10, AllowPartial: true})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Hold.Quantity)
		assert.Equal(t, 10, res.QuantityRequested)
		assert.True(t, res.Partial)
		assert.Equal(t, 0, f.status(t, e.ID).Available)
	})

	t.Run("exact fit with partial allowed is not partial", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 5)

		res, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 5, AllowPartial: true})
		require.NoError(t, err)
		assert.False(t, res.Partial)
		assert.Equal(t, 5, res.Hold.Quantity)
	})

	t.Run("insufficient without partial", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 5)
		f.hold(t, e.ID, 2)

		_, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 4})
		require.ErrorIs(t, err, model.ErrInsufficientCapacity)
		var ice *model.InsufficientCapacityError
		require.True(t, errors.As(err, &ice))
		assert.Equal(t, 4, ice.Requested)
		assert.Equal(t, 3, ice.Available)
		assert.Equal(t, 3, f.status(t, e.ID).Available, "nothing persisted")
	})

	t.Run("partial with nothing left is insufficient", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 2)
		f.hold(t, e.ID, 2)

		_, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 1, AllowPartial: true})
		var ice *model.InsufficientCapacityError
		require.ErrorAs(t, err, &ice)
		assert.Equal(t, 0, ice.Available)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 2)

		_, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 0})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: -1})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = f.svc.CreateHold(ctx, CreateHoldInput{EventID: "42", Quantity: 1})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = f.svc.CreateHold(ctx, CreateHoldInput{EventID: uuid.NewString(), Quantity: 1})
		assert.ErrorIs(t, err, model.ErrEventNotFound)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 50)
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			res := f.hold(t, e.ID, 1)
			assert.False(t, seen[res.Hold.PaymentToken])
			seen[res.Hold.PaymentToken] = true
		}
	})
}

func TestCreateHold_ExpiryReclaimsCapacity(t *testing.T) {
	ctx := context.Background()

	t.Run("without the sweeper", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 3)
		f.hold(t, e.ID, 3)

		_, err := f.svc.CreateHold(ctx, CreateHoldInput{EventID: e.ID, Quantity: 1})
		require.ErrorIs(t, err, model.ErrInsufficientCapacity)

		// expires_at == now already counts as lapsed.
		f.clock.Advance(2 * time.Minute)
		assert.Equal(t, 3, f.status(t, e.ID).Available)
		res := f.hold(t, e.ID, 3)
		assert.False(t, res.Partial)
	})

	t.Run("with the sweeper", func(t *testing.T) {
		f := newFixture(t)
		e := f.event(t, 3)
		f.hold(t, e.ID, 3)

		f.clock.Advance(3 * time.Minute)
		n, err := NewSweeper(f.store, f.clock, time.Second, testLogger()).SweepOnce(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		// Moving the clock back shows the flag, not the timestamp, now excludes the hold.
		f.clock.Set(now0)
		assert.Equal(t, 3, f.status(t, e.ID).Available)
	})
}

func TestCreateHold_OneSeatTwoCallers(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 1)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.CreateHold(context.Background(), CreateHoldInput{EventID: e.ID, Quantity: 1})
		}()
	}
	wg.Wait()

	var ok, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInsufficientCapacity):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, refused)
	assert.Equal(t, model.EventStatus{Total: 1, Held: 1}, f.status(t, e.ID))
}

func TestCreateHold_NoOverselling(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 37)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.CreateHold(context.Background(), CreateHoldInput{
				EventID:      e.ID,
				Quantity:     1 + i%4,
				AllowPartial: i%2 == 0,
			})
			if err != nil {
				assert.ErrorIs(t, err, model.ErrInsufficientCapacity)
				return
			}
			if i%3 == 0 {
				_, err = f.svc.ConfirmBooking(context.Background(), res.Hold.ID, res.Hold.PaymentToken)
				assert.NoError(t, err)
			}
			mu.Lock()
			granted += res.Hold.Quantity
			mu.Unlock()
		}()
	}
	wg.Wait()

	st := f.status(t, e.ID)
	assert.LessOrEqual(t, granted, 37)
	assert.Equal(t, granted, st.Held+st.Booked)
	assert.Equal(t, 37, st.Held+st.Booked+st.Available)
}
