package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/box-office/internal/model"
)

// MemoryStore is a process-local Store.  Read-write transactions hold one
// store-wide lock for their whole duration, which serializes them the same
// way the event-row lock serializes them in SQL; writes are applied in
// place and undone when fn fails.  It enforces the same constraints as the
// SQL schema: unique ids, unique payment tokens, one booking per hold and
// referential integrity.
type MemoryStore struct {
	mu       sync.RWMutex
	events   map[string]model.Event
	holds    map[string]model.Hold
	tokens   map[string]string        // payment token -> hold id
	bookings map[string]model.Booking // hold id -> booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]model.Event),
		holds:    make(map[string]model.Hold),
		tokens:   make(map[string]string),
		bookings: make(map[string]model.Booking),
	}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := &memQueries{s: s}
	if err := fn(ctx, q); err != nil {
		q.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) ReadOnly(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &memQueries{s: s, readOnly: true})
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

type memQueries struct {
	s        *MemoryStore
	readOnly bool
	undo     []func()
}

func (q *memQueries) rollback() {
	for i := len(q.undo) - 1; i >= 0; i-- {
		q.undo[i]()
	}
	q.undo = nil
}

func (q *memQueries) writable(op string) error {
	if q.readOnly {
		return fmt.Errorf("%s: %w", op, errReadOnlyTx)
	}
	return nil
}

func conflict(op, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, model.ErrPersistenceConflict, fmt.Sprintf(format, args...))
}

func (q *memQueries) CreateEvent(_ context.Context, e model.Event) error {
	if err := q.writable("create event"); err != nil {
		return err
	}
	if _, ok := q.s.events[e.ID]; ok {
		return conflict("create event", "duplicate id %s", e.ID)
	}
	if e.TotalSeats <= 0 {
		return conflict("create event", "total_seats must be positive")
	}
	q.s.events[e.ID] = e
	q.undo = append(q.undo, func() { delete(q.s.events, e.ID) })
	return nil
}

func (q *memQueries) GetEvent(_ context.Context, id string) (model.Event, error) {
	e, ok := q.s.events[id]
	if !ok {
		return model.Event{}, model.ErrEventNotFound
	}
	return e, nil
}

func (q *memQueries) LockEvent(ctx context.Context, id string) (model.Event, error) {
	// The store-wide lock is already held for the transaction.
	return q.GetEvent(ctx, id)
}

func (q *memQueries) active(h model.Hold, now time.Time) bool {
	_, booked := q.s.bookings[h.ID]
	return !booked && !h.ExpiredAt(now)
}

func (q *memQueries) SumHeld(_ context.Context, eventID string, now time.Time) (int, error) {
	return lo.SumBy(lo.Values(q.s.holds), func(h model.Hold) int {
		if h.EventID != eventID || !q.active(h, now) {
			return 0
		}
		return h.Quantity
	}), nil
}

func (q *memQueries) SumBooked(_ context.Context, eventID string) (int, error) {
	return lo.SumBy(lo.Values(q.s.bookings), func(b model.Booking) int {
		h := q.s.holds[b.HoldID]
		if h.EventID != eventID {
			return 0
		}
		return h.Quantity
	}), nil
}

func (q *memQueries) CreateHold(_ context.Context, h model.Hold) error {
	if err := q.writable("create hold"); err != nil {
		return err
	}
	switch {
	case h.Quantity <= 0:
		return conflict("create hold", "quantity must be positive")
	case lo.HasKey(q.s.holds, h.ID):
		return conflict("create hold", "duplicate id %s", h.ID)
	case lo.HasKey(q.s.tokens, h.PaymentToken):
		return conflict("create hold", "duplicate payment token")
	case !lo.HasKey(q.s.events, h.EventID):
		return conflict("create hold", "unknown event %s", h.EventID)
	}
	q.s.holds[h.ID] = h
	q.s.tokens[h.PaymentToken] = h.ID
	q.undo = append(q.undo, func() {
		delete(q.s.holds, h.ID)
		delete(q.s.tokens, h.PaymentToken)
	})
	return nil
}

func (q *memQueries) GetHold(_ context.Context, id string) (model.Hold, error) {
	h, ok := q.s.holds[id]
	if !ok {
		return model.Hold{}, model.ErrHoldNotFound
	}
	return h, nil
}

func (q *memQueries) FindBooking(_ context.Context, holdID, token string) (*model.Booking, error) {
	b, ok := q.s.bookings[holdID]
	if !ok || b.PaymentToken != token {
		return nil, nil
	}
	return &b, nil
}

func (q *memQueries) FindBookingByHold(_ context.Context, holdID string) (*model.Booking, error) {
	b, ok := q.s.bookings[holdID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (q *memQueries) CreateBooking(_ context.Context, b model.Booking) error {
	if err := q.writable("create booking"); err != nil {
		return err
	}
	if !lo.HasKey(q.s.holds, b.HoldID) {
		return conflict("create booking", "unknown hold %s", b.HoldID)
	}
	if lo.HasKey(q.s.bookings, b.HoldID) {
		return conflict("create booking", "hold %s already booked", b.HoldID)
	}
	q.s.bookings[b.HoldID] = b
	q.undo = append(q.undo, func() { delete(q.s.bookings, b.HoldID) })
	return nil
}

func (q *memQueries) ExpireHolds(_ context.Context, now time.Time) (int64, error) {
	if err := q.writable("expire holds"); err != nil {
		return 0, err
	}
	var n int64
	for id, h := range q.s.holds {
		if h.IsExpired || h.ExpiresAt.After(now) || lo.HasKey(q.s.bookings, id) {
			continue
		}
		h.IsExpired = true
		q.s.holds[id] = h
		q.undo = append(q.undo, func() {
			h.IsExpired = false
			q.s.holds[id] = h
		})
		n++
	}
	return n, nil
}

func (q *memQueries) Rollup(_ context.Context, now, soon time.Time) (model.Metrics, error) {
	holds := lo.Values(q.s.holds)
	active := lo.Filter(holds, func(h model.Hold, _ int) bool { return q.active(h, now) })

	return model.Metrics{
		TotalEvents: len(q.s.events),
		TotalHolds:  len(holds),
		ActiveHolds: len(active),
		ExpiredHolds: lo.CountBy(holds, func(h model.Hold) bool {
			return !lo.HasKey(q.s.bookings, h.ID) && h.ExpiredAt(now)
		}),
		TotalBookings: len(q.s.bookings),
		TotalSeatsBooked: lo.SumBy(lo.Values(q.s.bookings), func(b model.Booking) int {
			return q.s.holds[b.HoldID].Quantity
		}),
		TotalSeatsHeld: lo.SumBy(active, func(h model.Hold) int { return h.Quantity }),
		HoldsExpiringSoon: lo.CountBy(active, func(h model.Hold) bool {
			return !h.ExpiresAt.After(soon)
		}),
	}, nil
}
