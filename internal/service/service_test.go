package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/box-office/internal/clock"
	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/queue"
	"github.com/iliyamo/box-office/internal/repository"
)

var now0 = time.Date(2030, time.June, 1, 18, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []queue.BookingConfirmedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingConfirmedEvent(nil), p.events...)
}

type fixture struct {
	svc   *Service
	store *repository.MemoryStore
	clock *clock.Manual
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewManual(now0)
	pub := &recordingPublisher{}
	return &fixture{
		svc:   New(store, clk, WithPublisher(pub)),
		store: store,
		clock: clk,
		pub:   pub,
	}
}

func (f *fixture) event(t *testing.T, seats int) model.Event {
	t.Helper()
	e, err := f.svc.CreateEvent(context.Background(), "Opening Night", seats)
	require.NoError(t, err)
	return e
}

func (f *fixture) hold(t *testing.T, eventID string, qty int) model.HoldResult {
	t.Helper()
	res, err := f.svc.CreateHold(context.Background(), CreateHoldInput{EventID: eventID, Quantity: qty})
	require.NoError(t, err)
	return res
}

func (f *fixture) status(t *testing.T, eventID string) model.EventStatus {
	t.Helper()
	st, err := f.svc.GetEventStatus(context.Background(), eventID)
	require.NoError(t, err)
	return st
}

func ptr[T any](v T) *T { return &v }

var errStoreDown = errors.New("store down")

// downStore fails every transaction.
type downStore struct {
	repository.Store
	mu    sync.Mutex
	calls int
}

func (s *downStore) WithTx(context.Context, func(context.Context, repository.Queries) error) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errStoreDown
}

func (s *downStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
