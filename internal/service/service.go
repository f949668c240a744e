// Package service is the reservation core: availability accounting, holds,
// booking confirmation, the expiry sweeper and the metrics rollup.  Every
// operation runs inside one store transaction; none of them retries.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/box-office/internal/clock"
	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/queue"
	"github.com/iliyamo/box-office/internal/repository"
)

const (
	// DefaultExpiringSoonWindow is the metrics lookahead for holds about to lapse.
	DefaultExpiringSoonWindow = 5 * time.Minute

	// notifyTimeout bounds the best-effort booking notification.
	notifyTimeout = 5 * time.Second
)

// Service implements the reservation operations over a Store.
type Service struct {
	store      repository.Store
	clock      clock.Clock
	publisher  queue.Publisher
	soonWindow time.Duration
}

type Option func(*Service)

// WithPublisher sets where confirmed bookings are announced.
func WithPublisher(p queue.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithExpiringSoonWindow overrides the metrics lookahead.
func WithExpiringSoonWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.soonWindow = d
		}
	}
}

func New(store repository.Store, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:      store,
		clock:      clk,
		publisher:  queue.NopPublisher{},
		soonWindow: DefaultExpiringSoonWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newPaymentToken returns 32 bytes from crypto/rand, hex encoded.
func newPaymentToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate payment token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// parseID rejects identifiers that are not UUIDs before they reach the store.
func parseID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.InvalidInputf("%s must be a UUID", field)
	}
	return nil
}
