package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/box-office/internal/clock"
	"github.com/iliyamo/box-office/internal/metrics"
	"github.com/iliyamo/box-office/internal/repository"
)

const (
	DefaultSweepInterval = 30 * time.Second
	defaultSweepTimeout  = 10 * time.Second
)

// Sweeper periodically flags holds whose window has elapsed.  Expiry is
// also evaluated lazily by every availability read, so the sweeper only
// keeps the stored flag in step; correctness never depends on it running.
type Sweeper struct {
	store    repository.Store
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	log      *logrus.Entry
}

func NewSweeper(store repository.Store, clk clock.Clock, interval time.Duration, log *logrus.Entry) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		clock:    clk,
		interval: interval,
		timeout:  defaultSweepTimeout,
		log:      log.WithField("component", "expiry-sweeper"),
	}
}

// SweepOnce runs one cycle in its own transaction and returns how many
// holds were flagged.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.WithTx(ctx, func(ctx context.Context, q repository.Queries) error {
		var err error
		n, err = q.ExpireHolds(ctx, s.clock.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed cycle is logged and the loop carries on.  A cycle that has
// started is finished even if ctx is cancelled meanwhile.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.WithField("interval", s.interval.String()).Info("sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) cycle(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.SweepOnce(ctx)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SweepFailures.Inc()
		s.log.WithError(err).Error("expiry sweep failed")
		return
	}
	metrics.HoldsExpired.Add(float64(n))
	if n > 0 {
		s.log.WithField("expired", n).Info("expired holds flagged")
	} else {
		s.log.Debug("no holds to expire")
	}
}
