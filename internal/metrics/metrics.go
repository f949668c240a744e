// Package metrics holds the Prometheus collectors of the reservation core.
// The JSON rollup served at /metrics is computed from the store; these
// counters describe the process itself and are scraped separately.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HoldsCreated counts granted holds, labelled by whether the grant was partial.
	HoldsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "holds_created_total",
			Help:      "The total number of holds granted",
		},
		[]string{"partial"},
	)

	// SeatsHeld counts seats granted across all holds.
	SeatsHeld = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "seats_held_total",
			Help:      "The total number of seats granted to holds",
		},
	)

	// HoldsRejected counts hold requests refused, by reason.
	HoldsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "holds_rejected_total",
			Help:      "The total number of hold requests refused",
		},
		[]string{"reason"},
	)

	// BookingsConfirmed counts confirmations, labelled new or replay.
	BookingsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "bookings_confirmed_total",
			Help:      "The total number of booking confirmations",
		},
		[]string{"result"},
	)

	// HoldsExpired counts holds flagged by the expiry sweeper.
	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "holds_expired_total",
			Help:      "The total number of holds flagged expired by the sweeper",
		},
	)

	// SweepFailures counts sweep cycles that failed.
	SweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "sweep_failures_total",
			Help:      "The total number of failed expiry sweep cycles",
		},
	)

	// SweepDuration observes how long each sweep cycle takes.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "box_office",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in one expiry sweep cycle",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// NotificationsFailed counts booking notifications that could not be published.
	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "box_office",
			Name:      "booking_notifications_failed_total",
			Help:      "The total number of booking notifications that failed to publish",
		},
	)
)
