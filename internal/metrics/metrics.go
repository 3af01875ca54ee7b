package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "reservations_total",
			Help:      "Reservation state transitions by outcome.",
		},
		[]string{"outcome"},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "slot_conflicts_total",
			Help:      "Slot acquisitions lost to a concurrent caller.",
		},
	)

	waitlistMatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "waitlist_matches_total",
			Help:      "Freed tables offered to waiting entries.",
		},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "notifications_sent_total",
			Help:      "Scheduled notifications handed to the sender.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, slotConflicts, waitlistMatches, notificationsSent, httpRequests)
	})
}

// IncReservation increments the counter for a reservation outcome label
// (created, cancelled, finished, relocated, no_show).
func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

// IncSlotConflict counts a tryAcquire that found the cell already taken.
func IncSlotConflict() {
	slotConflicts.Inc()
}

// IncWaitlistMatch counts a freed-table offer to a waiting entry.
func IncWaitlistMatch() {
	waitlistMatches.Inc()
}

// IncNotificationSent counts a delivered notification by kind.
func IncNotificationSent(kind string) {
	notificationsSent.WithLabelValues(kind).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
