package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasy",
			Name:      "reservation_created_total",
			Help:      "Count of booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	reservationDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasy",
			Name:      "reservation_decision_total",
			Help:      "Count of business decisions over reservations.",
		},
		[]string{"decision"},
	)

	slotsMaterialized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reasy",
			Name:      "slots_materialized_total",
			Help:      "Count of time slot rows inserted.",
		},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasy",
			Name:      "auth_attempts_total",
			Help:      "Count of login and signup attempts by result.",
		},
		[]string{"action", "result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasy",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationCreated, reservationDecision, slotsMaterialized, authAttempts, httpRequests)
	})
}

func IncReservationCreated(outcome string) {
	reservationCreated.WithLabelValues(outcome).Inc()
}

func IncReservationDecision(decision string) {
	reservationDecision.WithLabelValues(decision).Inc()
}

func AddSlotsMaterialized(n int) {
	if n > 0 {
		slotsMaterialized.Add(float64(n))
	}
}

func IncAuth(action, result string) {
	authAttempts.WithLabelValues(action, result).Inc()
}

func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
