package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Gateway orders created, by gateway and outcome",
		},
		[]string{"gateway", "outcome"},
	)

	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_verifications_total",
			Help: "Payment verify calls by terminal state",
		},
		[]string{"outcome"},
	)

	CoursesGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_courses_granted_total",
			Help: "Purchase and access grant pairs committed",
		},
	)

	AccountsProvisioned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_accounts_provisioned_total",
			Help: "Student accounts created during guest checkout",
		},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_notifications_total",
			Help: "Notification jobs by outcome (sent, failed, dropped)",
		},
		[]string{"kind", "outcome"},
	)

	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_gateway_request_seconds",
			Help:    "Time spent waiting on the payment gateway",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OrdersCreated,
			Verifications,
			CoursesGranted,
			AccountsProvisioned,
			Notifications,
			GatewayLatency,
		)
	})
}
