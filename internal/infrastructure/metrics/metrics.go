package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the RED-style collectors the application services bump.
// Collectors are supplied via DI; services never register their own.
type Metrics struct {
	CheckoutTotal    *prometheus.CounterVec // outcome
	CheckoutDuration prometheus.Histogram
	ResetTotal       *prometheus.CounterVec // step, outcome
	MailFailures     prometheus.Counter
}

// New creates and registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckoutTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_requests_total",
				Help: "Total number of checkout attempts.",
			},
			[]string{"outcome"},
		),
		CheckoutDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "checkout_duration_seconds",
				Help:    "Duration of checkout execution in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ResetTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "password_reset_requests_total",
				Help: "Total number of password-reset steps by outcome.",
			},
			[]string{"step", "outcome"},
		),
		MailFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notification_send_failed_total",
				Help: "Count of swallowed notification delivery failures.",
			},
		),
	}
	reg.MustRegister(m.CheckoutTotal, m.CheckoutDuration, m.ResetTotal, m.MailFailures)
	return m
}

// NewNop returns unregistered collectors for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
