package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutMetrics counts checkout outcomes and tracks saga latency.
type CheckoutMetrics struct {
	Checkouts           *prometheus.CounterVec
	DurationMS          *prometheus.HistogramVec
	PaymentRetries      prometheus.Counter
	SweptReservations   prometheus.Counter
	RecoveredOrders     prometheus.Counter
	ReconciliationFlags prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metric set on reg. Tests pass a
// fresh prometheus.NewRegistry; cmd binaries pass the default registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "core",
		Name:      "checkouts_total",
		Help:      "Total number of checkout attempts by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout",
		Subsystem: "core",
		Name:      "checkout_duration_ms",
		Help:      "Checkout saga duration in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"result"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "core",
		Name:      "payment_retries_total",
		Help:      "Charge attempts retried after a transient provider failure.",
	})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "core",
		Name:      "reservations_expired_total",
		Help:      "Reservations released by the expiry sweep.",
	})
	recovered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "core",
		Name:      "orders_recovered_total",
		Help:      "Stuck orders completed by the recovery sweep.",
	})
	flags := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "core",
		Name:      "reconciliation_flags_total",
		Help:      "Orders flagged for manual reconciliation.",
	})

	reg.MustRegister(checkouts, duration, retries, swept, recovered, flags)
	return &CheckoutMetrics{
		Checkouts:           checkouts,
		DurationMS:          duration,
		PaymentRetries:      retries,
		SweptReservations:   swept,
		RecoveredOrders:     recovered,
		ReconciliationFlags: flags,
	}
}

// HandlerFor exposes a registry over HTTP for scraping.
func HandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
