package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderingMetrics covers order placement outcomes and pending-order sweeps.
type OrderingMetrics struct {
	Orders        *prometheus.CounterVec
	SweepEntries  *prometheus.CounterVec
	SweepDuration prometheus.Histogram
}

// NewOrdering registers and returns the ordering-service metrics. A nil
// registerer falls back to the default registry.
func NewOrdering(reg prometheus.Registerer) *OrderingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microshop",
		Subsystem: "ordering",
		Name:      "orders_total",
		Help:      "Order placement attempts by outcome.",
	}, []string{"outcome"})
	sweepEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microshop",
		Subsystem: "ordering",
		Name:      "pending_sweep_entries_total",
		Help:      "Pending order entries handled per sweep, by result.",
	}, []string{"result"})
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "microshop",
		Subsystem: "ordering",
		Name:      "pending_sweep_duration_seconds",
		Help:      "Duration of a full pending-order sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	reg.MustRegister(orders, sweepEntries, sweepDuration)
	return &OrderingMetrics{
		Orders:        orders,
		SweepEntries:  sweepEntries,
		SweepDuration: sweepDuration,
	}
}

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
