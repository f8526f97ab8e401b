// Package metrics exposes Prometheus instruments for the data source and refresh loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nucleares"

// Result label values
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Metrics groups every instrument the client records.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	Refreshes       *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
}

// New creates the instruments and registers them with reg. A nil reg leaves them
// unregistered, which is what tests and short-lived tools usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Requests sent to the game web server, by operation and result.",
		}, []string{"op", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests to the game web server, including throttle wait.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"op"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_in_flight",
			Help:      "Requests currently holding a throttle slot.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Whole-tree refresh cycles, by trigger and result.",
		}, []string{"trigger", "result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of whole-tree refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.RequestDuration, m.InFlight, m.Refreshes, m.RefreshDuration)
	}
	return m
}

// Result maps an operation outcome onto a result label.
func Result(err error, cancelled bool) string {
	switch {
	case err == nil:
		return ResultSuccess
	case cancelled:
		return ResultCancelled
	default:
		return ResultError
	}
}
