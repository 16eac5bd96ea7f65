package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the API clients.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	ErrorsTotal      *prometheus.CounterVec
	OperationsTotal  *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickfinder_requests_total",
			Help: "Total API requests issued.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flickfinder_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickfinder_errors_total",
			Help: "Total number of failed requests by type.",
		},
		[]string{"error_type"},
	)
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickfinder_operations_total",
			Help: "User actions by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickfinder_login_transitions_total",
			Help: "Login chain state transitions by target state.",
		},
		[]string{"state"},
	)

	registry.MustRegister(requests, requestDuration, errorsTotal, operations, transitions)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		ErrorsTotal:      errorsTotal,
		OperationsTotal:  operations,
		TransitionsTotal: transitions,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncOperation counts a finished user action.
func (m *Metrics) IncOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// IncTransition counts a login chain state change.
func (m *Metrics) IncTransition(state string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(state).Inc()
}
