// Package metrics defines Prometheus metrics for the bridge.
//
// All metrics are registered with the default Prometheus registry and served
// on /metrics by the HTTP server.
//
// Metric naming follows Prometheus conventions:
//   - bridge_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// InvocationsTotal counts operation calls by service, operation and outcome.
	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_invocations_total",
			Help: "Total number of operation invocations by service, operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)

	// InvocationDurationSeconds is a histogram of call duration by service and operation.
	InvocationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_invocation_duration_seconds",
			Help:    "Duration of operation invocations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	// RequestsTotal counts inbound requests by transport and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_requests_total",
			Help: "Total inbound requests by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)

	// EventsPublishedTotal counts invocation events by sink and result.
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_published_total",
			Help: "Total invocation events delivered by sink and result.",
		},
		[]string{"sink", "result"},
	)

	// CatalogServices is the number of registered service versions.
	CatalogServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_catalog_services",
			Help: "Number of service versions registered in the catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		InvocationsTotal,
		InvocationDurationSeconds,
		RequestsTotal,
		EventsPublishedTotal,
		CatalogServices,
	)
}

// RecordInvocation records metrics for one completed operation call.
func RecordInvocation(service, operation, outcome string, elapsed time.Duration) {
	InvocationsTotal.WithLabelValues(service, operation, outcome).Inc()
	InvocationDurationSeconds.WithLabelValues(service, operation).Observe(elapsed.Seconds())
}

// RecordRequest records a single inbound request.
func RecordRequest(transport, outcome string) {
	RequestsTotal.WithLabelValues(transport, outcome).Inc()
}

// RecordPublish records one event delivery attempt.
func RecordPublish(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublishedTotal.WithLabelValues(sink, result).Inc()
}

// SetCatalogSize records the number of registered service versions.
func SetCatalogSize(n int) {
	CatalogServices.Set(float64(n))
}

// Recorder feeds invoker observations into the invocation metrics.
type Recorder struct{}

// ObserveInvocation implements invoker.Observer.
func (Recorder) ObserveInvocation(service, operation, outcome string, elapsed time.Duration) {
	RecordInvocation(service, operation, outcome, elapsed)
}
