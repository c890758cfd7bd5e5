// Package metrics holds the application-specific Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_bridge",
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Total number of protocol requests handled.",
		},
		[]string{"method", "outcome"},
	)

	pipelinesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wallet_bridge",
			Subsystem: "send",
			Name:      "pipelines_in_flight",
			Help:      "Current number of active confirmation pipelines.",
		},
	)

	confirmationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wallet_bridge",
			Subsystem: "send",
			Name:      "confirmation_duration_seconds",
			Help:      "Time from send request arrival to terminal outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
	)
)

func init() {
	Registry.MustRegister(requestsTotal, pipelinesInFlight, confirmationDuration)
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one routed request with its outcome.
func ObserveRequest(method, outcome string) {
	requestsTotal.WithLabelValues(method, outcome).Inc()
}

// PipelineStarted marks one confirmation pipeline as active.
func PipelineStarted() { pipelinesInFlight.Inc() }

// PipelineFinished marks one confirmation pipeline as terminal and records
// its duration.
func PipelineFinished(started time.Time) {
	pipelinesInFlight.Dec()
	confirmationDuration.Observe(time.Since(started).Seconds())
}
