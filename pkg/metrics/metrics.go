// Package metrics defines the Prometheus collectors shared by the gateway
// and the worker. All collectors are registered on a dedicated registry so
// tests never trip duplicate-registration panics on the default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every finsight collector. The gateway exposes it on
// GET /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		JobsProcessed,
		EventsPublished,
		SSEConnections,
		JobDuration,
	)
}

// JobsProcessed counts worker job completions by terminal status.
var JobsProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finsight_jobs_processed_total",
		Help: "Jobs processed by the worker, labelled by terminal status.",
	},
	[]string{"status"}, // completed | failed
)

// EventsPublished counts bus publishes by event type.
var EventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finsight_events_published_total",
		Help: "Events published on the bus, labelled by event type.",
	},
	[]string{"type"},
)

// SSEConnections tracks currently open SSE streams.
var SSEConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "finsight_sse_connections_active",
		Help: "Currently open SSE event streams.",
	},
)

// JobDuration observes end-to-end job processing time.
var JobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "finsight_job_duration_seconds",
		Help:    "End-to-end job processing duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	},
)
