// Package observability holds the Prometheus instrumentation for the
// FloatChat service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline and the chat path.
type Metrics struct {
	ProfilesAccepted prometheus.Counter
	ProfilesSkipped  prometheus.Counter
	FilesIngested    *prometheus.CounterVec // labels: outcome={success,error}
	IngestDuration   prometheus.Histogram

	ChatRequests   *prometheus.CounterVec // labels: outcome={answered,no_data,ambiguous,upstream_error,error}
	ChatDuration   prometheus.Histogram
	ChatTruncated  prometheus.Counter
	UpstreamErrors *prometheus.CounterVec // labels: service={llm,argo_index}

	HTTPRequests *prometheus.CounterVec   // labels: route, method, status
	HTTPDuration *prometheus.HistogramVec // labels: route
}

func newMetrics() *Metrics {
	return &Metrics{
		ProfilesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "profiles_accepted_total",
			Help:      "Profiles parsed, validated, and stored.",
		}),
		ProfilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "profiles_skipped_total",
			Help:      "Profile rows rejected by validation during ingest.",
		}),
		FilesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "files_ingested_total",
			Help:      "NetCDF files processed by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floatchat",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete file ingest.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "chat_requests_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		ChatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floatchat",
			Name:      "chat_duration_seconds",
			Help:      "End-to-end duration of a chat turn.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ChatTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "chat_context_truncated_total",
			Help:      "Chat turns whose grounding context hit the profile cap.",
		}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "upstream_errors_total",
			Help:      "Failed calls to external services.",
		}, []string{"service"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatchat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method, and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floatchat",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProfilesAccepted,
		m.ProfilesSkipped,
		m.FilesIngested,
		m.IngestDuration,
		m.ChatRequests,
		m.ChatDuration,
		m.ChatTruncated,
		m.UpstreamErrors,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
