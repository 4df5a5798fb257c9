// Package metrics exposes prometheus instrumentation for the engine and API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	PagesCollected      *prometheus.CounterVec
	TouchesCaptured     prometheus.Counter
	ConsentSignals      *prometheus.CounterVec
	Leads               *prometheus.CounterVec
	PIIDetections       *prometheus.CounterVec
	StorageReadFailures *prometheus.CounterVec
	PagesEvicted        prometheus.Counter
	CollectDuration     prometheus.Histogram

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PagesCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicktrail_pages_collected_total",
				Help: "Total number of page loads collected, by consent outcome",
			},
			[]string{"outcome"},
		),
		TouchesCaptured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clicktrail_touches_captured_total",
				Help: "Total number of qualifying touches merged into a record",
			},
		),
		ConsentSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicktrail_consent_signals_total",
				Help: "Total number of consent signals delivered to pending pages",
			},
			[]string{"signal"},
		),
		Leads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicktrail_leads_total",
				Help: "Total number of leads recorded, by form provider",
			},
			[]string{"provider"},
		),
		PIIDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicktrail_pii_detections_total",
				Help: "Total number of PII detections in the data layer, by action taken",
			},
			[]string{"action"},
		),
		StorageReadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicktrail_storage_read_failures_total",
				Help: "Total number of unreadable stored attribution entries",
			},
			[]string{"backend"},
		),
		PagesEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clicktrail_pending_pages_evicted_total",
				Help: "Total number of pending pages evicted before consent arrived",
			},
		),
		CollectDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clicktrail_collect_duration_seconds",
				Help:    "Duration of the collect pipeline",
				Buckets: prometheus.DefBuckets,
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicktrail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clicktrail_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
	}

	m.registry.MustRegister(
		m.PagesCollected,
		m.TouchesCaptured,
		m.ConsentSignals,
		m.Leads,
		m.PIIDetections,
		m.StorageReadFailures,
		m.PagesEvicted,
		m.CollectDuration,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCollect records one run of the collect pipeline.
func (m *Metrics) ObserveCollect(outcome string, start time.Time) {
	m.PagesCollected.WithLabelValues(outcome).Inc()
	m.CollectDuration.Observe(time.Since(start).Seconds())
}
