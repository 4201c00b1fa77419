// Package metrics exposes Prometheus instrumentation for the service.
// Metrics are observability-only: no correctness decision depends on them,
// and click accounting lives in the analytics counter, not here.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. Each instance owns its
// registry so tests can construct them independently without duplicate
// registration panics.
type Metrics struct {
	LinksCreated    prometheus.Counter
	RedirectsServed prometheus.Counter
	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by a fresh registry that also
// collects the standard Go and process metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		LinksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shortener",
			Name:      "links_created_total",
			Help:      "Number of short links created.",
		}),
		RedirectsServed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shortener",
			Name:      "redirects_served_total",
			Help:      "Number of short-code resolutions that returned a redirect.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shortener",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),

		registry: registry,
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
