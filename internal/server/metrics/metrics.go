// Package metrics exposes Prometheus collectors for builds, the hot channel
// and the HTTP transport. Each server owns its own registry so several
// servers can run in one process.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lynxserve"

var buildBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Request kinds recorded by the transport.
const (
	KindArtifact    = "artifact"
	KindContent     = "content"
	KindIndex       = "index"
	KindUnavailable = "unavailable"
	KindStale       = "stale"
	KindNotFound    = "not_found"
	KindReserved    = "reserved"
	KindPanic       = "panic"
)

// Metrics groups the server's collectors.
type Metrics struct {
	registry       *prometheus.Registry
	builds         *prometheus.CounterVec
	buildDuration  prometheus.Histogram
	hotSubscribers prometheus.Gauge
	requests       *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Completed compile cycles by outcome",
		}, []string{"outcome"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of compile cycles that produced a result",
			Buckets:   buildBuckets,
		}),
		hotSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hot_subscribers",
			Help:      "Browser clients connected to the hot channel",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests answered by the transport",
		}, []string{"kind", "code"}),
	}
	m.registry.MustRegister(
		m.builds,
		m.buildDuration,
		m.hotSubscribers,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBuild records a terminal compile event. Other events are ignored.
// All recording methods are no-ops on a nil *Metrics.
func (m *Metrics) ObserveBuild(ev build.Event) {
	if m == nil {
		return
	}
	if !ev.Kind.IsTerminal() {
		return
	}
	m.builds.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Stats != nil {
		m.buildDuration.Observe(ev.Stats.Duration.Seconds())
	}
}

// SetHotSubscribers records the current number of hot channel subscribers.
func (m *Metrics) SetHotSubscribers(n int) {
	if m == nil {
		return
	}
	m.hotSubscribers.Set(float64(n))
}

// ObserveRequest records one HTTP response.
func (m *Metrics) ObserveRequest(kind string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
