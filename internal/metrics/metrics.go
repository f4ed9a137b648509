// Package metrics holds the Prometheus collectors for the scheduling
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicecal"

// Conflict check results.
const (
	CheckClear    = "clear"
	CheckConflict = "conflict"
	CheckFailed   = "failed"
)

// Creation results.
const (
	CreateOK          = "ok"
	CreateUnconfirmed = "unconfirmed"
	CreateFailed      = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	conflictChecks  *prometheus.CounterVec
	entries         *prometheus.CounterVec
	creations       *prometheus.CounterVec
	queued          prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Scheduling requests by final status.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end scheduling request latency including queueing.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		conflictChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_checks_total",
			Help:      "Conflict checks by result.",
		}, []string{"result"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "existing_entries_total",
			Help:      "Existing calendar entries seen during conflict checks, by how they were resolved.",
		}, []string{"resolution"}),
		creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_creations_total",
			Help:      "Event creation attempts by result.",
		}, []string{"result"}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_queue_depth",
			Help:      "Requests waiting for the shared calendar session.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.conflictChecks,
		m.entries,
		m.creations,
		m.queued,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
	m.requestDuration.Observe(d.Seconds())
}

func (m *Metrics) ConflictCheck(result string) {
	if m == nil {
		return
	}
	m.conflictChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ExistingEntry(resolution string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(resolution).Inc()
}

func (m *Metrics) Creation(result string) {
	if m == nil {
		return
	}
	m.creations.WithLabelValues(result).Inc()
}

func (m *Metrics) Queued(delta float64) {
	if m == nil {
		return
	}
	m.queued.Add(delta)
}
