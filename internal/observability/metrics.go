package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "llm"
	metricsSubsystem = "gateway"
)

// Metrics holds the gateway's Prometheus instruments. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	relayRequests *prometheus.CounterVec
	relayDuration *prometheus.HistogramVec
	streamEvents  *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway metrics on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		relayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "relay_requests_total",
			Help:      "Relay requests by model, backend and outcome.",
		}, []string{"model", "backend", "outcome"}),
		relayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "relay_duration_seconds",
			Help:      "End-to-end relay duration.",
			// LLM completions routinely run into the tens of seconds
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model", "backend"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "stream_events_forwarded_total",
			Help:      "Streamed events forwarded to callers, by model.",
		}, []string{"model"}),
	}

	registry.MustRegister(m.relayRequests, m.relayDuration, m.streamEvents)
	return m
}

// ObserveRequest records one finished relay attempt
func (m *Metrics) ObserveRequest(model, backend, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.relayRequests.WithLabelValues(model, backend, outcome).Inc()
	m.relayDuration.WithLabelValues(model, backend).Observe(elapsed.Seconds())
}

// AddStreamEvent counts one forwarded stream event
func (m *Metrics) AddStreamEvent(model string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(model).Inc()
}

// Handler exposes the registry for GET /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
