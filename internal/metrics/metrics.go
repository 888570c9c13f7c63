// Package metrics exposes Prometheus instrumentation for the score server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the buckets for request latency.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.latencyBuckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns every collector of the service.
type Manager struct {
	namespace      string
	latencyBuckets []float64
	registry       *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	scoresSubmitted    prometheus.Counter
	beatmapsAutoCreate prometheus.Counter
	finalValues        prometheus.Histogram

	usersTotal    prometheus.Gauge
	beatmapsTotal prometheus.Gauge
	scoresTotal   prometheus.Gauge
}

// NewManager creates a manager on its own registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "tpserver",
		latencyBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.scoresSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "scores_submitted_total",
		Help:      "Total number of scores persisted",
	})

	m.beatmapsAutoCreate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "beatmaps_autocreated_total",
		Help:      "Beatmaps created with placeholder metadata on first submission",
	})

	m.finalValues = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "final_value",
		Help:      "Distribution of submitted final values",
		Buckets:   prometheus.ExponentialBuckets(1000, 4, 10),
	})

	m.usersTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "users_total",
		Help:      "Registered users",
	})
	m.beatmapsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "beatmaps_total",
		Help:      "Registered beatmaps",
	})
	m.scoresTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "scores_total",
		Help:      "Stored scores",
	})
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) RecordScoreSubmitted(finalValue float64, beatmapCreated bool) {
	m.scoresSubmitted.Inc()
	m.finalValues.Observe(finalValue)
	if beatmapCreated {
		m.beatmapsAutoCreate.Inc()
	}
}

func (m *Manager) SetTotals(users, beatmaps, scores int64) {
	m.usersTotal.Set(float64(users))
	m.beatmapsTotal.Set(float64(beatmaps))
	m.scoresTotal.Set(float64(scores))
}

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
