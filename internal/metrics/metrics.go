package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for reelforge
type Metrics struct {
	// Generation lifecycle
	GenerationsDispatchedTotal *prometheus.CounterVec
	GenerationsSucceededTotal  *prometheus.CounterVec
	GenerationsFailedTotal     *prometheus.CounterVec
	StaleMergesTotal           prometheus.Counter
	GenerationsActive          prometheus.Gauge

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		GenerationsDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_generations_dispatched_total",
				Help: "Total number of generation jobs dispatched to the studio service",
			},
			[]string{"kind"},
		),
		GenerationsSucceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_generations_succeeded_total",
				Help: "Total number of generation jobs that reached succeeded and were merged",
			},
			[]string{"kind"},
		),
		GenerationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_generations_failed_total",
				Help: "Total number of generation jobs that reached failed",
			},
			[]string{"kind"},
		),
		StaleMergesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reelforge_stale_merges_total",
				Help: "Total number of generation results skipped because a user edit superseded them",
			},
		),
		GenerationsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "reelforge_generations_active",
				Help: "Number of generation tasks currently in flight",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reelforge_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_api_errors_total",
				Help: "Total number of API error responses",
			},
			[]string{"error_type"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.GenerationsDispatchedTotal,
		m.GenerationsSucceededTotal,
		m.GenerationsFailedTotal,
		m.StaleMergesTotal,
		m.GenerationsActive,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetGlobal installs the process-wide metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the process-wide metrics instance, nil when disabled
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}
