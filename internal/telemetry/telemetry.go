// Package telemetry provides OpenTelemetry instrumentation for the visibility service.
// It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "visibility"

// Metrics holds all visibility Prometheus metrics
type Metrics struct {
	// Run lifecycle metrics
	RunsClaimed   prometheus.Counter
	RunsSucceeded prometheus.Counter
	RunsFailed    *prometheus.CounterVec
	RunsEvicted   prometheus.Counter
	RunDuration   prometheus.Histogram

	// Provider call metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec

	// Citation metrics
	CitationsExtracted *prometheus.CounterVec
	CitationsDropped   prometheus.Counter

	// Intent metrics
	IntentsGenerated prometheus.Histogram

	// Worker metrics
	ActivePairs prometheus.Gauge
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initRunMetrics(m)
	initProviderMetrics(m)
	initCitationMetrics(m)
	initWorkerMetrics(m)
	return m
}

func initRunMetrics(m *Metrics) {
	m.RunsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visibility_runs_claimed_total",
		Help: "Total queued runs claimed for execution",
	})

	m.RunsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visibility_runs_succeeded_total",
		Help: "Total runs finalized as success",
	})

	m.RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_runs_failed_total",
		Help: "Total runs finalized as error",
	}, []string{"reason"})

	m.RunsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visibility_runs_evicted_total",
		Help: "Total running runs evicted by the timeout sweep",
	})

	m.RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "visibility_run_duration_seconds",
		Help:    "Wall-clock time from claim to terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
	})
}

func initProviderMetrics(m *Metrics) {
	m.ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_provider_calls_total",
		Help: "Total assistant provider calls",
	}, []string{"provider"})

	m.ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_provider_failures_total",
		Help: "Total failed assistant provider calls",
	}, []string{"provider"})

	m.ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visibility_provider_duration_seconds",
		Help:    "Time per assistant provider call",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"provider"})

	m.CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_cache_hits_total",
		Help: "Answer cache hits",
	}, []string{"provider"})

	m.CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_cache_misses_total",
		Help: "Answer cache misses",
	}, []string{"provider"})
}

func initCitationMetrics(m *Metrics) {
	m.CitationsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_citations_extracted_total",
		Help: "Citations extracted from provider answers",
	}, []string{"provider"})

	m.CitationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visibility_citations_dropped_total",
		Help: "Citation candidates dropped by the liveness probe",
	})
}

func initWorkerMetrics(m *Metrics) {
	m.IntentsGenerated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "visibility_intents_generated",
		Help:    "Intents generated per domain",
		Buckets: []float64{5, 10, 25, 50, 75, 100},
	})

	m.ActivePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visibility_active_pairs",
		Help: "Currently executing (intent, source) pairs",
	})
}
