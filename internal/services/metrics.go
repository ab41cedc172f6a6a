package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Allocation outcome labels
const (
	OutcomeSuccess    = "success"
	OutcomeCached     = "cached"
	OutcomeInvalid    = "invalid"
	OutcomeInfeasible = "infeasible"
	OutcomeTimeout    = "timeout"
	OutcomeError      = "error"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	AllocationsTotal   *prometheus.CounterVec
	AllocationDuration *prometheus.HistogramVec
	PortfolioValue     *prometheus.HistogramVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        prometheus.Counter
	RunsPurgedTotal    prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		AllocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calcutta_allocations_total",
			Help: "Cumulative number of allocation requests by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		AllocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calcutta_allocation_duration_seconds",
			Help:    "Time spent inside an allocator.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"strategy"}),
		PortfolioValue: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calcutta_portfolio_expected_value",
			Help:    "Expected value of successful portfolios.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"strategy"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calcutta_cache_hits_total",
			Help: "Cumulative number of cache hits by tier.",
		}, []string{"tier"}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "calcutta_cache_misses_total",
			Help: "Cumulative number of cache misses.",
		}),
		RunsPurgedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "calcutta_runs_purged_total",
			Help: "Cumulative number of allocation runs deleted by retention.",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAllocation records one allocator outcome. Safe on a nil receiver.
func (m *Metrics) ObserveAllocation(strategy, outcome string, duration time.Duration, value float64) {
	if m == nil {
		return
	}
	m.AllocationsTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	m.AllocationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	m.PortfolioValue.WithLabelValues(strategy).Observe(value)
}

func (m *Metrics) cacheHit(tier string) {
	if m != nil {
		m.CacheHits.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) runsPurged(n int64) {
	if m != nil {
		m.RunsPurgedTotal.Add(float64(n))
	}
}
