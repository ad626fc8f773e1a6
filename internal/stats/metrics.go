package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for dashboard snapshot serving.
type Metrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ComputeDuration prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all stats metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_stats_cache_hits_total",
			Help: "Dashboard snapshots served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_stats_cache_misses_total",
			Help: "Dashboard snapshot requests that missed the cache",
		}),
		ComputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reqtrace_stats_compute_duration_seconds",
			Help:    "Duration of full snapshot computations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementCacheHits records a snapshot served from cache.
func (m *Metrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses records a cache miss.
func (m *Metrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// ObserveCompute records the duration of a snapshot computation.
// Call with time.Now() at the start of the computation.
func (m *Metrics) ObserveCompute(start time.Time) {
	m.ComputeDuration.Observe(time.Since(start).Seconds())
}
