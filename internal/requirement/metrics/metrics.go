package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the requirement module.
// Tracks record and edge churn plus critical path durations.
type Metrics struct {
	Created        prometheus.Counter
	Deleted        prometheus.Counter
	EdgesAdded     prometheus.Counter
	EdgesRemoved   prometheus.Counter
	CreateDuration prometheus.Histogram
	ListDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all requirement module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_requirements_created_total",
			Help: "Total number of requirements created",
		}),
		Deleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_requirements_deleted_total",
			Help: "Total number of requirements deleted",
		}),
		EdgesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_requirement_edges_added_total",
			Help: "Total number of parent/child links created",
		}),
		EdgesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_requirement_edges_removed_total",
			Help: "Total number of parent/child links removed",
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reqtrace_requirement_create_duration_seconds",
			Help:    "Duration of requirement creation (includes req_id allocation)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reqtrace_requirement_list_duration_seconds",
			Help:    "Duration of filtered requirement listings",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementCreated records a successful requirement creation.
func (m *Metrics) IncrementCreated() {
	m.Created.Inc()
}

// IncrementDeleted records a successful requirement deletion.
func (m *Metrics) IncrementDeleted() {
	m.Deleted.Inc()
}

// IncrementEdgesAdded records a newly created parent/child link.
func (m *Metrics) IncrementEdgesAdded() {
	m.EdgesAdded.Inc()
}

// IncrementEdgesRemoved records a removed parent/child link.
func (m *Metrics) IncrementEdgesRemoved() {
	m.EdgesRemoved.Inc()
}

// ObserveCreate records the duration of a create operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveList records the duration of a list operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
