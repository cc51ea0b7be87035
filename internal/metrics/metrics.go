// Package metrics holds the prometheus series for the persistence core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ComponentOperations counts component manager operations by model
	ComponentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdb_component_operations_total",
			Help: "Total number of component create, update, delete and clone operations",
		},
		[]string{"operation", "model"},
	)

	// RelationOperations counts applied relation link and unlink operations
	RelationOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdb_relation_operations_total",
			Help: "Total number of relation operations applied",
		},
		[]string{"kind"},
	)

	// LifecycleHooks counts lifecycle handler invocations
	LifecycleHooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdb_lifecycle_hooks_total",
			Help: "Total number of lifecycle hooks run",
		},
		[]string{"action"},
	)

	// MigrationSteps counts migration steps run per phase
	MigrationSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdb_migration_steps_total",
			Help: "Total number of migration steps run",
		},
		[]string{"phase"},
	)

	// EventsEmitted counts events published on the hub
	EventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdb_events_emitted_total",
			Help: "Total number of events emitted",
		},
		[]string{"event"},
	)

	// StoreOperationDuration records store call latency
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentdb_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		ComponentOperations,
		RelationOperations,
		LifecycleHooks,
		MigrationSteps,
		EventsEmitted,
		StoreOperationDuration,
	)
}

// RecordComponentOperation counts one component operation
func RecordComponentOperation(operation, model string) {
	ComponentOperations.WithLabelValues(operation, model).Inc()
}

// RecordRelationOperation counts one applied relation operation
func RecordRelationOperation(kind string) {
	RelationOperations.WithLabelValues(kind).Inc()
}

// RecordLifecycleHook counts one lifecycle handler run
func RecordLifecycleHook(action string) {
	LifecycleHooks.WithLabelValues(action).Inc()
}

// RecordMigrationStep counts one migration step run
func RecordMigrationStep(phase string) {
	MigrationSteps.WithLabelValues(phase).Inc()
}

// RecordEvent counts one emitted event
func RecordEvent(event string) {
	EventsEmitted.WithLabelValues(event).Inc()
}

// TrackStoreOperation returns a func that observes the elapsed time when called
func TrackStoreOperation(operation string) func() {
	start := time.Now()
	return func() {
		StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
