// Package metrics exposes the prometheus collectors for the analysis
// core. Collectors are process-wide and registered once at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts TTL cache lookups by cache name and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "TTL cache lookups by cache name and hit/miss outcome",
	}, []string{"cache", "outcome"})

	// BreakerTransitions counts circuit breaker state transitions.
	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker state transitions by resource and target state",
	}, []string{"resource", "to"})

	// ProviderFailures counts classified data provider failures.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "provider",
		Name:      "failures_total",
		Help:      "Data provider failures by source and classification",
	}, []string{"source", "kind"})

	// DroppedEvents counts task events dropped on full subscriber channels.
	DroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "tasks",
		Name:      "dropped_events_total",
		Help:      "Task lifecycle events dropped because a subscriber channel was full",
	})

	// TasksSubmitted counts accepted task submissions.
	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "tasks",
		Name:      "submitted_total",
		Help:      "Accepted analysis task submissions",
	})

	// TasksCompleted counts terminal tasks by outcome.
	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "tasks",
		Name:      "completed_total",
		Help:      "Terminal analysis tasks by outcome",
	}, []string{"outcome"})

	// EndpointFallbacks counts expert panel endpoint failovers.
	EndpointFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "augur",
		Subsystem: "experts",
		Name:      "endpoint_fallbacks_total",
		Help:      "Endpoint failovers performed inside the expert panel",
	})
)

// RecordCacheLookup feeds a TTL cache hit/miss into CacheLookups.
func RecordCacheLookup(cache string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheLookups.WithLabelValues(cache, outcome).Inc()
}

// RecordBreakerTransition feeds a breaker state change into BreakerTransitions.
func RecordBreakerTransition(resource, to string) {
	BreakerTransitions.WithLabelValues(resource, to).Inc()
}
