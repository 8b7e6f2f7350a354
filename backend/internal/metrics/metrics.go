// Package metrics exposes Prometheus collectors for graph writes
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Commits counts accepted writes per document kind and operation
	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_graph_commits_total",
		Help: "Total number of accepted document writes",
	}, []string{"kind", "operation"})

	// Conflicts counts writes rejected for a stale expected version
	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_graph_version_conflicts_total",
		Help: "Total number of writes rejected with a version conflict",
	}, []string{"kind", "operation"})

	// Rejections counts writes refused before reaching the store
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_graph_rejections_total",
		Help: "Total number of writes rejected by validation, state or integrity checks",
	}, []string{"kind", "operation", "reason"})

	// Transitions counts approval transitions by target status
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_graph_approval_transitions_total",
		Help: "Total number of approval transitions committed",
	}, []string{"from", "to"})

	// WriteDuration observes end-to-end write latency
	WriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "course_graph_write_duration_seconds",
		Help:    "Latency of document writes including the compare-and-swap",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "operation"})

	// CacheLookups counts snapshot cache hits and misses
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_graph_cache_lookups_total",
		Help: "Snapshot cache lookups by result",
	}, []string{"kind", "result"})
)
