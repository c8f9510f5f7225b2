package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EdgesIngested counts edges successfully encoded and written.
	EdgesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstore_edges_ingested_total",
		Help: "Total number of edge records written to the storage engine",
	})

	// BatchWrites counts per-partition batch submissions by outcome.
	BatchWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphstore_batch_writes_total",
			Help: "Total number of per-partition batch writes",
		},
		[]string{"status"},
	)

	// BatchDuration measures encode-plus-write latency of one partition batch.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graphstore_batch_write_duration_seconds",
		Help:    "Duration of per-partition batch encoding and writing",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	})

	// VersionsAllocated counts append-mode version allocations.
	VersionsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstore_versions_allocated_total",
		Help: "Total number of versions handed out for append-mode writes",
	})
)
