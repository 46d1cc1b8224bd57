package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_store_operations_total",
		Help: "Total number of store operations by dataset, operation and result",
	}, []string{"dataset", "op", "result"})

	storeCorruptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_store_corrupt_reads_total",
		Help: "Total number of reads that found an unparsable document",
	}, []string{"dataset"})

	storeConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_store_version_conflicts_total",
		Help: "Total number of conditional writes rejected by a version conflict",
	}, []string{"dataset"})

	storeDocumentBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketsync_store_document_bytes",
		Help: "Size of the last written document",
	}, []string{"dataset"})
)
