package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_operations_total",
			Help: "Total number of push/pull sync operations by result",
		},
		[]string{"operation", "result"},
	)
	syncRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_retries_total",
			Help: "Total number of sync retries scheduled",
		},
	)
	syncRecordsMerged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_merged_total",
			Help: "Total number of remote records whose merge changed local state",
		},
		[]string{"kind"},
	)
	syncRecordsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_records_skipped_total",
			Help: "Total number of remote records skipped because they could not be decoded",
		},
	)
)

// RegisterSyncMetrics registers the sync metrics. Call this from main.go
func RegisterSyncMetrics() {
	prometheus.MustRegister(syncOperationsTotal)
	prometheus.MustRegister(syncRetriesTotal)
	prometheus.MustRegister(syncRecordsMerged)
	prometheus.MustRegister(syncRecordsSkipped)
}
