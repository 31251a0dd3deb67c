// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admin HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_http_requests_total",
			Help: "Total admin HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomstore_http_request_duration_seconds",
			Help:    "Admin HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Write path
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_records_written_total",
			Help: "Total records upserted, renamed or deleted",
		},
		[]string{"kind"}, // "message", "variable", "project_variable"
	)

	WritesDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_writes_denied_total",
			Help: "Writes dropped by the room policy or a disabled feature",
		},
		[]string{"reason"}, // "policy" or "disabled"
	)

	// Replay
	ReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_replays_total",
			Help: "Total replay requests",
		},
		[]string{"kind", "outcome"}, // kind "connect"/"project"; outcome "ok"/"denied"/"error"
	)

	EventsReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_events_replayed_total",
			Help: "Outbound events produced by replay",
		},
		[]string{"type"},
	)

	LiveVariablesRestored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomstore_live_variables_restored_total",
			Help: "Persisted project variables copied into a live room",
		},
	)

	CorruptRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_corrupt_records_total",
			Help: "Stored records skipped because they failed to decode",
		},
		[]string{"kind"},
	)

	// Storage
	StorageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomstore_storage_latency_seconds",
			Help:    "Storage operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"op"}, // "read" or "commit"
	)

	StorageBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomstore_storage_bytes_total",
			Help: "Bytes read from or committed to the storage engine",
		},
		[]string{"op"},
	)
)

// StorageHook records storage engine observations. It satisfies the
// pebblestore metrics hook.
type StorageHook struct{}

func (StorageHook) ObserveRead(elapsed time.Duration, bytes int) {
	StorageLatency.WithLabelValues("read").Observe(elapsed.Seconds())
	StorageBytes.WithLabelValues("read").Add(float64(bytes))
}

func (StorageHook) ObserveBatchCommit(elapsed time.Duration, bytes int) {
	StorageLatency.WithLabelValues("commit").Observe(elapsed.Seconds())
	StorageBytes.WithLabelValues("commit").Add(float64(bytes))
}
