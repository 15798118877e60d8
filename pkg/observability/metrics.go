// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for Conflux sync runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pre-defined metrics for sync operations. Metrics are registered
// automatically at package initialization via promauto.
var (
	// RecordsFetched tracks raw records fetched per entity type
	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflux_records_fetched_total",
			Help: "Total number of raw records fetched from source adapters",
		},
		[]string{"entity_type"},
	)

	// EventsEmitted tracks canonical events emitted, by classification
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflux_events_emitted_total",
			Help: "Total number of canonical events emitted",
		},
		[]string{"entity_type", "classification"},
	)

	// RecordErrors tracks per-record normalization failures
	RecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflux_record_errors_total",
			Help: "Total number of records that failed classification or normalization",
		},
		[]string{"entity_type"},
	)

	// PagesFetched tracks pages fetched per entity type
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflux_pages_fetched_total",
			Help: "Total number of pages fetched from source adapters",
		},
		[]string{"entity_type"},
	)

	// CursorResets tracks degrade-to-full-resync transitions
	CursorResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflux_cursor_resets_total",
			Help: "Total number of cursor-expiry fallbacks to a bounded full resync",
		},
		[]string{"entity_type"},
	)

	// RunDuration tracks end-to-end sync run duration, by outcome
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conflux_run_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"entity_type", "status"},
	)

	// CheckpointSaves tracks checkpoint persistence operations
	CheckpointSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflux_checkpoint_saves_total",
			Help: "Total number of checkpoint save operations",
		},
		[]string{"entity_type", "status"},
	)

	// ActiveRuns tracks concurrently running entity-type orchestrators
	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conflux_active_runs",
			Help: "Number of entity-type sync runs currently in flight",
		},
	)
)
