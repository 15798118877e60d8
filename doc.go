// Package conflux is an incremental synchronization and event
// normalization engine. It pulls records from external SaaS systems
// through pluggable source adapters, classifies each record as a create,
// update, or delete, and emits canonical events with deterministic ids
// onto a configurable sink.
//
// Runs are resumable: every page of progress is persisted as a
// checkpoint keyed by (organization, entity type), so a crashed or
// interrupted run re-processes at most one page. When a source reports
// that a saved cursor has expired, the engine degrades once to a full
// resync bounded by the configured lookback horizon rather than
// re-reading all history.
//
// # Layout
//
//   - pkg/sync/core: shared types and contracts (cursors, checkpoints,
//     canonical events, the SourceAdapter and EventSink interfaces)
//   - pkg/sync/classify: created/updated/deleted classification
//   - pkg/sync/normalize: raw record to canonical event mapping
//   - pkg/sync/orchestrator: the per-entity-stream sync state machine
//   - pkg/sync/registry: source adapter registration
//   - pkg/checkpoint: memory, file, and Postgres checkpoint stores
//   - pkg/sink: channel, collector, and Kafka event sinks
//   - pkg/source/filesource: JSONL replay source adapter
//   - pkg/entity: per-entity-type normalization definitions
//   - internal/scheduler: multi-entity fan-out with bounded workers
//   - cmd/conflux: the CLI
//
// # Quick start
//
// Run a sync from a captured JSONL export:
//
//	conflux sync --config sync.yaml --entities entities.yaml --progress
//
// where sync.yaml names the source adapter, entity types, checkpoint
// backend, and sink backend. See pkg/config for the full schema.
package conflux
