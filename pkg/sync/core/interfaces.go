package core

import (
	"context"
)

// Page is the result of one SourceAdapter fetch: the raw records, the cursor
// to resume from after this page, and whether further pages remain.
type Page struct {
	Records    []RawRecord
	NextCursor Cursor
	HasMore    bool
}

// SourceAdapter yields one page of raw records per call, given the cursor
// returned by the previous call. One implementation exists per vendor entity
// stream; adapters own the wire protocol, authentication, and network
// retries, none of which this core performs.
//
// Adapters classify failures through the syncerrors package: an invalidated
// cursor must surface as ErrorTypeCursorExpired, network and rate-limit
// failures as transient types, and credential failures as fatal types. The
// orchestrator's recovery behavior depends on that classification.
type SourceAdapter interface {
	FetchPage(ctx context.Context, cursor Cursor, pageSize int) (Page, error)
}

// CountHint is optionally implemented by adapters whose vendor reports an
// approximate total record count. The value feeds progress reporting only.
type CountHint interface {
	EstimatedTotal(ctx context.Context) int64
}

// CheckpointStore durably persists sync checkpoints per (organization,
// entity type) key. Load on a never-seen key returns found=false; the
// orchestrator treats that as "full sync from the lookback horizon". Save
// must be atomic per key; last-writer-wins is acceptable because callers
// guarantee at most one active orchestrator per key.
type CheckpointStore interface {
	Load(ctx context.Context, orgID, entityType string) (SyncCheckpoint, bool, error)
	Save(ctx context.Context, checkpoint SyncCheckpoint) error
	Clear(ctx context.Context, orgID, entityType string) error
}

// EventSink consumes the ordered stream of canonical events produced by a
// sync run. Implementations must be safe for concurrent use: orchestrators
// for different entity types share one sink.
type EventSink interface {
	Emit(ctx context.Context, event CanonicalEvent) error
	Close() error
}
