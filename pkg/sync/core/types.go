package core

import (
	"strconv"
	"time"
)

// CursorKind discriminates the three resume-position variants vendor APIs
// expose: timestamp filtering, numeric offsets, and opaque delta tokens.
type CursorKind string

const (
	CursorKindTime   CursorKind = "time"
	CursorKindOffset CursorKind = "offset"
	CursorKindToken  CursorKind = "token"
)

// Cursor is an opaque resume position for incremental extraction. Exactly
// one of Time/Offset/Token is meaningful, selected by Kind. LastKey may be
// set for any kind: it carries the natural key of the last processed record
// so adapters can break ties between records sharing a timestamp.
type Cursor struct {
	Kind    CursorKind `json:"kind"`
	Time    time.Time  `json:"time,omitempty"`
	Offset  int64      `json:"offset,omitempty"`
	Token   string     `json:"token,omitempty"`
	LastKey string     `json:"last_key,omitempty"`
}

// TimeCursor returns a time-based cursor positioned at t.
func TimeCursor(t time.Time) Cursor {
	return Cursor{Kind: CursorKindTime, Time: t.UTC()}
}

// OffsetCursor returns a numeric-offset cursor positioned at offset.
func OffsetCursor(offset int64) Cursor {
	return Cursor{Kind: CursorKindOffset, Offset: offset}
}

// TokenCursor returns an opaque-token cursor wrapping token.
func TokenCursor(token string) Cursor {
	return Cursor{Kind: CursorKindToken, Token: token}
}

// WithLastKey returns a copy of the cursor carrying the given tie-breaking
// natural key.
func (c Cursor) WithLastKey(key string) Cursor {
	c.LastKey = key
	return c
}

// IsZero reports whether the cursor carries no resume position at all.
func (c Cursor) IsZero() bool {
	return c.Kind == "" && c.Time.IsZero() && c.Offset == 0 && c.Token == "" && c.LastKey == ""
}

// String returns a loggable representation of the cursor.
func (c Cursor) String() string {
	switch c.Kind {
	case CursorKindTime:
		return "time:" + c.Time.UTC().Format(time.RFC3339Nano)
	case CursorKindOffset:
		return "offset:" + strconv.FormatInt(c.Offset, 10)
	case CursorKindToken:
		return "token:" + c.Token
	default:
		return "zero"
	}
}

// CheckpointStatus records how the run that wrote a checkpoint ended.
type CheckpointStatus string

const (
	CheckpointStatusSuccess CheckpointStatus = "success"
	CheckpointStatusPartial CheckpointStatus = "partial"
	CheckpointStatusFailed  CheckpointStatus = "failed"
)

// SyncCheckpoint is the durably persisted unit of sync progress for one
// (organization, entity type) key. Ownership is exclusive to one running
// orchestrator per key; callers enforce that with an external job lock.
type SyncCheckpoint struct {
	OrganizationID string           `json:"organization_id"`
	EntityType     string           `json:"entity_type"`
	Cursor         Cursor           `json:"cursor"`
	// RecordCount is cumulative records processed since the last full resync
	RecordCount int64            `json:"record_count"`
	Status      CheckpointStatus `json:"status"`
	LastError   string           `json:"last_error,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// RawRecord is the vendor-agnostic envelope a source adapter returns for one
// record. Fields is passed through untouched to the normalizer; this core
// never parses vendor payloads itself.
type RawRecord struct {
	// NaturalKey is the record's identity in the vendor system
	NaturalKey string
	// CreatedAt is zero when the vendor does not report creation time
	CreatedAt  time.Time
	ModifiedAt time.Time
	Fields     map[string]interface{}
	// Deleted is true when the adapter reports a tombstone
	Deleted bool
}

// Classification is the created/updated/deleted verdict for one raw record.
type Classification string

const (
	ClassificationCreated Classification = "created"
	ClassificationUpdated Classification = "updated"
	ClassificationDeleted Classification = "deleted"
)

// ActorKind distinguishes who performed the change behind an event.
type ActorKind string

const (
	ActorKindUser    ActorKind = "user"
	ActorKindSystem  ActorKind = "system"
	ActorKindService ActorKind = "service"
)

// Actor identifies who performed the change. Batch-imported ERP records
// frequently have no human actor; those normalize to ActorKindSystem.
type Actor struct {
	ID   string    `json:"id,omitempty"`
	Name string    `json:"name,omitempty"`
	Kind ActorKind `json:"kind"`
}

// Target identifies the entity the event is about.
type Target struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
}

// EventContext carries sync-run correlation metadata on every event.
type EventContext struct {
	OrganizationID string `json:"organization_id"`
	BatchID        string `json:"batch_id,omitempty"`
	RunID          string `json:"run_id,omitempty"`
}

// Relationship is one typed edge from an event's target to another entity.
// Duplicates are allowed; no uniqueness is implied.
type Relationship struct {
	RelationType string `json:"relation_type"`
	TargetID     string `json:"target_id"`
	TargetType   string `json:"target_type"`
}

// CanonicalEvent is the normalized, vendor-agnostic representation of one
// extracted change. IDs are deterministic over (source, natural key,
// modified time), so re-delivering the same raw record produces the same
// event id and downstream consumers can dedup by id.
type CanonicalEvent struct {
	ID             string                 `json:"id"`
	EntityType     string                 `json:"entity_type"`
	Classification Classification        `json:"classification"`
	Timestamp      time.Time              `json:"timestamp"`
	Actor          *Actor                 `json:"actor,omitempty"`
	Target         Target                 `json:"target"`
	Context        EventContext           `json:"context"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Relationships  []Relationship         `json:"relationships,omitempty"`
}

// SyncRunStats accumulates per-run counters. It is reset at the start of
// every orchestrator run and never persisted.
type SyncRunStats struct {
	Fetched      int64 `json:"fetched"`
	Created      int64 `json:"created"`
	Updated      int64 `json:"updated"`
	Deleted      int64 `json:"deleted"`
	Errors       int64 `json:"errors"`
	PagesFetched int64 `json:"pages_fetched"`
}

// CountClassification increments the counter matching a classification.
func (s *SyncRunStats) CountClassification(c Classification) {
	switch c {
	case ClassificationCreated:
		s.Created++
	case ClassificationUpdated:
		s.Updated++
	case ClassificationDeleted:
		s.Deleted++
	}
}

// Merge folds other into s.
func (s *SyncRunStats) Merge(other SyncRunStats) {
	s.Fetched += other.Fetched
	s.Created += other.Created
	s.Updated += other.Updated
	s.Deleted += other.Deleted
	s.Errors += other.Errors
	s.PagesFetched += other.PagesFetched
}

// ProgressStage identifies what phase of a run a progress report describes.
type ProgressStage string

const (
	ProgressStageFetching   ProgressStage = "fetching"
	ProgressStageProcessing ProgressStage = "processing"
	ProgressStageComplete   ProgressStage = "complete"
)

// Progress is one best-effort progress report. Total comes from the
// vendor's reported count when available and may be approximate; consumers
// must not rely on it for correctness.
type Progress struct {
	EntityType string
	Current    int64
	Total      int64
	Stage      ProgressStage
	Message    string
}

// ProgressFunc receives progress reports, at minimum once per page and once
// at run completion.
type ProgressFunc func(Progress)
