package checkpoint

import (
	"context"
	"errors"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

const createCheckpointTable = `
CREATE TABLE IF NOT EXISTS sync_checkpoints (
	org_id       TEXT        NOT NULL,
	entity_type  TEXT        NOT NULL,
	cursor       JSONB       NOT NULL,
	record_count BIGINT      NOT NULL DEFAULT 0,
	status       TEXT        NOT NULL,
	last_error   TEXT        NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (org_id, entity_type)
)`

const upsertCheckpoint = `
INSERT INTO sync_checkpoints (org_id, entity_type, cursor, record_count, status, last_error, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (org_id, entity_type) DO UPDATE SET
	cursor       = EXCLUDED.cursor,
	record_count = EXCLUDED.record_count,
	status       = EXCLUDED.status,
	last_error   = EXCLUDED.last_error,
	updated_at   = EXCLUDED.updated_at`

const selectCheckpoint = `
SELECT cursor, record_count, status, last_error, updated_at
FROM sync_checkpoints
WHERE org_id = $1 AND entity_type = $2`

const deleteCheckpoint = `
DELETE FROM sync_checkpoints WHERE org_id = $1 AND entity_type = $2`

// PostgresStore persists checkpoints in a single Postgres table, one row
// per (organization, entity type) key. The cursor is stored as JSONB; the
// single-statement upsert gives the per-key atomic replacement the
// orchestrator relies on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the checkpoint table
// exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.ErrorTypeConfig, "invalid postgres connection string")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.ErrorTypeConnection, "failed to connect to postgres")
	}

	if _, err := pool.Exec(ctx, createCheckpointTable); err != nil {
		pool.Close()
		return nil, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to create checkpoint table")
	}

	return &PostgresStore{pool: pool}, nil
}

// Load returns the checkpoint row for a key, with found=false when no row
// exists.
func (s *PostgresStore) Load(ctx context.Context, orgID, entityType string) (core.SyncCheckpoint, bool, error) {
	var (
		cursorJSON  []byte
		recordCount int64
		status      string
		lastError   string
		updatedAt   time.Time
	)

	err := s.pool.QueryRow(ctx, selectCheckpoint, orgID, entityType).
		Scan(&cursorJSON, &recordCount, &status, &lastError, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.SyncCheckpoint{}, false, nil
		}
		return core.SyncCheckpoint{}, false, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to load checkpoint")
	}

	var cursor core.Cursor
	if err := gojson.Unmarshal(cursorJSON, &cursor); err != nil {
		return core.SyncCheckpoint{}, false, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to decode stored cursor").
			WithDetail("org_id", orgID).
			WithDetail("entity_type", entityType)
	}

	return core.SyncCheckpoint{
		OrganizationID: orgID,
		EntityType:     entityType,
		Cursor:         cursor,
		RecordCount:    recordCount,
		Status:         core.CheckpointStatus(status),
		LastError:      lastError,
		UpdatedAt:      updatedAt,
	}, true, nil
}

// Save upserts the checkpoint row for its key.
func (s *PostgresStore) Save(ctx context.Context, checkpoint core.SyncCheckpoint) error {
	cursorJSON, err := gojson.Marshal(checkpoint.Cursor)
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to encode cursor")
	}

	_, err = s.pool.Exec(ctx, upsertCheckpoint,
		checkpoint.OrganizationID,
		checkpoint.EntityType,
		cursorJSON,
		checkpoint.RecordCount,
		string(checkpoint.Status),
		checkpoint.LastError,
		checkpoint.UpdatedAt,
	)
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to save checkpoint").
			WithDetail("org_id", checkpoint.OrganizationID).
			WithDetail("entity_type", checkpoint.EntityType)
	}

	return nil
}

// Clear deletes the checkpoint row for a key. Clearing an absent key is a
// no-op.
func (s *PostgresStore) Clear(ctx context.Context, orgID, entityType string) error {
	if _, err := s.pool.Exec(ctx, deleteCheckpoint, orgID, entityType); err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to clear checkpoint")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var _ core.CheckpointStore = (*PostgresStore)(nil)
