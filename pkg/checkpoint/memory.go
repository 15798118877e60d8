// Package checkpoint provides checkpoint store backends. The store is the
// single source of truth for how much of an entity stream was safely
// consumed; every backend offers atomic per-key replacement with
// last-writer-wins semantics. Callers guarantee at most one active writer
// per (organization, entity type) key.
package checkpoint

import (
	"context"
	"sync"

	"github.com/confluxdata/conflux/pkg/sync/core"
)

// MemoryStore is an in-process checkpoint store. It backs tests and
// single-shot development runs; checkpoints do not survive the process.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]core.SyncCheckpoint
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]core.SyncCheckpoint),
	}
}

func checkpointKey(orgID, entityType string) string {
	return orgID + "/" + entityType
}

// Load returns the checkpoint for a key, with found=false for keys never
// saved.
func (s *MemoryStore) Load(_ context.Context, orgID, entityType string) (core.SyncCheckpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[checkpointKey(orgID, entityType)]
	return cp, ok, nil
}

// Save atomically replaces the checkpoint for its key.
func (s *MemoryStore) Save(_ context.Context, checkpoint core.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[checkpointKey(checkpoint.OrganizationID, checkpoint.EntityType)] = checkpoint
	return nil
}

// Clear removes the checkpoint for a key. Clearing an absent key is a no-op.
func (s *MemoryStore) Clear(_ context.Context, orgID, entityType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, checkpointKey(orgID, entityType))
	return nil
}

// Len returns the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkpoints)
}

var _ core.CheckpointStore = (*MemoryStore)(nil)
