package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// FileStore persists one JSON document per checkpoint key under a
// directory. Writes go through a temp file and rename, so a crash mid-write
// leaves the previous checkpoint intact.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed checkpoint store rooted at dir,
// creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to create checkpoint directory")
	}
	return &FileStore{dir: dir}, nil
}

// path builds the file path for a key. Org and entity names are sanitized
// so vendor entity types like "res.partner" stay filesystem-safe.
func (s *FileStore) path(orgID, entityType string) string {
	sanitize := func(v string) string {
		return strings.Map(func(r rune) rune {
			switch r {
			case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
				return '_'
			}
			return r
		}, v)
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s__%s.json", sanitize(orgID), sanitize(entityType)))
}

// Load reads the checkpoint document for a key, with found=false when the
// file does not exist.
func (s *FileStore) Load(_ context.Context, orgID, entityType string) (core.SyncCheckpoint, bool, error) {
	data, err := os.ReadFile(s.path(orgID, entityType))
	if err != nil {
		if os.IsNotExist(err) {
			return core.SyncCheckpoint{}, false, nil
		}
		return core.SyncCheckpoint{}, false, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to read checkpoint")
	}

	var cp core.SyncCheckpoint
	if err := gojson.Unmarshal(data, &cp); err != nil {
		return core.SyncCheckpoint{}, false, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to decode checkpoint").
			WithDetail("org_id", orgID).
			WithDetail("entity_type", entityType)
	}

	return cp, true, nil
}

// Save writes the checkpoint document atomically via temp file and rename.
func (s *FileStore) Save(_ context.Context, checkpoint core.SyncCheckpoint) error {
	data, err := gojson.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to encode checkpoint")
	}

	target := s.path(checkpoint.OrganizationID, checkpoint.EntityType)

	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to create temp checkpoint file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to write checkpoint")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to close checkpoint file")
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to replace checkpoint file")
	}

	return nil
}

// Clear removes the checkpoint file for a key. Clearing an absent key is a
// no-op.
func (s *FileStore) Clear(_ context.Context, orgID, entityType string) error {
	err := os.Remove(s.path(orgID, entityType))
	if err != nil && !os.IsNotExist(err) {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to remove checkpoint file")
	}
	return nil
}

var _ core.CheckpointStore = (*FileStore)(nil)
