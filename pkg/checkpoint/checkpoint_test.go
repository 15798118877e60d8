package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confluxdata/conflux/pkg/sync/core"
)

func sampleCheckpoint() core.SyncCheckpoint {
	return core.SyncCheckpoint{
		OrganizationID: "org-1",
		EntityType:     "invoice",
		Cursor:         core.TimeCursor(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)).WithLastKey("inv-88"),
		RecordCount:    1200,
		Status:         core.CheckpointStatusSuccess,
		UpdatedAt:      time.Date(2026, 2, 1, 12, 0, 5, 0, time.UTC),
	}
}

// storeUnderTest runs the shared contract tests against any backend.
func storeUnderTest(t *testing.T, store core.CheckpointStore) {
	ctx := context.Background()

	t.Run("load never-seen key", func(t *testing.T) {
		_, found, err := store.Load(ctx, "org-x", "unseen")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("save then load", func(t *testing.T) {
		cp := sampleCheckpoint()
		require.NoError(t, store.Save(ctx, cp))

		got, found, err := store.Load(ctx, "org-1", "invoice")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, cp.Cursor, got.Cursor)
		assert.Equal(t, cp.RecordCount, got.RecordCount)
		assert.Equal(t, cp.Status, got.Status)
	})

	t.Run("save replaces", func(t *testing.T) {
		cp := sampleCheckpoint()
		cp.RecordCount = 1300
		cp.Status = core.CheckpointStatusPartial
		cp.LastError = "canceled"
		require.NoError(t, store.Save(ctx, cp))

		got, found, err := store.Load(ctx, "org-1", "invoice")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(1300), got.RecordCount)
		assert.Equal(t, core.CheckpointStatusPartial, got.Status)
		assert.Equal(t, "canceled", got.LastError)
	})

	t.Run("keys are independent", func(t *testing.T) {
		other := sampleCheckpoint()
		other.EntityType = "contact"
		other.Cursor = core.OffsetCursor(600)
		require.NoError(t, store.Save(ctx, other))

		got, found, err := store.Load(ctx, "org-1", "contact")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, core.OffsetCursor(600), got.Cursor)

		got, found, err = store.Load(ctx, "org-1", "invoice")
		require.NoError(t, err)
		require.True(t, found)
		assert.NotEqual(t, core.OffsetCursor(600), got.Cursor)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, "org-1", "invoice"))

		_, found, err := store.Load(ctx, "org-1", "invoice")
		require.NoError(t, err)
		assert.False(t, found)

		// Clearing an absent key is a no-op.
		require.NoError(t, store.Clear(ctx, "org-1", "invoice"))
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	storeUnderTest(t, store)
}

func TestFileStoreSanitizesEntityNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	cp := sampleCheckpoint()
	cp.EntityType = "res.partner"
	require.NoError(t, store.Save(ctx, cp))

	got, found, err := store.Load(ctx, "org-1", "res.partner")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cp.Cursor, got.Cursor)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), sampleCheckpoint()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "org-1__invoice.json", entries[0].Name())
	assert.Equal(t, filepath.Ext(entries[0].Name()), ".json")
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "org-1__invoice.json"), []byte("{not json"), 0o600))

	_, _, err = store.Load(context.Background(), "org-1", "invoice")
	require.Error(t, err)
}

func TestMemoryStoreLen(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), sampleCheckpoint()))
	assert.Equal(t, 1, store.Len())
}
