package filesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/sync/registry"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

func writeFixture(t *testing.T, dir, entityType string, lines ...string) {
	t.Helper()
	var data []byte
	for _, line := range lines {
		data = append(data, line...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, entityType+".jsonl"), data, 0o644))
}

func ticketLine(id string, modifiedAt time.Time) string {
	return fmt.Sprintf(`{"id":%q,"created_at":"2026-01-01T00:00:00Z","modified_at":%q,"fields":{"subject":"s"}}`,
		id, modifiedAt.Format(time.RFC3339))
}

func TestFetchPagePagination(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	writeFixture(t, dir, "ticket",
		ticketLine("t-1", base),
		ticketLine("t-2", base.Add(time.Minute)),
		ticketLine("t-3", base.Add(2*time.Minute)),
	)

	a, err := New(dir, "ticket")
	require.NoError(t, err)

	page, err := a.FetchPage(context.Background(), core.Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "t-1", page.Records[0].NaturalKey)
	assert.Equal(t, "t-2", page.NextCursor.LastKey)

	page, err = a.FetchPage(context.Background(), page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, "t-3", page.Records[0].NaturalKey)

	assert.Equal(t, int64(3), a.EstimatedTotal(context.Background()))
}

func TestFetchPageTimestampTieBreak(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	// Three records sharing one timestamp force the tie-break path.
	writeFixture(t, dir, "ticket",
		ticketLine("t-b", at),
		ticketLine("t-a", at),
		ticketLine("t-c", at),
	)

	a, err := New(dir, "ticket")
	require.NoError(t, err)

	page, err := a.FetchPage(context.Background(), core.Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "t-a", page.Records[0].NaturalKey)
	assert.Equal(t, "t-b", page.Records[1].NaturalKey)

	// Resuming from (timestamp, "t-b") yields only the unseen record.
	page, err = a.FetchPage(context.Background(), page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "t-c", page.Records[0].NaturalKey)
	assert.False(t, page.HasMore)
}

func TestFetchPageHorizonCursorIncludesBoundary(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	writeFixture(t, dir, "ticket",
		ticketLine("t-old", at.Add(-time.Hour)),
		ticketLine("t-edge", at),
		ticketLine("t-new", at.Add(time.Hour)),
	)

	a, err := New(dir, "ticket")
	require.NoError(t, err)

	page, err := a.FetchPage(context.Background(), core.TimeCursor(at), 10)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "t-edge", page.Records[0].NaturalKey)
	assert.Equal(t, "t-new", page.Records[1].NaturalKey)
}

func TestFetchPageMissingFile(t *testing.T) {
	a, err := New(t.TempDir(), "ticket")
	require.NoError(t, err)

	_, err = a.FetchPage(context.Background(), core.Cursor{}, 10)
	require.Error(t, err)
	assert.True(t, syncerrors.IsType(err, syncerrors.ErrorTypeConfig))
}

func TestFetchPageMalformedLine(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "ticket", `{"id":"t-1"`, "")

	a, err := New(dir, "ticket")
	require.NoError(t, err)

	_, err = a.FetchPage(context.Background(), core.Cursor{}, 10)
	require.Error(t, err)
	assert.True(t, syncerrors.IsType(err, syncerrors.ErrorTypeData))
}

func TestFetchPageDeletedFlag(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "ticket",
		`{"id":"t-1","created_at":"2026-01-01T00:00:00Z","modified_at":"2026-02-01T00:00:00Z","deleted":true,"fields":{}}`,
	)

	a, err := New(dir, "ticket")
	require.NoError(t, err)

	page, err := a.FetchPage(context.Background(), core.Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.True(t, page.Records[0].Deleted)
}

func TestRegistryRegistration(t *testing.T) {
	// The init registration puts the adapter in the global registry.
	assert.True(t, registry.Has(Name))

	adapter, err := registry.Create(Name, registry.AdapterParams{
		OrganizationID: "org-1",
		EntityType:     "ticket",
		Options:        map[string]string{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	assert.NotNil(t, adapter)

	_, err = registry.Create(Name, registry.AdapterParams{EntityType: "ticket"})
	require.Error(t, err)
}
