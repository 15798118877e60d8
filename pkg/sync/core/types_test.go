package core

import (
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorConstructors(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tc := TimeCursor(ts)
	assert.Equal(t, CursorKindTime, tc.Kind)
	assert.Equal(t, ts, tc.Time)

	oc := OffsetCursor(4200)
	assert.Equal(t, CursorKindOffset, oc.Kind)
	assert.Equal(t, int64(4200), oc.Offset)

	kc := TokenCursor("hist-99281")
	assert.Equal(t, CursorKindToken, kc.Kind)
	assert.Equal(t, "hist-99281", kc.Token)
}

func TestCursorIsZero(t *testing.T) {
	assert.True(t, Cursor{}.IsZero())
	assert.False(t, TimeCursor(time.Now()).IsZero())
	assert.False(t, OffsetCursor(1).IsZero())
	assert.False(t, TokenCursor("t").IsZero())
	assert.False(t, Cursor{LastKey: "inv-1"}.IsZero())
}

func TestCursorString(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "time:2026-03-14T09:26:53Z", TimeCursor(ts).String())
	assert.Equal(t, "offset:4200", OffsetCursor(4200).String())
	assert.Equal(t, "offset:-3", OffsetCursor(-3).String())
	assert.Equal(t, "offset:0", Cursor{Kind: CursorKindOffset}.String())
	assert.Equal(t, "token:abc", TokenCursor("abc").String())
	assert.Equal(t, "zero", Cursor{}.String())
}

func TestCursorWithLastKey(t *testing.T) {
	base := TimeCursor(time.Now())
	keyed := base.WithLastKey("inv-17")

	assert.Equal(t, "inv-17", keyed.LastKey)
	assert.Empty(t, base.LastKey, "WithLastKey must not mutate the receiver")
}

func TestCursorRoundTrip(t *testing.T) {
	orig := TimeCursor(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)).WithLastKey("po-8")

	data, err := gojson.Marshal(orig)
	require.NoError(t, err)

	var got Cursor
	require.NoError(t, gojson.Unmarshal(data, &got))
	assert.Equal(t, orig, got)
}

func TestStatsCountClassification(t *testing.T) {
	var s SyncRunStats
	s.CountClassification(ClassificationCreated)
	s.CountClassification(ClassificationCreated)
	s.CountClassification(ClassificationUpdated)
	s.CountClassification(ClassificationDeleted)

	assert.Equal(t, int64(2), s.Created)
	assert.Equal(t, int64(1), s.Updated)
	assert.Equal(t, int64(1), s.Deleted)
}

func TestStatsMerge(t *testing.T) {
	a := SyncRunStats{Fetched: 10, Created: 3, Errors: 1, PagesFetched: 2}
	b := SyncRunStats{Fetched: 5, Updated: 4, PagesFetched: 1}

	a.Merge(b)
	assert.Equal(t, SyncRunStats{Fetched: 15, Created: 3, Updated: 4, Errors: 1, PagesFetched: 3}, a)
}
