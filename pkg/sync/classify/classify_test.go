package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/confluxdata/conflux/pkg/sync/core"
)

var base = time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)

func record(created, modified time.Time, deleted bool) core.RawRecord {
	return core.RawRecord{
		NaturalKey: "rec-1",
		CreatedAt:  created,
		ModifiedAt: modified,
		Deleted:    deleted,
	}
}

func TestClassifyWindowBoundary(t *testing.T) {
	tests := []struct {
		name   string
		spread time.Duration
		want   core.Classification
	}{
		{"same instant", 0, core.ClassificationCreated},
		{"just inside window", 59 * time.Second, core.ClassificationCreated},
		{"exactly at window", 60 * time.Second, core.ClassificationUpdated},
		{"just outside window", 61 * time.Second, core.ClassificationUpdated},
		{"hours later", 5 * time.Hour, core.ClassificationUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := record(base, base.Add(tt.spread), false)
			assert.Equal(t, tt.want, Classify(r, 60*time.Second))
		})
	}
}

func TestClassifyNegativeSpread(t *testing.T) {
	// Some vendors report modification timestamps with coarser precision
	// than creation timestamps, so modified can land before created.
	r := record(base, base.Add(-30*time.Second), false)
	assert.Equal(t, core.ClassificationCreated, Classify(r, 60*time.Second))

	r = record(base, base.Add(-2*time.Minute), false)
	assert.Equal(t, core.ClassificationUpdated, Classify(r, 60*time.Second))
}

func TestClassifyDeletedWinsOverTimestamps(t *testing.T) {
	r := record(base, base, true)
	assert.Equal(t, core.ClassificationDeleted, Classify(r, 60*time.Second))

	r = record(time.Time{}, base, true)
	assert.Equal(t, core.ClassificationDeleted, Classify(r, 60*time.Second))
}

func TestClassifyMissingCreatedAt(t *testing.T) {
	r := record(time.Time{}, base, false)
	assert.Equal(t, core.ClassificationUpdated, Classify(r, 60*time.Second))
}

func TestClassifyZeroWindowUsesDefault(t *testing.T) {
	r := record(base, base.Add(30*time.Second), false)
	assert.Equal(t, core.ClassificationCreated, Classify(r, 0))

	r = record(base, base.Add(90*time.Second), false)
	assert.Equal(t, core.ClassificationUpdated, Classify(r, 0))
}

func TestClassifyCustomWindow(t *testing.T) {
	r := record(base, base.Add(4*time.Minute), false)
	assert.Equal(t, core.ClassificationCreated, Classify(r, 5*time.Minute))
	assert.Equal(t, core.ClassificationUpdated, Classify(r, time.Minute))
}
