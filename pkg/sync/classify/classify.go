// Package classify decides whether a raw record represents a creation, a
// modification, or a deletion. Vendor APIs rarely say which directly; the
// connectors converged on comparing the record's creation and modification
// timestamps, and that heuristic lives here as one pure function with an
// explicit window instead of being re-inlined per connector.
package classify

import (
	"time"

	"github.com/confluxdata/conflux/pkg/sync/core"
)

// DefaultCreationWindow is the default maximum spread between a record's
// creation and modification timestamps for it to classify as newly created.
const DefaultCreationWindow = 60 * time.Second

// Classify returns the classification for one raw record. The decision rule:
//
//   - a tombstone always classifies Deleted, regardless of timestamps
//   - a missing creation timestamp classifies Updated; records of unknown
//     provenance are never reported as newly created
//   - otherwise the record is Created when |modified - created| < window,
//     Updated when the spread is at least the window
//
// A non-positive window falls back to DefaultCreationWindow. The function is
// pure: no I/O, no side effects.
func Classify(record core.RawRecord, window time.Duration) core.Classification {
	if record.Deleted {
		return core.ClassificationDeleted
	}

	if record.CreatedAt.IsZero() {
		return core.ClassificationUpdated
	}

	if window <= 0 {
		window = DefaultCreationWindow
	}

	spread := record.ModifiedAt.Sub(record.CreatedAt)
	if spread < 0 {
		spread = -spread
	}

	if spread < window {
		return core.ClassificationCreated
	}
	return core.ClassificationUpdated
}
