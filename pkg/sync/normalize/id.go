package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventID derives the deterministic id for a canonical event from the
// source name, the record's natural key, and its modification timestamp.
// Re-processing the same raw record always yields the same id, which makes
// at-least-once delivery safe to dedup downstream by content hash.
func EventID(source, naturalKey string, modifiedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(naturalKey))
	h.Write([]byte{0})
	h.Write([]byte(modifiedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// EdgeTargetID builds the stable synthetic id a relationship edge points
// at. Connectors used to assemble these with ad hoc string templates; the
// single construction point here prevents formatting drift between vendors.
func EdgeTargetID(source, entityType, value string) string {
	return source + ":" + entityType + ":" + value
}
