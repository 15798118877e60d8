// Package normalize converts raw vendor records into canonical events. It
// owns actor extraction, target resolution through the entity registry,
// relationship-edge building, and the pluggable per-entity field mapping.
//
// Normalization is deterministic: given the same raw record and
// classification, the output event is byte-identical across calls. Nothing
// here reads the clock, generates randomness, or performs I/O.
package normalize

import (
	"strconv"
	"time"

	"github.com/confluxdata/conflux/pkg/entity"
	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// FieldMapper produces the entity-specific normalized field mapping for an
// event's data payload. Mappers must be pure; a mapper error fails only the
// record it was invoked for.
type FieldMapper func(fields map[string]interface{}) (map[string]interface{}, error)

// Context carries the per-run inputs normalization needs beyond the record
// itself. Source names the vendor system and participates in every
// deterministic id.
type Context struct {
	Source         string
	OrganizationID string
	BatchID        string
	RunID          string
}

// Normalizer maps raw records into canonical events using the entity
// registry and optional per-entity field mappers. A Normalizer is safe for
// concurrent use once built; Register calls must happen before Normalize.
type Normalizer struct {
	registry *entity.Registry
	mappers  map[string]FieldMapper
}

// New creates a normalizer backed by the given entity registry.
func New(registry *entity.Registry) *Normalizer {
	if registry == nil {
		registry = entity.NewRegistry(nil)
	}
	return &Normalizer{
		registry: registry,
		mappers:  make(map[string]FieldMapper),
	}
}

// Register installs the field mapper for an entity type. Entity types
// without a mapper pass fields through untouched.
func (n *Normalizer) Register(entityType string, mapper FieldMapper) {
	n.mappers[entityType] = mapper
}

// Normalize converts one classified raw record into a canonical event.
func (n *Normalizer) Normalize(record core.RawRecord, classification core.Classification, entityType string, ctx Context) (core.CanonicalEvent, error) {
	if record.NaturalKey == "" {
		return core.CanonicalEvent{}, syncerrors.New(syncerrors.ErrorTypeData, "record has no natural key").
			WithDetail("entity_type", entityType)
	}

	def := n.registry.Lookup(entityType)

	data := record.Fields
	if mapper, ok := n.mappers[entityType]; ok {
		mapped, err := mapper(record.Fields)
		if err != nil {
			return core.CanonicalEvent{}, syncerrors.Wrap(err, syncerrors.ErrorTypeData, "field mapping failed").
				WithDetail("entity_type", entityType).
				WithDetail("natural_key", record.NaturalKey)
		}
		data = mapped
	}

	event := core.CanonicalEvent{
		ID:             EventID(ctx.Source, record.NaturalKey, record.ModifiedAt),
		EntityType:     entityType,
		Classification: classification,
		Timestamp:      eventTimestamp(record),
		Actor:          extractActor(record.Fields, def),
		Target: core.Target{
			ID:          record.NaturalKey,
			Type:        def.TargetType,
			DisplayName: firstFieldString(record.Fields, def.DisplayNameFields),
		},
		Context: core.EventContext{
			OrganizationID: ctx.OrganizationID,
			BatchID:        ctx.BatchID,
			RunID:          ctx.RunID,
		},
		Data:          data,
		Relationships: buildRelationships(record.Fields, def, ctx.Source),
	}

	return event, nil
}

// eventTimestamp picks the event's timestamp: the modification time when
// present, the creation time otherwise. Both zero is legal for tombstones
// from vendors that report neither.
func eventTimestamp(record core.RawRecord) time.Time {
	if !record.ModifiedAt.IsZero() {
		return record.ModifiedAt.UTC()
	}
	if !record.CreatedAt.IsZero() {
		return record.CreatedAt.UTC()
	}
	return time.Time{}
}

// extractActor looks for an owner/user identifier among the entity's actor
// fields. Absence is not an error: batch-imported records normalize to a
// system actor.
func extractActor(fields map[string]interface{}, def entity.Definition) *core.Actor {
	id := firstFieldString(fields, def.ActorFields)
	if id == "" {
		return &core.Actor{Kind: core.ActorKindSystem}
	}

	return &core.Actor{
		ID:   id,
		Name: firstFieldString(fields, def.ActorNameFields),
		Kind: core.ActorKindUser,
	}
}

// buildRelationships scans the entity's configured foreign-key fields in
// their configured order and emits one edge per present, non-empty value.
// Absent fields silently produce no edge; duplicates are allowed.
func buildRelationships(fields map[string]interface{}, def entity.Definition, source string) []core.Relationship {
	if len(def.RelationshipFields) == 0 {
		return nil
	}

	var edges []core.Relationship
	for _, field := range def.RelationshipFields {
		value := fieldString(fields[field])
		if value == "" {
			continue
		}

		targetType := def.RelationTargetType(field)
		edges = append(edges, core.Relationship{
			RelationType: field,
			TargetID:     EdgeTargetID(source, targetType, value),
			TargetType:   targetType,
		})
	}
	return edges
}

// firstFieldString returns the first present, non-empty value among the
// named fields, rendered as a string.
func firstFieldString(fields map[string]interface{}, names []string) string {
	for _, name := range names {
		if s := fieldString(fields[name]); s != "" {
			return s
		}
	}
	return ""
}

// fieldString renders a vendor field value as a string. Vendor payloads mix
// strings, JSON numbers, and integers for the same logical field, so the
// common scalar types are handled; anything else reads as absent.
func fieldString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		// JSON numbers decode as float64; integral values are the norm for
		// foreign keys
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return ""
	default:
		return ""
	}
}
