package entity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnown(t *testing.T) {
	r := NewRegistry(map[string]Definition{
		"invoice": {
			TargetType:         "document",
			RelationshipFields: []string{"account_number", "cost_center"},
			RelationshipTypes:  map[string]string{"account_number": "account"},
		},
	})

	def := r.Lookup("invoice")
	assert.Equal(t, "document", def.TargetType)
	assert.Equal(t, []string{"account_number", "cost_center"}, def.RelationshipFields)
	assert.True(t, r.Known("invoice"))
}

func TestLookupUnknownFallsBackVerbatim(t *testing.T) {
	r := NewRegistry(nil)

	def := r.Lookup("custom_widget")
	assert.Equal(t, "custom_widget", def.TargetType)
	assert.Empty(t, def.RelationshipFields)
	assert.False(t, r.Known("custom_widget"))
}

func TestLookupEmptyTargetTypeDefaults(t *testing.T) {
	r := NewRegistry(map[string]Definition{
		"contact": {RelationshipFields: []string{"parent_id"}},
	})

	def := r.Lookup("contact")
	assert.Equal(t, "contact", def.TargetType)
}

func TestRelationTargetType(t *testing.T) {
	def := Definition{
		RelationshipTypes: map[string]string{"account_number": "account"},
	}

	assert.Equal(t, "account", def.RelationTargetType("account_number"))
	assert.Equal(t, "cost_center", def.RelationTargetType("cost_center"))
}

func TestTypesSorted(t *testing.T) {
	r := NewRegistry(map[string]Definition{
		"invoice": {}, "contact": {}, "order": {},
	})

	assert.Equal(t, []string{"contact", "invoice", "order"}, r.Types())
}

func TestLoadRegistry(t *testing.T) {
	content := `
invoice:
  target_type: document
  relationship_fields: [account_number, cost_center]
  relationship_types:
    account_number: account
  actor_fields: [owner_id]
  page_size: 100
contact:
  target_type: person
  relationship_fields: [parent_id]
`
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)

	inv := r.Lookup("invoice")
	assert.Equal(t, "document", inv.TargetType)
	assert.Equal(t, 100, inv.PageSize)
	assert.Equal(t, "account", inv.RelationTargetType("account_number"))
	assert.Equal(t, []string{"contact", "invoice"}, r.Types())
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
