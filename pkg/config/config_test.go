package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *SyncConfig {
	cfg := NewSyncConfig("acme")
	cfg.EntityTypes = []string{"invoice"}
	cfg.Sync.Source = "file"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := NewSyncConfig("acme")

	assert.Equal(t, "acme", cfg.OrganizationID)
	assert.Equal(t, 200, cfg.Sync.PageSize)
	assert.Equal(t, 60*time.Second, cfg.Sync.CreationWindow)
	assert.True(t, cfg.Sync.CheckpointEveryPage)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, "channel", cfg.Sink.Backend)
	require.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SyncConfig)
		wantErr string
	}{
		{"missing org", func(c *SyncConfig) { c.OrganizationID = "" }, "organization_id"},
		{"no entity types", func(c *SyncConfig) { c.EntityTypes = nil }, "entity type"},
		{"missing source", func(c *SyncConfig) { c.Sync.Source = "" }, "source"},
		{"zero page size", func(c *SyncConfig) { c.Sync.PageSize = 0 }, "page_size"},
		{"negative window", func(c *SyncConfig) { c.Sync.CreationWindow = -time.Second }, "creation_window"},
		{"zero horizon", func(c *SyncConfig) { c.Sync.LookbackHorizon = 0 }, "lookback_horizon"},
		{"zero workers", func(c *SyncConfig) { c.Performance.Workers = 0 }, "workers"},
		{"bad checkpoint backend", func(c *SyncConfig) { c.Checkpoint.Backend = "etcd" }, "checkpoint backend"},
		{"file backend without path", func(c *SyncConfig) { c.Checkpoint.Backend = "file" }, "checkpoint path"},
		{"postgres without url", func(c *SyncConfig) { c.Checkpoint.Backend = "postgres" }, "database_url"},
		{"bad sink backend", func(c *SyncConfig) { c.Sink.Backend = "pulsar" }, "sink backend"},
		{"kafka without brokers", func(c *SyncConfig) { c.Sink.Backend = "kafka" }, "brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadYAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CONFLUX_DB", "postgres://sync:secret@db/conflux")

	dir := t.TempDir()
	path := filepath.Join(dir, "sync.yaml")
	content := `
organization_id: acme
entity_types: [invoice, contact]
sync:
  page_size: 500
  source: odoo
checkpoint:
  backend: postgres
  database_url: ${TEST_CONFLUX_DB}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadSyncConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.OrganizationID)
	assert.Equal(t, []string{"invoice", "contact"}, cfg.EntityTypes)
	assert.Equal(t, 500, cfg.Sync.PageSize)
	assert.Equal(t, "odoo", cfg.Sync.Source)
	assert.Equal(t, "postgres://sync:secret@db/conflux", cfg.Checkpoint.DatabaseURL)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Sync.CreationWindow)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONFLUX_ORGANIZATION_ID", "env-org")
	t.Setenv("CONFLUX_SOURCE", "file")
	t.Setenv("CONFLUX_PAGE_SIZE", "50")
	t.Setenv("CONFLUX_ENTITY_TYPES", "invoice, partner")
	t.Setenv("CONFLUX_LOOKBACK_HORIZON", "720h")

	cfg, err := LoadSyncConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-org", cfg.OrganizationID)
	assert.Equal(t, "file", cfg.Sync.Source)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.Equal(t, []string{"invoice", "partner"}, cfg.EntityTypes)
	assert.Equal(t, 720*time.Hour, cfg.Sync.LookbackHorizon)
}
