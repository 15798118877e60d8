// Package config provides the unified configuration system for Conflux.
// It defines a single SyncConfig structure shared by the orchestrator, the
// scheduler, and the CLI, ensuring consistent configuration across the
// entire system.
//
// The configuration is organized into logical sections:
//   - Sync: Paging, classification, and resync fallback behavior
//   - Performance: Scheduler concurrency and sink buffering
//   - Checkpoint: Checkpoint store backend selection
//   - Sink: Event sink backend selection
//   - Observability: Metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.NewSyncConfig("acme-corp")
//	cfg.Sync.PageSize = 500
//	cfg.Performance.Workers = 4
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// SyncConfig is the single unified configuration structure for a sync job.
type SyncConfig struct {
	// OrganizationID scopes every checkpoint key and emitted event
	OrganizationID string `yaml:"organization_id" json:"organization_id"`
	// EntityTypes lists the entity streams the scheduler runs
	EntityTypes []string `yaml:"entity_types" json:"entity_types"`

	// Sync settings control paging, classification, and fallback
	Sync SyncSettings `yaml:"sync" json:"sync"`

	// Performance settings control scheduler concurrency
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Checkpoint selects and configures the checkpoint store backend
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Sink selects and configures the event sink backend
	Sink SinkConfig `yaml:"sink" json:"sink"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SyncSettings contains the paging and fallback behavior of one sync run.
type SyncSettings struct {
	// PageSize controls how many records one FetchPage call requests
	PageSize int `yaml:"page_size" json:"page_size"`
	// CreationWindow is the maximum created/modified timestamp spread for a
	// record to classify as newly created
	CreationWindow time.Duration `yaml:"creation_window" json:"creation_window"`
	// LookbackHorizon bounds full resyncs: with no checkpoint, or after a
	// cursor expiry, extraction starts this far in the past instead of at
	// the beginning of the vendor's history
	LookbackHorizon time.Duration `yaml:"lookback_horizon" json:"lookback_horizon"`
	// CheckpointEveryPage persists the checkpoint after each page rather
	// than only at run end, bounding crash re-processing to one page
	CheckpointEveryPage bool `yaml:"checkpoint_every_page" json:"checkpoint_every_page"`
	// Source names the registered source adapter to instantiate
	Source string `yaml:"source" json:"source"`
	// SourceOptions carries adapter-specific settings, passed through opaque
	SourceOptions map[string]string `yaml:"source_options" json:"source_options"`
}

// PerformanceConfig contains scheduler concurrency settings.
type PerformanceConfig struct {
	// Workers bounds how many entity-type orchestrators run concurrently
	Workers int `yaml:"workers" json:"workers"`
	// EventBufferSize sets the channel sink's buffer depth
	EventBufferSize int `yaml:"event_buffer_size" json:"event_buffer_size"`
}

// CheckpointConfig selects the checkpoint store backend.
type CheckpointConfig struct {
	// Backend is one of: memory, file, postgres
	Backend string `yaml:"backend" json:"backend"`
	// Path is the directory for the file backend
	Path string `yaml:"path" json:"path"`
	// DatabaseURL is the connection string for the postgres backend
	DatabaseURL string `yaml:"database_url" json:"database_url"`
}

// SinkConfig selects the event sink backend.
type SinkConfig struct {
	// Backend is one of: channel, kafka
	Backend string `yaml:"backend" json:"backend"`
	// Brokers lists Kafka bootstrap brokers for the kafka backend
	Brokers []string `yaml:"brokers" json:"brokers"`
	// TopicPrefix prefixes the per-entity-type Kafka topic name
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates Prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates OpenTelemetry tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	// ProgressInterval throttles progress log lines during long runs
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

// NewSyncConfig creates a new SyncConfig with sensible defaults. The
// defaults reproduce the behavior vendor connectors converged on: 60 second
// creation window, six month lookback horizon, checkpoint after every page.
func NewSyncConfig(organizationID string) *SyncConfig {
	return &SyncConfig{
		OrganizationID: organizationID,
		Sync: SyncSettings{
			PageSize:            200,
			CreationWindow:      60 * time.Second,
			LookbackHorizon:     6 * 30 * 24 * time.Hour,
			CheckpointEveryPage: true,
			SourceOptions:       make(map[string]string),
		},
		Performance: PerformanceConfig{
			Workers:         runtime.NumCPU(),
			EventBufferSize: 1024,
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
		Sink: SinkConfig{
			Backend:     "channel",
			TopicPrefix: "conflux.events",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
			ProgressInterval:  10 * time.Second,
		},
	}
}

// Validate validates the configuration for correctness. It checks required
// fields and ensures values are within acceptable ranges. Callers should
// invoke this after loading configuration to catch errors early.
func (c *SyncConfig) Validate() error {
	if c.OrganizationID == "" {
		return fmt.Errorf("organization_id is required")
	}
	if len(c.EntityTypes) == 0 {
		return fmt.Errorf("at least one entity type is required")
	}
	if c.Sync.Source == "" {
		return fmt.Errorf("sync source is required")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.Sync.CreationWindow < 0 {
		return fmt.Errorf("creation_window cannot be negative")
	}
	if c.Sync.LookbackHorizon <= 0 {
		return fmt.Errorf("lookback_horizon must be positive")
	}
	if c.Performance.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Performance.EventBufferSize <= 0 {
		return fmt.Errorf("event_buffer_size must be positive")
	}
	switch c.Checkpoint.Backend {
	case "memory", "file", "postgres":
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Backend == "file" && c.Checkpoint.Path == "" {
		return fmt.Errorf("checkpoint path is required for the file backend")
	}
	if c.Checkpoint.Backend == "postgres" && c.Checkpoint.DatabaseURL == "" {
		return fmt.Errorf("database_url is required for the postgres backend")
	}
	switch c.Sink.Backend {
	case "channel", "kafka":
	default:
		return fmt.Errorf("unknown sink backend %q", c.Sink.Backend)
	}
	if c.Sink.Backend == "kafka" && len(c.Sink.Brokers) == 0 {
		return fmt.Errorf("brokers are required for the kafka backend")
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}
