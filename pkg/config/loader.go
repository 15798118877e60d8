package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads a configuration from a YAML file. ${VAR} references in the
// file are substituted from the environment before parsing.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadSyncConfig builds a SyncConfig from defaults, an optional YAML file,
// and CONFLUX_-prefixed environment variables, in that precedence order.
func LoadSyncConfig(filePath string) (*SyncConfig, error) {
	cfg := NewSyncConfig("")

	if filePath != "" {
		if err := Load(filePath, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides overlays environment variables onto the configuration.
// Only scalar knobs that operators commonly override at deploy time are
// exposed through the environment.
func applyEnvOverrides(cfg *SyncConfig) {
	v := viper.New()
	v.SetEnvPrefix("conflux")
	v.AutomaticEnv()

	if s := v.GetString("organization_id"); s != "" {
		cfg.OrganizationID = s
	}
	if s := v.GetString("entity_types"); s != "" {
		cfg.EntityTypes = splitAndTrim(s)
	}
	if s := v.GetString("source"); s != "" {
		cfg.Sync.Source = s
	}
	if n := v.GetInt("page_size"); n > 0 {
		cfg.Sync.PageSize = n
	}
	if d := v.GetDuration("lookback_horizon"); d > 0 {
		cfg.Sync.LookbackHorizon = d
	}
	if d := v.GetDuration("creation_window"); d > 0 {
		cfg.Sync.CreationWindow = d
	}
	if n := v.GetInt("workers"); n > 0 {
		cfg.Performance.Workers = n
	}
	if s := v.GetString("checkpoint_backend"); s != "" {
		cfg.Checkpoint.Backend = s
	}
	if s := v.GetString("checkpoint_path"); s != "" {
		cfg.Checkpoint.Path = s
	}
	if s := v.GetString("database_url"); s != "" {
		cfg.Checkpoint.DatabaseURL = s
	}
	if s := v.GetString("kafka_brokers"); s != "" {
		cfg.Sink.Backend = "kafka"
		cfg.Sink.Brokers = splitAndTrim(s)
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.Observability.LogLevel = s
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
