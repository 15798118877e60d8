// Package logger provides structured logging for Conflux. Sync runs carry
// their correlation ids (run id, organization, entity type) on the
// context; WithRunContext primes a context and WithContext builds a logger
// that carries those ids as fields.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// contextKey is the type for context keys
type contextKey string

const (
	// RunIDKey is the context key for the sync run correlation id
	RunIDKey contextKey = "run_id"
	// EntityTypeKey is the context key for the entity type being synced
	EntityTypeKey contextKey = "entity_type"
	// OrgIDKey is the context key for the organization id
	OrgIDKey contextKey = "org_id"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init initializes the global logger. Only the first call takes effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = newLogger(cfg)
	})
	return err
}

// newLogger creates a new zap logger
func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the global logger, initializing a json/info default when
// Init was never called.
func Get() *zap.Logger {
	if globalLogger == nil {
		if err := Init(Config{Level: "info", Encoding: "json"}); err != nil {
			globalLogger = zap.Must(zap.NewProduction())
		}
	}
	return globalLogger
}

// WithRunContext returns a context carrying the correlation ids of one
// sync run, for WithContext to pick up downstream.
func WithRunContext(ctx context.Context, runID, orgID, entityType string) context.Context {
	ctx = context.WithValue(ctx, RunIDKey, runID)
	ctx = context.WithValue(ctx, OrgIDKey, orgID)
	return context.WithValue(ctx, EntityTypeKey, entityType)
}

// WithContext returns a logger carrying whichever correlation ids the
// context holds.
func WithContext(ctx context.Context) *zap.Logger {
	return Get().With(contextFields(ctx)...)
}

func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	if entityType, ok := ctx.Value(EntityTypeKey).(string); ok {
		fields = append(fields, zap.String("entity_type", entityType))
	}
	if orgID, ok := ctx.Value(OrgIDKey).(string); ok {
		fields = append(fields, zap.String("org_id", orgID))
	}
	return fields
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
