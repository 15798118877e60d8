package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/internal/scheduler"
	"github.com/confluxdata/conflux/pkg/checkpoint"
	"github.com/confluxdata/conflux/pkg/config"
	"github.com/confluxdata/conflux/pkg/entity"
	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/observability"
	"github.com/confluxdata/conflux/pkg/sink"
	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/sync/registry"

	// Import built-in source adapters to register them
	_ "github.com/confluxdata/conflux/pkg/source/filesource"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "conflux",
		Short: "Conflux - incremental sync and event normalization engine",
		Long: `Conflux incrementally syncs records from external SaaS systems and
normalizes them into a canonical event stream. Runs resume from persisted
checkpoints, so repeated invocations fetch only what changed.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Conflux v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sources",
		Short: "List registered source adapters",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Registered source adapters:")
			for _, name := range registry.List() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	var configFile, entitiesFile string
	var timeout time.Duration
	var showProgress bool

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run an incremental sync",
		Long: `Run one incremental sync across all configured entity types.
The sync configuration file is YAML; ${VAR} references are substituted
from the environment.

Example:
  conflux sync --config sync.yaml --entities entities.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(configFile, entitiesFile, timeout, showProgress)
		},
	}

	syncCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to sync configuration YAML file (required)")
	_ = syncCmd.MarkFlagRequired("config")
	syncCmd.Flags().StringVar(&entitiesFile, "entities", "", "Path to entity definitions YAML file (optional)")
	syncCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall sync timeout")
	syncCmd.Flags().BoolVar(&showProgress, "progress", false, "Print per-page progress to stdout")

	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSync(configFile, entitiesFile string, timeout time.Duration, showProgress bool) error {
	cfg, err := config.LoadSyncConfig(configFile)
	if err != nil {
		return fmt.Errorf("sync configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel, Encoding: "json"}); err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get().With(zap.String("component", "conflux-cli"))

	if cfg.Observability.EnableMetrics {
		go serveMetrics(log)
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "conflux",
			ServiceVersion: version,
			Environment:    os.Getenv("CONFLUX_ENVIRONMENT"),
			SamplingRate:   cfg.Observability.TracingSampleRate,
		})
		if err != nil {
			return fmt.Errorf("tracing initialization failed: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(flushCtx)
		}()
	}

	entities, err := loadEntities(entitiesFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildCheckpointStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("checkpoint store error: %w", err)
	}
	defer closeStore()

	events, err := buildSink(cfg)
	if err != nil {
		return fmt.Errorf("event sink error: %w", err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn("failed to close event sink", zap.Error(err))
		}
	}()

	opts := scheduler.Options{}
	if showProgress {
		opts.OnProgress = printProgress
	}

	sched, err := scheduler.New(cfg, store, events, entities, opts)
	if err != nil {
		return err
	}

	log.Info("starting sync",
		zap.String("org_id", cfg.OrganizationID),
		zap.Strings("entity_types", cfg.EntityTypes),
		zap.String("source", cfg.Sync.Source),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
		zap.String("sink_backend", cfg.Sink.Backend))

	result, runErr := sched.Run(ctx)

	for entityType, stats := range result.Stats {
		fmt.Printf("%s: fetched=%d created=%d updated=%d deleted=%d errors=%d pages=%d\n",
			entityType, stats.Fetched, stats.Created, stats.Updated, stats.Deleted, stats.Errors, stats.PagesFetched)
	}
	for entityType, entityErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "%s: FAILED: %v\n", entityType, entityErr)
	}
	fmt.Printf("run %s finished in %s\n", result.RunID, result.Took.Round(time.Millisecond))

	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}
	return nil
}

func loadEntities(path string) (*entity.Registry, error) {
	if path == "" {
		return entity.NewRegistry(nil), nil
	}
	entities, err := entity.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("entity definitions error: %w", err)
	}
	return entities, nil
}

func buildCheckpointStore(ctx context.Context, cfg *config.SyncConfig) (core.CheckpointStore, func(), error) {
	switch cfg.Checkpoint.Backend {
	case "memory":
		return checkpoint.NewMemoryStore(), func() {}, nil
	case "file":
		store, err := checkpoint.NewFileStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "postgres":
		store, err := checkpoint.NewPostgresStore(ctx, cfg.Checkpoint.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}

func buildSink(cfg *config.SyncConfig) (core.EventSink, error) {
	switch cfg.Sink.Backend {
	case "channel":
		ch := sink.NewChannelSink(cfg.Performance.EventBufferSize)
		go drainChannelSink(ch)
		return ch, nil
	case "kafka":
		return sink.NewKafkaSink(sink.KafkaConfig{
			Brokers:     cfg.Sink.Brokers,
			TopicPrefix: cfg.Sink.TopicPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Sink.Backend)
	}
}

// drainChannelSink prints events as JSON lines. The channel backend exists
// for local runs and piping into other tools.
func drainChannelSink(ch *sink.ChannelSink) {
	for event := range ch.Events() {
		line, err := gojson.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Println(string(line))
	}
}

func serveMetrics(log *zap.Logger) {
	addr := os.Getenv("CONFLUX_METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

func printProgress(p core.Progress) {
	if p.Total > 0 {
		fmt.Printf("  [%s] %s %d/%d\n", p.EntityType, p.Stage, p.Current, p.Total)
		return
	}
	fmt.Printf("  [%s] %s %d\n", p.EntityType, p.Stage, p.Current)
}
