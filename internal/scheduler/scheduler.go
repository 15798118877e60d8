// Package scheduler fans a sync run out across entity types. Each entity
// stream gets its own source adapter and orchestrator; a bounded worker
// pool caps how many run at once, and one stream's failure never stops
// the others.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/config"
	"github.com/confluxdata/conflux/pkg/entity"
	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/sync/normalize"
	"github.com/confluxdata/conflux/pkg/sync/orchestrator"
	"github.com/confluxdata/conflux/pkg/sync/registry"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// Result reports one scheduler run. Stats always holds an entry per entity
// type that started; Errors holds entries only for streams that failed.
type Result struct {
	Stats  map[string]core.SyncRunStats
	Errors map[string]error
	RunID  string
	Took   time.Duration
}

// Failed reports whether any entity stream ended in error.
func (r Result) Failed() bool {
	return len(r.Errors) > 0
}

// Scheduler owns the per-run wiring: adapters from the registry, one
// orchestrator per entity type, shared checkpoint store and sink.
type Scheduler struct {
	cfg      *config.SyncConfig
	store    core.CheckpointStore
	sink     core.EventSink
	entities *entity.Registry
	adapters *registry.Registry
	onProg   core.ProgressFunc
}

// Options configures optional scheduler collaborators.
type Options struct {
	// Adapters overrides the global adapter registry, for tests
	Adapters *registry.Registry
	// OnProgress receives progress reports from every entity stream
	OnProgress core.ProgressFunc
}

// New creates a scheduler. The entity registry may be nil, in which case
// every entity type falls back to pass-through definitions.
func New(cfg *config.SyncConfig, store core.CheckpointStore, sink core.EventSink, entities *entity.Registry, opts Options) (*Scheduler, error) {
	if cfg == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "checkpoint store is required")
	}
	if sink == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "event sink is required")
	}
	if entities == nil {
		entities = entity.NewRegistry(nil)
	}

	adapters := opts.Adapters
	if adapters == nil {
		adapters = registry.GetRegistry()
	}
	if !adapters.Has(cfg.Sync.Source) {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, fmt.Sprintf("source adapter %s not registered", cfg.Sync.Source))
	}

	return &Scheduler{
		cfg:      cfg,
		store:    store,
		sink:     sink,
		entities: entities,
		adapters: adapters,
		onProg:   opts.OnProgress,
	}, nil
}

// Run syncs every configured entity type and returns the merged result.
// The returned error is non-nil when at least one stream failed; partial
// success is reported through Result rather than by aborting siblings.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	start := time.Now()

	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.OrgIDKey, s.cfg.OrganizationID)
	log := logger.WithContext(ctx).With(zap.String("component", "sync_scheduler"))

	workers := s.cfg.Performance.GetWorkers()
	if workers > len(s.cfg.EntityTypes) {
		workers = len(s.cfg.EntityTypes)
	}

	log.Info("scheduler run started",
		zap.Strings("entity_types", s.cfg.EntityTypes),
		zap.Int("workers", workers),
		zap.String("source", s.cfg.Sync.Source))

	result := Result{
		Stats:  make(map[string]core.SyncRunStats, len(s.cfg.EntityTypes)),
		Errors: make(map[string]error),
		RunID:  runID,
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)

	for _, entityType := range s.cfg.EntityTypes {
		wg.Add(1)
		go func(entityType string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			stats, err := s.runEntity(ctx, runID, entityType)

			mu.Lock()
			result.Stats[entityType] = stats
			if err != nil {
				result.Errors[entityType] = err
			}
			mu.Unlock()
		}(entityType)
	}

	wg.Wait()
	result.Took = time.Since(start)

	if result.Failed() {
		failed := make([]string, 0, len(result.Errors))
		for entityType := range result.Errors {
			failed = append(failed, entityType)
		}
		log.Error("scheduler run finished with failures",
			zap.Strings("failed_entity_types", failed),
			zap.Duration("took", result.Took))
		return result, syncerrors.New(syncerrors.ErrorTypeInternal,
			fmt.Sprintf("%d of %d entity syncs failed", len(result.Errors), len(s.cfg.EntityTypes)))
	}

	log.Info("scheduler run completed", zap.Duration("took", result.Took))
	return result, nil
}

// runEntity builds and runs one orchestrator. Panics in a stream are
// contained here so a bad adapter cannot take down its siblings.
func (s *Scheduler) runEntity(ctx context.Context, runID, entityType string) (stats core.SyncRunStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = syncerrors.New(syncerrors.ErrorTypeInternal, fmt.Sprintf("entity sync panicked: %v", r))
		}
	}()

	adapter, err := s.adapters.Create(s.cfg.Sync.Source, registry.AdapterParams{
		OrganizationID: s.cfg.OrganizationID,
		EntityType:     entityType,
		Options:        s.cfg.Sync.SourceOptions,
	})
	if err != nil {
		return core.SyncRunStats{}, err
	}

	pageSize := s.cfg.Sync.PageSize
	if def := s.entities.Lookup(entityType); def.PageSize > 0 {
		pageSize = def.PageSize
	}

	o, err := orchestrator.New(adapter, s.store, normalize.New(s.entities), s.sink, orchestrator.Options{
		OrganizationID:      s.cfg.OrganizationID,
		EntityType:          entityType,
		Source:              s.cfg.Sync.Source,
		PageSize:            pageSize,
		CreationWindow:      s.cfg.Sync.CreationWindow,
		LookbackHorizon:     s.cfg.Sync.LookbackHorizon,
		CheckpointEveryPage: s.cfg.Sync.CheckpointEveryPage,
		ProgressInterval:    s.cfg.Observability.ProgressInterval,
		OnProgress:          s.onProg,
		RunID:               runID,
	})
	if err != nil {
		return core.SyncRunStats{}, err
	}

	return o.Run(ctx)
}
