// Package orchestrator drives the fetch, classify, normalize loop for one
// entity stream. It owns the sync state machine: resume from a persisted
// checkpoint, page through the source adapter, degrade once to a bounded
// full resync when the cursor expires, and persist progress after every
// page so a crash re-processes at most one page.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/observability"
	"github.com/confluxdata/conflux/pkg/sync/classify"
	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/sync/normalize"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// Options configures one orchestrator instance.
type Options struct {
	// OrganizationID scopes the checkpoint key and every emitted event
	OrganizationID string
	// EntityType names the entity stream being synced
	EntityType string
	// Source names the vendor system; it participates in deterministic ids
	Source string
	// PageSize is passed to every FetchPage call
	PageSize int
	// CreationWindow feeds the classifier; zero uses the default
	CreationWindow time.Duration
	// LookbackHorizon bounds full resyncs when no checkpoint exists or the
	// cursor expired
	LookbackHorizon time.Duration
	// CheckpointEveryPage persists after each page instead of only at run end
	CheckpointEveryPage bool
	// OnProgress, when set, receives reports at least once per page
	OnProgress core.ProgressFunc
	// ProgressInterval throttles progress log lines; zero disables them
	ProgressInterval time.Duration
	// RunID correlates events from one run; generated when empty
	RunID string
	// BatchID carries the caller's batch correlation id, if any
	BatchID string
	// Clock overrides the time source, for tests
	Clock func() time.Time
}

// Orchestrator runs the sync loop for one (organization, entity type) key.
// Callers must guarantee at most one active orchestrator per key; the
// orchestrator itself performs no cross-process locking.
type Orchestrator struct {
	opts        Options
	adapter     core.SourceAdapter
	checkpoints core.CheckpointStore
	normalizer  *normalize.Normalizer
	sink        core.EventSink
	now         func() time.Time
}

// New creates an orchestrator. Options are validated up front so
// misconfiguration fails before any page is fetched.
func New(adapter core.SourceAdapter, checkpoints core.CheckpointStore, normalizer *normalize.Normalizer, sink core.EventSink, opts Options) (*Orchestrator, error) {
	if adapter == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "source adapter is required")
	}
	if checkpoints == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "checkpoint store is required")
	}
	if normalizer == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "normalizer is required")
	}
	if sink == nil {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "event sink is required")
	}
	if opts.OrganizationID == "" {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "organization id is required")
	}
	if opts.EntityType == "" {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "entity type is required")
	}
	if opts.Source == "" {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "source name is required")
	}
	if opts.PageSize <= 0 {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "page size must be positive")
	}
	if opts.LookbackHorizon <= 0 {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "lookback horizon must be positive")
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		opts:        opts,
		adapter:     adapter,
		checkpoints: checkpoints,
		normalizer:  normalizer,
		sink:        sink,
		now:         now,
	}, nil
}

// Run executes one sync run to exhaustion. It returns the run's statistics
// together with the error that stopped it, if any. Statistics are valid
// even on error: they describe everything processed before the stop.
func (o *Orchestrator) Run(ctx context.Context) (core.SyncRunStats, error) {
	var stats core.SyncRunStats

	runID := o.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx = logger.WithRunContext(ctx, runID, o.opts.OrganizationID, o.opts.EntityType)

	runCtx, span := observability.StartRunSpan(ctx, o.opts.OrganizationID, o.opts.EntityType)
	start := o.now()

	observability.ActiveRuns.Inc()
	defer observability.ActiveRuns.Dec()

	err := o.run(runCtx, runID, &stats)

	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.RunDuration.WithLabelValues(o.opts.EntityType, status).Observe(o.now().Sub(start).Seconds())
	observability.EndSpan(span, err)

	return stats, err
}

func (o *Orchestrator) run(ctx context.Context, runID string, stats *core.SyncRunStats) error {
	log := logger.WithContext(ctx).With(zap.String("component", "sync_orchestrator"))

	cursor, recordCount, err := o.resumePosition(ctx, log)
	if err != nil {
		return err
	}

	normCtx := normalize.Context{
		Source:         o.opts.Source,
		OrganizationID: o.opts.OrganizationID,
		BatchID:        o.opts.BatchID,
		RunID:          runID,
	}

	total := o.estimatedTotal(ctx)
	degraded := false
	lastProgressLog := o.now()

	log.Info("sync run started",
		zap.String("cursor", cursor.String()),
		zap.Int64("record_count", recordCount),
		zap.Int("page_size", o.opts.PageSize))

	o.reportProgress(stats, total, core.ProgressStageFetching, "starting fetch")

	for {
		// Cancellation is honored between pages only: a partially
		// processed page must never be recorded as consumed.
		select {
		case <-ctx.Done():
			o.persistCheckpoint(ctx, cursor, recordCount, core.CheckpointStatusPartial, ctx.Err().Error())
			log.Info("sync run canceled", zap.Int64("fetched", stats.Fetched))
			return syncerrors.Wrap(ctx.Err(), syncerrors.ErrorTypeTimeout, "sync run canceled")
		default:
		}

		pageCtx, pageSpan := observability.StartPageSpan(ctx, stats.PagesFetched+1)
		page, fetchErr := o.adapter.FetchPage(pageCtx, cursor, o.opts.PageSize)
		observability.EndSpan(pageSpan, fetchErr)

		if fetchErr != nil {
			if syncerrors.IsCursorExpired(fetchErr) {
				if degraded {
					// A second expiry inside the resync window means the
					// vendor rejects even horizon-aged positions; retrying
					// would loop forever.
					fatal := syncerrors.Wrap(fetchErr, syncerrors.ErrorTypeInternal, "cursor expired again during degraded resync")
					o.persistCheckpoint(ctx, cursor, recordCount, core.CheckpointStatusFailed, fatal.Error())
					return fatal
				}

				degraded = true
				cursor = o.horizonCursor()
				recordCount = 0
				observability.CursorResets.WithLabelValues(o.opts.EntityType).Inc()
				log.Warn("cursor expired, degrading to bounded full resync",
					zap.String("reset_cursor", cursor.String()),
					zap.Duration("lookback_horizon", o.opts.LookbackHorizon))
				continue
			}

			// Transient and fatal alike stop the run; the checkpoint keeps
			// the last successfully advanced cursor so the next run resumes
			// without skipping the failed page.
			o.persistCheckpoint(ctx, cursor, recordCount, core.CheckpointStatusFailed, fetchErr.Error())
			log.Error("page fetch failed",
				zap.Bool("transient", syncerrors.IsTransient(fetchErr)),
				zap.Error(fetchErr))
			return fetchErr
		}

		stats.PagesFetched++
		stats.Fetched += int64(len(page.Records))
		observability.PagesFetched.WithLabelValues(o.opts.EntityType).Inc()
		observability.RecordsFetched.WithLabelValues(o.opts.EntityType).Add(float64(len(page.Records)))

		if err := o.processPage(ctx, page.Records, normCtx, stats, log); err != nil {
			o.persistCheckpoint(ctx, cursor, recordCount, core.CheckpointStatusFailed, err.Error())
			return err
		}

		cursor = page.NextCursor
		recordCount += int64(len(page.Records))

		if o.opts.CheckpointEveryPage {
			if err := o.persistCheckpoint(ctx, cursor, recordCount, core.CheckpointStatusSuccess, ""); err != nil {
				return err
			}
		}

		o.reportProgress(stats, total, core.ProgressStageProcessing, "page processed")

		if o.opts.ProgressInterval > 0 && o.now().Sub(lastProgressLog) >= o.opts.ProgressInterval {
			log.Info("sync progress",
				zap.Int64("fetched", stats.Fetched),
				zap.Int64("pages", stats.PagesFetched),
				zap.Int64("errors", stats.Errors),
				zap.String("cursor", cursor.String()))
			lastProgressLog = o.now()
		}

		if !page.HasMore {
			break
		}
	}

	if err := o.persistCheckpoint(ctx, cursor, recordCount, core.CheckpointStatusSuccess, ""); err != nil {
		return err
	}

	o.reportProgress(stats, total, core.ProgressStageComplete, "sync complete")

	log.Info("sync run completed",
		zap.Int64("fetched", stats.Fetched),
		zap.Int64("created", stats.Created),
		zap.Int64("updated", stats.Updated),
		zap.Int64("deleted", stats.Deleted),
		zap.Int64("errors", stats.Errors),
		zap.Int64("pages", stats.PagesFetched))

	return nil
}

// processPage classifies, normalizes, and emits every record on a page in
// order. Per-record failures are counted and skipped; one malformed record
// must not drop the rest of its page. An emission failure aborts the run:
// the sink is the delivery contract, and silently dropping events would
// break at-least-once semantics.
func (o *Orchestrator) processPage(ctx context.Context, records []core.RawRecord, normCtx normalize.Context, stats *core.SyncRunStats, log *zap.Logger) error {
	for _, record := range records {
		classification := classify.Classify(record, o.opts.CreationWindow)

		event, err := o.normalizer.Normalize(record, classification, o.opts.EntityType, normCtx)
		if err != nil {
			stats.Errors++
			observability.RecordErrors.WithLabelValues(o.opts.EntityType).Inc()
			log.Warn("record normalization failed",
				zap.String("natural_key", record.NaturalKey),
				zap.Error(err))
			continue
		}

		if err := o.sink.Emit(ctx, event); err != nil {
			return syncerrors.Wrap(err, syncerrors.ErrorTypeInternal, "event emission failed").
				WithDetail("event_id", event.ID)
		}

		stats.CountClassification(classification)
		observability.EventsEmitted.WithLabelValues(o.opts.EntityType, string(classification)).Inc()
	}
	return nil
}

// resumePosition loads the persisted checkpoint, synthesizing a horizon
// cursor when the key has never been synced.
func (o *Orchestrator) resumePosition(ctx context.Context, log *zap.Logger) (core.Cursor, int64, error) {
	cp, found, err := o.checkpoints.Load(ctx, o.opts.OrganizationID, o.opts.EntityType)
	if err != nil {
		return core.Cursor{}, 0, syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to load checkpoint")
	}

	if !found || cp.Cursor.IsZero() {
		cursor := o.horizonCursor()
		log.Info("no checkpoint found, starting full sync from lookback horizon",
			zap.String("cursor", cursor.String()))
		return cursor, 0, nil
	}

	return cp.Cursor, cp.RecordCount, nil
}

// horizonCursor is the bounded starting position for full syncs: the
// lookback horizon in the past, never the beginning of the vendor's
// history.
func (o *Orchestrator) horizonCursor() core.Cursor {
	return core.TimeCursor(o.now().Add(-o.opts.LookbackHorizon))
}

// persistCheckpoint saves the current position. Failure paths persist with
// a detached context so a canceled run can still record its checkpoint.
func (o *Orchestrator) persistCheckpoint(ctx context.Context, cursor core.Cursor, recordCount int64, status core.CheckpointStatus, lastError string) error {
	saveCtx := ctx
	if status != core.CheckpointStatusSuccess {
		saveCtx = context.WithoutCancel(ctx)
	}

	err := o.checkpoints.Save(saveCtx, core.SyncCheckpoint{
		OrganizationID: o.opts.OrganizationID,
		EntityType:     o.opts.EntityType,
		Cursor:         cursor,
		RecordCount:    recordCount,
		Status:         status,
		LastError:      lastError,
		UpdatedAt:      o.now().UTC(),
	})
	if err != nil {
		observability.CheckpointSaves.WithLabelValues(o.opts.EntityType, "error").Inc()
		logger.WithContext(ctx).Error("checkpoint save failed", zap.Error(err))
		return syncerrors.Wrap(err, syncerrors.ErrorTypeCheckpoint, "failed to save checkpoint")
	}

	observability.CheckpointSaves.WithLabelValues(o.opts.EntityType, "ok").Inc()
	return nil
}

// estimatedTotal asks the adapter for a best-effort record count when it
// offers one. Zero means unknown; the value feeds progress reports only.
func (o *Orchestrator) estimatedTotal(ctx context.Context) int64 {
	if hint, ok := o.adapter.(core.CountHint); ok {
		return hint.EstimatedTotal(ctx)
	}
	return 0
}

func (o *Orchestrator) reportProgress(stats *core.SyncRunStats, total int64, stage core.ProgressStage, message string) {
	if o.opts.OnProgress == nil {
		return
	}
	o.opts.OnProgress(core.Progress{
		EntityType: o.opts.EntityType,
		Current:    stats.Fetched,
		Total:      total,
		Stage:      stage,
		Message:    message,
	})
}
