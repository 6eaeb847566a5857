package mirror

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/storage"
)

// Runner executes queued jobs.
type Runner struct {
	tree     map[string]interface{}
	store    storage.MirrorStore
	executor Executor
	logger   *zap.SugaredLogger
}

type RunnerOption func(*Runner)

// WithStore records every outcome in store.
func WithStore(store storage.MirrorStore) RunnerOption {
	return func(r *Runner) {
		r.store = store
	}
}

func WithRunnerExecutor(executor Executor) RunnerOption {
	return func(r *Runner) {
		if executor != nil {
			r.executor = executor
		}
	}
}

func WithRunnerLogger(logger *zap.SugaredLogger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner returns a Runner that resolves repository options from tree,
// the same option tree the gateway reads.
func NewRunner(tree map[string]interface{}, opts ...RunnerOption) *Runner {
	if tree == nil {
		tree = map[string]interface{}{}
	}
	r := &Runner{
		tree:     tree,
		executor: ExecExecutor{},
		logger:   internal.NewLogger("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run syncs the job's mirror and notifies. Sync and notifier failures are
// returned after being recorded; neither is retried here.
func (r *Runner) Run(ctx context.Context, job Job) error {
	logger := internal.WithRequestID(r.logger, job.RequestID).With(
		"job_id", job.ID,
		"target", job.Target.String(),
	)

	repo, err := job.Repository(r.tree, WithExecutor(r.executor), WithLogger(logger))
	if err != nil {
		logger.Errorw("rebuild repository failed", "error", err)
		return &ConfigError{Target: job.Target, Err: err}
	}
	if !repo.Enabled() {
		logger.Infow("repository disabled, skipping job")
		return nil
	}

	record := storage.MirrorRecord{
		Domain: job.Target.Domain,
		Owner:  job.Target.Owner,
		Name:   job.Target.Name,
		Wiki:   repo.Payload().IsWiki(),
		Before: job.Change.Before,
		After:  job.Change.After,
		Ref:    job.Change.Ref,
		JobID:  job.ID,
	}
	if url, err := repo.CloneURL(); err == nil {
		record.CloneURL = url
	}

	start := time.Now()
	result, err := repo.Sync(ctx)
	record.Path = result.Path
	record.Operation = string(result.Operation)
	record.Attempts = result.Attempts
	if result.Operation != "" {
		internal.IncSync(string(result.Operation))
	}
	if err != nil {
		internal.IncSyncError(job.Target.Domain)
		logger.Errorw("mirror sync failed", "error", err, "output", syncOutput(err))
		record.Status = storage.StatusSyncFailed
		record.Error = err.Error()
		r.save(ctx, record, logger)
		return err
	}

	if state, inspectErr := Inspect(result.Path); inspectErr == nil {
		record.Head = state.Head
		record.RefCount = state.RefCount
	} else {
		logger.Debugw("inspect mirror failed", "error", inspectErr)
	}

	if err := repo.Notify(ctx, job.Change); err != nil {
		internal.IncNotifierError(job.Target.Domain)
		logger.Errorw("notifier failed", "error", err)
		record.Status = storage.StatusNotifyFailed
		record.Error = err.Error()
		r.save(ctx, record, logger)
		return err
	}

	record.Status = storage.StatusNotified
	r.save(ctx, record, logger)
	logger.Infow("mirror synced",
		"operation", result.Operation,
		"attempts", result.Attempts,
		"change", job.Change.String(),
		"duration", time.Since(start),
	)
	return nil
}

func (r *Runner) save(ctx context.Context, record storage.MirrorRecord, logger *zap.SugaredLogger) {
	if r.store == nil {
		return
	}
	record.SyncedAt = time.Now().UTC()
	if err := r.store.UpsertMirror(ctx, record); err != nil {
		logger.Warnw("record mirror state failed", "error", err)
	}
}

func syncOutput(err error) string {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Output
	}
	return ""
}
