package worker

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"

	"mirrorhooks/internal"
)

// RiverWorker runs mirror jobs inserted by the riverqueue publisher.
type RiverWorker struct {
	river.WorkerDefaults[internal.RiverJobArgs]

	handler Handler
	logger  *zap.SugaredLogger
}

func NewRiverWorker(handler Handler, logger *zap.SugaredLogger) *RiverWorker {
	if logger == nil {
		logger = internal.NewLogger("river-worker")
	}
	return &RiverWorker{handler: handler, logger: logger}
}

// Work decodes and runs one job. Permanent failures cancel the job so
// river does not retry them.
func (w *RiverWorker) Work(ctx context.Context, job *river.Job[internal.RiverJobArgs]) error {
	meta := map[string]string{
		internal.MetadataProvider:  job.Args.Provider,
		internal.MetadataEvent:     job.Args.Event,
		internal.MetadataRequestID: job.Args.RequestID,
	}
	evt, err := decodeEvent(job.Args.Topic, meta, job.Args.Payload)
	if err != nil {
		w.logger.Warnw("river job rejected", "river_job_id", job.ID, "error", err)
		return river.JobCancel(err)
	}

	logger := internal.WithRequestID(w.logger, evt.RequestID).With(
		"river_job_id", job.ID,
		"attempt", job.Attempt,
		"job_id", evt.Job.ID,
	)
	if err := w.handler(ctx, evt); err != nil {
		if Permanent(err) {
			logger.Warnw("job failed permanently", "error", err)
			return river.JobCancel(err)
		}
		logger.Warnw("job failed", "error", err)
		return err
	}
	return nil
}

// NewRiverClient builds a river client that works cfg.Queue with w.
func NewRiverClient(pool *pgxpool.Pool, cfg internal.RiverQueueConfig, w *RiverWorker) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, w); err != nil {
		return nil, fmt.Errorf("register river worker: %w", err)
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: internal.RiverLogger(),
		Queues: map[string]river.QueueConfig{
			cfg.Queue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
}
