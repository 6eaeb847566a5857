package worker

import (
	"context"

	"go.uber.org/zap"

	"mirrorhooks/internal"
)

// Listener provides hooks into the worker's lifecycle for logging, metrics, etc.
type Listener struct {
	// OnStart is called when the worker starts.
	OnStart func(ctx context.Context)
	// OnExit is called when the worker exits.
	OnExit func(ctx context.Context)
	// OnMessageStart is called when a message is received.
	OnMessageStart func(ctx context.Context, evt *Event)
	// OnMessageFinish is called when a message has been processed.
	OnMessageFinish func(ctx context.Context, evt *Event, err error)
	// OnError is called when an error occurs. evt is nil for decode failures.
	OnError func(ctx context.Context, evt *Event, err error)
}

// LoggingListener logs the worker lifecycle.
func LoggingListener(logger *zap.SugaredLogger) Listener {
	return Listener{
		OnStart: func(ctx context.Context) {
			logger.Infow("worker started")
		},
		OnExit: func(ctx context.Context) {
			logger.Infow("worker stopped")
		},
		OnMessageStart: func(ctx context.Context, evt *Event) {
			internal.WithRequestID(logger, evt.RequestID).Debugw("job received",
				"job_id", evt.Job.ID,
				"target", evt.Job.Target.String(),
				"topic", evt.Topic,
			)
		},
		OnError: func(ctx context.Context, evt *Event, err error) {
			if evt == nil {
				logger.Warnw("message rejected", "error", err)
				return
			}
			internal.WithRequestID(logger, evt.RequestID).Warnw("job failed",
				"job_id", evt.Job.ID,
				"permanent", Permanent(err),
				"error", err,
			)
		},
	}
}
