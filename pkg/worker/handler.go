package worker

import (
	"context"

	"mirrorhooks/pkg/mirror"
)

// Handler is a function that processes an event.
type Handler func(ctx context.Context, evt *Event) error

// Middleware is a function that wraps a handler to add functionality.
type Middleware func(Handler) Handler

// JobRunner executes a decoded job.
type JobRunner interface {
	Run(ctx context.Context, job mirror.Job) error
}

// RunnerHandler runs every event's job with r.
func RunnerHandler(r JobRunner) Handler {
	return func(ctx context.Context, evt *Event) error {
		return r.Run(ctx, evt.Job)
	}
}
