// Package gateway turns normalized webhook payloads into queued mirror jobs.
package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/mirror"
	"mirrorhooks/pkg/payload"
)

// Status is the outcome class of a handled webhook.
type Status int

const (
	StatusPong Status = iota
	StatusEnqueued
	StatusIgnored
)

func (s Status) String() string {
	switch s {
	case StatusPong:
		return "pong"
	case StatusEnqueued:
		return "enqueued"
	case StatusIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Result is a successfully handled webhook.
type Result struct {
	Status      Status
	Message     string
	Disposition Disposition
	Target      mirror.Target
	Job         *mirror.Job
}

// Gateway validates payloads, resolves their repository and enqueues jobs.
type Gateway struct {
	resolver *Resolver
	queue    Queue
	logger   *zap.SugaredLogger
}

type Option func(*Gateway)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(resolver *Resolver, queue Queue, opts ...Option) *Gateway {
	g := &Gateway{
		resolver: resolver,
		queue:    queue,
		logger:   internal.NewLogger("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type requestIDKey struct{}

// WithRequestID attaches the inbound request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Handle processes one payload. Errors are either *ValidationError
// (the sender's fault) or internal failures.
func (g *Gateway) Handle(ctx context.Context, p *payload.Payload) (Result, error) {
	requestID := RequestIDFrom(ctx)
	logger := internal.WithRequestID(g.logger, requestID).With("event", p.EventName())

	switch p.Kind() {
	case payload.KindPing:
		return Result{Status: StatusPong, Message: "pong"}, nil
	case payload.KindUnsupported:
		return Result{}, invalid("Unsupported event: <%s>", p.EventName())
	}

	resolution, err := g.resolver.Resolve(p)
	if err != nil {
		return Result{}, err
	}
	logger = logger.With("target", resolution.Target.String())
	if resolution.Disposition != DispositionEnabled {
		internal.IncIgnored(resolution.Disposition.String())
		logger.Infow("webhook ignored", "disposition", resolution.Disposition.String(), "reason", resolution.Reason)
		return Result{
			Status:      StatusIgnored,
			Message:     resolution.Reason,
			Disposition: resolution.Disposition,
			Target:      resolution.Target,
		}, nil
	}

	change, err := ExtractChange(p)
	if err != nil {
		return Result{}, err
	}

	job := mirror.NewJob(resolution.Repository, change, requestID)
	if err := g.queue.Submit(ctx, job); err != nil {
		return Result{}, fmt.Errorf("enqueue job for %s: %w", resolution.Target, err)
	}
	internal.IncEnqueued(p.EventClass())
	logger.Infow("job enqueued", "job_id", job.ID, "change", change.String())

	return Result{
		Status:      StatusEnqueued,
		Message:     fmt.Sprintf("enqueued %s: <%s>", job.ID, change),
		Disposition: DispositionEnabled,
		Target:      resolution.Target,
		Job:         &job,
	}, nil
}
