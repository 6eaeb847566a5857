package worker

import (
	"context"
	"errors"
	"time"

	"mirrorhooks/pkg/mirror"
)

// RetryDecision defines whether a message should be retried or Nacked.
type RetryDecision struct {
	Retry bool
	Nack  bool
	// Delay is waited before the Nack.
	Delay time.Duration
}

// RetryPolicy defines a policy for retrying failed messages.
type RetryPolicy interface {
	OnError(ctx context.Context, evt *Event, err error) RetryDecision
}

// NoRetry is a retry policy that never retries.
type NoRetry struct{}

// OnError always returns a decision to not retry and to Nack the message.
func (NoRetry) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	return RetryDecision{Retry: false, Nack: true}
}

// MirrorRetry acks jobs that failed for good and nacks the rest, so a
// lock timeout or shutdown redelivers while a failed clone does not.
type MirrorRetry struct {
	Delay time.Duration
}

func (p MirrorRetry) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	if Permanent(err) {
		return RetryDecision{}
	}
	return RetryDecision{Retry: true, Nack: true, Delay: p.Delay}
}

// Permanent reports whether redelivering the job cannot help. Sync and
// notifier failures have already used their retry budget, and a
// misconfigured repository fails the same way every time.
func Permanent(err error) bool {
	var (
		syncErr     *mirror.SyncError
		notifierErr *mirror.NotifierError
		decodeErr   *DecodeError
		configErr   *mirror.ConfigError
	)
	switch {
	case errors.As(err, &syncErr), errors.As(err, &notifierErr), errors.As(err, &decodeErr), errors.As(err, &configErr):
		return true
	case errors.Is(err, mirror.ErrRecipientMissing):
		return true
	default:
		return false
	}
}
