package gateway

import (
	"context"
	"fmt"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/mirror"
)

// Queue accepts jobs for asynchronous execution.
type Queue interface {
	Submit(ctx context.Context, job mirror.Job) error
}

// QueueFunc adapts a function to Queue.
type QueueFunc func(ctx context.Context, job mirror.Job) error

func (f QueueFunc) Submit(ctx context.Context, job mirror.Job) error {
	return f(ctx, job)
}

// PublisherQueue encodes jobs and publishes them on a topic.
type PublisherQueue struct {
	publisher internal.Publisher
	topic     string
}

func NewPublisherQueue(publisher internal.Publisher, topic string) *PublisherQueue {
	return &PublisherQueue{publisher: publisher, topic: topic}
}

func (q *PublisherQueue) Submit(ctx context.Context, job mirror.Job) error {
	body, err := job.Encode()
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	provider := "github"
	event := job.Metadata.GitHubEvent
	if _, ok := job.Data["object_kind"]; ok {
		provider = "gitlab"
		event = fmt.Sprint(job.Data["object_kind"])
	}
	return q.publisher.Publish(ctx, q.topic, internal.Event{
		Provider:  provider,
		Name:      event,
		RequestID: job.RequestID,
		Payload:   body,
	})
}
