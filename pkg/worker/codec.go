package worker

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/mirror"
)

// Codec is an interface for decoding messages from a message broker into an Event.
type Codec interface {
	// Decode transforms a Watermill message into an Event.
	Decode(topic string, msg *message.Message) (*Event, error)
}

// DecodeError marks a message that can never be processed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// JobCodec decodes messages whose payload is an encoded mirror.Job.
type JobCodec struct{}

// Decode unmarshals a Watermill message into an Event.
func (JobCodec) Decode(topic string, msg *message.Message) (*Event, error) {
	return decodeEvent(topic, msg.Metadata, msg.Payload)
}

func decodeEvent(topic string, meta map[string]string, body []byte) (*Event, error) {
	job, err := mirror.DecodeJob(body)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("topic %s: %w", topic, err)}
	}

	metadata := make(map[string]string, len(meta))
	for key, value := range meta {
		metadata[key] = value
	}
	requestID := metadata[internal.MetadataRequestID]
	if requestID == "" {
		requestID = job.RequestID
	}
	provider := metadata[internal.MetadataProvider]
	if provider == "" {
		provider = "github"
		if _, ok := job.Data["object_kind"]; ok {
			provider = "gitlab"
		}
	}

	return &Event{
		Provider:  provider,
		Type:      metadata[internal.MetadataEvent],
		Topic:     topic,
		RequestID: requestID,
		Metadata:  metadata,
		Payload:   append([]byte(nil), body...),
		Job:       job,
	}, nil
}
