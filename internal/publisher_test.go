package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// stubPublisher is a mock publisher for testing.
type stubPublisher struct {
	published    int
	failures     int
	lastTopic    string
	lastPayload  []byte
	lastMetadata message.Metadata
}

// Publish fails the first s.failures calls, then records the message.
func (s *stubPublisher) Publish(topic string, msgs ...*message.Message) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.published += len(msgs)
	s.lastTopic = topic
	if len(msgs) > 0 {
		s.lastPayload = append([]byte(nil), msgs[0].Payload...)
		s.lastMetadata = msgs[0].Metadata
	}
	return nil
}

// Close is a no-op.
func (s *stubPublisher) Close() error {
	return nil
}

func registerStub(t *testing.T, name string, factory PublisherFactory) {
	t.Helper()
	orig, had := lookupPublisherFactory(name)
	RegisterPublisherDriver(name, factory)
	t.Cleanup(func() {
		factoriesMu.Lock()
		defer factoriesMu.Unlock()
		if had {
			publisherFactories[name] = orig
		} else {
			delete(publisherFactories, name)
		}
	})
}

// TestRegisterPublisherDriver tests that a custom publisher driver can be registered and used.
func TestRegisterPublisherDriver(t *testing.T) {
	stub := &stubPublisher{}
	closed := false
	registerStub(t, "custom", func(cfg QueueConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return stub, func() error { closed = true; return nil }, nil
	})

	pub, err := NewPublisher(QueueConfig{Driver: "custom"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := pub.Publish(context.Background(), "mirror.sync", Event{Provider: "github"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if stub.published != 1 || stub.lastTopic != "mirror.sync" {
		t.Fatalf("expected publish to mirror.sync once, got %d to %q", stub.published, stub.lastTopic)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed {
		t.Fatalf("expected custom close to be called")
	}
}

// TestHTTPURLTarget tests that the HTTP target URL is constructed correctly.
func TestHTTPURLTarget(t *testing.T) {
	url, err := httpTargetURL(HTTPConfig{Mode: "base_url", BaseURL: "http://localhost:8080/hooks/"}, "/mirror.sync")
	if err != nil {
		t.Fatalf("httpTargetURL: %v", err)
	}
	if url != "http://localhost:8080/hooks/mirror.sync" {
		t.Fatalf("unexpected url: %q", url)
	}
	if _, err := httpTargetURL(HTTPConfig{Mode: "other"}, "x"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

// TestMultipleDrivers tests that the publisher can be configured to publish to multiple drivers.
func TestMultipleDrivers(t *testing.T) {
	a := &stubPublisher{}
	b := &stubPublisher{}
	registerStub(t, "multi-a", func(cfg QueueConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return a, nil, nil
	})
	registerStub(t, "multi-b", func(cfg QueueConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return b, nil, nil
	})

	pub, err := NewPublisher(QueueConfig{Drivers: []string{"multi-a", "multi-b"}})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := pub.Publish(context.Background(), "mirror.sync", Event{Provider: "gitlab"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.published != 1 || b.published != 1 {
		t.Fatalf("expected publish to both drivers, got a=%d b=%d", a.published, b.published)
	}

	if err := pub.PublishForDrivers(context.Background(), "mirror.sync", Event{}, []string{"multi-b"}); err != nil {
		t.Fatalf("publish for drivers: %v", err)
	}
	if a.published != 1 || b.published != 2 {
		t.Fatalf("expected publish only to multi-b, got a=%d b=%d", a.published, b.published)
	}
	if err := pub.PublishForDrivers(context.Background(), "mirror.sync", Event{}, []string{"missing"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

// TestPublishPayloadAndMetadata ensures the encoded payload is forwarded and metadata is set.
func TestPublishPayloadAndMetadata(t *testing.T) {
	stub := &stubPublisher{}
	registerStub(t, "payload", func(cfg QueueConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return stub, nil, nil
	})

	pub, err := NewPublisher(QueueConfig{Driver: "payload"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	raw := []byte(`{"id":"job-1"}`)
	event := Event{
		Provider:  "github",
		Name:      "push",
		RequestID: "req-123",
		Payload:   raw,
	}
	if err := pub.Publish(context.Background(), "mirror.sync", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if string(stub.lastPayload) != string(raw) {
		t.Fatalf("expected payload to be forwarded, got %s", stub.lastPayload)
	}
	if stub.lastMetadata.Get(MetadataProvider) != "github" {
		t.Fatalf("expected provider metadata")
	}
	if stub.lastMetadata.Get(MetadataEvent) != "push" {
		t.Fatalf("expected event metadata")
	}
	if stub.lastMetadata.Get(MetadataRequestID) != "req-123" {
		t.Fatalf("expected request_id metadata")
	}
}

func TestPublishRetries(t *testing.T) {
	stub := &stubPublisher{failures: 2}
	pub := WrapPublisher(stub, PublishRetryConfig{Attempts: 3, DelayMS: 1}, nil)

	if err := pub.Publish(context.Background(), "mirror.sync", Event{Payload: []byte("{}")}); err != nil {
		t.Fatalf("expected publish to succeed after retries: %v", err)
	}
	if stub.published != 1 {
		t.Fatalf("expected one delivered message, got %d", stub.published)
	}

	stub = &stubPublisher{failures: 5}
	pub = WrapPublisher(stub, PublishRetryConfig{Attempts: 2, DelayMS: 1}, nil)
	if err := pub.Publish(context.Background(), "mirror.sync", Event{}); err == nil {
		t.Fatalf("expected error once attempts are exhausted")
	}
	if stub.failures != 3 {
		t.Fatalf("expected exactly 2 attempts, %d failures left", stub.failures)
	}
}

func TestNewPublisherNoDrivers(t *testing.T) {
	if _, err := NewPublisher(QueueConfig{Driver: "does-not-exist"}); err == nil {
		t.Fatalf("expected error when no driver can be built")
	}
}

func TestRiverJobArgsKind(t *testing.T) {
	if (RiverJobArgs{}).Kind() != RiverJobKind {
		t.Fatalf("unexpected kind %q", RiverJobArgs{}.Kind())
	}
}
