package worker

import (
	"encoding/json"

	"mirrorhooks/pkg/mirror"
)

// Event is a decoded queue message.
type Event struct {
	// Provider is "github" or "gitlab".
	Provider string `json:"provider"`
	// Type is the webhook event name (push, gollum, wiki_page).
	Type      string `json:"type"`
	Topic     string `json:"topic"`
	RequestID string `json:"request_id"`
	// Metadata contains message-broker-specific metadata.
	Metadata map[string]string `json:"metadata"`
	// Payload is the encoded job as it arrived.
	Payload json.RawMessage `json:"payload"`
	Job     mirror.Job      `json:"job"`
}
