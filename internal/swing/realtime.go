package swing

import (
	"context"
	"encoding/json"
)

// Event is a change notification for a single record. The payload is a
// hint only; consumers re-fetch the record for its authoritative state.
type Event struct {
	Topic   string
	Type    string
	Payload json.RawMessage
}

// Subscription is an open push channel.
type Subscription interface {
	// Events delivers notifications until the subscription ends.
	// The channel is closed when the subscription is closed or fails.
	Events() <-chan Event

	// Err reports why Events was closed, or nil after Close.
	Err() error

	// Close tears the subscription down. Safe to call more than once.
	Close() error
}

// Realtime is the push collaborator.
type Realtime interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// JobTopic is the realtime channel key for a job.
func JobTopic(jobID string) string {
	return "job:" + jobID
}
