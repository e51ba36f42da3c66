package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
// A nil Publisher is valid and drops every event, so callers never need to
// guard for a disabled event bus.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishBreakdownCreated publishes a breakdown creation event.
func (p *Publisher) PublishBreakdownCreated(ctx context.Context, event BreakdownCreatedEvent) error {
	return p.publish(ctx, SubjectBreakdownCreated, event)
}

// PublishTaskCompleted publishes a task completion event.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, event TaskCompletedEvent) error {
	return p.publish(ctx, SubjectTaskCompleted, event)
}

// PublishSessionRated publishes a feedback event.
func (p *Publisher) PublishSessionRated(ctx context.Context, event SessionRatedEvent) error {
	return p.publish(ctx, SubjectSessionRated, event)
}

// PublishMemoryPromoted publishes a memory promotion event.
func (p *Publisher) PublishMemoryPromoted(ctx context.Context, event MemoryPromotedEvent) error {
	return p.publish(ctx, SubjectMemoryPromoted, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	if p == nil || p.js == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
