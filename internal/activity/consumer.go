package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/epochish/klarita/internal/nats"
)

// consumerName is the durable name; restarts resume from the last ack.
const consumerName = "activity-feed"

// Consumer mirrors the event stream into the activity_log table.
type Consumer struct {
	repo        Repository
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new activity feed Consumer.
func NewConsumer(repo Repository, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, consumerName, inats.SubjectWildcard)
	if err != nil {
		return err
	}

	slog.Info("activity consumer started", "consumer", consumerName)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("activity consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	entry, err := entryFromMessage(msg.Subject(), msg.Data())
	if err != nil {
		slog.Error("activity consumer: decoding event", "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}

	if err := c.repo.Insert(ctx, entry); err != nil {
		slog.Error("activity consumer: persisting entry", "error", err, "event_type", entry.EventType)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("activity consumer: persisted event",
		"event_type", entry.EventType,
		"user_id", entry.UserID,
	)
}

// entryFromMessage decodes a stream message into a feed entry. The raw
// payload rides along in Details.
func entryFromMessage(subject string, data []byte) (*Entry, error) {
	switch subject {
	case inats.SubjectBreakdownCreated:
		var ev inats.BreakdownCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling breakdown event: %w", err)
		}
		return &Entry{
			UserID:    ev.UserID,
			EventType: EventBreakdownCreated,
			SessionID: &ev.SessionID,
			Details:   json.RawMessage(data),
			CreatedAt: ev.Timestamp,
		}, nil

	case inats.SubjectTaskCompleted:
		var ev inats.TaskCompletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling completion event: %w", err)
		}
		return &Entry{
			UserID:    ev.UserID,
			EventType: EventTaskCompleted,
			SessionID: &ev.SessionID,
			Details:   json.RawMessage(data),
			CreatedAt: ev.Timestamp,
		}, nil

	case inats.SubjectSessionRated:
		var ev inats.SessionRatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling rating event: %w", err)
		}
		return &Entry{
			UserID:    ev.UserID,
			EventType: EventSessionRated,
			SessionID: &ev.SessionID,
			Details:   json.RawMessage(data),
			CreatedAt: ev.Timestamp,
		}, nil

	case inats.SubjectMemoryPromoted:
		var ev inats.MemoryPromotedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling promotion event: %w", err)
		}
		return &Entry{
			UserID:    ev.UserID,
			EventType: EventMemoryPromoted,
			SessionID: &ev.SessionID,
			Details:   json.RawMessage(data),
			CreatedAt: ev.Timestamp,
		}, nil
	}

	return nil, fmt.Errorf("unknown event subject %q", subject)
}
