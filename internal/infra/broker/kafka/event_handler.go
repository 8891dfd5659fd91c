package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	infraoutbox "rentacar/internal/infra/outbox"
)

// Inbox de-duplicates deliveries by CloudEvent id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// EventFunc receives the unversioned event name and the event data.
type EventFunc func(ctx context.Context, name string, data []byte) error

// EventHandler unwraps CloudEvents written by the outbox relay.
type EventHandler struct {
	Inbox  Inbox
	Handle EventFunc
	Logger *slog.Logger
}

func (h *EventHandler) HandleMessage(ctx context.Context, value []byte) error {
	var evt infraoutbox.CloudEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		h.logger().Error("undecodable event dropped", "error", err)
		return nil
	}
	if h.Inbox != nil && evt.ID != "" {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("kafka: inbox check: %w", err)
		}
		if seen {
			h.logger().Debug("duplicate event skipped", "event_id", evt.ID, "type", evt.Type)
			return nil
		}
	}
	if err := h.Handle(ctx, evt.EventName(), evt.Data); err != nil {
		h.logger().Error("event handling failed", "event_id", evt.ID, "type", evt.Type, "error", err)
		if h.Inbox != nil && evt.ID != "" {
			_ = h.Inbox.Release(ctx, evt.ID)
		}
		return err
	}
	return nil
}

func (h *EventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// MessageAdapter lets an EventHandler serve a consumer group.
type MessageAdapter struct {
	Events *EventHandler
}

func (a MessageAdapter) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return a.Events.HandleMessage(ctx, msg.Value)
}

var _ MessageHandler = MessageAdapter{}
