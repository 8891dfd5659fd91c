package notify

import (
	"context"

	"rentacar/internal/infra/broker/kafka"
	infraoutbox "rentacar/internal/infra/outbox"
)

// LocalProducer hands relayed events straight to an in-process handler when
// no broker is configured.
type LocalProducer struct {
	Events *kafka.EventHandler
}

func (p LocalProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	return p.Events.HandleMessage(ctx, payload)
}

var _ infraoutbox.Producer = LocalProducer{}
