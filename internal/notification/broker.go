package notification

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/pkg/kafka"
	"github.com/ds124wfegd/roombooker/pkg/rabbitMQ"
)

// BrokerNotifier hands every notification to RabbitMQ for the downstream
// email and push workers.
type BrokerNotifier struct {
	publisher rabbitMQ.Publisher
}

func NewBrokerNotifier(publisher rabbitMQ.Publisher) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher}
}

func (b *BrokerNotifier) Notify(ctx context.Context, n *entity.Notification) error {
	if err := b.publisher.Publish(ctx, string(n.Event), n); err != nil {
		return fmt.Errorf("failed to publish %s to broker: %w", n.Event, err)
	}
	return nil
}

// EventStreamNotifier appends notifications to a Kafka topic. Messages are
// keyed by target so one user's or room's events stay ordered.
type EventStreamNotifier struct {
	producer kafka.Producer
}

func NewEventStreamNotifier(producer kafka.Producer) *EventStreamNotifier {
	return &EventStreamNotifier{producer: producer}
}

func (e *EventStreamNotifier) Notify(ctx context.Context, n *entity.Notification) error {
	key := n.Target
	if key == "" {
		key = string(n.Audience)
	}
	if err := e.producer.SendMessage(ctx, key, n); err != nil {
		return fmt.Errorf("failed to append %s to event stream: %w", n.Event, err)
	}
	return nil
}
