package messaging

import (
	"context"
	"fmt"

	"github.com/mkopo/loanbook/pkg/events"
	"github.com/mkopo/loanbook/pkg/kafka"
)

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...kafka.Message) error
}

// KafkaEventPublisher writes outbox entries to a single topic, keyed by
// aggregate ID so that all events of one loan land on one partition in order.
type KafkaEventPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaEventPublisher(producer Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// Publish sends entries as one batch.
func (p *KafkaEventPublisher) Publish(ctx context.Context, entries []events.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, ToMessage(e))
	}
	if err := p.producer.Publish(ctx, p.topic, msgs...); err != nil {
		return fmt.Errorf("publish %d events: %w", len(entries), err)
	}
	return nil
}

// ToMessage maps an outbox entry onto the wire format.
func ToMessage(e events.OutboxEntry) kafka.Message {
	return kafka.Message{
		Key:   []byte(e.AggregateID.String()),
		Value: e.Payload,
		Headers: map[string]string{
			"event_id":       e.ID.String(),
			"event_type":     e.EventType,
			"aggregate_type": e.AggregateType,
			"content_type":   "application/json",
		},
	}
}
