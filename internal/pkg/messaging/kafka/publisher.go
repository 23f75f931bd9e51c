package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/event"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

// NewPublisher builds a hash-balanced writer so every event of one aggregate
// lands on the same partition. The topic is taken from each event.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

func newPublisherWithWriter(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Message converts an outbox row into a broker message.
func Message(e event.OutboxEvent) kafkago.Message {
	return kafkago.Message{
		Topic: e.Topic,
		Key:   []byte(e.AggregateID),
		Value: e.Payload,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "aggregate_type", Value: []byte(e.AggregateType)},
		},
	}
}

// Publish implements event.Publisher.
func (p *Publisher) Publish(ctx context.Context, e event.OutboxEvent) error {
	if err := p.writer.WriteMessages(ctx, Message(e)); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", e.EventType, e.Topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
