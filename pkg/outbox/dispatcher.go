package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Producer matches the kafka-go writer surface the dispatcher needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaDispatcher publishes outbox events as kafka messages keyed by
// aggregate id, carrying the event type and stored trace context as headers.
type KafkaDispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewKafkaDispatcher(log *slog.Logger, producer Producer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{log: log, producer: producer, topic: topic}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, e Event) error {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.Type)},
	}
	if e.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(e.Traceparent)})
	}

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", e.ID, "err", err)
		return err
	}
	d.log.Debug("outbox dispatched", "event_id", e.ID, "type", e.Type)
	return nil
}
