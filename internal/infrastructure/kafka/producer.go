package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventTypeHeader lets consumers filter without decoding the payload.
const EventTypeHeader = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes stored events. It implements store.Publisher.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewProducer hashes on the message key, so all events of one order land
// on the same partition and are consumed in order.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if eventType := eventTypeOf(event); eventType != "" {
		msg.Headers = []kafka.Header{{Key: EventTypeHeader, Value: []byte(eventType)}}
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func eventTypeOf(event any) string {
	switch e := event.(type) {
	case store.Event:
		return e.EventType
	case *store.Event:
		return e.EventType
	}
	return ""
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
