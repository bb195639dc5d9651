package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader replays messages, then blocks until the context ends.
type fakeReader struct {
	messages []kafka.Message
	errs     []error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error { return nil }

// ============================================
// Producer Tests
// ============================================

func TestProducer_Publish_KeyAndHeader(t *testing.T) {
	writer := &fakeWriter{}
	producer := &Producer{writer: writer, logger: zap.NewNop()}
	event := store.Event{ID: "evt-1", AggregateID: "order-1", AggregateType: "Order", EventType: "OrderPaid", Version: 2}

	require.NoError(t, producer.Publish(context.Background(), "order-1", event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "order-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, EventTypeHeader, msg.Headers[0].Key)
	assert.Equal(t, "OrderPaid", string(msg.Headers[0].Value))

	var decoded store.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	assert.Equal(t, 2, decoded.Version)
}

func TestProducer_Publish_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	producer := &Producer{writer: writer, logger: zap.NewNop()}

	err := producer.Publish(context.Background(), "order-1", &store.Event{EventType: "OrderPlaced"})

	assert.ErrorContains(t, err, "broker unavailable")
}

// ============================================
// Consumer Tests
// ============================================

func TestConsumer_Consume_HandlesEveryMessage(t *testing.T) {
	reader := &fakeReader{
		messages: []kafka.Message{
			{Key: []byte("order-1"), Value: []byte(`{"event_type":"OrderPlaced"}`)},
			{Key: []byte("order-1"), Value: []byte(`{"event_type":"OrderPaid"}`)},
		},
		errs: []error{errors.New("transient")},
	}
	consumer := &Consumer{reader: reader, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	var keys []string
	handler := func(ctx context.Context, key, value []byte) error {
		keys = append(keys, string(key))
		if len(keys) == 1 {
			return errors.New("handler failed")
		}
		if len(keys) == 2 {
			cancel()
		}
		return nil
	}

	err := consumer.Consume(ctx, handler)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"order-1", "order-1"}, keys)
}
