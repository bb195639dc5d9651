// Package kinesis feeds order events from the DynamoDB event table's
// Kinesis stream into the same handlers the Kafka consumers use.
package kinesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"go.uber.org/zap"
)

var ErrIncompleteImage = errors.New("stream image is missing event fields")

// EventHandler matches the projector and notifier HandleEvent methods.
type EventHandler func(ctx context.Context, key, value []byte) error

// decodeRecord returns the event inserted by a stream record, or nil for
// updates and deletes, which never carry new events.
func decodeRecord(record events.KinesisEventRecord) (*store.Event, error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream record: %w", err)
	}
	if change.EventName != "INSERT" {
		return nil, nil
	}
	return eventFromImage(change.Change.NewImage)
}

// eventFromImage reads the attributes written by store.DynamoEventStore.
func eventFromImage(image map[string]events.DynamoDBAttributeValue) (*store.Event, error) {
	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == events.DataTypeString {
			return v.String()
		}
		return ""
	}

	event := &store.Event{
		ID:            str("id"),
		AggregateID:   str("aggregate_id"),
		AggregateType: str("aggregate_type"),
		EventType:     str("event_type"),
		Data:          json.RawMessage(str("data")),
	}
	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return nil, fmt.Errorf("%w: id=%q aggregate_id=%q event_type=%q",
			ErrIncompleteImage, event.ID, event.AggregateID, event.EventType)
	}

	if created := str("created_at"); created != "" {
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		event.Timestamp = t
	}
	if v, ok := image["version"]; ok {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("failed to parse version: %w", err)
		}
		event.Version = int(version)
	}
	return event, nil
}

// Process hands every inserted event of the batch to handler. Records that
// cannot be decoded or handled are reported back so Lambda retries only those.
func Process(ctx context.Context, batch events.KinesisEvent, handler EventHandler, logger *zap.Logger) events.KinesisEventResponse {
	var failures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord, msg string, err error) {
		logger.Error(msg,
			zap.String("sequence_number", record.Kinesis.SequenceNumber),
			zap.Error(err))
		failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: record.Kinesis.SequenceNumber})
	}

	for _, record := range batch.Records {
		event, err := decodeRecord(record)
		if err != nil {
			fail(record, "failed to decode record", err)
			continue
		}
		if event == nil {
			continue
		}

		payload, err := json.Marshal(event)
		if err != nil {
			fail(record, "failed to encode event", err)
			continue
		}
		if err := handler(ctx, []byte(event.AggregateID), payload); err != nil {
			fail(record, "failed to handle event", err)
			continue
		}
	}

	logger.Info("processed kinesis batch",
		zap.Int("records", len(batch.Records)),
		zap.Int("failed", len(failures)))
	return events.KinesisEventResponse{BatchItemFailures: failures}
}
