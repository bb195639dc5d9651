package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrVersionConflict = errors.New("event version conflict")

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// Publisher forwards stored events to consumers (Kafka in production).
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	// Append stores the event as version expectedVersion+1. It fails with
	// ErrVersionConflict when the stream is no longer at expectedVersion.
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	// GetEventsFromVersion returns the events after fromVersion.
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error)
	GetAllEvents(ctx context.Context) ([]Event, error)
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}
