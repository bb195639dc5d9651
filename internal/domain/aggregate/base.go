// Package aggregate rebuilds event-sourced aggregates from their latest
// snapshot plus the events stored after it.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/transcribe-checkout/internal/infrastructure/store"
)

var ErrNotFound = errors.New("aggregate not found")

type Aggregate interface {
	GetID() string
	GetVersion() int
	ApplyEvent(store.Event) error
}

// Load returns the aggregate id of the given type, or ErrNotFound when
// neither a snapshot nor any event exists for it. A snapshot written for a
// different aggregate type is ignored and the full stream replayed.
func Load[T Aggregate](ctx context.Context, es store.EventStoreInterface, aggregateType, id string, empty func() T) (T, error) {
	var zero T
	agg := empty()

	snap, err := es.GetSnapshot(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snap != nil && snap.AggregateType != aggregateType {
		snap = nil
	}

	from := 0
	if snap != nil {
		if err := json.Unmarshal(snap.State, agg); err != nil {
			return zero, fmt.Errorf("failed to decode snapshot of %s: %w", id, err)
		}
		from = snap.Version
	}

	events, err := es.GetEventsFromVersion(ctx, id, from)
	if err != nil {
		return zero, fmt.Errorf("failed to load events: %w", err)
	}
	if snap == nil && len(events) == 0 {
		return zero, ErrNotFound
	}

	for _, event := range events {
		if err := agg.ApplyEvent(event); err != nil {
			return zero, fmt.Errorf("failed to apply %s v%d: %w", event.EventType, event.Version, err)
		}
	}
	return agg, nil
}

// Snapshot stores agg's state when its version is due for one.
func Snapshot(ctx context.Context, es store.EventStoreInterface, aggregateType string, agg Aggregate) error {
	version := agg.GetVersion()
	if !store.SnapshotDue(version) {
		return nil
	}

	state, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", agg.GetID(), err)
	}
	return es.SaveSnapshot(ctx, &store.Snapshot{
		AggregateID:   agg.GetID(),
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		CreatedAt:     time.Now().UTC(),
	})
}
