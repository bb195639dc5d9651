package store

import (
	"encoding/json"
	"time"
)

// SnapshotEvery is the number of events between two snapshots of an aggregate.
const SnapshotEvery = 3

// Snapshot is an aggregate's serialized state as of Version.
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotDue reports whether an aggregate that just reached version
// should be snapshotted.
func SnapshotDue(version int) bool {
	return version > 0 && version%SnapshotEvery == 0
}
