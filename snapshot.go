package eventstore

import (
	"context"
	"time"
)

// Snapshot is a point-in-time summary of an aggregate's state at a known
// stream version. Data is an opaque textual payload encoded by the caller;
// the store never interprets it.
type Snapshot struct {
	AggregateID   string
	AggregateType AggregateType
	Version       int64
	Data          string
	Timestamp     time.Time
}

// SnapshotStore caches the latest state of each aggregate to bound replay
// cost. At most one snapshot exists per AggregateID; SaveSnapshot replaces
// any previous one wholesale.
type SnapshotStore interface {
	// SaveSnapshot stores snap, replacing any existing snapshot for
	// snap.AggregateID. Returns ParameterError if snap is malformed
	// (empty AggregateID, unknown AggregateType, negative Version).
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// GetSnapshot returns the latest snapshot for aggregateID, or
	// found=false if none exists.
	GetSnapshot(ctx context.Context, aggregateID string) (snap Snapshot, found bool, err error)
}
