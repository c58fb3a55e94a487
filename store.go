package eventstore

import (
	"context"
	"time"
)

// EventStore is the append-only, optimistically-concurrent, multi-stream
// log at the heart of this module. Implementations must be safe for
// concurrent use; Append must be atomic across all of its events, and reads
// must never observe a partial write.
//
// A call is a single logical unit from the caller's point of view — no
// intermediate state is observable.
type EventStore interface {
	// Append writes events to streamID atomically, assigning each a
	// contiguous StreamVersion. If expectedVersion is non-nil and does not
	// equal the stream's current version, Append fails with
	// *ConcurrencyError and stores nothing. An empty events slice with a
	// nil expectedVersion is a no-op that succeeds trivially.
	Append(ctx context.Context, streamID string, aggregateType AggregateType, events []DomainEvent, expectedVersion *int64) error

	// GetEvents returns streamID's events with StreamVersion >= fromVersion
	// (nil or 0: from the beginning), ordered ascending by StreamVersion.
	GetEvents(ctx context.Context, streamID string, fromVersion *int64) ([]StoredEvent, error)

	// GetGameEvents returns every event, across all three aggregate
	// streams, whose correlating GameID equals gameID, in chronological
	// order.
	GetGameEvents(ctx context.Context, gameID GameID) ([]StoredEvent, error)

	// GetAllEvents returns every stored event with Timestamp >=
	// fromTimestamp (nil: from the beginning of the store), in
	// chronological order.
	GetAllEvents(ctx context.Context, fromTimestamp *time.Time) ([]StoredEvent, error)

	// GetEventsByType returns every stored event whose EventType exactly
	// (case-sensitively) matches eventType and whose Timestamp >=
	// fromTimestamp, in chronological order.
	GetEventsByType(ctx context.Context, eventType string, fromTimestamp *time.Time) ([]StoredEvent, error)

	// GetEventsByGameID returns every event correlated to gameID whose
	// AggregateType is in aggregateTypes (all types, if empty) and whose
	// Timestamp >= fromTimestamp, in chronological order.
	GetEventsByGameID(ctx context.Context, gameID GameID, aggregateTypes []AggregateType, fromTimestamp *time.Time) ([]StoredEvent, error)
}

// "Chronological" means non-decreasing by Timestamp; ties are broken by
// StreamVersion within a stream and by acceptance order across streams.
// Implementations achieve this with a monotonically increasing acceptance
// sequence number alongside Timestamp (see memstore/postgresstore).
