package eventstore

import (
	"time"
)

// StoredEvent is the immutable, persisted projection of a DomainEvent.
// It is constructed only by an EventStore implementation during Append;
// StreamVersion is always assigned by the store, never by the caller.
type StoredEvent struct {
	EventID       string
	StreamID      string
	AggregateType AggregateType
	EventType     string
	EventData     string
	EventVersion  int
	StreamVersion int64
	Timestamp     time.Time
	Metadata      Metadata
}
