package eventstore

import "time"

// Base is an embeddable helper that gives an Aggregate the usual
// load -> apply -> flush cycle for free:
//   - Apply(e): mutate state via applier and bump version by 1. Does NOT enqueue.
//   - Raise(e): Apply(e) plus enqueue to pending (for newly produced events).
//   - Version(): current version INCLUDING pending.
//   - Flush(): returns pending and clears it; also returns
//     expectedVersion = currentVersion - len(pending_before).
type Base struct {
	aggregateType AggregateType
	id            string
	version       int64
	pending       []DomainEvent
	applier       func(DomainEvent)
}

// Init sets the aggregate's type and opaque id, and the state mutation
// function (applier). StreamID is derived as "<aggregateType>:<id>", e.g.
// "Game:G1", so a TeamLineup and a Game that happen to share the same
// opaque id never collide on the same stream.
func (b *Base) Init(aggregateType AggregateType, id string, applier func(DomainEvent)) {
	b.aggregateType = aggregateType
	b.id = id
	b.applier = applier
}

// AggregateType returns the kind of aggregate this Base belongs to.
func (b *Base) AggregateType() AggregateType { return b.aggregateType }

// StreamID returns the unique identifier for this aggregate's event stream.
func (b *Base) StreamID() string { return b.aggregateType.String() + ":" + b.id }

// SetStreamID overrides the opaque id half of the stream ID (e.g. when the
// first event assigns it rather than the caller).
func (b *Base) SetStreamID(id string) { b.id = id }

// SetApplier replaces the state mutation function.
func (b *Base) SetApplier(applier func(DomainEvent)) { b.applier = applier }

// SetVersion forces the current version (used when restoring from a
// snapshot). It sets the internal counter only; no pending events are
// affected.
func (b *Base) SetVersion(v int64) { b.version = v }

// Apply mutates state by a single event and advances the version by 1.
// Typically used for event replay (rehydration) or confirming committed
// events.
func (b *Base) Apply(e DomainEvent) {
	if b.applier != nil {
		b.applier(e)
	}
	b.version++
}

// Raise records a new domain event: Apply(e) and enqueue it into the
// pending buffer. A caller that leaves EventID or Timestamp at their zero
// value gets one filled in here: Append's Serializer rejects an event with
// no EventID, and a zero Timestamp would otherwise be stored as is. Call
// Flush to obtain and clear pending events for persistence.
func (b *Base) Raise(e DomainEvent) {
	if e.EventID == "" {
		e.EventID = NewEventID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.Apply(e)
	b.pending = append(b.pending, e)
}

// Flush returns all uncommitted events and clears the pending buffer.
// expectedVersion = currentVersion - len(pendingBeforeFlush), the value
// Append expects as its own expectedVersion argument so the stream is
// rejected with *ConcurrencyError if anything else wrote to it since this
// aggregate was loaded.
func (b *Base) Flush() (events []DomainEvent, expectedVersion int64) {
	events = b.pending
	expectedVersion = b.version - int64(len(events))
	b.pending = nil
	return
}

// Version returns the current aggregate version INCLUDING pending events.
func (b *Base) Version() int64 { return b.version }
