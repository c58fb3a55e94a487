package eventstore

import (
	"fmt"
	"time"
)

// DomainEvent is the input to Append: an immutable record carrying identity,
// a type tag, emission time, the correlating game identifier, and a
// type-specific payload. The store is payload-agnostic; it relies only on
// these four fields plus whatever ExtractGameID can find inside Payload.
type DomainEvent struct {
	// EventID is an opaque, store-wide-unique string, normally uuid.NewString().
	EventID string
	// Type names the event kind, e.g. "GameCreated", "AtBatCompleted".
	// If empty, EventType(Payload) supplies it.
	Type string
	// Timestamp is the moment the event was emitted by its aggregate.
	Timestamp time.Time
	// GameID correlates this event to the game it belongs to, whether it
	// was emitted by the Game aggregate directly or by TeamLineup/InningState.
	GameID GameID
	// Payload carries the type-specific fields. Any concrete struct is
	// accepted; implementing `EventType() string` lets Type be omitted.
	Payload any
}

// EventType returns the canonical type name for a domain event's payload.
// If the payload implements `EventType() string`, that value wins; otherwise
// the Go type name is used as a fallback (e.g. "main.AccountOpened").
func EventType(payload any) string {
	if named, ok := payload.(interface{ EventType() string }); ok {
		return named.EventType()
	}
	return fmt.Sprintf("%T", payload)
}

// ResolvedType returns e.Type if set, else EventType(e.Payload).
func (e DomainEvent) ResolvedType() string {
	if e.Type != "" {
		return e.Type
	}
	return EventType(e.Payload)
}
