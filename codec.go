package eventstore

import (
	"encoding/json"
	"fmt"
)

// EventCodec is a per-event-type encode/decode pair for callers that know
// their closed set of event types ahead of time (e.g. example/game).
// It is distinct from Serializer: Serializer is what EventStore
// implementations use internally to persist arbitrary, unregistered
// payloads; EventCodec is a convenience for application code that wants to
// decode a StoredEvent.EventData back into a concrete Go type by dispatching
// on StoredEvent.EventType.
type EventCodec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// JSONCodec returns a generic EventCodec that (de)serializes T as JSON.
func JSONCodec[T any]() EventCodec {
	return jsonCodec[T]{}
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec[T]) Decode(b []byte) (any, error) {
	var v T
	err := json.Unmarshal(b, &v)
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to decode json: %w", err)
	}
	return v, err
}
