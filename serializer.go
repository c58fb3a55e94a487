package eventstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"
)

// Serializer is the bidirectional mapping between a DomainEvent and its
// textual payload. Implementations must validate serializability before
// encoding and must be able to locate the correlating game identifier
// inside an arbitrary, unregistered payload shape.
type Serializer interface {
	// Encode produces the textual eventData and numeric eventVersion for e.
	// It fails with *SerializationError if e.Payload contains a value that
	// cannot round-trip (a func/chan, a cyclic reference) or if e is missing
	// an essential property (EventID, resolved Type).
	Encode(e DomainEvent) (data string, version int, err error)

	// Decode is the inverse of Encode: given the eventType, the encoded
	// data, and its eventVersion, it reconstructs the payload as a generic
	// structure (map[string]any for object payloads). It fails with
	// *SerializationError on malformed input.
	Decode(eventType string, data string, version int) (any, error)

	// ExtractGameID inspects payload for a correlating game identifier,
	// searching (in order) a top-level gameId field, then aggregateId,
	// then any field whose name contains "gameid" case-insensitively.
	// Each candidate may itself be a string or a struct/map exposing a
	// "value" field. Returns ok=false if nothing is found.
	ExtractGameID(payload any) (id string, ok bool)
}

// NewJSONSerializer returns the store's default Serializer: JSON-encoded
// payloads with a reflection-based pre-encode validity walk. logger may be
// nil, in which case slog.Default() is used — following
// plaenen-eventstore's pkg/runner "nil logger falls back to default"
// convention.
func NewJSONSerializer(logger *slog.Logger) Serializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &jsonSerializer{logger: logger}
}

type jsonSerializer struct {
	logger *slog.Logger
}

const currentEventVersion = 1

func (s *jsonSerializer) Encode(e DomainEvent) (string, int, error) {
	typ := e.ResolvedType()
	if e.EventID == "" {
		return "", 0, &SerializationError{EventType: typ, Err: fmt.Errorf("event is missing eventId")}
	}
	if typ == "" {
		return "", 0, &SerializationError{EventType: typ, Err: fmt.Errorf("event is missing type")}
	}

	if path, bad := firstUnserializable(reflect.ValueOf(e.Payload), "payload", map[uintptr]bool{}); bad {
		return "", 0, &SerializationError{EventType: typ, Path: path, Err: fmt.Errorf("value at %s cannot be serialized", path)}
	}

	data, err := json.Marshal(e.Payload)
	if err != nil {
		return "", 0, &SerializationError{EventType: typ, Err: err}
	}
	return string(data), currentEventVersion, nil
}

func (s *jsonSerializer) Decode(eventType string, data string, version int) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, &SerializationError{EventType: eventType, Err: err}
	}
	return out, nil
}

// firstUnserializable walks v depth-first looking for funcs, channels,
// unsafe pointers, or a cycle through pointers, maps or slices. It returns
// the dotted path to the first offending value found and bad=true, or
// ("", false) if v is clean. visited tracks the addresses of pointers, maps
// and non-empty slices seen on the current path so a cycle is detected
// rather than followed forever.
func firstUnserializable(v reflect.Value, path string, visited map[uintptr]bool) (string, bool) {
	if !v.IsValid() {
		return "", false
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return path, true

	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return "", false
		}
		if v.Kind() == reflect.Ptr {
			addr := v.Pointer()
			if visited[addr] {
				return path, true
			}
			visited[addr] = true
			defer delete(visited, addr)
		}
		return firstUnserializable(v.Elem(), path, visited)

	case reflect.Map:
		addr := v.Pointer()
		if visited[addr] {
			return path, true
		}
		visited[addr] = true
		defer delete(visited, addr)
		iter := v.MapRange()
		for iter.Next() {
			childPath := fmt.Sprintf("%s.%v", path, iter.Key().Interface())
			if p, bad := firstUnserializable(iter.Value(), childPath, visited); bad {
				return p, true
			}
		}
		return "", false

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Len() > 0 {
			addr := v.Pointer()
			if visited[addr] {
				return path, true
			}
			visited[addr] = true
			defer delete(visited, addr)
		}
		for i := 0; i < v.Len(); i++ {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if p, bad := firstUnserializable(v.Index(i), childPath, visited); bad {
				return p, true
			}
		}
		return "", false

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			childPath := fmt.Sprintf("%s.%s", path, f.Name)
			if p, bad := firstUnserializable(v.Field(i), childPath, visited); bad {
				return p, true
			}
		}
		return "", false

	default:
		return "", false
	}
}

func (s *jsonSerializer) ExtractGameID(payload any) (string, bool) {
	if id, ok := lookupStringField(payload, "gameid"); ok {
		return id, true
	}
	if id, ok := lookupStringField(payload, "aggregateid"); ok {
		return id, true
	}
	if id, ok := lookupFieldContaining(payload, "gameid"); ok {
		s.logger.Warn("extracted gameId via best-effort substring fallback",
			slog.String("payload_type", fmt.Sprintf("%T", payload)))
		return id, true
	}
	return "", false
}

// lookupStringField looks for a field (struct) or key (map) matching name
// case-insensitively and exactly, unwrapping a {value: "..."} shape.
func lookupStringField(payload any, name string) (string, bool) {
	return lookupField(payload, func(candidate string) bool {
		return strings.EqualFold(candidate, name)
	})
}

// lookupFieldContaining is the Open-Question-(a) heuristic fallback: any
// field/key whose name contains the substring, case-insensitively.
func lookupFieldContaining(payload any, substr string) (string, bool) {
	return lookupField(payload, func(candidate string) bool {
		return strings.Contains(strings.ToLower(candidate), substr)
	})
}

func lookupField(payload any, match func(name string) bool) (string, bool) {
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || !match(f.Name) {
				continue
			}
			if id, ok := unwrapIDValue(v.Field(i).Interface()); ok {
				return id, true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			if !match(key) {
				continue
			}
			if id, ok := unwrapIDValue(iter.Value().Interface()); ok {
				return id, true
			}
		}
	}
	return "", false
}

// unwrapIDValue accepts either a bare string (or named string type, e.g.
// GameID) or a struct/map exposing a "value"/"Value" field.
func unwrapIDValue(raw any) (string, bool) {
	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		s := v.String()
		if s == "" {
			return "", false
		}
		return s, true
	}
	if inner, ok := lookupStringField(raw, "value"); ok {
		return inner, true
	}
	return "", false
}

// EncodeTimestamp renders t as the ISO-8601 string the store persists.
func EncodeTimestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// DecodeTimestamp accepts either a time.Time or a parseable ISO-8601 string,
// failing with *SerializationError otherwise.
func DecodeTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			if t2, err2 := time.Parse(time.RFC3339, v); err2 == nil {
				return t2, nil
			}
			return time.Time{}, &SerializationError{Err: fmt.Errorf("invalid ISO-8601 timestamp %q: %w", v, err)}
		}
		return t, nil
	default:
		return time.Time{}, &SerializationError{Err: fmt.Errorf("timestamp must be a date or ISO-8601 string, got %T", raw)}
	}
}
