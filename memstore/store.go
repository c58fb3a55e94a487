// Package memstore is an in-memory EventStore + SnapshotStore. It is
// concurrency-safe and suitable for tests, prototypes, and local runs.
//
// A single sync.RWMutex guards one stream map and one snapshot map, plus a
// flat, acceptance-ordered slice of all events that the cross-stream
// queries scan over.
//
// NOTE: events and snapshots are kept in-process and are lost on restart.
package memstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	es "github.com/xeonchen/twsoftball-sub000"
)

type record struct {
	event    es.StoredEvent
	sequence int64 // global acceptance order, breaks timestamp ties across streams
}

// Store is an in-memory EventStore and SnapshotStore.
type Store struct {
	mu         sync.RWMutex
	streams    map[string][]record
	all        []record
	snapshots  map[string]es.Snapshot
	nextSeq    int64
	serializer es.Serializer
	extractor  es.ProvenanceExtractor
	source     string
	logger     *slog.Logger
}

// Option configures the in-memory Store.
type Option func(*Store)

// WithProvenanceExtractor sets a function that builds Provenance from
// context. When provided, Append copies the extracted CorrelationID,
// CausationID and UserID into every stored event; Append takes no explicit
// Provenance argument.
func WithProvenanceExtractor(ex es.ProvenanceExtractor) Option {
	return func(s *Store) { s.extractor = ex }
}

// WithSource overrides metadata.source (default "memstore").
func WithSource(source string) Option {
	return func(s *Store) { s.source = source }
}

// WithSerializer overrides the Serializer used to encode event payloads
// (default es.NewJSONSerializer with the Store's logger).
func WithSerializer(serializer es.Serializer) Option {
	return func(s *Store) { s.serializer = serializer }
}

// WithLogger sets the structured logger used for warnings (e.g. the
// gameId extraction fallback). Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a new in-memory Store.
func New(opts ...Option) *Store {
	st := &Store{
		streams:   make(map[string][]record),
		snapshots: make(map[string]es.Snapshot),
		source:    "memstore",
	}
	for _, opt := range opts {
		opt(st)
	}
	if st.logger == nil {
		st.logger = slog.Default()
	}
	if st.serializer == nil {
		st.serializer = es.NewJSONSerializer(st.logger)
	}
	return st
}

// Append implements es.EventStore.
func (s *Store) Append(
	ctx context.Context,
	streamID string,
	aggregateType es.AggregateType,
	events []es.DomainEvent,
	expectedVersion *int64,
) error {
	if streamID == "" {
		return &es.ParameterError{Field: "streamId", Reason: "must not be empty"}
	}
	if !aggregateType.Valid() {
		return &es.ParameterError{Field: "aggregateType", Reason: "must be one of Game, TeamLineup, InningState"}
	}

	if len(events) == 0 && expectedVersion == nil {
		// An empty batch with no version to check is a pure no-op; skip locking entirely.
		return nil
	}

	// Every event must encode successfully before any I/O or concurrency
	// check is attempted.
	var prov es.Provenance
	if s.extractor != nil {
		prov = s.extractor(ctx)
	}
	now := time.Now()
	encoded := make([]es.StoredEvent, len(events))
	for i, e := range events {
		data, version, err := s.serializer.Encode(e)
		if err != nil {
			return err
		}
		gameID, _ := s.serializer.ExtractGameID(e.Payload)
		if gameID == "" {
			gameID = e.GameID.String()
		}
		encoded[i] = es.StoredEvent{
			EventID:       e.EventID,
			StreamID:      streamID,
			AggregateType: aggregateType,
			EventType:     e.ResolvedType(),
			EventData:     data,
			EventVersion:  version,
			Timestamp:     e.Timestamp,
			Metadata: es.Metadata{
				Source:        s.source,
				CreatedAt:     now,
				CorrelationID: prov.CorrelationID,
				CausationID:   prov.CausationID,
				UserID:        prov.UserID,
				GameID:        gameID,
			},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.streams[streamID]
	currentVersion := int64(len(seq))

	if expectedVersion != nil && *expectedVersion != currentVersion {
		return &es.ConcurrencyError{StreamID: streamID, ExpectedVersion: *expectedVersion, ActualVersion: currentVersion}
	}

	// Atomic write step: assign StreamVersion and acceptance sequence only
	// now that every check has passed; commit all events or none.
	built := make([]record, len(encoded))
	for i, se := range encoded {
		se.StreamVersion = currentVersion + int64(i) + 1
		s.nextSeq++
		built[i] = record{event: se, sequence: s.nextSeq}
	}
	seq = append(seq, built...)
	s.streams[streamID] = seq
	s.all = append(s.all, built...)

	return nil
}

// GetEvents implements es.EventStore.
func (s *Store) GetEvents(_ context.Context, streamID string, fromVersion *int64) ([]es.StoredEvent, error) {
	from, err := normalizeFromVersion(fromVersion)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.streams[streamID]
	out := make([]es.StoredEvent, 0)
	for _, r := range seq {
		if r.event.StreamVersion >= from {
			out = append(out, r.event)
		}
	}
	return out, nil
}

// GetGameEvents implements es.EventStore.
func (s *Store) GetGameEvents(_ context.Context, gameID es.GameID) ([]es.StoredEvent, error) {
	if gameID == "" {
		return nil, &es.ParameterError{Field: "gameId", Reason: "must not be empty"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanChronological(func(r record) bool {
		return r.event.Metadata.GameID == gameID.String()
	}), nil
}

// GetAllEvents implements es.EventStore.
func (s *Store) GetAllEvents(_ context.Context, fromTimestamp *time.Time) ([]es.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanChronological(func(r record) bool {
		return fromTimestamp == nil || !r.event.Timestamp.Before(*fromTimestamp)
	}), nil
}

// GetEventsByType implements es.EventStore.
func (s *Store) GetEventsByType(_ context.Context, eventType string, fromTimestamp *time.Time) ([]es.StoredEvent, error) {
	if eventType == "" {
		return nil, &es.ParameterError{Field: "eventType", Reason: "must not be empty"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanChronological(func(r record) bool {
		return r.event.EventType == eventType && (fromTimestamp == nil || !r.event.Timestamp.Before(*fromTimestamp))
	}), nil
}

// GetEventsByGameID implements es.EventStore.
func (s *Store) GetEventsByGameID(_ context.Context, gameID es.GameID, aggregateTypes []es.AggregateType, fromTimestamp *time.Time) ([]es.StoredEvent, error) {
	if gameID == "" {
		return nil, &es.ParameterError{Field: "gameId", Reason: "must not be empty"}
	}

	typeSet := make(map[es.AggregateType]bool, len(aggregateTypes))
	for _, t := range aggregateTypes {
		typeSet[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanChronological(func(r record) bool {
		if r.event.Metadata.GameID != gameID.String() {
			return false
		}
		if len(typeSet) > 0 && !typeSet[r.event.AggregateType] {
			return false
		}
		return fromTimestamp == nil || !r.event.Timestamp.Before(*fromTimestamp)
	}), nil
}

// scanChronological filters s.all by predicate and sorts the result by
// Timestamp, breaking ties by global acceptance sequence. Acceptance
// sequence alone is sufficient to break ties correctly since it is itself
// assigned in per-stream StreamVersion order.
func (s *Store) scanChronological(predicate func(record) bool) []es.StoredEvent {
	matched := make([]record, 0)
	for _, r := range s.all {
		if predicate(r) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].event.Timestamp.Equal(matched[j].event.Timestamp) {
			return matched[i].event.Timestamp.Before(matched[j].event.Timestamp)
		}
		return matched[i].sequence < matched[j].sequence
	})

	out := make([]es.StoredEvent, len(matched))
	for i, r := range matched {
		out[i] = r.event
	}
	return out
}

// SaveSnapshot implements es.SnapshotStore.
func (s *Store) SaveSnapshot(_ context.Context, snap es.Snapshot) error {
	if snap.AggregateID == "" {
		return &es.ParameterError{Field: "aggregateId", Reason: "must not be empty"}
	}
	if !snap.AggregateType.Valid() {
		return &es.ParameterError{Field: "aggregateType", Reason: "must be one of Game, TeamLineup, InningState"}
	}
	if snap.Version < 0 {
		return &es.ParameterError{Field: "version", Reason: "must be non-negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.AggregateID] = snap
	return nil
}

// GetSnapshot implements es.SnapshotStore.
func (s *Store) GetSnapshot(_ context.Context, aggregateID string) (es.Snapshot, bool, error) {
	if aggregateID == "" {
		return es.Snapshot{}, false, &es.ParameterError{Field: "aggregateId", Reason: "must not be empty"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[aggregateID]
	return snap, ok, nil
}

func normalizeFromVersion(fromVersion *int64) (int64, error) {
	if fromVersion == nil {
		return 1, nil
	}
	v := *fromVersion
	if v < 0 {
		return 0, &es.ParameterError{Field: "fromVersion", Reason: "must not be negative"}
	}
	if v == 0 {
		// Treated the same as omitted: both mean "from the beginning".
		return 1, nil
	}
	return v, nil
}

var (
	_ es.EventStore    = (*Store)(nil)
	_ es.SnapshotStore = (*Store)(nil)
)
