// Package postgresstore is a PostgreSQL-backed EventStore + SnapshotStore.
//
// A single transaction scopes the version check and the per-event inserts
// so a batch commits atomically or not at all, extended with the five
// cross-stream and by-type query shapes the domain needs and with otel
// tracing spans wrapping every store operation.
package postgresstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	es "github.com/xeonchen/twsoftball-sub000"
)

// Store is a PostgreSQL-backed EventStore and SnapshotStore.
type Store struct {
	pool       *pgxpool.Pool
	tracer     trace.Tracer
	serializer es.Serializer
	extractor  es.ProvenanceExtractor
	source     string
	logger     *slog.Logger
}

// Option configures Store.
type Option func(*Store)

// WithProvenanceExtractor sets a function that builds Provenance from
// context. Append copies the extracted CorrelationID, CausationID and UserID
// into every stored event; it takes no explicit Provenance argument.
func WithProvenanceExtractor(ex es.ProvenanceExtractor) Option {
	return func(s *Store) { s.extractor = ex }
}

// WithSource overrides metadata.source (default "postgresstore").
func WithSource(source string) Option {
	return func(s *Store) { s.source = source }
}

// WithSerializer overrides the Serializer used to encode event payloads.
func WithSerializer(serializer es.Serializer) Option {
	return func(s *Store) { s.serializer = serializer }
}

// WithLogger sets the structured logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTracer overrides the otel Tracer (default: otel.Tracer("eventstore/postgresstore")).
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) { s.tracer = tracer }
}

// New creates a Postgres-backed Store. Call Migrate once before first use.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		source: "postgresstore",
		tracer: otel.Tracer("eventstore/postgresstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.serializer == nil {
		s.serializer = es.NewJSONSerializer(s.logger)
	}
	return s
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
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.append",
		trace.WithAttributes(
			attribute.String("stream.id", streamID),
			attribute.String("aggregate.type", aggregateType.String()),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	var prov es.Provenance
	if s.extractor != nil {
		prov = s.extractor(ctx)
	}
	now := time.Now()

	type pending struct {
		event  es.DomainEvent
		data   string
		ver    int
		gameID string
	}
	built := make([]pending, len(events))
	for i, e := range events {
		data, ver, err := s.serializer.Encode(e)
		if err != nil {
			span.RecordError(err)
			return err
		}
		gameID, _ := s.serializer.ExtractGameID(e.Payload)
		if gameID == "" {
			gameID = e.GameID.String()
		}
		built[i] = pending{event: e, data: data, ver: ver, gameID: gameID}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		err = &es.BackendConnectionError{Op: "begin transaction", Err: err}
		span.RecordError(err)
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var currentVersion int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(stream_version), 0) FROM events WHERE stream_id = $1`,
		streamID,
	).Scan(&currentVersion); err != nil {
		err = &es.BackendOperationError{Op: "select current version", Err: err}
		span.RecordError(err)
		return err
	}

	if expectedVersion != nil && *expectedVersion != currentVersion {
		err := &es.ConcurrencyError{StreamID: streamID, ExpectedVersion: *expectedVersion, ActualVersion: currentVersion}
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return err
	}

	for i, p := range built {
		currentVersion++
		if _, err := tx.Exec(ctx,
			`INSERT INTO events (
				event_id, stream_id, aggregate_type, event_type, event_data,
				event_version, stream_version, "timestamp", source, created_at,
				correlation_id, causation_id, user_id, game_id
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			p.event.EventID, streamID, aggregateType.String(), p.event.ResolvedType(), p.data,
			p.ver, currentVersion, p.event.Timestamp, s.source, now,
			prov.CorrelationID, prov.CausationID, prov.UserID, p.gameID,
		); err != nil {
			if isUniqueViolation(err) {
				err = &es.ConcurrencyError{StreamID: streamID, ExpectedVersion: currentVersion - 1, ActualVersion: currentVersion}
			} else {
				err = &es.BackendOperationError{Op: fmt.Sprintf("insert event %d", i), Err: err}
			}
			span.RecordError(err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		err = &es.BackendOperationError{Op: "commit transaction", Err: err}
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

const selectColumns = `event_id, stream_id, aggregate_type, event_type, event_data, event_version, stream_version, "timestamp", source, created_at, correlation_id, causation_id, user_id, game_id`

func scanStoredEvents(rows pgx.Rows) ([]es.StoredEvent, error) {
	out := make([]es.StoredEvent, 0)
	for rows.Next() {
		var (
			se            es.StoredEvent
			aggregateType string
		)
		if err := rows.Scan(
			&se.EventID, &se.StreamID, &aggregateType, &se.EventType, &se.EventData,
			&se.EventVersion, &se.StreamVersion, &se.Timestamp, &se.Metadata.Source, &se.Metadata.CreatedAt,
			&se.Metadata.CorrelationID, &se.Metadata.CausationID, &se.Metadata.UserID, &se.Metadata.GameID,
		); err != nil {
			return nil, &es.BackendOperationError{Op: "scan event", Err: err}
		}
		se.AggregateType = es.AggregateType(aggregateType)
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, &es.BackendOperationError{Op: "iterate events", Err: err}
	}
	return out, nil
}

// GetEvents implements es.EventStore.
func (s *Store) GetEvents(ctx context.Context, streamID string, fromVersion *int64) ([]es.StoredEvent, error) {
	from, err := normalizeFromVersion(fromVersion)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.get_events", trace.WithAttributes(attribute.String("stream.id", streamID)))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM events WHERE stream_id = $1 AND stream_version >= $2 ORDER BY stream_version ASC`,
		streamID, from,
	)
	if err != nil {
		err = &es.BackendOperationError{Op: "query events", Err: err}
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// GetGameEvents implements es.EventStore.
func (s *Store) GetGameEvents(ctx context.Context, gameID es.GameID) ([]es.StoredEvent, error) {
	if gameID == "" {
		return nil, &es.ParameterError{Field: "gameId", Reason: "must not be empty"}
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.get_game_events", trace.WithAttributes(attribute.String("game.id", gameID.String())))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM events WHERE game_id = $1 ORDER BY "timestamp" ASC, sequence ASC`,
		gameID.String(),
	)
	if err != nil {
		err = &es.BackendOperationError{Op: "query game events", Err: err}
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// GetAllEvents implements es.EventStore.
func (s *Store) GetAllEvents(ctx context.Context, fromTimestamp *time.Time) ([]es.StoredEvent, error) {
	ctx, span := s.tracer.Start(ctx, "postgresstore.get_all_events")
	defer span.End()

	from := earliestPossible()
	if fromTimestamp != nil {
		from = *fromTimestamp
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM events WHERE "timestamp" >= $1 ORDER BY "timestamp" ASC, sequence ASC`,
		from,
	)
	if err != nil {
		err = &es.BackendOperationError{Op: "query all events", Err: err}
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// GetEventsByType implements es.EventStore.
func (s *Store) GetEventsByType(ctx context.Context, eventType string, fromTimestamp *time.Time) ([]es.StoredEvent, error) {
	if eventType == "" {
		return nil, &es.ParameterError{Field: "eventType", Reason: "must not be empty"}
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.get_events_by_type", trace.WithAttributes(attribute.String("event.type", eventType)))
	defer span.End()

	from := earliestPossible()
	if fromTimestamp != nil {
		from = *fromTimestamp
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM events WHERE event_type = $1 AND "timestamp" >= $2 ORDER BY "timestamp" ASC, sequence ASC`,
		eventType, from,
	)
	if err != nil {
		err = &es.BackendOperationError{Op: "query events by type", Err: err}
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// GetEventsByGameID implements es.EventStore.
func (s *Store) GetEventsByGameID(ctx context.Context, gameID es.GameID, aggregateTypes []es.AggregateType, fromTimestamp *time.Time) ([]es.StoredEvent, error) {
	if gameID == "" {
		return nil, &es.ParameterError{Field: "gameId", Reason: "must not be empty"}
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.get_events_by_game_id", trace.WithAttributes(attribute.String("game.id", gameID.String())))
	defer span.End()

	from := earliestPossible()
	if fromTimestamp != nil {
		from = *fromTimestamp
	}

	types := make([]string, len(aggregateTypes))
	for i, t := range aggregateTypes {
		types[i] = t.String()
	}

	query := `SELECT ` + selectColumns + ` FROM events WHERE game_id = $1 AND "timestamp" >= $2`
	args := []any{gameID.String(), from}
	if len(types) > 0 {
		query += ` AND aggregate_type = ANY($3)`
		args = append(args, types)
	}
	query += ` ORDER BY "timestamp" ASC, sequence ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		err = &es.BackendOperationError{Op: "query events by game id", Err: err}
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// SaveSnapshot implements es.SnapshotStore.
func (s *Store) SaveSnapshot(ctx context.Context, snap es.Snapshot) error {
	if snap.AggregateID == "" {
		return &es.ParameterError{Field: "aggregateId", Reason: "must not be empty"}
	}
	if !snap.AggregateType.Valid() {
		return &es.ParameterError{Field: "aggregateType", Reason: "must be one of Game, TeamLineup, InningState"}
	}
	if snap.Version < 0 {
		return &es.ParameterError{Field: "version", Reason: "must be non-negative"}
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.save_snapshot", trace.WithAttributes(attribute.String("aggregate.id", snap.AggregateID)))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (aggregate_id, aggregate_type, version, data, "timestamp")
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (aggregate_id) DO UPDATE
		 SET aggregate_type = EXCLUDED.aggregate_type,
		     version = EXCLUDED.version,
		     data = EXCLUDED.data,
		     "timestamp" = EXCLUDED."timestamp"`,
		snap.AggregateID, snap.AggregateType.String(), snap.Version, snap.Data, snap.Timestamp,
	)
	if err != nil {
		err = &es.BackendOperationError{Op: "save snapshot", Err: err}
		span.RecordError(err)
		return err
	}
	return nil
}

// GetSnapshot implements es.SnapshotStore.
func (s *Store) GetSnapshot(ctx context.Context, aggregateID string) (es.Snapshot, bool, error) {
	if aggregateID == "" {
		return es.Snapshot{}, false, &es.ParameterError{Field: "aggregateId", Reason: "must not be empty"}
	}

	ctx, span := s.tracer.Start(ctx, "postgresstore.get_snapshot", trace.WithAttributes(attribute.String("aggregate.id", aggregateID)))
	defer span.End()

	var (
		snap          es.Snapshot
		aggregateType string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT aggregate_id, aggregate_type, version, data, "timestamp" FROM snapshots WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&snap.AggregateID, &aggregateType, &snap.Version, &snap.Data, &snap.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return es.Snapshot{}, false, nil
		}
		err = &es.BackendOperationError{Op: "get snapshot", Err: err}
		span.RecordError(err)
		return es.Snapshot{}, false, err
	}
	snap.AggregateType = es.AggregateType(aggregateType)
	return snap, true, nil
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
		return 1, nil
	}
	return v, nil
}

func earliestPossible() time.Time { return time.Time{} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ es.EventStore    = (*Store)(nil)
	_ es.SnapshotStore = (*Store)(nil)
)
