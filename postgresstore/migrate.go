package postgresstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	es "github.com/xeonchen/twsoftball-sub000"
)

// Migrate creates the events and snapshots tables and their indices if they
// do not already exist. It is idempotent and safe to call on every process
// start; plain DDL is enough here since no schema versioning is required.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id       TEXT PRIMARY KEY,
			stream_id      TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			event_type     TEXT NOT NULL,
			event_data     TEXT NOT NULL,
			event_version  INT NOT NULL,
			stream_version BIGINT NOT NULL,
			"timestamp"    TIMESTAMPTZ NOT NULL,
			source         TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			correlation_id TEXT NOT NULL DEFAULT '',
			causation_id   TEXT NOT NULL DEFAULT '',
			user_id        TEXT NOT NULL DEFAULT '',
			game_id        TEXT NOT NULL DEFAULT '',
			sequence       BIGSERIAL,
			UNIQUE (stream_id, stream_version)
		)`,
		`CREATE INDEX IF NOT EXISTS events_stream_id_idx ON events (stream_id)`,
		`CREATE INDEX IF NOT EXISTS events_aggregate_type_idx ON events (aggregate_type)`,
		`CREATE INDEX IF NOT EXISTS events_event_type_idx ON events (event_type)`,
		`CREATE INDEX IF NOT EXISTS events_timestamp_idx ON events ("timestamp")`,
		`CREATE INDEX IF NOT EXISTS events_game_id_idx ON events (game_id)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			aggregate_id   TEXT PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			version        BIGINT NOT NULL,
			data           TEXT NOT NULL,
			"timestamp"    TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return &es.BackendSchemaError{Op: "migrate", Err: fmt.Errorf("%s: %w", stmt, err)}
		}
	}
	return nil
}
