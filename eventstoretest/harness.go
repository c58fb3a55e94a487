// Package eventstoretest is a backend-agnostic compliance suite: any
// EventStore implementation passed through Run is checked against the
// same invariants, boundary behaviors, and scenarios, covering the full
// operation surface rather than a handful of smoke tests.
package eventstoretest

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	es "github.com/xeonchen/twsoftball-sub000"
)

// Factory creates a fresh, isolated EventStore for one (sub)test. Use
// t.Cleanup for teardown if the backend needs it.
type Factory func(t *testing.T) es.EventStore

type gameCreated struct {
	GameID   string `json:"gameId"`
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
}

func (gameCreated) EventType() string { return "GameCreated" }

type atBatCompleted struct {
	GameID string `json:"gameId"`
	Result string `json:"result"`
}

func (atBatCompleted) EventType() string { return "AtBatCompleted" }

type teamLineupCreated struct {
	GameID string `json:"gameId"`
	TeamID string `json:"teamId"`
}

func (teamLineupCreated) EventType() string { return "TeamLineupCreated" }

type inningStateCreated struct {
	GameID    string `json:"gameId"`
	InningNum int    `json:"inningNum"`
}

func (inningStateCreated) EventType() string { return "InningStateCreated" }

type unserializablePayload struct {
	Name string
	Cb   func()
}

func ptr[T any](v T) *T { return &v }

func domainEvent(eventID string, gameID es.GameID, ts time.Time, payload any) es.DomainEvent {
	return es.DomainEvent{EventID: eventID, Timestamp: ts, GameID: gameID, Payload: payload}
}

// uid builds a stream/aggregate id unique to the running subtest by
// incorporating t.Name(), so implementations backed by a single shared
// physical store (e.g. postgresstore against one database) don't see
// cross-talk between subtests running under t.Parallel().
func uid(t *testing.T, base string) string {
	return base + "-" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
}

// Run executes the full compliance suite against newStore. Each top-level
// subtest runs in parallel, so implementations must be concurrency-safe
// across distinct streams; within a subtest, operations against the same
// stream run sequentially since ordering matters to the assertion.
func Run(t *testing.T, newStore Factory) {
	t.Run("basic_append_and_read", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "G1"))
		t0 := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

		err := store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, t0, gameCreated{GameID: g.String(), HomeTeam: "H", AwayTeam: "A"}),
		}, ptr(int64(0)))
		require.NoError(t, err)

		events, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, int64(1), events[0].StreamVersion)
		require.Equal(t, es.AggregateTypeGame, events[0].AggregateType)
		require.Equal(t, "GameCreated", events[0].EventType)
		require.Equal(t, g.String(), events[0].StreamID)
	})

	t.Run("ordering_within_stream", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "G1"))
		t0 := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)
		t1 := t0.Add(time.Minute)

		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, t0, gameCreated{GameID: g.String(), HomeTeam: "H", AwayTeam: "A"}),
		}, ptr(int64(0))))
		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e2", g, t1, atBatCompleted{GameID: g.String(), Result: "single"}),
		}, ptr(int64(1))))

		events, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, int64(1), events[0].StreamVersion)
		require.Equal(t, int64(2), events[1].StreamVersion)
	})

	t.Run("concurrency_conflict_then_retry", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "G1"))
		t0 := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, t0, gameCreated{GameID: g.String(), HomeTeam: "H", AwayTeam: "A"}),
		}, ptr(int64(0))))
		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e2", g, t0.Add(time.Minute), atBatCompleted{GameID: g.String(), Result: "single"}),
		}, ptr(int64(1))))

		err := store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e3", g, t0.Add(2*time.Minute), atBatCompleted{GameID: g.String(), Result: "out"}),
		}, ptr(int64(0)))

		var conflict *es.ConcurrencyError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, int64(0), conflict.ExpectedVersion)
		require.Equal(t, int64(2), conflict.ActualVersion)

		unchanged, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		require.Len(t, unchanged, 2)

		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e3", g, t0.Add(2*time.Minute), atBatCompleted{GameID: g.String(), Result: "out"}),
		}, ptr(int64(2))))

		final, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		require.Len(t, final, 3)
		require.Equal(t, int64(3), final[2].StreamVersion)
	})

	t.Run("cross_aggregate_correlation", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "G1"))
		teamStream := uid(t, "T1")
		inningStream := uid(t, "I1")
		t0 := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, t0, gameCreated{GameID: g.String(), HomeTeam: "H", AwayTeam: "A"}),
		}, ptr(int64(0))))
		require.NoError(t, store.Append(ctx, teamStream, es.AggregateTypeTeamLineup, []es.DomainEvent{
			domainEvent("e2", "", t0.Add(time.Second), teamLineupCreated{GameID: g.String(), TeamID: teamStream}),
		}, ptr(int64(0))))
		require.NoError(t, store.Append(ctx, inningStream, es.AggregateTypeInningState, []es.DomainEvent{
			domainEvent("e3", "", t0.Add(2*time.Second), inningStateCreated{GameID: g.String(), InningNum: 1}),
		}, ptr(int64(0))))

		gameEvents, err := store.GetGameEvents(ctx, g)
		require.NoError(t, err)
		require.Len(t, gameEvents, 3)
		require.True(t, gameEvents[0].Timestamp.Before(gameEvents[1].Timestamp))
		require.True(t, gameEvents[1].Timestamp.Before(gameEvents[2].Timestamp))

		filtered, err := store.GetEventsByGameID(ctx, g, []es.AggregateType{es.AggregateTypeGame, es.AggregateTypeTeamLineup}, nil)
		require.NoError(t, err)
		require.Len(t, filtered, 2)
		for _, e := range filtered {
			require.NotEqual(t, es.AggregateTypeInningState, e.AggregateType)
		}
	})

	t.Run("large_batch_append", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "G5"))
		t0 := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

		batch := make([]es.DomainEvent, 100)
		for i := range batch {
			batch[i] = domainEvent(
				"batch-e"+strconv.Itoa(i),
				g,
				t0.Add(time.Duration(i)*time.Second),
				atBatCompleted{GameID: g.String(), Result: "out"},
			)
		}
		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, batch, ptr(int64(0))))

		events, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		require.Len(t, events, 100)

		seen := make(map[string]bool, 100)
		for i, e := range events {
			require.Equal(t, int64(i+1), e.StreamVersion)
			require.False(t, seen[e.EventID], "duplicate eventId %s", e.EventID)
			seen[e.EventID] = true
		}
	})

	t.Run("rejects_non_serializable_payload", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "G6"))
		err := store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, time.Now(), unserializablePayload{Name: "x", Cb: func() {}}),
		}, ptr(int64(0)))

		var serErr *es.SerializationError
		require.ErrorAs(t, err, &serErr)
		require.Contains(t, serErr.Path, "payload.Cb")

		events, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("boundary_empty_append_is_noop", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)
		streamID := uid(t, "Gnoop")

		require.NoError(t, store.Append(ctx, streamID, es.AggregateTypeGame, nil, nil))
		events, err := store.GetEvents(ctx, streamID, nil)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("boundary_from_version_zero_equals_omitted", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "Gzero"))
		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, time.Now(), gameCreated{GameID: g.String()}),
		}, ptr(int64(0))))

		all, err := store.GetEvents(ctx, g.String(), nil)
		require.NoError(t, err)
		fromZero, err := store.GetEvents(ctx, g.String(), ptr(int64(0)))
		require.NoError(t, err)
		require.Equal(t, all, fromZero)
	})

	t.Run("boundary_from_version_beyond_length_is_empty", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "Gbeyond"))
		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, time.Now(), gameCreated{GameID: g.String()}),
		}, ptr(int64(0))))

		events, err := store.GetEvents(ctx, g.String(), ptr(int64(50)))
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("boundary_get_all_events_future_timestamp_is_empty", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		g := es.GameID(uid(t, "Gfuture"))
		require.NoError(t, store.Append(ctx, g.String(), es.AggregateTypeGame, []es.DomainEvent{
			domainEvent("e1", g, time.Now(), gameCreated{GameID: g.String()}),
		}, ptr(int64(0))))

		future := time.Now().Add(24 * time.Hour)
		events, err := store.GetAllEvents(ctx, &future)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("idempotent_snapshot_save", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)
		aggregateID := uid(t, "G1")

		snap := es.Snapshot{
			AggregateID:   aggregateID,
			AggregateType: es.AggregateTypeGame,
			Version:       2,
			Data:          `{"score":1}`,
			Timestamp:     time.Now(),
		}
		require.NoError(t, store.SaveSnapshot(ctx, snap))
		require.NoError(t, store.SaveSnapshot(ctx, snap))

		got, found, err := store.GetSnapshot(ctx, aggregateID)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, snap.Version, got.Version)
		require.Equal(t, snap.Data, got.Data)
	})

	t.Run("missing_snapshot_not_found", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)

		_, found, err := store.GetSnapshot(ctx, uid(t, "does-not-exist"))
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("parameter_validation", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		store := newStore(t)
		streamID := uid(t, "G1")

		var paramErr *es.ParameterError

		err := store.Append(ctx, "", es.AggregateTypeGame, nil, nil)
		require.ErrorAs(t, err, &paramErr)

		err = store.Append(ctx, streamID, es.AggregateType("Bogus"), nil, nil)
		require.ErrorAs(t, err, &paramErr)

		_, err = store.GetEvents(ctx, streamID, ptr(int64(-1)))
		require.ErrorAs(t, err, &paramErr)

		_, err = store.GetGameEvents(ctx, es.GameID(""))
		require.ErrorAs(t, err, &paramErr)
	})
}
