package eventstoretest

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	es "github.com/xeonchen/twsoftball-sub000"
)

// RunProperties runs pgregory.net/rapid property checks against newStore,
// exercising three invariants across randomly generated inputs: contiguity
// of streamVersion, round-trip preservation through Encode then Decode, and
// the concurrency check "succeeds iff expectedVersion equals current
// length". Built on rapid.Check, rapid.IntRange and rapid.StringMatching;
// each check runs as its own t.Parallel() subtest.
func RunProperties(t *testing.T, newStore Factory) {
	t.Run("property_contiguous_stream_versions", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(rt *rapid.T) {
			ctx := t.Context()
			store := newStore(t)
			streamID := "prop-contig-" + rapid.StringMatching(`[a-zA-Z0-9]{1,8}`).Draw(rt, "streamID")

			n := rapid.IntRange(1, 30).Draw(rt, "n")
			var expected int64
			now := time.Now()
			for i := 0; i < n; i++ {
				batch := rapid.IntRange(1, 5).Draw(rt, "batchSize")
				events := make([]es.DomainEvent, batch)
				for j := range events {
					events[j] = es.DomainEvent{
						EventID:   rapid.StringMatching(`[a-f0-9-]{8,36}`).Draw(rt, "eventID"),
						Timestamp: now.Add(time.Duration(i*5+j) * time.Millisecond),
						GameID:    es.GameID(streamID),
						Payload:   atBatCompleted{GameID: streamID, Result: "out"},
					}
				}
				err := store.Append(ctx, streamID, es.AggregateTypeGame, events, ptr(expected))
				if err != nil {
					rt.Fatalf("append failed at batch %d: %v", i, err)
				}
				expected += int64(batch)
			}

			got, err := store.GetEvents(ctx, streamID, nil)
			if err != nil {
				rt.Fatalf("getEvents failed: %v", err)
			}
			if int64(len(got)) != expected {
				rt.Fatalf("expected %d events, got %d", expected, len(got))
			}
			for i, e := range got {
				if e.StreamVersion != int64(i+1) {
					rt.Fatalf("non-contiguous streamVersion at index %d: got %d, want %d", i, e.StreamVersion, i+1)
				}
			}
		})
	})

	t.Run("property_concurrency_check_succeeds_iff_version_matches", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(rt *rapid.T) {
			ctx := t.Context()
			store := newStore(t)
			streamID := "prop-conc-" + rapid.StringMatching(`[a-zA-Z0-9]{1,8}`).Draw(rt, "streamID")

			current := rapid.IntRange(0, 10).Draw(rt, "current")
			for i := 0; i < current; i++ {
				err := store.Append(ctx, streamID, es.AggregateTypeGame, []es.DomainEvent{
					{EventID: rapid.StringMatching(`[a-f0-9-]{8,36}`).Draw(rt, "seedEventID"), Timestamp: time.Now(), GameID: es.GameID(streamID), Payload: atBatCompleted{GameID: streamID, Result: "out"}},
				}, ptr(int64(i)))
				if err != nil {
					rt.Fatalf("seed append failed: %v", err)
				}
			}

			claimed := rapid.IntRange(0, 15).Draw(rt, "claimedExpectedVersion")
			err := store.Append(ctx, streamID, es.AggregateTypeGame, []es.DomainEvent{
				{EventID: rapid.StringMatching(`[a-f0-9-]{8,36}`).Draw(rt, "attemptEventID"), Timestamp: time.Now(), GameID: es.GameID(streamID), Payload: atBatCompleted{GameID: streamID, Result: "out"}},
			}, ptr(int64(claimed)))

			if claimed == current {
				if err != nil {
					rt.Fatalf("expected success when claimed==current==%d, got %v", current, err)
				}
			} else {
				var conflict *es.ConcurrencyError
				if err == nil {
					rt.Fatalf("expected ConcurrencyError when claimed=%d != current=%d, got nil", claimed, current)
				}
				if !errors.As(err, &conflict) {
					rt.Fatalf("expected ConcurrencyError, got %v", err)
				}
			}
		})
	})

	t.Run("property_round_trip_preserves_core_fields", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(rt *rapid.T) {
			serializer := es.NewJSONSerializer(nil)

			payload := atBatCompleted{
				GameID: rapid.StringMatching(`[a-zA-Z0-9]{1,8}`).Draw(rt, "gameID"),
				Result: rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "result"),
			}
			e := es.DomainEvent{
				EventID:   rapid.StringMatching(`[a-f0-9-]{8,36}`).Draw(rt, "eventID"),
				Timestamp: time.Now().Truncate(time.Millisecond),
				GameID:    es.GameID(payload.GameID),
				Payload:   payload,
			}

			data, version, err := serializer.Encode(e)
			if err != nil {
				rt.Fatalf("encode failed: %v", err)
			}

			decoded, err := serializer.Decode(e.ResolvedType(), data, version)
			if err != nil {
				rt.Fatalf("decode failed: %v", err)
			}

			fields, ok := decoded.(map[string]any)
			if !ok {
				rt.Fatalf("expected decoded payload to be a map, got %T", decoded)
			}
			if fields["gameId"] != payload.GameID {
				rt.Fatalf("gameId not preserved: got %v, want %v", fields["gameId"], payload.GameID)
			}
			if fields["result"] != payload.Result {
				rt.Fatalf("result not preserved: got %v, want %v", fields["result"], payload.Result)
			}
		})
	})
}
