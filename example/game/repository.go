package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/xeonchen/twsoftball-sub000"
)

// codecs is this sample's closed registry of known event types, dispatched
// by StoredEvent.EventType. Unlike the store-internal Serializer (which
// must handle arbitrary, unregistered payloads), application code with a
// fixed event vocabulary can use es.EventCodec this way instead.
var codecs = map[string]es.EventCodec{
	"GameStarted":   es.JSONCodec[GameStarted](),
	"AtBatRecorded": es.JSONCodec[AtBatRecorded](),
}

// GameRepository loads and saves Game aggregates using an EventStore and a
// SnapshotStore. Both are typically the same backend (memstore.Store or
// postgresstore.Store each implement both interfaces).
type GameRepository struct {
	events    es.EventStore
	snapshots es.SnapshotStore
}

// NewGameRepository creates a repository backed by the given store.
func NewGameRepository(events es.EventStore, snapshots es.SnapshotStore) *GameRepository {
	return &GameRepository{events: events, snapshots: snapshots}
}

// Load fetches and rehydrates a Game by its ID: snapshot first, then the
// delta events on top of it.
func (r *GameRepository) Load(ctx context.Context, id string) (*Game, error) {
	g := NewGame(id)

	snap, found, err := r.snapshots.GetSnapshot(ctx, g.StreamID())
	if err != nil {
		return nil, err
	}
	state, ok, err := decodeSnapshot(snap, found)
	if err != nil {
		return nil, err
	}
	if ok {
		g.homeTeam = state.HomeTeam
		g.awayTeam = state.AwayTeam
		g.atBats = state.AtBats
		g.started = state.HomeTeam != "" || state.AwayTeam != ""
		g.SetVersion(state.Version)
	}

	fromVersion := g.Version() + 1
	stored, err := r.events.GetEvents(ctx, g.StreamID(), &fromVersion)
	if err != nil {
		return nil, err
	}
	for _, se := range stored {
		payload, err := decodePayload(se)
		if err != nil {
			return nil, err
		}
		g.Apply(es.DomainEvent{EventID: se.EventID, Type: se.EventType, Timestamp: se.Timestamp, Payload: payload})
	}

	return g, nil
}

// Save persists the aggregate's pending events with optimistic locking.
func (r *GameRepository) Save(ctx context.Context, g *Game) error {
	events, expected := g.Flush()
	if len(events) == 0 {
		return nil
	}
	return r.events.Append(ctx, g.StreamID(), es.AggregateTypeGame, events, &expected)
}

// SaveSnapshot persists the current state as a snapshot, e.g. after every N
// events to bound replay time on Load.
func (r *GameRepository) SaveSnapshot(ctx context.Context, g *Game) error {
	data, err := json.Marshal(serializeState(g))
	if err != nil {
		return err
	}
	return r.snapshots.SaveSnapshot(ctx, es.Snapshot{
		AggregateID:   g.StreamID(),
		AggregateType: es.AggregateTypeGame,
		Version:       g.Version(),
		Data:          string(data),
		Timestamp:     time.Now(),
	})
}

// decodePayload turns a stored event's generic JSON back into the concrete
// payload type its EventType names, dispatching through the codecs
// registry.
func decodePayload(se es.StoredEvent) (any, error) {
	codec, ok := codecs[se.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", se.EventType)
	}
	return codec.Decode([]byte(se.EventData))
}
