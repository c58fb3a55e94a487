package main

import (
	"encoding/json"

	es "github.com/xeonchen/twsoftball-sub000"
)

// GameSnapshot is the persisted state shape stored in snapshots.
type GameSnapshot struct {
	ID       string `json:"id"`
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
	AtBats   int    `json:"atBats"`
	Version  int64  `json:"version"`
}

// serializeState converts the in-memory aggregate into a persistable snapshot.
func serializeState(g *Game) GameSnapshot {
	return GameSnapshot{
		ID:       g.StreamID(),
		HomeTeam: g.homeTeam,
		AwayTeam: g.awayTeam,
		AtBats:   g.atBats,
		Version:  g.Version(),
	}
}

// decodeSnapshot turns a found es.Snapshot's textual Data back into a
// GameSnapshot. ok is false if no snapshot was found.
func decodeSnapshot(snap es.Snapshot, found bool) (GameSnapshot, bool, error) {
	if !found {
		return GameSnapshot{}, false, nil
	}
	var out GameSnapshot
	if err := json.Unmarshal([]byte(snap.Data), &out); err != nil {
		return GameSnapshot{}, false, err
	}
	return out, true, nil
}
