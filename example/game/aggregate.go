package main

import (
	"fmt"

	es "github.com/xeonchen/twsoftball-sub000"
)

// Game is the aggregate root that enforces scoring rules and emits events.
// It embeds es.Base so a caller can rehydrate it from a stale snapshot plus
// the delta events recorded since, with Apply/Flush/Version coming for free.
type Game struct {
	es.Base

	homeTeam string
	awayTeam string
	started  bool
	atBats   int
}

// NewGame wires an empty Game ready to receive commands or replay history.
func NewGame(id string) *Game {
	g := &Game{}
	g.Init(es.AggregateTypeGame, id, g.apply)
	return g
}

// AtBats returns the number of at-bats recorded.
func (g *Game) AtBats() int { return g.atBats }

// Handle routes a command to domain logic and records resulting events.
func (g *Game) Handle(cmd any) error {
	switch c := cmd.(type) {
	case StartGameCommand:
		if g.started {
			return fmt.Errorf("game already started")
		}
		if c.GameID == "" {
			return fmt.Errorf("empty game id")
		}
		g.Raise(es.DomainEvent{
			GameID:  es.GameID(c.GameID),
			Payload: GameStarted{GameID: c.GameID, HomeTeam: c.HomeTeam, AwayTeam: c.AwayTeam},
		})
		return nil

	case RecordAtBatCommand:
		if !g.started {
			return fmt.Errorf("game not started")
		}
		if c.Result == "" {
			return fmt.Errorf("empty at-bat result")
		}
		g.Raise(es.DomainEvent{
			GameID:  es.GameID(c.GameID),
			Payload: AtBatRecorded{GameID: c.GameID, Result: c.Result},
		})
		return nil
	}

	return fmt.Errorf("unknown command type %T", cmd)
}

func (g *Game) apply(e es.DomainEvent) {
	switch ev := e.Payload.(type) {
	case GameStarted:
		g.homeTeam = ev.HomeTeam
		g.awayTeam = ev.AwayTeam
		g.started = true
	case AtBatRecorded:
		g.atBats++
	}
}

var _ es.Aggregate = (*Game)(nil)
