package eventstore

import (
	"github.com/google/uuid"
)

// AggregateType is the closed set of aggregate kinds this store knows about.
type AggregateType string

const (
	AggregateTypeGame         AggregateType = "Game"
	AggregateTypeTeamLineup   AggregateType = "TeamLineup"
	AggregateTypeInningState  AggregateType = "InningState"
)

// Valid reports whether t is one of the three known aggregate types.
func (t AggregateType) Valid() bool {
	switch t {
	case AggregateTypeGame, AggregateTypeTeamLineup, AggregateTypeInningState:
		return true
	default:
		return false
	}
}

func (t AggregateType) String() string { return string(t) }

// GameID, TeamLineupID and InningStateID are disjoint identifier kinds that
// share the same opaque-string wire shape. Keeping them distinct types
// prevents a caller from accidentally passing a TeamLineupID where a GameID
// is expected, even though the store itself only ever sees their string
// value.
type (
	GameID        string
	TeamLineupID  string
	InningStateID string
)

// NewGameID validates a caller-supplied opaque string and wraps it.
func NewGameID(id string) (GameID, error) {
	if id == "" {
		return "", &ParameterError{Field: "gameId", Reason: "must not be empty"}
	}
	return GameID(id), nil
}

// NewGameIDGenerated returns a fresh GameID with negligible collision
// probability, suitable for the application's scale.
func NewGameIDGenerated() GameID { return GameID(uuid.NewString()) }

func (id GameID) String() string { return string(id) }

// NewTeamLineupID validates a caller-supplied opaque string and wraps it.
func NewTeamLineupID(id string) (TeamLineupID, error) {
	if id == "" {
		return "", &ParameterError{Field: "teamLineupId", Reason: "must not be empty"}
	}
	return TeamLineupID(id), nil
}

// NewTeamLineupIDGenerated returns a fresh TeamLineupID.
func NewTeamLineupIDGenerated() TeamLineupID { return TeamLineupID(uuid.NewString()) }

func (id TeamLineupID) String() string { return string(id) }

// NewInningStateID validates a caller-supplied opaque string and wraps it.
func NewInningStateID(id string) (InningStateID, error) {
	if id == "" {
		return "", &ParameterError{Field: "inningStateId", Reason: "must not be empty"}
	}
	return InningStateID(id), nil
}

// NewInningStateIDGenerated returns a fresh InningStateID.
func NewInningStateIDGenerated() InningStateID { return InningStateID(uuid.NewString()) }

func (id InningStateID) String() string { return string(id) }

// NewEventID returns a fresh, store-wide-unique event identifier.
func NewEventID() string { return uuid.NewString() }
