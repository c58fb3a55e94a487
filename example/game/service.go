package main

import "context"

// GameService orchestrates command handling using repository + store.
type GameService struct {
	repo *GameRepository
}

// NewGameService wires a repository into a service.
func NewGameService(repo *GameRepository) *GameService {
	return &GameService{repo: repo}
}

// Handle executes a command end-to-end: load, apply domain logic, append.
func (s *GameService) Handle(ctx context.Context, cmd any) error {
	id := extractGameID(cmd)
	g, err := s.repo.Load(ctx, id)
	if err != nil {
		return err
	}

	if err := g.Handle(cmd); err != nil {
		return err
	}

	return s.repo.Save(ctx, g)
}

// extractGameID is a tiny helper for this sample. A real application would
// expose an AggregateID() method on a command interface instead.
func extractGameID(cmd any) string {
	switch c := cmd.(type) {
	case StartGameCommand:
		return c.GameID
	case RecordAtBatCommand:
		return c.GameID
	default:
		return ""
	}
}
