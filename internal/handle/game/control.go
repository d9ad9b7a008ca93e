package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fretquiz/internal/db"
	"fretquiz/internal/types"
)

var (
	ErrNotHost      = errors.New("only the host can start the game")
	ErrInvalidState = errors.New("game cannot be started in its current state")
)

// Store is the persistence the controller needs.
type Store interface {
	FetchGame(ctx context.Context, gameID int64) (*types.Game, error)
	UpdateGame(ctx context.Context, game *types.Game, from types.Status) error
}

// Controller drives game state transitions.
type Controller struct {
	store    Store
	newRound func() types.Round
}

func NewController(store Store) *Controller {
	return &Controller{store: store, newRound: types.NewRound}
}

// Start moves a game from Init to Playing and materializes its first round.
// Only the host may start a game; on any refusal the store is not written.
func (c *Controller) Start(ctx context.Context, requester, gameID int64) (*types.Game, error) {
	game, err := c.store.FetchGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("game %d: %w", gameID, db.ErrNotFound)
		}
		return nil, err
	}

	if game.HostID != requester {
		slog.Warn("start game refused", "game_id", gameID, "host_id", game.HostID, "user_id", requester)
		return nil, ErrNotHost
	}
	if game.Status != types.StatusInit {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, game.Status)
	}

	game.Status = types.StatusPlaying
	game.Rounds = append(game.Rounds, c.newRound())

	// The store re-checks Init so a concurrent start loses here.
	if err := c.store.UpdateGame(ctx, game, types.StatusInit); err != nil {
		if errors.Is(err, db.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		return nil, err
	}

	slog.Info("game started", "game_id", gameID, "note", game.CurrentRound().NoteToGuess.String())
	return game, nil
}
