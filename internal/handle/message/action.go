package message

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fretquiz/internal/auth"
	"fretquiz/internal/db"
	"fretquiz/internal/handle/game"
	"fretquiz/internal/types"
	"fretquiz/internal/utils"
)

const maxChatLength = 500

type TokenDecoder interface {
	Decode(ctx context.Context, token string) (*auth.Claims, error)
}

type GameStarter interface {
	Start(ctx context.Context, requester, gameID int64) (*types.Game, error)
}

// Handlers executes action frames on behalf of a joined client.
type Handlers struct {
	identity TokenDecoder
	games    GameStarter
}

func NewHandlers(identity TokenDecoder, games GameStarter) *Handlers {
	return &Handlers{identity: identity, games: games}
}

type gameStarted struct {
	GameID int64        `json:"game_id"`
	Status types.Status `json:"status"`
	Round  *types.Round `json:"round,omitempty"`
}

// Dispatch routes one decoded action.
func (h *Handlers) Dispatch(ctx context.Context, c *types.Client, msg utils.AppMessage) {
	switch {
	case msg.Chat != nil:
		h.HandleChat(c, *msg.Chat)
	case msg.StartGame != nil:
		h.HandleStartGame(ctx, c, *msg.StartGame)
	default:
		utils.SendError(c.Send, "unknown_type", "Unknown message type")
	}
}

func (h *Handlers) HandleChat(c *types.Client, req utils.Chat) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return
	}
	if len(text) > maxChatLength {
		utils.SendError(c.Send, "too_long", "Chat message too long")
		return
	}

	out, err := utils.Encode(utils.ChatEnvelope(c.User.Name, c.Channel, text))
	if err != nil {
		slog.Error("encode chat", "client", c.ID, "error", err)
		return
	}
	c.Room.Publish(out)
}

func (h *Handlers) HandleStartGame(ctx context.Context, c *types.Client, req utils.StartGame) {
	claims, err := h.identity.Decode(ctx, req.Token)
	if err != nil || claims.ID != c.User.ID {
		utils.SendError(c.Send, "unauthorized", "Token does not belong to this connection")
		return
	}

	started, err := h.games.Start(ctx, claims.ID, req.GameID)
	switch {
	case errors.Is(err, game.ErrNotHost):
		utils.SendError(c.Send, "not_host", "Only the host can start the game")
		return
	case errors.Is(err, game.ErrInvalidState):
		utils.SendError(c.Send, "invalid_state", "Game already started")
		return
	case errors.Is(err, db.ErrNotFound):
		utils.SendError(c.Send, "not_found", "Game not found")
		return
	case err != nil:
		slog.Error("start game", "client", c.ID, "game_id", req.GameID, "error", err)
		utils.SendError(c.Send, "server_error", "Could not start game")
		return
	}

	out, err := utils.Encode(utils.Envelope{
		Type:    utils.EventGameStarted,
		Channel: c.Channel,
		User:    c.User.Name,
		Text:    c.User.Name + " started the game",
		Data: gameStarted{
			GameID: started.ID,
			Status: started.Status,
			Round:  started.CurrentRound(),
		},
	})
	if err != nil {
		slog.Error("encode game_started", "client", c.ID, "error", err)
		return
	}
	c.Room.Publish(out)
}
