package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"fretquiz/internal/auth"
	"fretquiz/internal/db"
	"fretquiz/internal/types"
	"fretquiz/internal/utils"
)

const maxNameLength = 32

type UserStore interface {
	CreateUser(ctx context.Context) (types.User, error)
	FetchUser(ctx context.Context, id int64) (types.User, error)
	RenameUser(ctx context.Context, id int64, name string) error
}

type GameStore interface {
	InsertGame(ctx context.Context, game *types.Game) (int64, error)
	FetchGame(ctx context.Context, gameID int64) (*types.Game, error)
}

type Identity interface {
	Issue(ctx context.Context, user types.User) (string, error)
	Decode(ctx context.Context, token string) (*auth.Claims, error)
}

type RoomStats interface {
	Stats() (rooms, subscribers int)
}

type Handler struct {
	users    UserStore
	games    GameStore
	identity Identity
	rooms    RoomStats
}

func New(users UserStore, games GameStore, identity Identity, rooms RoomStats) *Handler {
	return &Handler{
		users:    users,
		games:    games,
		identity: identity,
		rooms:    rooms,
	}
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type renameResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type ctxKey struct{}

func userFrom(ctx context.Context) types.User {
	u, _ := ctx.Value(ctxKey{}).(types.User)
	return u
}

// RequireUser rejects requests without a valid identity token.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing identity token")
			return
		}
		claims, err := h.identity.Decode(r.Context(), token)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid identity token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, claims.User())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate returns the caller's token, minting a new user when the
// request carries no valid one.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if _, err := h.identity.Decode(r.Context(), token); err == nil {
			utils.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer"})
			return
		}
	}

	user, err := h.users.CreateUser(r.Context())
	if err != nil {
		slog.Error("create user", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not create user")
		return
	}
	token, err := h.identity.Issue(r.Context(), user)
	if err != nil {
		slog.Error("issue token", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not issue token")
		return
	}

	slog.Info("new user", "user_id", user.ID)
	http.SetCookie(w, auth.Cookie(token))
	utils.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer"})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.FetchUser(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		return
	} else if err != nil {
		slog.Error("fetch user", "user_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not fetch user")
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) RenameUser(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLength {
		utils.WriteError(w, http.StatusBadRequest, "invalid_name", "Name must be 1 to 32 characters")
		return
	}

	user := userFrom(r.Context())
	if err := h.users.RenameUser(r.Context(), user.ID, name); errors.Is(err, db.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		return
	} else if err != nil {
		slog.Error("rename user", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not rename user")
		return
	}

	user.Name = name
	token, err := h.identity.Issue(r.Context(), user)
	if err != nil {
		slog.Error("issue token", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not issue token")
		return
	}
	http.SetCookie(w, auth.Cookie(token))
	utils.WriteJSON(w, http.StatusOK, renameResponse{ID: user.ID, Name: user.Name, Token: token})
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	game := types.NewGame(user.ID)

	id, err := h.games.InsertGame(r.Context(), game)
	if err != nil {
		slog.Error("create game", "host_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not create game")
		return
	}
	slog.Info("game created", "game_id", id, "host_id", user.ID)
	utils.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	game, err := h.games.FetchGame(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "not_found", "Game not found")
		return
	} else if err != nil {
		slog.Error("fetch game", "game_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "server_error", "Could not fetch game")
		return
	}
	utils.WriteJSON(w, http.StatusOK, game)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	rooms, subs := h.rooms.Stats()
	utils.WriteJSON(w, http.StatusOK, map[string]int{"rooms": rooms, "subscribers": subs})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_id", "Invalid id")
		return 0, false
	}
	return id, true
}
