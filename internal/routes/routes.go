package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const apiTimeout = 15 * time.Second

// NewRouter mounts the JSON API and the websocket endpoint.
func NewRouter(h *Handler, ws http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Websocket connections outlive any request timeout.
	r.Get("/ws", ws)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))

		r.Get("/health", h.HealthCheck)
		r.Get("/stats", h.GetStats)

		r.Get("/auth", h.Authenticate)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/games/{id}", h.GetGame)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireUser)
			r.Put("/users/me/name", h.RenameUser)
			r.Post("/games", h.CreateGame)
		})
	})
	return r
}
