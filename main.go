package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fretquiz/internal/auth"
	"fretquiz/internal/config"
	"fretquiz/internal/db"
	"fretquiz/internal/handle/game"
	"fretquiz/internal/handle/message"
	"fretquiz/internal/routes"
	"fretquiz/internal/session"
	"fretquiz/internal/websocket"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ConfigStruct) error {
	sqlDB, err := db.OpenMySQL(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("closing MySQL connection", "error", err)
		}
	}()

	store := db.NewStore(sqlDB)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	var ledger auth.Ledger
	if cfg.MongoURI != "" {
		client, database, err := db.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Warn("disconnecting MongoDB", "error", err)
			}
		}()
		ledger = db.NewTokenLedger(database)
	} else {
		slog.Info("MONGO_URI not set, token ledger disabled")
	}

	opts := []session.Option{session.WithCapacity(cfg.RoomCapacity)}
	if cfg.RedisAddr != "" {
		bridge, err := session.NewBridge(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer bridge.Close()
		opts = append(opts, session.WithBridge(bridge))
	}
	rooms := session.NewRegistry(opts...)

	identity := auth.NewProvider(cfg.JWTSecret, ledger)
	handlers := message.NewHandlers(identity, game.NewController(store))
	ws := websocket.NewServer(rooms, identity, handlers, cfg.NegotiateTimeout)

	router := routes.NewRouter(routes.New(store, store, identity, rooms), ws.ServeWS)

	// Connections derive from ctx so shutdown reaches hijacked sockets too.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Hijacked sockets are not covered by Shutdown; let them publish their
	// departures before the deferred store closes run.
	if err := ws.Wait(shutdownCtx); err != nil {
		slog.Warn("websocket connections still open at shutdown", "error", err)
	}
	return nil
}
