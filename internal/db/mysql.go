package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"fretquiz/internal/config"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict means another writer changed a game's status first.
	ErrStatusConflict = errors.New("game status changed concurrently")
)

// Store is the relational store for users and games.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DSN builds the driver DSN. clientFoundRows makes UPDATE report matched
// rows, so renaming to the same name is not mistaken for a missing user.
func DSN(cfg *config.ConfigStruct) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
		cfg.MySQLUser,
		cfg.MySQLPassword,
		cfg.MySQLHost,
		cfg.MySQLPort,
		cfg.MySQLDatabase,
	)
}

// OpenMySQL connects and pings the database.
func OpenMySQL(ctx context.Context, cfg *config.ConfigStruct) (*sql.DB, error) {
	conn, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	slog.Info("connected to MySQL", "host", cfg.MySQLHost, "database", cfg.MySQLDatabase)
	return conn, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		host_id BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		FOREIGN KEY (host_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		game_id BIGINT NOT NULL,
		num_rounds INT NOT NULL,
		start_fret INT NOT NULL,
		end_fret INT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id)
	)`,
	`CREATE TABLE IF NOT EXISTS rounds (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		game_id BIGINT NOT NULL,
		note_white_key VARCHAR(1) NOT NULL,
		note_accidental VARCHAR(2) NOT NULL,
		note_octave INT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id)
	)`,
	`CREATE TABLE IF NOT EXISTS guesses (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		round_id BIGINT NOT NULL,
		clicked_fret INT NOT NULL,
		clicked_string INT NOT NULL,
		is_correct BOOLEAN NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (round_id) REFERENCES rounds(id)
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		game_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		UNIQUE (game_id, user_id)
	)`,
}

// EnsureSchema creates any missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}
