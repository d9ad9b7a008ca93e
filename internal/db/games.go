package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fretquiz/internal/theory"
	"fretquiz/internal/types"
)

// InsertGame stores a new game with its settings and players and returns its id.
func (s *Store) InsertGame(ctx context.Context, game *types.Game) (int64, error) {
	var gameID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO games (host_id, status) VALUES (?, ?)`,
			game.HostID, string(game.Status))
		if err != nil {
			return err
		}
		if gameID, err = res.LastInsertId(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (game_id, num_rounds, start_fret, end_fret) VALUES (?, ?, ?, ?)`,
			gameID, game.Settings.NumRounds, game.Settings.StartFret, game.Settings.EndFret); err != nil {
			return err
		}

		for _, userID := range game.PlayerIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT IGNORE INTO players (game_id, user_id) VALUES (?, ?)`, gameID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}

	game.ID = gameID
	return gameID, nil
}

// FetchGame loads a game with settings, players, rounds and guesses.
func (s *Store) FetchGame(ctx context.Context, gameID int64) (*types.Game, error) {
	game := &types.Game{ID: gameID, PlayerIDs: []int64{}, Rounds: []types.Round{}}

	var status string
	err := s.db.QueryRowContext(ctx, `SELECT host_id, status FROM games WHERE id = ?`, gameID).
		Scan(&game.HostID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", gameID, err)
	}
	if game.Status, err = types.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", gameID, err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, num_rounds, start_fret, end_fret FROM settings WHERE game_id = ?`, gameID).
		Scan(&game.Settings.ID, &game.Settings.NumRounds, &game.Settings.StartFret, &game.Settings.EndFret)
	if errors.Is(err, sql.ErrNoRows) {
		game.Settings = types.DefaultSettings()
	} else if err != nil {
		return nil, fmt.Errorf("fetch settings for game %d: %w", gameID, err)
	}

	if game.PlayerIDs, err = s.fetchPlayers(ctx, gameID); err != nil {
		return nil, err
	}
	if game.Rounds, err = s.fetchRounds(ctx, gameID); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Store) fetchPlayers(ctx context.Context, gameID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM players WHERE game_id = ? ORDER BY user_id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch players for game %d: %w", gameID, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) fetchRounds(ctx context.Context, gameID int64) ([]types.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_white_key, note_accidental, note_octave FROM rounds WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch rounds for game %d: %w", gameID, err)
	}
	defer rows.Close()

	rounds := []types.Round{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			r          types.Round
			key, accid string
		)
		if err := rows.Scan(&r.ID, &key, &accid, &r.NoteToGuess.Octave); err != nil {
			return nil, err
		}
		r.NoteToGuess.WhiteKey = theory.WhiteKey(key)
		r.NoteToGuess.Accidental = theory.Accidental(accid)
		r.Guesses = []types.Guess{}
		index[r.ID] = len(rounds)
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return rounds, nil
	}

	grows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.user_id, g.round_id, g.clicked_fret, g.clicked_string, g.is_correct
		FROM guesses g JOIN rounds r ON r.id = g.round_id
		WHERE r.game_id = ? ORDER BY g.id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch guesses for game %d: %w", gameID, err)
	}
	defer grows.Close()

	for grows.Next() {
		var g types.Guess
		if err := grows.Scan(&g.ID, &g.UserID, &g.RoundID, &g.Clicked.Fret, &g.Clicked.String, &g.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[g.RoundID]; ok {
			rounds[i].Guesses = append(rounds[i].Guesses, g)
		}
	}
	return rounds, grows.Err()
}

// UpdateGame persists the status and inserts rounds that have no id yet.
// The write only applies while the stored status is still from; otherwise
// nothing changes and ErrStatusConflict is returned.
func (s *Store) UpdateGame(ctx context.Context, game *types.Game, from types.Status) error {
	newIDs := make(map[int]int64)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE games SET status = ? WHERE id = ? AND status = ?`,
			string(game.Status), game.ID, string(from))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			var current string
			err := tx.QueryRowContext(ctx, `SELECT status FROM games WHERE id = ?`, game.ID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			} else if err != nil {
				return err
			}
			return fmt.Errorf("%w: game %d is %s", ErrStatusConflict, game.ID, current)
		}

		for i, r := range game.Rounds {
			if r.ID != 0 {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO rounds (game_id, note_white_key, note_accidental, note_octave) VALUES (?, ?, ?, ?)`,
				game.ID, string(r.NoteToGuess.WhiteKey), string(r.NoteToGuess.Accidental), r.NoteToGuess.Octave)
			if err != nil {
				return err
			}
			if newIDs[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStatusConflict) {
		return err
	} else if err != nil {
		return fmt.Errorf("update game %d: %w", game.ID, err)
	}

	for i, id := range newIDs {
		game.Rounds[i].ID = id
	}
	return nil
}
