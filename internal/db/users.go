package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fretquiz/internal/types"
)

// CreateUser inserts a user with the default name.
func (s *Store) CreateUser(ctx context.Context) (types.User, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (name) VALUES (?)`, types.DefaultUsername)
	if err != nil {
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return types.User{ID: id, Name: types.DefaultUsername}, nil
}

func (s *Store) FetchUser(ctx context.Context, id int64) (types.User, error) {
	u := types.User{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, id).Scan(&u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, ErrNotFound
	} else if err != nil {
		return types.User{}, fmt.Errorf("fetch user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) RenameUser(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename user %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
