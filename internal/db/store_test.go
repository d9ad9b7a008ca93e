package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretquiz/internal/config"
	"fretquiz/internal/theory"
	"fretquiz/internal/types"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return NewStore(conn), mock
}

func TestDSN(t *testing.T) {
	cfg := &config.ConfigStruct{
		MySQLUser: "quiz", MySQLPassword: "pw", MySQLHost: "db", MySQLPort: 3307, MySQLDatabase: "fq",
	}
	assert.Equal(t, "quiz:pw@tcp(db:3307)/fq?parseTime=true&clientFoundRows=true", DSN(cfg))
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestCreateUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO users \(name\) VALUES \(\?\)`).
		WithArgs(types.DefaultUsername).
		WillReturnResult(sqlmock.NewResult(9, 1))

	u, err := store.CreateUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.User{ID: 9, Name: "user"}, u)
}

func TestFetchUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT name FROM users WHERE id = \?`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))
	mock.ExpectQuery(`SELECT name FROM users WHERE id = \?`).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	u, err := store.FetchUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ann", u.Name)

	_, err = store.FetchUser(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE users SET name = \? WHERE id = \?`).WithArgs("bob", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET name = \? WHERE id = \?`).WithArgs("bob", int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.RenameUser(context.Background(), 1, "bob"))
	assert.ErrorIs(t, store.RenameUser(context.Background(), 404, "bob"), ErrNotFound)
}

func TestInsertGame(t *testing.T) {
	store, mock := newMockStore(t)
	game := types.NewGame(5)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO games`).WithArgs(int64(5), "Init").WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO settings`).WithArgs(int64(11), 4, 0, 4).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT IGNORE INTO players`).WithArgs(int64(11), int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := store.InsertGame(context.Background(), game)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int64(11), game.ID)
}

func TestInsertGame_RollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO games`).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO settings`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := store.InsertGame(context.Background(), types.NewGame(5))
	assert.Error(t, err)
}

func TestFetchGame_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT host_id, status FROM games`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"host_id", "status"}))

	_, err := store.FetchGame(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchGame(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT host_id, status FROM games`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"host_id", "status"}).AddRow(int64(5), "Playing"))
	mock.ExpectQuery(`SELECT id, num_rounds, start_fret, end_fret FROM settings`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "num_rounds", "start_fret", "end_fret"}).AddRow(int64(1), 6, 1, 5))
	mock.ExpectQuery(`SELECT user_id FROM players`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(5)).AddRow(int64(8)))
	mock.ExpectQuery(`SELECT id, note_white_key, note_accidental, note_octave FROM rounds`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "note_white_key", "note_accidental", "note_octave"}).
			AddRow(int64(21), "F", "#", 3))
	mock.ExpectQuery(`FROM guesses g JOIN rounds r`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "round_id", "clicked_fret", "clicked_string", "is_correct"}).
			AddRow(int64(1), int64(8), int64(21), 2, 6, true))

	game, err := store.FetchGame(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, int64(5), game.HostID)
	assert.Equal(t, types.StatusPlaying, game.Status)
	assert.Equal(t, 6, game.Settings.NumRounds)
	assert.Equal(t, []int64{5, 8}, game.PlayerIDs)
	require.Len(t, game.Rounds, 1)
	assert.Equal(t, theory.Note{WhiteKey: theory.F, Accidental: theory.Sharp, Octave: 3}, game.Rounds[0].NoteToGuess)
	require.Len(t, game.Rounds[0].Guesses, 1)
	assert.True(t, game.Rounds[0].Guesses[0].IsCorrect)
	assert.Equal(t, types.FretCoord{String: 6, Fret: 2}, game.Rounds[0].Guesses[0].Clicked)
}

func TestFetchGame_BadStatus(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT host_id, status FROM games`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"host_id", "status"}).AddRow(int64(5), "Paused"))

	_, err := store.FetchGame(context.Background(), 3)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUpdateGame(t *testing.T) {
	store, mock := newMockStore(t)
	game := &types.Game{
		ID:     3,
		Status: types.StatusPlaying,
		Rounds: []types.Round{
			{ID: 20, NoteToGuess: theory.FromMIDI(60)},
			{NoteToGuess: theory.FromMIDI(61)},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE games SET status = \? WHERE id = \? AND status = \?`).
		WithArgs("Playing", int64(3), "Init").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rounds`).WithArgs(int64(3), "C", "#", 4).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpdateGame(context.Background(), game, types.StatusInit))
	assert.Equal(t, int64(20), game.Rounds[0].ID)
	assert.Equal(t, int64(21), game.Rounds[1].ID)
}

func TestUpdateGame_Missing(t *testing.T) {
	store, mock := newMockStore(t)
	game := &types.Game{ID: 99, Status: types.StatusPlaying, Rounds: []types.Round{{NoteToGuess: theory.FromMIDI(60)}}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE games SET status`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM games WHERE id = \?`).WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, store.UpdateGame(context.Background(), game, types.StatusInit), ErrNotFound)
	assert.Zero(t, game.Rounds[0].ID)
}

func TestUpdateGame_StatusAlreadyChanged(t *testing.T) {
	store, mock := newMockStore(t)
	game := &types.Game{ID: 3, Status: types.StatusPlaying, Rounds: []types.Round{{NoteToGuess: theory.FromMIDI(60)}}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE games SET status = \? WHERE id = \? AND status = \?`).
		WithArgs("Playing", int64(3), "Init").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM games WHERE id = \?`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Playing"))
	mock.ExpectRollback()

	err := store.UpdateGame(context.Background(), game, types.StatusInit)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Zero(t, game.Rounds[0].ID)
}
