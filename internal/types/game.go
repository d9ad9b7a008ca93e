// internal/types/game.go
package types

import (
	"fmt"

	"fretquiz/internal/theory"
)

const DefaultUsername = "user"

// MIDI range the note to guess is drawn from.
const (
	NoteRangeLow  = 40
	NoteRangeHigh = 68
)

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Status string

const (
	StatusInit      Status = "Init"
	StatusPlaying   Status = "Playing"
	StatusRoundOver Status = "RoundOver"
	StatusGameOver  Status = "GameOver"
	StatusNoPlayers Status = "NoPlayers"
)

// ParseStatus accepts exactly the names the store writes.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusInit, StatusPlaying, StatusRoundOver, StatusGameOver, StatusNoPlayers:
		return st, nil
	}
	return "", fmt.Errorf("unknown game status %q", s)
}

type Settings struct {
	ID        int64 `json:"id,omitempty"`
	NumRounds int   `json:"num_rounds"`
	StartFret int   `json:"start_fret"`
	EndFret   int   `json:"end_fret"`
}

func DefaultSettings() Settings {
	return Settings{NumRounds: 4, StartFret: 0, EndFret: 4}
}

type FretCoord struct {
	String int `json:"string"`
	Fret   int `json:"fret"`
}

type Guess struct {
	ID        int64     `json:"id,omitempty"`
	UserID    int64     `json:"user_id"`
	RoundID   int64     `json:"round_id"`
	Clicked   FretCoord `json:"clicked"`
	IsCorrect bool      `json:"is_correct"`
}

type Round struct {
	ID          int64       `json:"id,omitempty"`
	NoteToGuess theory.Note `json:"note_to_guess"`
	Guesses     []Guess     `json:"guesses"`
}

// NewRound picks a random note to guess.
func NewRound() Round {
	return Round{
		NoteToGuess: theory.RandInRange(NoteRangeLow, NoteRangeHigh),
		Guesses:     []Guess{},
	}
}

type Game struct {
	ID        int64    `json:"id"`
	HostID    int64    `json:"host_id"`
	Status    Status   `json:"status"`
	Settings  Settings `json:"settings"`
	PlayerIDs []int64  `json:"player_ids"`
	Rounds    []Round  `json:"rounds"`
}

// NewGame returns an unsaved game hosted (and joined) by hostID.
func NewGame(hostID int64) *Game {
	return &Game{
		HostID:    hostID,
		Status:    StatusInit,
		Settings:  DefaultSettings(),
		PlayerIDs: []int64{hostID},
		Rounds:    []Round{},
	}
}

// CurrentRound is the last round, or nil before the game starts.
func (g *Game) CurrentRound() *Round {
	if len(g.Rounds) == 0 {
		return nil
	}
	return &g.Rounds[len(g.Rounds)-1]
}
