// Package archive persists finished games. Stores share one summary shape so
// the controller can flush a result to memory, Redis, or Postgres without
// caring which is wired.
package archive

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a game id has no stored summary.
var ErrNotFound = errors.New("game not found")

// GameSummary is the archival record of one finished game.
type GameSummary struct {
	ID          string    `json:"id"`
	White       string    `json:"white"`
	Black       string    `json:"black"`
	Result      string    `json:"result"` // "1-0", "0-1", "1/2-1/2" or "*"
	Termination string    `json:"termination"`
	StartFEN    string    `json:"start_fen,omitempty"` // empty for the initial position
	MovesSAN    []string  `json:"moves_san"`
	MovesUCI    []string  `json:"moves_uci"`
	PGN         string    `json:"pgn"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// Store is a sink for finished games.
type Store interface {
	SaveGame(ctx context.Context, g GameSummary) error
	LoadGame(ctx context.Context, id string) (GameSummary, error)
	ListGames(ctx context.Context, limit int) ([]GameSummary, error)
}
