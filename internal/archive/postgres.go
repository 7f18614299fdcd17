package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists finished games durably. Writes are idempotent
// upserts keyed by game id, so re-archiving after a retry is harmless.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings the database.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) SaveGame(ctx context.Context, g GameSummary) error {
	movesUCIRaw, _ := json.Marshal(g.MovesUCI)
	movesSANRaw, _ := json.Marshal(g.MovesSAN)
	duration := g.EndedAt.Sub(g.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO chess_games (
	    game_id, white_name, black_name, result, termination,
	    start_fen, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    white_name=EXCLUDED.white_name,
	    black_name=EXCLUDED.black_name,
	    result=EXCLUDED.result,
	    termination=EXCLUDED.termination,
	    start_fen=EXCLUDED.start_fen,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := s.db.ExecContext(ctx, q,
		g.ID, g.White, g.Black, g.Result, g.Termination,
		g.StartFEN, string(movesUCIRaw), string(movesSANRaw), g.PGN,
		g.StartedAt, g.EndedAt, duration,
	)
	return err
}

func (s *PostgresStore) LoadGame(ctx context.Context, id string) (GameSummary, error) {
	q := `SELECT game_id, white_name, black_name, result, termination,
	    start_fen, moves_uci, moves_san, pgn, started_at, ended_at
	  FROM chess_games WHERE game_id = $1`
	var (
		g                        GameSummary
		movesUCIRaw, movesSANRaw string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&g.ID, &g.White, &g.Black, &g.Result, &g.Termination,
		&g.StartFEN, &movesUCIRaw, &movesSANRaw, &g.PGN, &g.StartedAt, &g.EndedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GameSummary{}, ErrNotFound
	}
	if err != nil {
		return GameSummary{}, err
	}
	_ = json.Unmarshal([]byte(movesUCIRaw), &g.MovesUCI)
	_ = json.Unmarshal([]byte(movesSANRaw), &g.MovesSAN)
	return g, nil
}

func (s *PostgresStore) ListGames(ctx context.Context, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT game_id, white_name, black_name, result, termination,
	    start_fen, moves_uci, moves_san, pgn, started_at, ended_at
	  FROM chess_games ORDER BY ended_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameSummary
	for rows.Next() {
		var (
			g                        GameSummary
			movesUCIRaw, movesSANRaw string
		)
		if err := rows.Scan(
			&g.ID, &g.White, &g.Black, &g.Result, &g.Termination,
			&g.StartFEN, &movesUCIRaw, &movesSANRaw, &g.PGN, &g.StartedAt, &g.EndedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(movesUCIRaw), &g.MovesUCI)
		_ = json.Unmarshal([]byte(movesSANRaw), &g.MovesSAN)
		games = append(games, g)
	}
	return games, rows.Err()
}
