// Package game runs one chess game. The Controller is the only writer of the
// live position: human moves, engine replies, the clock, and undo all pass
// through its mutex, so every observer sees a consistent record.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chesscore/internal/archive"
	"github.com/park285/chesscore/internal/board"
	"github.com/park285/chesscore/internal/notation"
	"github.com/park285/chesscore/internal/obslog"
	"github.com/park285/chesscore/internal/uci"
)

const stopGrace = 250 * time.Millisecond

var (
	// ErrGameOver rejects moves once the game reached a terminal state.
	ErrGameOver = errors.New("game is over")

	// ErrNoEngine rejects engine requests on a controller without one.
	ErrNoEngine = errors.New("no engine attached")

	// ErrNothingToUndo rejects Undo at the starting position.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrStaleEngineMove marks an engine reply that arrived for a position
	// the game has since left. The move is discarded, never applied.
	ErrStaleEngineMove = errors.New("engine move arrived for a superseded position")
)

// Engine is the slice of the UCI session the controller drives. Satisfied by
// *uci.Session.
type Engine interface {
	RequestMove(ctx context.Context, req uci.SearchRequest) (*uci.Pending, error)
	Cancel() error
	NewGame(ctx context.Context) error
	ProtocolFault(reason string) bool
}

// State is the controller lifecycle.
type State int

const (
	StateAwaitingMove State = iota
	StateGameOver
)

// Outcome describes how a finished game ended.
type Outcome struct {
	Status      board.StatusKind
	Winner      board.Color // meaningful for decisive results
	Decisive    bool
	Termination string // "checkmate", "stalemate", "resignation", ...
	Result      string // "1-0", "0-1", "1/2-1/2"
}

// Applied reports one accepted move.
type Applied struct {
	Move       board.Move
	SAN        string
	UCI        string
	FEN        string
	Check      bool
	FromEngine bool
}

// RecordEntry is one ply of the game record. Board is the position after the
// move; snapshots make Undo a pointer swap instead of a replay.
type RecordEntry struct {
	Move  board.Move
	SAN   string
	UCI   string
	Board *board.Board
	Hash  uint64
}

// Events are optional observer callbacks, invoked outside the controller
// mutex. Callbacks must not block.
type Events struct {
	OnMoveApplied        func(Applied)
	OnEngineMoveReceived func(Applied)
	OnGameEnded          func(Outcome)
	OnEngineUnavailable  func(error)
}

// Options configures a Controller. Zero-value fields are optional.
type Options struct {
	StartFEN string // empty for the initial position
	White    string
	Black    string
	Engine   Engine
	Clock    *ClockConfig
	Store    archive.Store
	Events   Events
}

// Controller owns the live game.
type Controller struct {
	mu       sync.Mutex
	id       string
	start    *board.Board
	startFEN string
	cur      *board.Board
	history  []RecordEntry
	hashes   []uint64 // every position of the record, start included
	state    State
	outcome  Outcome
	started  time.Time

	white, black string
	engine       Engine
	clock        *Clock
	clockCfg     *ClockConfig
	store        archive.Store
	events       Events
}

// NewController starts a game. With a clock configured, White's countdown
// begins immediately.
func NewController(opts Options) (*Controller, error) {
	start := board.New()
	if strings.TrimSpace(opts.StartFEN) != "" {
		b, err := board.ParseFEN(opts.StartFEN)
		if err != nil {
			return nil, fmt.Errorf("start position: %w", err)
		}
		start = b
	}
	c := &Controller{
		id:       uuid.NewString(),
		start:    start,
		startFEN: strings.TrimSpace(opts.StartFEN),
		cur:      start.Copy(),
		hashes:   []uint64{start.Hash()},
		started:  time.Now(),
		white:    opts.White,
		black:    opts.Black,
		engine:   opts.Engine,
		store:    opts.Store,
		events:   opts.Events,
	}
	if opts.Clock != nil {
		cfg := *opts.Clock
		c.clockCfg = &cfg
		c.clock = NewClock(cfg, c.forfeitOnTime)
		c.clock.Start(start.SideToMove)
	}
	obslog.L().Info("game_start",
		zap.String("game_id", c.id),
		zap.String("white", c.white),
		zap.String("black", c.black),
		zap.String("start_fen", c.startFEN),
	)
	return c, nil
}

// ID returns the game id.
func (c *Controller) ID() string { return c.id }

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome returns how the game ended; zero while ongoing.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Board returns a copy of the live position.
func (c *Controller) Board() *board.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.Copy()
}

// FEN returns the live position in FEN.
func (c *Controller) FEN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.FEN()
}

// SideToMove returns whose turn it is.
func (c *Controller) SideToMove() board.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.SideToMove
}

// History returns a copy of the game record.
func (c *Controller) History() []RecordEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RecordEntry(nil), c.history...)
}

// LegalMoves lists the legal moves in the live position.
func (c *Controller) LegalMoves() []board.Move {
	c.mu.Lock()
	defer c.mu.Unlock()
	return board.LegalMoves(c.cur)
}

// Clock returns the attached clock, or nil.
func (c *Controller) Clock() *Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// SubmitUCI applies a move given in coordinate form, e.g. "e2e4" or "a7a8q".
func (c *Controller) SubmitUCI(s string) (Applied, error) {
	c.mu.Lock()
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return Applied{}, ErrGameOver
	}
	m, err := notation.ParseUCI(c.cur, s)
	c.mu.Unlock()
	if err != nil {
		return Applied{}, err
	}
	return c.SubmitMove(m)
}

// SubmitSAN applies a move given in standard algebraic notation, e.g. "Nf3".
func (c *Controller) SubmitSAN(s string) (Applied, error) {
	c.mu.Lock()
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return Applied{}, ErrGameOver
	}
	m, err := notation.DecodeSAN(c.cur, s)
	c.mu.Unlock()
	if err != nil {
		return Applied{}, err
	}
	return c.SubmitMove(m)
}

// SubmitMove validates and applies one move atomically: on any error the
// position, record, and clock are unchanged.
func (c *Controller) SubmitMove(m board.Move) (Applied, error) {
	c.mu.Lock()
	applied, ended, err := c.commitLocked(m, false)
	c.mu.Unlock()
	if err != nil {
		// A flag fall detected during the submit still ends the game.
		if ended != nil {
			c.fireEnd(*ended)
		}
		return Applied{}, err
	}
	c.fireMove(applied, ended)
	return applied, nil
}

// commitLocked applies a legal move to the live position. Caller holds c.mu.
// The returned outcome is non-nil when this move ended the game.
func (c *Controller) commitLocked(m board.Move, fromEngine bool) (Applied, *Outcome, error) {
	if c.state != StateAwaitingMove {
		return Applied{}, nil, ErrGameOver
	}
	mover := c.cur.SideToMove

	// Flag-fall check stays ahead of validation, but the clock is only
	// pressed once the move is accepted: a rejected move leaves it alone.
	if c.clock != nil && c.clock.Remaining(mover) == 0 {
		out := c.finishLocked(timeoutOutcome(mover))
		return Applied{}, &out, fmt.Errorf("%w: flag fell before the move", ErrTimeout)
	}

	next, err := c.cur.Apply(m)
	if err != nil {
		return Applied{}, nil, err
	}
	san, err := notation.EncodeSAN(c.cur, m)
	if err != nil {
		return Applied{}, nil, err
	}

	if c.clock != nil {
		if err := c.clock.Press(mover); err != nil {
			out := c.finishLocked(timeoutOutcome(mover))
			return Applied{}, &out, fmt.Errorf("%w: flag fell before the move", ErrTimeout)
		}
	}

	hash := next.Hash()
	c.cur = next
	c.history = append(c.history, RecordEntry{
		Move:  m,
		SAN:   san,
		UCI:   notation.FormatUCI(m),
		Board: next,
		Hash:  hash,
	})
	c.hashes = append(c.hashes, hash)

	applied := Applied{
		Move:       m,
		SAN:        san,
		UCI:        notation.FormatUCI(m),
		FEN:        next.FEN(),
		Check:      next.InCheck(next.SideToMove),
		FromEngine: fromEngine,
	}

	obslog.L().Info("game_move",
		zap.String("game_id", c.id),
		zap.String("san", san),
		zap.String("uci", applied.UCI),
		zap.Bool("engine", fromEngine),
		zap.Int("ply", len(c.history)),
	)

	if st := board.Status(c.cur, c.hashes); st.Kind != board.StatusOngoing {
		out := c.finishLocked(outcomeFromStatus(st))
		return applied, &out, nil
	}
	return applied, nil, nil
}

// Undo reverts the last ply, restoring the previous snapshot exactly. It is
// rejected once the game is over and on an empty record. Time spent stays
// spent, but the countdown re-points to the restored side to move with no
// increment credited.
func (c *Controller) Undo() error {
	c.mu.Lock()
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return ErrGameOver
	}
	n := len(c.history)
	if n == 0 {
		c.mu.Unlock()
		return ErrNothingToUndo
	}
	c.history = c.history[:n-1]
	c.hashes = c.hashes[:len(c.hashes)-1]
	if n == 1 {
		c.cur = c.start.Copy()
	} else {
		c.cur = c.history[n-2].Board.Copy()
	}
	if c.clock != nil {
		if err := c.clock.Reactivate(c.cur.SideToMove); err != nil {
			out := c.finishLocked(timeoutOutcome(c.cur.SideToMove.Other()))
			c.mu.Unlock()
			c.fireEnd(out)
			return fmt.Errorf("%w: flag fell before the undo", ErrTimeout)
		}
	}
	obslog.L().Info("game_undo", zap.String("game_id", c.id), zap.Int("ply", n-1))
	c.mu.Unlock()
	return nil
}

// Resign ends the game in favor of side's opponent.
func (c *Controller) Resign(side board.Color) error {
	c.mu.Lock()
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return ErrGameOver
	}
	out := c.finishLocked(Outcome{
		Status:      board.StatusOngoing,
		Winner:      side.Other(),
		Decisive:    true,
		Termination: "resignation",
		Result:      resultFor(side.Other()),
	})
	c.mu.Unlock()
	c.fireEnd(out)
	return nil
}

// NewGame resets unconditionally and clears any engine-side state. A
// non-empty startFEN replaces the starting position; otherwise the previous
// one is kept. The archive keeps the old game; the record starts fresh under
// a new id.
func (c *Controller) NewGame(ctx context.Context, startFEN string) error {
	startFEN = strings.TrimSpace(startFEN)
	var newStart *board.Board
	if startFEN != "" {
		b, err := board.ParseFEN(startFEN)
		if err != nil {
			return fmt.Errorf("start position: %w", err)
		}
		newStart = b
	}

	c.mu.Lock()
	c.id = uuid.NewString()
	if newStart != nil {
		c.start = newStart
		c.startFEN = startFEN
	}
	c.cur = c.start.Copy()
	c.history = nil
	c.hashes = []uint64{c.start.Hash()}
	c.state = StateAwaitingMove
	c.outcome = Outcome{}
	c.started = time.Now()
	if c.clock != nil {
		c.clock.Stop()
	}
	if c.clockCfg != nil {
		c.clock = NewClock(*c.clockCfg, c.forfeitOnTime)
		c.clock.Start(c.start.SideToMove)
	}
	engine := c.engine
	c.mu.Unlock()

	if engine != nil {
		if err := engine.NewGame(ctx); err != nil {
			return fmt.Errorf("engine new game: %w", err)
		}
	}
	obslog.L().Info("game_reset", zap.String("game_id", c.id))
	return nil
}

// RequestEngineMove asks the attached engine for a move in the live position
// and applies it. The context deadline bounds the wait: on expiry the search
// is cancelled and ErrTimeout returned. A reply that lands after the position
// changed is discarded as stale, and an illegal reply is reported to the
// session as a protocol fault instead of touching the board.
func (c *Controller) RequestEngineMove(ctx context.Context, budget uci.Budget) (Applied, error) {
	c.mu.Lock()
	if c.engine == nil {
		c.mu.Unlock()
		return Applied{}, ErrNoEngine
	}
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return Applied{}, ErrGameOver
	}
	req := uci.SearchRequest{
		FEN:    c.startFEN,
		Moves:  c.uciMovesLocked(),
		Budget: budget,
	}
	want := c.cur.Hash()
	engine := c.engine
	c.mu.Unlock()

	p, err := engine.RequestMove(ctx, req)
	if err != nil {
		return Applied{}, c.noteEngineErr(err)
	}

	res, err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		_ = engine.Cancel()
		grace, cancelGrace := context.WithTimeout(context.Background(), stopGrace)
		res, err = p.Wait(grace)
		cancelGrace()
		if err != nil {
			return Applied{}, fmt.Errorf("%w: engine search deadline", ErrTimeout)
		}
	}
	if err != nil {
		return Applied{}, c.noteEngineErr(err)
	}
	return c.applyEngineMove(want, res.BestMove)
}

// applyEngineMove validates the engine reply against the position it was
// requested for and commits it. The hash check and the commit share one
// critical section so a concurrent human move cannot slip between them.
func (c *Controller) applyEngineMove(want uint64, bestmove string) (Applied, error) {
	c.mu.Lock()
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return Applied{}, ErrGameOver
	}
	if c.cur.Hash() != want {
		c.mu.Unlock()
		obslog.L().Warn("engine_move_stale",
			zap.String("game_id", c.id),
			zap.String("bestmove", bestmove),
		)
		return Applied{}, ErrStaleEngineMove
	}
	m, err := notation.ParseUCI(c.cur, bestmove)
	if err != nil {
		c.mu.Unlock()
		degraded := c.engine.ProtocolFault("illegal bestmove " + bestmove)
		perr := fmt.Errorf("engine played illegal move %q: %w", bestmove, err)
		if degraded {
			perr = fmt.Errorf("%w: %v", uci.ErrEngineUnavailable, perr)
			c.fireEngineUnavailable(perr)
		}
		return Applied{}, perr
	}
	applied, ended, err := c.commitLocked(m, true)
	c.mu.Unlock()
	if err != nil {
		if ended != nil {
			c.fireEnd(*ended)
		}
		return Applied{}, err
	}
	c.fireMove(applied, ended)
	return applied, nil
}

// PGN renders the game record, including the result once known.
func (c *Controller) PGN() string {
	c.mu.Lock()
	tags := notation.Tags{
		Event:       "chesscore game",
		White:       c.white,
		Black:       c.black,
		Date:        c.started,
		Result:      c.outcome.Result,
		Termination: c.outcome.Termination,
		FEN:         c.startFEN,
	}
	sans := make([]string, len(c.history))
	for i, e := range c.history {
		sans[i] = e.SAN
	}
	c.mu.Unlock()

	var sb strings.Builder
	_ = notation.WritePGN(&sb, tags, sans)
	return sb.String()
}

// forfeitOnTime is the clock expiry callback.
func (c *Controller) forfeitOnTime(side board.Color) {
	c.mu.Lock()
	if c.state != StateAwaitingMove {
		c.mu.Unlock()
		return
	}
	out := c.finishLocked(timeoutOutcome(side))
	c.mu.Unlock()
	c.fireEnd(out)
}

// finishLocked transitions to GameOver and flushes the archive. Caller holds
// c.mu.
func (c *Controller) finishLocked(out Outcome) Outcome {
	c.state = StateGameOver
	c.outcome = out
	if c.clock != nil {
		c.clock.Stop()
	}
	obslog.L().Info("game_end",
		zap.String("game_id", c.id),
		zap.String("result", out.Result),
		zap.String("termination", out.Termination),
		zap.Int("plies", len(c.history)),
	)
	if c.store != nil {
		summary := c.summaryLocked()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.store.SaveGame(ctx, summary); err != nil {
				obslog.L().Error("game_archive_error",
					zap.String("game_id", summary.ID),
					zap.Error(err),
				)
			}
		}()
	}
	return out
}

func (c *Controller) summaryLocked() archive.GameSummary {
	sans := make([]string, len(c.history))
	ucis := make([]string, len(c.history))
	for i, e := range c.history {
		sans[i] = e.SAN
		ucis[i] = e.UCI
	}
	var sb strings.Builder
	_ = notation.WritePGN(&sb, notation.Tags{
		Event:       "chesscore game",
		White:       c.white,
		Black:       c.black,
		Date:        c.started,
		Result:      c.outcome.Result,
		Termination: c.outcome.Termination,
		FEN:         c.startFEN,
	}, sans)
	return archive.GameSummary{
		ID:          c.id,
		White:       c.white,
		Black:       c.black,
		Result:      c.outcome.Result,
		Termination: c.outcome.Termination,
		StartFEN:    c.startFEN,
		MovesSAN:    sans,
		MovesUCI:    ucis,
		PGN:         sb.String(),
		StartedAt:   c.started,
		EndedAt:     time.Now(),
	}
}

func (c *Controller) uciMovesLocked() []string {
	moves := make([]string, len(c.history))
	for i, e := range c.history {
		moves[i] = e.UCI
	}
	return moves
}

func (c *Controller) noteEngineErr(err error) error {
	if errors.Is(err, uci.ErrEngineUnavailable) {
		c.fireEngineUnavailable(err)
	}
	return err
}

func (c *Controller) fireMove(applied Applied, ended *Outcome) {
	if applied.FromEngine && c.events.OnEngineMoveReceived != nil {
		c.events.OnEngineMoveReceived(applied)
	}
	if c.events.OnMoveApplied != nil {
		c.events.OnMoveApplied(applied)
	}
	if ended != nil {
		c.fireEnd(*ended)
	}
}

func (c *Controller) fireEnd(out Outcome) {
	if c.events.OnGameEnded != nil {
		c.events.OnGameEnded(out)
	}
}

func (c *Controller) fireEngineUnavailable(err error) {
	if c.events.OnEngineUnavailable != nil {
		c.events.OnEngineUnavailable(err)
	}
}

func outcomeFromStatus(st board.GameStatus) Outcome {
	switch st.Kind {
	case board.StatusCheckmate:
		return Outcome{
			Status:      st.Kind,
			Winner:      st.Winner,
			Decisive:    true,
			Termination: "checkmate",
			Result:      resultFor(st.Winner),
		}
	case board.StatusStalemate:
		return Outcome{Status: st.Kind, Termination: "stalemate", Result: "1/2-1/2"}
	default:
		return Outcome{Status: st.Kind, Termination: st.Draw.String(), Result: "1/2-1/2"}
	}
}

func timeoutOutcome(loser board.Color) Outcome {
	return Outcome{
		Status:      board.StatusOngoing,
		Winner:      loser.Other(),
		Decisive:    true,
		Termination: "time forfeit",
		Result:      resultFor(loser.Other()),
	}
}

func resultFor(winner board.Color) string {
	if winner == board.White {
		return "1-0"
	}
	return "0-1"
}
