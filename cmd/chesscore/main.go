// Command chesscore plays a chess game on the terminal: moves are typed in
// SAN or coordinate form, and an optional UCI engine answers for the other
// side.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chesscore/internal/archive"
	"github.com/park285/chesscore/internal/board"
	appcfg "github.com/park285/chesscore/internal/config"
	"github.com/park285/chesscore/internal/game"
	"github.com/park285/chesscore/internal/obslog"
	"github.com/park285/chesscore/internal/uci"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := pickStore(cfg)

	var engine *uci.Session
	if strings.TrimSpace(cfg.EnginePath) != "" {
		engine, err = uci.NewSession(ctx, cfg.EnginePath, uci.Options{
			Threads:    cfg.EngineThreads,
			HashMB:     cfg.EngineHashMB,
			SkillLevel: cfg.EngineSkillLevel,
		})
		if err != nil {
			log.Fatalf("engine init error: %v", err)
		}
		defer engine.Close()
	}

	opts := game.Options{
		White: cfg.PlayerName,
		Black: cfg.EngineName,
		Store: store,
		Events: game.Events{
			OnGameEnded: func(out game.Outcome) {
				fmt.Printf("\nGame over: %s (%s)\n", out.Result, out.Termination)
			},
			OnEngineUnavailable: func(err error) {
				fmt.Println("engine lost, continuing without it:", err)
			},
		},
	}
	if engine != nil {
		opts.Engine = engine
	}
	if initial, increment, _ := appcfg.ParseTimeControl(cfg.TimeControl); initial > 0 {
		opts.Clock = &game.ClockConfig{Initial: initial, Increment: increment}
	}

	ctl, err := game.NewController(opts)
	if err != nil {
		log.Fatalf("controller init error: %v", err)
	}

	fmt.Println("chesscore: enter moves in SAN (Nf3) or coordinates (g1f3).")
	fmt.Println("commands: moves, undo, new, fen, pgn, resign, quit")
	printBoard(ctl.Board())

	repl(ctx, ctl, engine, cfg)
}

func repl(ctx context.Context, ctl *game.Controller, engine *uci.Session, cfg *appcfg.AppConfig) {
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", ctl.SideToMove())
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		// "new <fen>" starts from a custom position; FEN is case sensitive.
		if strings.HasPrefix(strings.ToLower(line), "new ") {
			if err := ctl.NewGame(ctx, strings.TrimSpace(line[4:])); err != nil {
				fmt.Println(err)
				continue
			}
			printBoard(ctl.Board())
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			return
		case "fen":
			fmt.Println(ctl.FEN())
			continue
		case "pgn":
			fmt.Println(ctl.PGN())
			continue
		case "moves":
			printLegalMoves(ctl)
			continue
		case "undo":
			if err := ctl.Undo(); err != nil {
				fmt.Println(err)
				continue
			}
			printBoard(ctl.Board())
			continue
		case "new":
			if err := ctl.NewGame(ctx, ""); err != nil {
				fmt.Println(err)
				continue
			}
			printBoard(ctl.Board())
			continue
		case "resign":
			if err := ctl.Resign(ctl.SideToMove()); err != nil {
				fmt.Println(err)
			}
			continue
		}

		applied, err := submit(ctl, line)
		if err != nil {
			fmt.Println(describeMoveError(err))
			continue
		}
		printBoard(ctl.Board())
		announce(applied)

		if engine != nil && ctl.State() == game.StateAwaitingMove {
			engineTurn(ctx, ctl, cfg)
		}
	}
}

// submit tries coordinate form first, then SAN, mirroring what players
// actually type.
func submit(ctl *game.Controller, line string) (game.Applied, error) {
	if applied, err := ctl.SubmitUCI(strings.ToLower(line)); err == nil {
		return applied, nil
	} else if errors.Is(err, game.ErrGameOver) {
		return game.Applied{}, err
	}
	return ctl.SubmitSAN(line)
}

func engineTurn(ctx context.Context, ctl *game.Controller, cfg *appcfg.AppConfig) {
	budget := uci.Budget{
		MoveTime: time.Duration(cfg.MoveTimeMillis) * time.Millisecond,
		Depth:    cfg.EngineDepth,
	}
	deadline := budget.MoveTime*2 + 5*time.Second
	reqCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fmt.Println("thinking...")
	applied, err := ctl.RequestEngineMove(reqCtx, budget)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrTimeout):
			fmt.Println("engine missed its deadline, your move")
		case errors.Is(err, game.ErrStaleEngineMove):
			// position moved on; nothing to show
		case errors.Is(err, game.ErrGameOver):
		default:
			fmt.Println("engine error:", err)
		}
		return
	}
	printBoard(ctl.Board())
	announce(applied)
}

func announce(a game.Applied) {
	suffix := ""
	if a.Check {
		suffix = " check"
	}
	who := "you"
	if a.FromEngine {
		who = "engine"
	}
	fmt.Printf("%s played %s (%s)%s\n", who, a.SAN, a.UCI, suffix)
}

func describeMoveError(err error) string {
	var ime *board.IllegalMoveError
	if errors.As(err, &ime) {
		return fmt.Sprintf("illegal move: %v", ime.Move)
	}
	if errors.Is(err, game.ErrGameOver) {
		return "the game is over; start another with new"
	}
	return err.Error()
}

func printLegalMoves(ctl *game.Controller) {
	moves := ctl.LegalMoves()
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	fmt.Println(strings.Join(parts, " "))
}

func printBoard(b *board.Board) {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d ", rank+1)
		for file := 0; file < 8; file++ {
			sq, _ := board.NewSquare(file, rank)
			p := b.PieceAt(sq)
			if p == board.NoPiece {
				sb.WriteString(" .")
			} else {
				sb.WriteString(" ")
				sb.WriteByte(p.FENLetter())
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("   a b c d e f g h\n")
	fmt.Print(sb.String())
}

func pickStore(cfg *appcfg.AppConfig) archive.Store {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		s, err := archive.NewPostgresStore(cfg.DatabaseURL)
		if err == nil {
			return s
		}
		obslog.L().Warn("postgres_store_unavailable", zap.Error(err))
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		s, err := archive.NewRedisStore(cfg.RedisURL)
		if err == nil {
			return s
		}
		obslog.L().Warn("redis_store_unavailable", zap.Error(err))
	}
	return archive.NewMemoryStore()
}
