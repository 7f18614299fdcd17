package uci

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeFakeEngine drops a shell script that speaks just enough UCI for one
// test. Each case responds to handshake lines and customizes the "go" reply.
func writeFakeEngine(t *testing.T, goReply string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine needs /bin/sh")
	}
	script := `#!/bin/sh
while read -r line; do
  case "$line" in
    uci) echo "id name fakefish"; echo "option name Hash type spin default 16 min 1 max 1024"; echo "uciok" ;;
    isready) echo "readyok" ;;
    ucinewgame) ;;
    go*) ` + goReply + ` ;;
    stop) ;;
    quit) exit 0 ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}

func newTestSession(t *testing.T, goReply string, opt Options) *Session {
	t.Helper()
	bin := writeFakeEngine(t, goReply)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := NewSession(ctx, bin, opt)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionHandshakeAndSearch(t *testing.T) {
	s := newTestSession(t, `echo "info depth 1 score cp 13 pv e2e4"; echo "bestmove e2e4 ponder e7e5"`, Options{})
	if got := s.Phase(); got != PhaseReady {
		t.Fatalf("phase after handshake = %v, want ready", got)
	}

	var infos []Info
	s.OnInfo(func(i Info) { infos = append(infos, i) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{MoveTime: 50 * time.Millisecond}})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	res, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.BestMove != "e2e4" || res.Ponder != "e7e5" {
		t.Errorf("result = %+v", res)
	}
	if got := s.Phase(); got != PhaseReady {
		t.Errorf("phase after bestmove = %v, want ready", got)
	}
	if len(infos) == 0 || infos[0].Depth != 1 || infos[0].ScoreCP != 13 {
		t.Errorf("info callback saw %+v", infos)
	}

	// The session is reusable for the next search.
	p, err = s.RequestMove(ctx, SearchRequest{Moves: []string{"e2e4", "e7e5"}, Budget: Budget{Depth: 1}})
	if err != nil {
		t.Fatalf("second RequestMove: %v", err)
	}
	if _, err := p.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
}

func TestSessionPromotionBestMove(t *testing.T) {
	s := newTestSession(t, `echo "bestmove e7e8q"`, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{
		FEN:    "4k3/4P3/8/8/8/8/8/4K3 w - - 0 1",
		Budget: Budget{Depth: 1},
	})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	res, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.BestMove != "e7e8q" {
		t.Errorf("bestmove = %q, want e7e8q", res.BestMove)
	}
}

func TestSessionMalformedBestMoveCounted(t *testing.T) {
	s := newTestSession(t, `echo "bestmove xyzzy"`, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}

	// The malformed line is counted but no valid bestmove ever arrives, so
	// the pending search only resolves once the caller's deadline fires.
	waitCtx, waitCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer waitCancel()
	if _, err := p.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v, want deadline exceeded", err)
	}
	if got := s.Faults(); got != 1 {
		t.Errorf("fault count = %d, want 1", got)
	}
	if got := s.Phase(); got == PhaseDisconnected {
		t.Error("a single malformed line must not degrade the session")
	}
}

func TestSessionFaultBudgetDegrades(t *testing.T) {
	reply := `echo "bestmove bogus1"; echo "bestmove bogus2"; echo "bestmove bogus3"`
	s := newTestSession(t, reply, Options{FaultBudget: 2})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	if _, err := p.Wait(ctx); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("Wait err = %v, want ErrEngineUnavailable", err)
	}
	if got := s.Phase(); got != PhaseDisconnected {
		t.Errorf("phase = %v, want disconnected", got)
	}
	if _, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}}); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("RequestMove on degraded session err = %v", err)
	}
}

func TestSessionBestMoveNone(t *testing.T) {
	s := newTestSession(t, `echo "bestmove (none)"`, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{
		FEN:    "7k/5KQ1/8/8/8/8/8/8 b - - 0 1",
		Budget: Budget{Depth: 1},
	})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	if _, err := p.Wait(ctx); !errors.Is(err, ErrNoMove) {
		t.Errorf("Wait err = %v, want ErrNoMove", err)
	}
	if got := s.Phase(); got != PhaseReady {
		t.Errorf("phase = %v, want ready", got)
	}
}

func TestSessionRejectsConcurrentSearch(t *testing.T) {
	s := newTestSession(t, `sleep 1; echo "bestmove e2e4"`, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	if _, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}}); !errors.Is(err, ErrSearchInProgress) {
		t.Errorf("second RequestMove err = %v, want ErrSearchInProgress", err)
	}
	if err := s.Cancel(); err != nil {
		t.Errorf("Cancel: %v", err)
	}
	if _, err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait after cancel: %v", err)
	}
}

func TestSessionCloseResolvesPending(t *testing.T) {
	s := newTestSession(t, `sleep 5`, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Wait(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait err = %v, want ErrCancelled", err)
	}
}

func TestSessionEngineCrashFailsPending(t *testing.T) {
	s := newTestSession(t, `exit 7`, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.RequestMove(ctx, SearchRequest{Budget: Budget{Depth: 1}})
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	if _, err := p.Wait(ctx); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Wait err = %v, want ErrEngineUnavailable", err)
	}
}

func TestSessionNewGame(t *testing.T) {
	s := newTestSession(t, `echo "bestmove e2e4"`, Options{Threads: 2, HashMB: 64, SkillLevel: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if got := s.Phase(); got != PhaseReady {
		t.Errorf("phase = %v, want ready", got)
	}
}

func TestBudgetTokens(t *testing.T) {
	cases := []struct {
		name string
		b    Budget
		want string
	}{
		{"empty defaults to fixed depth", Budget{}, "go depth 20"},
		{"movetime", Budget{MoveTime: 1500 * time.Millisecond}, "go movetime 1500"},
		{"depth", Budget{Depth: 12}, "go depth 12"},
		{
			"clock",
			Budget{WTime: 60 * time.Second, BTime: 45 * time.Second, WInc: 2 * time.Second, BInc: 2 * time.Second},
			"go wtime 60000 btime 45000 winc 2000 binc 2000",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.b.tokens()
			joined := ""
			for i, tok := range got {
				if i > 0 {
					joined += " "
				}
				joined += tok
			}
			if joined != tc.want {
				t.Errorf("tokens = %q, want %q", joined, tc.want)
			}
		})
	}
}

func TestBuildPositionCommand(t *testing.T) {
	if got := buildPositionCommand("", nil); got != "position startpos\n" {
		t.Errorf("startpos: %q", got)
	}
	if got := buildPositionCommand("startpos", []string{"e2e4", "e7e5"}); got != "position startpos moves e2e4 e7e5\n" {
		t.Errorf("startpos with moves: %q", got)
	}
	fen := "4k3/8/8/8/8/8/8/4K2R w K - 0 1"
	if got := buildPositionCommand(fen, []string{"h1h8"}); got != "position fen "+fen+" moves h1h8\n" {
		t.Errorf("fen with moves: %q", got)
	}
}

func TestValidateOptions(t *testing.T) {
	if err := validateOptions(Options{SkillLevel: 21}); err == nil {
		t.Error("skill 21 must be rejected")
	}
	if err := validateOptions(Options{HashMB: -1}); err == nil {
		t.Error("negative hash must be rejected")
	}
	if err := validateOptions(Options{Threads: 4, HashMB: 128, SkillLevel: 20}); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}
}
