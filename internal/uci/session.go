// Package uci drives an external chess engine subprocess over the Universal
// Chess Interface. A Session owns the process exclusively: one reader
// goroutine consumes stdout, searches are asynchronous Pending results, and
// malformed output is tolerated up to a bounded fault budget before the
// session degrades instead of crashing the game.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chesscore/internal/obslog"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	defaultFaultBudget   = 8
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
)

var (
	// ErrEngineUnavailable marks a session whose subprocess exited, crashed,
	// or exceeded the protocol fault budget. The game continues without it.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrSearchInProgress rejects a second concurrent search on one session.
	ErrSearchInProgress = errors.New("search already in progress")

	// ErrNotReady rejects a search outside the Ready phase.
	ErrNotReady = errors.New("session not ready")

	// ErrCancelled resolves a pending search torn down before any bestmove
	// arrived.
	ErrCancelled = errors.New("search cancelled")

	// ErrNoMove is returned when the engine reports "bestmove (none)".
	ErrNoMove = errors.New("engine reported no move")
)

// ProtocolError describes a single out-of-protocol engine line. Repeated
// occurrences consume the fault budget and escalate to ErrEngineUnavailable.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("engine protocol error: %s (line %q)", e.Reason, e.Line)
}

// Phase is the session lifecycle state.
type Phase int32

const (
	PhaseDisconnected Phase = iota
	PhaseInitializing
	PhaseReady
	PhaseThinking
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseThinking:
		return "thinking"
	}
	return "disconnected"
}

// Options are engine setoption values applied during the handshake.
type Options struct {
	Threads    int
	HashMB     int
	SkillLevel int // 0-20, Stockfish convention

	// FaultBudget overrides the malformed-line tolerance; zero keeps the
	// default.
	FaultBudget int
}

func validateOptions(opt Options) error {
	if opt.SkillLevel < 0 || opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	if opt.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", opt.HashMB)
	}
	return nil
}

// Budget is the time allowance for one search.
type Budget struct {
	MoveTime time.Duration
	Depth    int

	WTime, BTime time.Duration
	WInc, BInc   time.Duration
}

// tokens renders the go command. An empty budget falls back to a fixed-depth
// search so the engine always terminates.
func (b Budget) tokens() []string {
	args := []string{"go"}
	if b.MoveTime > 0 {
		args = append(args, "movetime", strconv.FormatInt(b.MoveTime.Milliseconds(), 10))
	}
	if b.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(b.Depth))
	}
	if b.WTime > 0 {
		args = append(args, "wtime", strconv.FormatInt(b.WTime.Milliseconds(), 10))
	}
	if b.BTime > 0 {
		args = append(args, "btime", strconv.FormatInt(b.BTime.Milliseconds(), 10))
	}
	if b.WInc > 0 {
		args = append(args, "winc", strconv.FormatInt(b.WInc.Milliseconds(), 10))
	}
	if b.BInc > 0 {
		args = append(args, "binc", strconv.FormatInt(b.BInc.Milliseconds(), 10))
	}
	if len(args) == 1 {
		args = append(args, "depth", "20")
	}
	return args
}

// SearchRequest carries the position as the full move history from the last
// known-good position, never an incremental diff, so a dropped response
// cannot desync engine and controller.
type SearchRequest struct {
	FEN    string // "" or "startpos" for the initial position
	Moves  []string
	Budget Budget
}

// Info is a parsed engine info line, surfaced for display only.
type Info struct {
	Depth   int
	ScoreCP int
	MateIn  int
	PV      []string
}

// Result is a completed search.
type Result struct {
	BestMove string
	Ponder   string
}

// Pending is an in-flight search. It always resolves: with the engine's
// bestmove, with ErrCancelled on teardown, or with ErrEngineUnavailable when
// the session degrades.
type Pending struct {
	done chan struct{}
	once sync.Once
	res  Result
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(res Result, err error) {
	p.once.Do(func() {
		p.res, p.err = res, err
		close(p.done)
	})
}

// Done is closed once the search resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the outcome after Done is closed.
func (p *Pending) Result() (Result, error) {
	select {
	case <-p.done:
		return p.res, p.err
	default:
		return Result{}, ErrSearchInProgress
	}
}

// Wait blocks for the outcome or the context.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.done:
		return p.res, p.err
	}
}

// Session manages one engine subprocess.
type Session struct {
	binary string
	cmd    *exec.Cmd
	stdin  io.WriteCloser

	phase atomic.Int32

	mu          sync.Mutex // guards stdin writes, pending, fault count
	pending     *Pending
	faults      int
	faultBudget int

	uciok   chan struct{}
	readyok chan struct{}
	exited  chan struct{}

	onInfo atomic.Value // func(Info)

	closeOnce sync.Once
}

// NewSession spawns the engine and completes the identification handshake:
// uci → uciok, options, isready → readyok. On any failure the subprocess is
// torn down before returning.
func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	budget := opt.FaultBudget
	if budget <= 0 {
		budget = defaultFaultBudget
	}
	s := &Session{
		binary:      binaryPath,
		cmd:         cmd,
		stdin:       stdin,
		faultBudget: budget,
		uciok:       make(chan struct{}, 1),
		readyok:     make(chan struct{}, 1),
		exited:      make(chan struct{}),
	}
	s.phase.Store(int32(PhaseInitializing))

	go s.readLoop(stdout)
	go s.reap()

	if err := s.initialize(ctx, opt); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.phase.Store(int32(PhaseReady))
	obslog.L().Info("engine_session_ready", zap.String("binary", binaryPath))
	return s, nil
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// OnInfo registers a callback for parsed info lines, invoked on the reader
// goroutine.
func (s *Session) OnInfo(fn func(Info)) { s.onInfo.Store(fn) }

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.await(initCtx, s.uciok); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := s.applyOptions(opt); err != nil {
		return err
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.await(initCtx, s.readyok); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(opt Options) error {
	var cmds []string
	if opt.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d\n", opt.Threads))
	}
	if opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	if opt.SkillLevel > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Skill Level value %d\n", opt.SkillLevel))
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

// RequestMove submits a search. Only one search may be in flight; the
// returned Pending resolves with the best move or an error. Deadlines are the
// caller's concern: race the Pending against a timer and Cancel on expiry.
func (s *Session) RequestMove(ctx context.Context, req SearchRequest) (*Pending, error) {
	switch s.Phase() {
	case PhaseReady:
	case PhaseThinking:
		return nil, ErrSearchInProgress
	default:
		return nil, ErrEngineUnavailable
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrSearchInProgress
	}
	p := newPending()
	s.pending = p
	s.mu.Unlock()

	pos := buildPositionCommand(req.FEN, req.Moves)
	goCmd := strings.Join(req.Budget.tokens(), " ") + "\n"
	if err := s.send(pos); err != nil {
		s.fail(fmt.Errorf("send position: %w", err))
		return nil, ErrEngineUnavailable
	}
	if err := s.send(goCmd); err != nil {
		s.fail(fmt.Errorf("send go: %w", err))
		return nil, ErrEngineUnavailable
	}
	s.phase.Store(int32(PhaseThinking))
	obslog.L().Debug("engine_search_start",
		zap.String("position", strings.TrimSpace(pos)),
		zap.String("go", strings.TrimSpace(goCmd)),
	)
	return p, nil
}

// Cancel asks the engine to stop the current search. Advisory: the pending
// result still resolves with whatever bestmove the engine reports.
func (s *Session) Cancel() error {
	if s.Phase() != PhaseThinking {
		return nil
	}
	return s.send("stop\n")
}

// NewGame clears any engine-side cached state between games.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	for attempt := 1; ; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
}

// EnsureReady round-trips isready/readyok.
func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.await(readyCtx, s.readyok); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// ProtocolFault charges one fault from outside the reader, e.g. when the
// reported best move turns out to be illegal against the current position.
// It reports whether the session degraded as a result.
func (s *Session) ProtocolFault(reason string) bool {
	return s.chargeFault(&ProtocolError{Reason: reason})
}

// Close tears the session down. A pending search resolves with ErrCancelled.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.resolvePending(Result{}, ErrCancelled)
		s.phase.Store(int32(PhaseDisconnected))
		_ = s.send("quit\n")
		s.stdin.Close()
		select {
		case <-s.exited:
		case <-time.After(500 * time.Millisecond):
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
			<-s.exited
		}
	})
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) await(ctx context.Context, ch chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.exited:
		return ErrEngineUnavailable
	case <-ch:
		return nil
	}
}

// readLoop owns stdout. It never blocks the controller: lines are dispatched
// here and searches resolve through Pending.
func (s *Session) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.handleLine(strings.TrimSpace(sc.Text()))
	}
}

// reap waits for subprocess exit and fails the session if a search was in
// flight.
func (s *Session) reap() {
	err := s.cmd.Wait()
	close(s.exited)
	if s.Phase() != PhaseDisconnected {
		s.fail(fmt.Errorf("engine exited: %v", err))
	}
}

func (s *Session) handleLine(line string) {
	switch {
	case line == "":
	case line == "uciok":
		signal(s.uciok)
	case line == "readyok":
		signal(s.readyok)
	case strings.HasPrefix(line, "bestmove"):
		s.handleBestMove(line)
	case strings.HasPrefix(line, "info"):
		if fn, ok := s.onInfo.Load().(func(Info)); ok && fn != nil {
			if info, parsed := parseInfo(line); parsed {
				fn(info)
			}
		}
	case strings.HasPrefix(line, "id ") || strings.HasPrefix(line, "option "):
		// Handshake chatter, expected and ignored.
	default:
		s.chargeFault(&ProtocolError{Line: line, Reason: "unrecognized line"})
	}
}

func (s *Session) handleBestMove(line string) {
	parts := strings.Fields(line)
	if len(parts) < 2 || !plausibleMove(parts[1]) {
		if parts = parts[1:]; len(parts) > 0 && parts[0] == "(none)" {
			s.resolvePending(Result{}, ErrNoMove)
			s.phase.CompareAndSwap(int32(PhaseThinking), int32(PhaseReady))
			return
		}
		s.chargeFault(&ProtocolError{Line: line, Reason: "unparsable bestmove"})
		return
	}
	res := Result{BestMove: parts[1]}
	if len(parts) >= 4 && parts[2] == "ponder" {
		res.Ponder = parts[3]
	}
	s.resolvePending(res, nil)
	s.phase.CompareAndSwap(int32(PhaseThinking), int32(PhaseReady))
}

func (s *Session) resolvePending(res Result, err error) {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p != nil {
		p.resolve(res, err)
	}
}

// chargeFault counts a malformed or out-of-protocol response. Within budget
// the line is ignored; over budget the session degrades.
func (s *Session) chargeFault(perr *ProtocolError) bool {
	s.mu.Lock()
	s.faults++
	n := s.faults
	s.mu.Unlock()
	obslog.L().Warn("engine_protocol_fault",
		zap.String("line", perr.Line),
		zap.String("reason", perr.Reason),
		zap.Int("fault", n),
		zap.Int("budget", s.faultBudget),
	)
	if n > s.faultBudget {
		s.fail(fmt.Errorf("%v: fault budget exceeded", perr))
		return true
	}
	return false
}

// Faults returns the malformed-response count seen so far.
func (s *Session) Faults() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// fail marks the session degraded: the pending search resolves with
// ErrEngineUnavailable and the subprocess is terminated.
func (s *Session) fail(cause error) {
	s.phase.Store(int32(PhaseDisconnected))
	s.resolvePending(Result{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, cause))
	obslog.L().Error("engine_session_failed", zap.String("binary", s.binary), zap.Error(cause))
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

// plausibleMove checks wire-form syntax only; legality against the board is
// the controller's call.
func plausibleMove(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if s[0] < 'a' || s[0] > 'h' || s[2] < 'a' || s[2] > 'h' {
		return false
	}
	if s[1] < '1' || s[1] > '8' || s[3] < '1' || s[3] > '8' {
		return false
	}
	if len(s) == 5 && !strings.ContainsRune("nbrq", rune(s[4])) {
		return false
	}
	return true
}

func parseInfo(line string) (Info, bool) {
	parts := strings.Fields(line)
	info := Info{}
	seen := false
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					info.Depth = v
					seen = true
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				if v, err := strconv.Atoi(parts[i+2]); err == nil {
					switch parts[i+1] {
					case "cp":
						info.ScoreCP = v
						seen = true
					case "mate":
						info.MateIn = v
						seen = true
					}
				}
				i += 2
			}
		case "pv":
			if i+1 < len(parts) {
				info.PV = append([]string(nil), parts[i+1:]...)
				seen = true
			}
			i = len(parts)
		}
	}
	return info, seen
}
