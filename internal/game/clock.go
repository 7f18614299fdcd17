package game

import (
	"errors"
	"sync"
	"time"

	"github.com/park285/chesscore/internal/board"
)

// ErrTimeout marks a game decided by the clock or an engine search that
// missed its deadline.
var ErrTimeout = errors.New("time forfeit")

// ClockConfig is a per-side time control. Increment is added after each
// completed move, Fischer style.
type ClockConfig struct {
	Initial   time.Duration
	Increment time.Duration
}

// Clock tracks both players' remaining time. The side to move burns time
// continuously; Press charges the mover and starts the opponent. Expiry fires
// the callback once, off the caller's goroutine.
type Clock struct {
	mu        sync.Mutex
	remaining [2]time.Duration
	increment time.Duration
	active    board.Color
	running   bool
	startedAt time.Time
	timer     *time.Timer
	onExpire  func(board.Color)
	expired   bool
}

// NewClock builds a stopped clock. onExpire may be nil.
func NewClock(cfg ClockConfig, onExpire func(board.Color)) *Clock {
	c := &Clock{increment: cfg.Increment, onExpire: onExpire}
	c.remaining[board.White] = cfg.Initial
	c.remaining[board.Black] = cfg.Initial
	return c
}

// Start begins counting down for side.
func (c *Clock) Start(side board.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.expired {
		return
	}
	c.active = side
	c.running = true
	c.startedAt = time.Now()
	c.arm(c.remaining[side])
}

// Press records that mover completed a move: elapsed time is charged, the
// increment credited, and the opponent's countdown starts. Returns ErrTimeout
// when the mover's flag already fell.
func (c *Clock) Press(mover board.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return ErrTimeout
	}
	if !c.running || c.active != mover {
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	elapsed := time.Since(c.startedAt)
	c.remaining[mover] -= elapsed
	if c.remaining[mover] <= 0 {
		c.remaining[mover] = 0
		c.expired = true
		c.running = false
		return ErrTimeout
	}
	c.remaining[mover] += c.increment
	c.active = mover.Other()
	c.startedAt = time.Now()
	c.arm(c.remaining[c.active])
	return nil
}

// Reactivate points the countdown at side without crediting an increment,
// charging the current active side for time spent so far. Used when the game
// record is rewound and the side to move changes without a completed move.
// Returns ErrTimeout when charging the elapsed time empties the active side's
// clock.
func (c *Clock) Reactivate(side board.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return ErrTimeout
	}
	if !c.running || c.active == side {
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	prev := c.active
	c.remaining[prev] -= time.Since(c.startedAt)
	if c.remaining[prev] <= 0 {
		c.remaining[prev] = 0
		c.expired = true
		c.running = false
		return ErrTimeout
	}
	c.active = side
	c.startedAt = time.Now()
	c.arm(c.remaining[side])
	return nil
}

// Stop halts the countdown without charging anyone.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.running {
		c.remaining[c.active] -= time.Since(c.startedAt)
		if c.remaining[c.active] < 0 {
			c.remaining[c.active] = 0
		}
	}
	c.running = false
}

// Remaining reports side's time left, live for the active side.
func (c *Clock) Remaining(side board.Color) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.remaining[side]
	if c.running && c.active == side {
		r -= time.Since(c.startedAt)
	}
	if r < 0 {
		r = 0
	}
	return r
}

// arm schedules the expiry check for the active side. Caller holds c.mu.
func (c *Clock) arm(wait time.Duration) {
	side := c.active
	c.timer = time.AfterFunc(wait, func() { c.fire(side) })
}

func (c *Clock) fire(side board.Color) {
	c.mu.Lock()
	if !c.running || c.expired || c.active != side {
		c.mu.Unlock()
		return
	}
	if left := c.remaining[side] - time.Since(c.startedAt); left > 0 {
		c.arm(left)
		c.mu.Unlock()
		return
	}
	c.remaining[side] = 0
	c.expired = true
	c.running = false
	cb := c.onExpire
	c.mu.Unlock()
	if cb != nil {
		cb(side)
	}
}
