package game

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
)

var errTurnExpired = errors.New("turn expired")

// TickFunc receives every tick of an armed TurnTimer along with the
// generation it was armed with and the time left. remaining is zero on the
// final tick.
type TickFunc func(gen uint64, remaining time.Duration)

// TurnTimer is the countdown attached to the acting seat. It is not safe for
// concurrent use; the owning table calls it with its lock held. Ticks are
// delivered on the clock's goroutine and must take that lock themselves,
// then check Current to drop ticks from a timer that has since been
// cancelled.
type TurnTimer struct {
	clock    quartz.Clock
	timeout  time.Duration
	interval time.Duration

	gen    uint64
	cancel context.CancelFunc
}

// NewTurnTimer creates a stopped timer.
func NewTurnTimer(clock quartz.Clock, timeout, interval time.Duration) *TurnTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &TurnTimer{clock: clock, timeout: timeout, interval: interval}
}

// Arm cancels any running countdown and starts a new one, returning its
// generation.
func (tt *TurnTimer) Arm(fn TickFunc) uint64 {
	tt.Cancel()
	tt.gen++
	gen := tt.gen

	ctx, cancel := context.WithCancel(context.Background())
	tt.cancel = cancel

	remaining := tt.timeout
	tt.clock.TickerFunc(ctx, tt.interval, func() error {
		remaining -= tt.interval
		if remaining < 0 {
			remaining = 0
		}
		fn(gen, remaining)
		if remaining == 0 {
			return errTurnExpired
		}
		return nil
	}, "turn-timer")

	return gen
}

// Cancel stops the running countdown, if any. It never blocks.
func (tt *TurnTimer) Cancel() {
	if tt.cancel != nil {
		tt.cancel()
		tt.cancel = nil
	}
}

// Current reports whether gen belongs to the countdown that is still armed.
func (tt *TurnTimer) Current(gen uint64) bool {
	return tt.cancel != nil && gen == tt.gen
}

// Timeout returns the full countdown length.
func (tt *TurnTimer) Timeout() time.Duration {
	return tt.timeout
}
