package session

import (
	"sync"
	"time"

	"github.com/quizforge/attemptd/internal/clock"
)

// CountdownTimer drives one attempt's deadline. It reports remaining time
// once per second via onTick while time remains, then calls onExpire
// exactly once and goes quiet for good.
//
// Remaining time is always recomputed as deadline minus now, never counted
// down, so missed ticks (a suspended host, a slow consumer) cannot skew it:
// the first tick after a stall sees the true remaining time, and expiry
// fires immediately if the deadline has already passed.
type CountdownTimer struct {
	clk      clock.Clock
	deadline time.Time
	onTick   func(remainingSeconds int64)
	onExpire func()

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCountdownTimer creates a timer for the given deadline. Call Start to
// begin ticking. Callbacks run on the timer's own goroutine.
func NewCountdownTimer(clk clock.Clock, deadline time.Time, onTick func(int64), onExpire func()) *CountdownTimer {
	return &CountdownTimer{
		clk:      clk,
		deadline: deadline,
		onTick:   onTick,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
}

// Start launches the tick loop. If the deadline has already passed, expiry
// fires immediately.
func (t *CountdownTimer) Start() {
	go t.run()
}

func (t *CountdownTimer) run() {
	if t.RemainingSeconds() <= 0 {
		t.onExpire()
		return
	}

	ticker := t.clk.Ticker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C():
			rem := t.RemainingSeconds()
			if rem <= 0 {
				t.onExpire()
				return
			}
			t.onTick(rem)
		}
	}
}

// Stop cancels all future ticks and the expiry callback. Calling it more
// than once, or after expiry, is a no-op.
func (t *CountdownTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Remaining returns the time left before the deadline, floored at zero.
func (t *CountdownTimer) Remaining() time.Duration {
	rem := t.deadline.Sub(t.clk.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

// RemainingSeconds returns Remaining rounded up to whole seconds, so a
// session with 0.5s left still reports 1 rather than a premature 0.
func (t *CountdownTimer) RemainingSeconds() int64 {
	rem := t.Remaining()
	if rem == 0 {
		return 0
	}
	return int64((rem + time.Second - 1) / time.Second)
}
