package session

import (
	"testing"
	"time"

	"github.com/quizforge/attemptd/internal/clock"
)

func collectTimer(clk clock.Clock, deadline time.Time) (*CountdownTimer, chan int64, chan struct{}) {
	ticks := make(chan int64, 16)
	expired := make(chan struct{}, 16)
	t := NewCountdownTimer(clk, deadline, func(rem int64) {
		ticks <- rem
	}, func() {
		expired <- struct{}{}
	})
	return t, ticks, expired
}

func waitTick(t *testing.T, ticks chan int64) int64 {
	t.Helper()
	select {
	case rem := <-ticks:
		return rem
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func waitExpiry(t *testing.T, expired chan struct{}) {
	t.Helper()
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry")
	}
}

func TestTimerTicksCountDown(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	timer, ticks, expired := collectTimer(clk, clk.Now().Add(3*time.Second))
	timer.Start()

	clk.Advance(time.Second)
	if rem := waitTick(t, ticks); rem != 2 {
		t.Errorf("first tick remaining = %d, want 2", rem)
	}

	clk.Advance(time.Second)
	if rem := waitTick(t, ticks); rem != 1 {
		t.Errorf("second tick remaining = %d, want 1", rem)
	}

	clk.Advance(time.Second)
	waitExpiry(t, expired)

	// The timer is single-fire: nothing after expiry.
	clk.Advance(time.Second)
	select {
	case rem := <-ticks:
		t.Errorf("tick %d after expiry", rem)
	case <-expired:
		t.Error("second expiry event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerSkippedTicksStillExpire(t *testing.T) {
	// A suspended host delivers one late tick long after the deadline;
	// the timer must expire immediately instead of counting down.
	clk := clock.NewManual(time.Unix(1700000000, 0))
	timer, ticks, expired := collectTimer(clk, clk.Now().Add(5*time.Second))
	timer.Start()

	clk.Advance(30 * time.Second)
	waitExpiry(t, expired)

	select {
	case rem := <-ticks:
		t.Errorf("unexpected tick %d, expiry should have fired directly", rem)
	default:
	}
}

func TestTimerImmediateExpiryWhenPastDeadline(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	timer, _, expired := collectTimer(clk, clk.Now().Add(-time.Second))
	timer.Start()
	waitExpiry(t, expired)
}

func TestTimerStopSuppressesEverything(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	timer, ticks, expired := collectTimer(clk, clk.Now().Add(2*time.Second))
	timer.Start()
	timer.Stop()
	timer.Stop() // idempotent

	clk.Advance(5 * time.Second)
	select {
	case <-ticks:
		t.Error("tick after Stop")
	case <-expired:
		t.Error("expiry after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimerRemainingNeverNegative(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	timer, _, expired := collectTimer(clk, clk.Now().Add(time.Second))
	timer.Start()

	clk.Advance(10 * time.Second)
	waitExpiry(t, expired)

	if rem := timer.Remaining(); rem != 0 {
		t.Errorf("Remaining after deadline = %v, want 0", rem)
	}
	if secs := timer.RemainingSeconds(); secs != 0 {
		t.Errorf("RemainingSeconds after deadline = %d, want 0", secs)
	}
}

func TestTimerRemainingRoundsUp(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	timer, _, _ := collectTimer(clk, clk.Now().Add(1500*time.Millisecond))

	if secs := timer.RemainingSeconds(); secs != 2 {
		t.Errorf("RemainingSeconds = %d, want 2 (round up, never a premature 0)", secs)
	}
}
