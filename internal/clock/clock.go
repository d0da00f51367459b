// Package clock abstracts time so the countdown timer can be driven
// deterministically in tests. Production code uses System(), tests inject
// a Manual clock and advance it explicitly.
package clock

import (
	"sync"
	"time"
)

// Clock supplies wall-clock time and periodic tick sources.
// Now must be monotonically non-decreasing across calls.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker delivers periodic time signals until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System returns a Clock backed by the standard time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Ticker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time { return t.t.C }
func (t *systemTicker) Stop()               { t.t.Stop() }

// Manual is a controllable Clock for tests. Advance moves the clock
// forward and signals every open ticker once; consumers that derive
// remaining time from Now stay correct even when ticks are coalesced.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual creates a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Ticker returns a ticker that fires only when Advance is called.
// The interval is ignored; each Advance delivers at most one tick.
func (m *Manual) Ticker(_ time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{c: make(chan time.Time, 1)}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves the clock forward by d and delivers one tick to every
// open ticker. Panics if d is negative — time never goes backward.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance backward")
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	tickers := make([]*manualTicker, len(m.tickers))
	copy(tickers, m.tickers)
	m.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

type manualTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.c <- now:
	default: // consumer is behind, coalesce
	}
}
