package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a vb.Clock that only moves when a test moves it. Safe for
// concurrent use.
type StubClock struct {
	mu    sync.Mutex
	now   time.Time
	tick  time.Duration
	reads int
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock at 2024-01-15 10:30:00 UTC, the moment the
// vault fixtures across the tests were written.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

// Now returns the current stub time, then moves it on by the tick.
func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.tick)
	c.reads++
	return now
}

// Tick makes every Now call advance the clock by d, so markers written
// one after another get distinct times.
func (c *StubClock) Tick(d time.Duration) *StubClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = d
	return c
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Reads reports how often Now has been called.
func (c *StubClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// StubIDGenerator hands out run ids "run-1", "run-2", and so on, and
// remembers them.
type StubIDGenerator struct {
	mu     sync.Mutex
	issued []string
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("run-%d", len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// Issued returns every id handed out so far, oldest first.
func (g *StubIDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
