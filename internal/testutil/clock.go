package testutil

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"myswing/internal/swing"
)

// StubClock is a manually driven swing.Clock. Cache TTLs and the daily
// tip only move when a test calls Advance or Set.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock at 2026-03-14 09:30:00 UTC, mid-morning so
// a few hours of Advance stay on the same tip day.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// StubIDGenerator hands out "id-1", "id-2", ... and remembers each one, so
// tests can tell a reused idempotency key from a freshly minted one.
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
	id := fmt.Sprintf("id-%d", len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// Issued returns every ID handed out so far, oldest first.
func (g *StubIDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.issued)
}

var (
	_ swing.Clock       = (*StubClock)(nil)
	_ swing.IDGenerator = (*StubIDGenerator)(nil)
)
