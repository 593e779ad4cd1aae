package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a photo.Clock for tests. It starts at a fixed instant and
// moves forward by step after every reading, so a run's start and finish
// times differ while staying reproducible.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStubClock creates a clock that always reads t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// NewSteppingClock creates a clock that reads start, then start+step, and so on.
func NewSteppingClock(start time.Time, step time.Duration) *StubClock {
	return &StubClock{now: start, step: step}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// StubIDGenerator hands out run IDs in the form "run-0001", "run-0002", ...
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return RunID(g.next)
}

// RunID is the n-th ID a fresh StubIDGenerator returns.
func RunID(n int) string {
	return fmt.Sprintf("run-%04d", n)
}
