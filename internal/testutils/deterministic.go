package testutils

import (
	"fmt"
	"sync"
	"time"
)

// DeterministicIDs returns a generator producing UUID-shaped identifiers
// 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, ...
func DeterministicIDs() func() string {
	var (
		mu      sync.Mutex
		counter uint64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("%08x-0000-4000-8000-%012x", counter, counter)
	}
}

// FixedClock returns a clock starting at 2025-01-01T00:00:00Z that only moves when Advance is called.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a FixedClock at the base time.
func NewFixedClock() *FixedClock {
	return &FixedClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the clock's current time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
