package testfixtures

import (
	"sync"
	"time"
)

// Clock is the settable "now" handed to services and the cleanup sweeper in
// tests. It starts at ReferenceTime unless told otherwise and only moves when
// a test moves it.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now reports the clock's instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for constructors that take a func() time.Time. A nil
// clock falls back to the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t, backwards if needed.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AdvanceTo moves the clock forward to t, for example to an event's end so
// the next sweep treats it as finished. A t at or before the current instant
// leaves the clock unchanged.
func (c *Clock) AdvanceTo(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.current) {
		c.current = t
	}
	return c.current
}
