// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

type (
	// FakeClock is a manually controlled clock. Time only moves when Advance
	// or Set is called. It satisfies supervisor.Clock.
	FakeClock struct {
		mu      sync.Mutex
		current time.Time
		waiters []waiter
		changed chan struct{}
	}

	waiter struct {
		target time.Time
		ch     chan time.Time
	}
)

// NewFakeClock creates a FakeClock initialized to the given time.
// A zero initial time selects a fixed reference time.
func NewFakeClock(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{current: initial, changed: make(chan struct{})}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that fires once the fake time reaches now+d.
// Non-positive durations fire immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.waiters = append(c.waiters, waiter{target: c.current.Add(d), ch: ch})
	c.broadcast()
	return ch
}

// Since returns the fake time elapsed since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Advance moves the fake time forward by d and fires due waiters.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.notifyWaiters()
}

// Set moves the fake time to t and fires due waiters.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	c.notifyWaiters()
}

// Waiters reports how many After channels are still pending.
func (c *FakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// BlockUntilWaiters blocks until at least n After calls are pending or the
// timeout elapses. It reports whether the condition was met.
func (c *FakeClock) BlockUntilWaiters(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		if len(c.waiters) >= n {
			c.mu.Unlock()
			return true
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-deadline:
			return false
		}
	}
}

// notifyWaiters fires every waiter whose target has been reached.
// Must be called with mu held.
func (c *FakeClock) notifyWaiters() {
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if c.current.Before(w.target) {
			remaining = append(remaining, w)
			continue
		}
		select {
		case w.ch <- c.current:
		default:
		}
	}
	c.waiters = remaining
	c.broadcast()
}

// broadcast wakes BlockUntilWaiters callers. Must be called with mu held.
func (c *FakeClock) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}
