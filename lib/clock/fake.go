// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called. After and Sleep register pending
// waiters that fire when the clock advances past their deadline.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.waitersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called. Sleeps block until the clock is advanced
// past their deadline.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

// fakeWaiter represents a pending After or Sleep operation.
type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
	fired    bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives after duration d elapses. If
// d <= 0, the channel receives immediately without registering a
// waiter.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}

	c.waiters = append(c.waiters, &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.waitersChanged.Broadcast()
	return channel
}

// Sleep blocks until the clock has been advanced past the deadline.
func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// Advance moves the fake time forward by d, firing every waiter whose
// deadline falls within the advanced window, in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)

	// Fire in deadline order so interleaved waiters observe a
	// consistent sequence.
	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if waiter.fired {
			continue
		}
		if waiter.deadline.After(c.current) {
			remaining = append(remaining, waiter)
			continue
		}
		waiter.fired = true
		waiter.channel <- waiter.deadline
	}
	c.waiters = remaining
}

// BlockUntilWaiters blocks until at least n waiters are registered.
// Tests use this to synchronize with goroutines that are about to
// sleep, so an Advance call cannot race ahead of the Sleep it is
// meant to release.
func (c *FakeClock) BlockUntilWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.waitersChanged.Wait()
	}
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.fired {
			count++
		}
	}
	return count
}
