// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mockable provides a wall clock that tests can freeze and advance.
//
// Only local call-admission logic (circuit breakers) may read this clock.
// Anything whose result must match across nodes uses block height instead.
package mockable

import (
	"sync"
	"time"
)

// Clock wraps time.Now so tests can pin and move the current time.
// It is safe for concurrent use. The zero value follows the system clock.
type Clock struct {
	mu    sync.RWMutex
	faked bool
	time  time.Time
}

// Set freezes the clock at t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faked = true
	c.time = t
}

// Advance moves a frozen clock forward by d. On an unfrozen clock it freezes
// the clock at time.Now()+d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.faked {
		c.faked = true
		c.time = time.Now()
	}
	c.time = c.time.Add(d)
}

// Sync returns the clock to the system time.
func (c *Clock) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faked = false
}

// Time returns the current time of the clock.
func (c *Clock) Time() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.faked {
		return c.time
	}
	return time.Now()
}

// Since returns the time elapsed on this clock since t.
func (c *Clock) Since(t time.Time) time.Duration {
	return c.Time().Sub(t)
}
