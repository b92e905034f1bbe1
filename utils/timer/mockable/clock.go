// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mockable provides a clock that tests can freeze and step.
package mockable

import (
	"sync"
	"time"
)

// Clock reports wall time unless it has been frozen with Set. The zero
// value follows the system clock. It is safe for concurrent use.
type Clock struct {
	mu     sync.RWMutex
	frozen bool
	now    time.Time
}

// Set freezes the clock at t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
	c.now = t
}

// Advance moves a frozen clock forward by d. It freezes an unfrozen clock at
// the current wall time plus d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		c.frozen = true
		c.now = time.Now()
	}
	c.now = c.now.Add(d)
}

// Sync returns the clock to wall time.
func (c *Clock) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = false
}

// Time returns the current time of the clock in UTC, truncated to whole
// microseconds so it survives a JSON round trip unchanged.
func (c *Clock) Time() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now
	if !c.frozen {
		now = time.Now()
	}
	return now.UTC().Truncate(time.Microsecond)
}

// Unix returns the unix timestamp of the clock.
func (c *Clock) Unix() uint64 {
	return uint64(max(c.Time().Unix(), 0))
}
