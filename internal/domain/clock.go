package domain

import (
	"sync"
	"time"
)

// MonotonicClock hands out UTC timestamps that never go backwards, truncated to Precision.
type MonotonicClock struct {
	mu        sync.Mutex
	last      time.Time
	now       func() time.Time
	precision time.Duration
}

func NewMonotonicClock(now func() time.Time, precision time.Duration) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	if precision <= 0 {
		precision = time.Nanosecond
	}

	return &MonotonicClock{now: now, precision: precision}
}

func (c *MonotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(c.precision)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t

	return t
}
