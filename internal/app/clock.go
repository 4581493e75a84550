package app

import (
	"sync/atomic"
	"time"
)

// Clock hands out wall-clock readings that never go backwards.
type Clock struct {
	now  func() time.Time
	last atomic.Int64 // unix nanos
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockFunc is for tests that need to drive time.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	t := c.now().UnixNano()
	for {
		last := c.last.Load()
		if t <= last {
			return time.Unix(0, last)
		}
		if c.last.CompareAndSwap(last, t) {
			return time.Unix(0, t)
		}
	}
}

func (c *Clock) UnixMilli() int64 {
	return c.Now().UnixMilli()
}
