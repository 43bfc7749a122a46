package engine

import "sync/atomic"

// Clock counts committed ticks.
//
// Ticks are logical: tick t is the t-th activation of the scheduler,
// numbered from 0. Current is the number of committed ticks, which is also
// the index the next tick will be recorded under.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), so
// observers such as the live view may read it while the model runs.
type Clock struct {
	ticks atomic.Int64
}

// NewClock creates a new clock at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// Advance commits one tick and returns the new count.
func (c *Clock) Advance() int {
	return int(c.ticks.Add(1))
}

// Current returns the number of committed ticks.
func (c *Clock) Current() int {
	return int(c.ticks.Load())
}
