package timectrl

import (
	"time"
)

// Clock is a virtual clock owned by a single client timeline, so generating
// a trace never sleeps. It only moves forward, which keeps the timestamps of
// emitted actions non-decreasing. A Clock is not safe for concurrent use.
type Clock struct {
	current time.Duration
}

// NewClock constructs a clock positioned at start.
func NewClock(start time.Duration) *Clock {
	if start < 0 {
		start = 0
	}
	return &Clock{current: start}
}

// Now returns the elapsed trace time since the start of the trace.
func (c *Clock) Now() time.Duration { return c.current }

// Millis returns Now truncated to whole milliseconds.
func (c *Clock) Millis() int64 { return c.current.Milliseconds() }

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *Clock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.current += d
}

// SetTime moves the clock to t if t is not in the past and reports whether
// the clock changed.
func (c *Clock) SetTime(t time.Duration) bool {
	if t <= c.current {
		return false
	}
	c.current = t
	return true
}
