package router

import "time"

// clock is a monotonic wall-clock in seconds, originated at the router's
// start. Every timestamp the router stamps or compares against is read
// through this single source; it never reads calendar time.
type clock struct {
	start time.Time
}

func newClock() *clock {
	return &clock{start: time.Now()}
}

// now returns seconds elapsed since the clock was created.
func (c *clock) now() float64 {
	return time.Since(c.start).Seconds()
}
