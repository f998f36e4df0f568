// internal/clock/clock.go
package clock

import "time"

// Clock is the monotonic millisecond source used for timestamps,
// replay windows, and snapshot interval timing.
type Clock interface {
	NowMillis() uint32
}

// Monotonic is the production clock. Milliseconds since construction,
// so values stay small and comparable like a device uptime counter.
type Monotonic struct {
	start time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (c *Monotonic) NowMillis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	Millis uint32
}

func (c *Fake) NowMillis() uint32 {
	return c.Millis
}

// Advance moves the fake clock forward.
func (c *Fake) Advance(ms uint32) {
	c.Millis += ms
}
