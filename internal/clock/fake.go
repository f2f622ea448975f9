package clock

import "time"

// FakeClock pins Now to a chosen instant so tests can walk a subscription
// across its period end without sleeping. Not safe for concurrent Advance;
// tests drive it from one goroutine.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward (or back, with a negative d).
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
