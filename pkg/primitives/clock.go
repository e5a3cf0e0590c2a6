package primitives

import "time"

// Clock provides the kernel's notion of "now". Every timestamp recorded
// in a Context, Grant, Snapshot, or Failure Event is derived from a
// Clock rather than a bare time.Now() call, so admission pipelines are
// reproducible in tests and so a single authority clock can be shared
// across the Guard, the Authority Store, and the Snapshot Store.
type Clock interface {
	Now() time.Time
}

// WallClock is the default Clock, backed by the operating system.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock that always returns the same instant, advanced
// only by explicit calls to Advance. It exists for deterministic tests
// of friction timing and snapshot staleness.
type FixedClock struct {
	at time.Time
}

func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{at: at}
}

func (c *FixedClock) Now() time.Time { return c.at }

func (c *FixedClock) Advance(d time.Duration) { c.at = c.at.Add(d) }
