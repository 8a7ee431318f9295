package appconfig

import (
	"sync"
	"time"
)

// Clock supplies wall-clock time as whole seconds since the Unix epoch.
type Clock interface {
	Now() int64
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a clock reading start.
func NewManualClock(start int64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, truncated to whole seconds.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += int64(d / time.Second)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t int64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
