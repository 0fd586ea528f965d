package host

import (
	"sync"
	"time"

	"github.com/rony4d/go-opera-bridge/inter"
)

// Clock supplies ledger time.
type Clock interface {
	Now() inter.Timestamp
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() inter.Timestamp {
	return inter.Timestamp(time.Now().UnixNano())
}

// ManualClock only moves when told to. Tests use it to simulate timeouts.
type ManualClock struct {
	mu  sync.Mutex
	now inter.Timestamp
}

// NewManualClock starts the clock at start.
func NewManualClock(start inter.Timestamp) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() inter.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t inter.Timestamp) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(inter.FromDuration(d))
	c.mu.Unlock()
}
