// Package clock provides the simulated time source for the node.
package clock

import (
	"sync"
	"time"
)

// Clock tracks the cumulative time offset applied to future block
// timestamps and the optional pin for the next block. The offset is
// process-lifetime scoped; it survives snapshots only through the
// snapshot manager restoring it.
type Clock struct {
	offset             uint64
	nextBlockTimestamp uint64

	mu sync.RWMutex
}

// New creates a clock with no offset and no pinned timestamp.
func New() *Clock {
	return &Clock{}
}

// Advance adds seconds to the cumulative time offset.
func (c *Clock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offset += seconds
}

// Offset returns the cumulative time offset.
func (c *Clock) Offset() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.offset
}

// Now returns the current virtual time: wall clock plus offset.
func (c *Clock) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return uint64(time.Now().Unix()) + c.offset
}

// SetNextBlockTimestamp pins the timestamp for the next mined block.
func (c *Clock) SetNextBlockTimestamp(timestamp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextBlockTimestamp = timestamp
}

// NextBlockTimestamp returns the pinned timestamp, zero if none.
func (c *Clock) NextBlockTimestamp() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.nextBlockTimestamp
}

// ConsumeNextBlockTimestamp returns and clears the pinned timestamp.
func (c *Clock) ConsumeNextBlockTimestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.nextBlockTimestamp
	c.nextBlockTimestamp = 0
	return ts
}

// Restore overwrites the clock state. Used by snapshot revert.
func (c *Clock) Restore(offset, nextBlockTimestamp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offset = offset
	c.nextBlockTimestamp = nextBlockTimestamp
}

// Reset clears the offset and any pinned timestamp.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offset = 0
	c.nextBlockTimestamp = 0
}
