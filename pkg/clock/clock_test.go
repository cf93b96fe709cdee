package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New()
	require.NotNil(t, c)
	assert.Equal(t, uint64(0), c.Offset())
	assert.Equal(t, uint64(0), c.NextBlockTimestamp())
}

func TestClock_Advance(t *testing.T) {
	c := New()

	c.Advance(5)
	assert.Equal(t, uint64(5), c.Offset())

	c.Advance(10)
	assert.Equal(t, uint64(15), c.Offset())
}

func TestClock_Now(t *testing.T) {
	c := New()
	c.Advance(3600)

	now := uint64(time.Now().Unix())
	virtual := c.Now()

	// Virtual time runs ahead of the wall clock by the offset.
	assert.GreaterOrEqual(t, virtual, now+3600)
	assert.Less(t, virtual, now+3605)
}

func TestClock_NextBlockTimestamp(t *testing.T) {
	c := New()

	c.SetNextBlockTimestamp(1700000100)
	assert.Equal(t, uint64(1700000100), c.NextBlockTimestamp())

	// Consuming clears the pin.
	assert.Equal(t, uint64(1700000100), c.ConsumeNextBlockTimestamp())
	assert.Equal(t, uint64(0), c.NextBlockTimestamp())
	assert.Equal(t, uint64(0), c.ConsumeNextBlockTimestamp())
}

func TestClock_Restore(t *testing.T) {
	c := New()
	c.Advance(100)
	c.SetNextBlockTimestamp(1700000100)

	c.Restore(40, 0)
	assert.Equal(t, uint64(40), c.Offset())
	assert.Equal(t, uint64(0), c.NextBlockTimestamp())
}

func TestClock_Reset(t *testing.T) {
	c := New()
	c.Advance(100)
	c.SetNextBlockTimestamp(1700000100)

	c.Reset()
	assert.Equal(t, uint64(0), c.Offset())
	assert.Equal(t, uint64(0), c.NextBlockTimestamp())
}
