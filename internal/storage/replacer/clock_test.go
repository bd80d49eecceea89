package replacer

import (
	"testing"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockGivesSecondChance(t *testing.T) {
	c := NewClock(3)
	c.Unpin(common.FrameID(0))
	c.Unpin(common.FrameID(1))
	c.Unpin(common.FrameID(2))

	// Every frame enters with its reference bit set, so the first sweep
	// clears all three bits and evicts frame 0, leaving the hand on 1.
	id, ok := c.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(0), id)

	// Touch frame 1 again before it's evicted, via Pin/Unpin
	// round-trip (simulating a fetch that re-references it).
	c.Pin(common.FrameID(1))
	c.Unpin(common.FrameID(1))

	id, ok = c.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), id)
}

func TestClockSizeTracksCandidates(t *testing.T) {
	c := NewClock(3)
	c.Unpin(common.FrameID(0))
	c.Unpin(common.FrameID(1))
	assert.Equal(t, 2, c.Size())
	c.Pin(common.FrameID(0))
	assert.Equal(t, 1, c.Size())
}
