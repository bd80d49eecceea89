package replacer

import (
	"testing"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUVictimOrder(t *testing.T) {
	r := NewLRU(10)
	for _, id := range []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9} {
		r.Unpin(common.FrameID(id))
	}
	r.Pin(common.FrameID(0))
	r.Pin(common.FrameID(1))
	r.Pin(common.FrameID(2))
	r.Pin(common.FrameID(3))
	r.Pin(common.FrameID(4))
	r.Pin(common.FrameID(5))
	r.Pin(common.FrameID(6))
	r.Pin(common.FrameID(7))
	r.Pin(common.FrameID(8))
	r.Pin(common.FrameID(9))

	r.Unpin(common.FrameID(4))
	r.Unpin(common.FrameID(2))
	r.Unpin(common.FrameID(7))

	require.Equal(t, 3, r.Size())

	id, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(4), id)

	id, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), id)

	id, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(7), id)

	_, ok = r.Victim()
	assert.False(t, ok)
}

func TestLRUPinUnpinIdempotent(t *testing.T) {
	r := NewLRU(4)
	r.Unpin(common.FrameID(1))
	r.Unpin(common.FrameID(1)) // no-op, already a candidate
	assert.Equal(t, 1, r.Size())

	r.Pin(common.FrameID(1))
	r.Pin(common.FrameID(1)) // no-op, already pinned out
	assert.Equal(t, 0, r.Size())
}

func TestLRUEmptyVictimFails(t *testing.T) {
	r := NewLRU(4)
	_, ok := r.Victim()
	assert.False(t, ok)
}
