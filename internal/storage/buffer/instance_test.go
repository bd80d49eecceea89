package buffer

import (
	"path/filepath"
	"testing"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T, poolSize int) *Instance {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buffer-test.dat")
	dm, err := disk.NewManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	inst, err := New(Config{PoolSize: poolSize, NumInstances: 1, Disk: dm})
	require.NoError(t, err)
	return inst
}

// Scenario 1 (spec §8): pool of 4 frames, disk with 10 pages.
func TestScenarioFourFramesExhaustion(t *testing.T) {
	inst := newTestInstance(t, 4)

	var ids []common.PageID
	for i := 0; i < 4; i++ {
		p, err := inst.NewPage()
		require.NoError(t, err)
		ids = append(ids, p.ID())
	}

	_, err := inst.NewPage()
	assert.ErrorIs(t, err, common.ErrNoFreeFrame)

	require.NoError(t, inst.UnpinPage(ids[0], true))

	p, err := inst.NewPage()
	require.NoError(t, err)
	assert.NotEqual(t, common.InvalidPageID, p.ID())
}

// NewPage/Unpin/FetchPage round trip: spec §8 round-trip law.
func TestNewUnpinFetchRoundTrip(t *testing.T) {
	inst := newTestInstance(t, 4)

	p, err := inst.NewPage()
	require.NoError(t, err)
	id := p.ID()
	copy(p.Data[:], []byte("round-trip-data"))

	require.NoError(t, inst.UnpinPage(id, false))

	p2, err := inst.FetchPage(id)
	require.NoError(t, err)
	assert.Equal(t, byte('r'), p2.Data[0])
	require.NoError(t, inst.UnpinPage(id, false))
}

func TestFetchPageIncrementsPinAndReplacerPin(t *testing.T) {
	inst := newTestInstance(t, 4)
	p, err := inst.NewPage()
	require.NoError(t, err)
	id := p.ID()
	require.NoError(t, inst.UnpinPage(id, false))

	p2, err := inst.FetchPage(id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p2.PinCount())
	assert.Equal(t, 0, inst.replacer.Size())
}

func TestUnpinVacuousWhenNotResident(t *testing.T) {
	inst := newTestInstance(t, 4)
	assert.NoError(t, inst.UnpinPage(common.PageID(999), true))
}

func TestFlushPageFailsWhenNotResident(t *testing.T) {
	inst := newTestInstance(t, 4)
	err := inst.FlushPage(common.PageID(999))
	assert.ErrorIs(t, err, common.ErrPageNotResident)
}

func TestFlushPageFailsOnInvalidID(t *testing.T) {
	inst := newTestInstance(t, 4)
	err := inst.FlushPage(common.InvalidPageID)
	assert.ErrorIs(t, err, common.ErrInvalidPageID)
}

func TestDeletePageFailsWhilePinned(t *testing.T) {
	inst := newTestInstance(t, 4)
	p, err := inst.NewPage()
	require.NoError(t, err)

	err = inst.DeletePage(p.ID())
	assert.ErrorIs(t, err, common.ErrPagePinned)
}

func TestDeletePageVacuousWhenNotResident(t *testing.T) {
	inst := newTestInstance(t, 4)
	assert.NoError(t, inst.DeletePage(common.PageID(12345)))
}

func TestDeletePageReturnsFrameToFreeList(t *testing.T) {
	inst := newTestInstance(t, 1)
	p, err := inst.NewPage()
	require.NoError(t, err)
	id := p.ID()
	require.NoError(t, inst.UnpinPage(id, false))
	require.NoError(t, inst.DeletePage(id))

	// The single frame should be free again, so NewPage succeeds.
	_, err = inst.NewPage()
	require.NoError(t, err)
}

// Scenario 2 (spec §8): pool of 10 frames, pin all, unpin ids[4], ids[2],
// ids[7] in that order; NewPage evicts ids[4]'s frame (oldest unpin).
func TestScenarioLRUEvictionOrder(t *testing.T) {
	inst := newTestInstance(t, 10)

	var ids [10]common.PageID
	for i := 0; i < 10; i++ {
		p, err := inst.NewPage()
		require.NoError(t, err)
		ids[i] = p.ID()
	}

	require.NoError(t, inst.UnpinPage(ids[4], false))
	require.NoError(t, inst.UnpinPage(ids[2], false))
	require.NoError(t, inst.UnpinPage(ids[7], false))

	_, err := inst.NewPage()
	require.NoError(t, err)
	// Frame for ids[4] was evicted: ids[4] has lost residency (its slot
	// was reused), while the later-unpinned ids[2] is still resident.
	_, stillResident := inst.pageTable[ids[4]]
	assert.False(t, stillResident)
	_, stillResident = inst.pageTable[ids[2]]
	assert.True(t, stillResident)
}

func TestFlushAllPagesWritesRegardlessOfDirty(t *testing.T) {
	inst := newTestInstance(t, 2)
	p1, err := inst.NewPage()
	require.NoError(t, err)
	p2, err := inst.NewPage()
	require.NoError(t, err)
	copy(p1.Data[:], []byte("clean-but-flushed"))

	require.NoError(t, inst.UnpinPage(p1.ID(), false)) // clean
	require.NoError(t, inst.UnpinPage(p2.ID(), true))  // dirty

	require.NoError(t, inst.FlushAllPages())
	assert.False(t, p1.IsDirty())
	assert.False(t, p2.IsDirty())

	var onDisk [common.PageSize]byte
	require.NoError(t, inst.disk.ReadPage(p1.ID(), onDisk[:]))
	assert.Equal(t, byte('c'), onDisk[0])
}
