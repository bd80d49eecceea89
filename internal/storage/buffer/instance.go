// Package buffer implements the fixed-size page cache fronting the disk
// manager (spec §4.2-§4.3), adapted from the teacher's
// internal/storage/buffer/pool.go: a page table, a free list, and a
// pluggable replacer, all guarded by one instance-wide mutex. Page
// content itself (spec §3's frame latch) lives on page.Page, not here.
package buffer

import (
	"fmt"
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/logging"
	"github.com/relcore-dev/reldb/internal/metrics"
	"github.com/relcore-dev/reldb/internal/storage/disk"
	"github.com/relcore-dev/reldb/internal/storage/page"
	"github.com/relcore-dev/reldb/internal/storage/replacer"
)

var log = logging.For("buffer_pool")

// Instance is one shard of the buffer pool: spec §4.2's
// BufferPoolInstance. A ParallelBufferPool (parallel.go) owns several of
// these and routes by page id modulus.
type Instance struct {
	mu sync.Mutex

	frames    []page.Page
	pageTable map[common.PageID]common.FrameID
	freeList  []common.FrameID
	replacer  replacer.Replacer
	disk      disk.Filer

	poolSize      int
	numInstances  int
	instanceIndex int
	nextPageID    int64

	metrics metrics.Recorder
}

// Config configures a single Instance, following the teacher's
// Options-struct-with-sane-defaults idiom (internal/utils.Options).
type Config struct {
	PoolSize      int
	NumInstances  int // stride for this instance's page id allocator
	InstanceIndex int
	Disk          disk.Filer
	Replacer      replacer.Replacer // nil defaults to replacer.NewLRU
	Metrics       metrics.Recorder  // nil defaults to metrics.Noop{}
}

// New builds a buffer pool instance per spec §4.2: pool_size frames, a
// free list initialized to every frame, and a page id allocator starting
// at instance_index with stride num_instances.
func New(cfg Config) (*Instance, error) {
	if cfg.PoolSize <= 0 {
		return nil, common.ErrInvalidPoolSize
	}
	if cfg.NumInstances <= 0 {
		cfg.NumInstances = 1
	}
	r := cfg.Replacer
	if r == nil {
		r = replacer.NewLRU(cfg.PoolSize)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Noop{}
	}

	inst := &Instance{
		frames:        make([]page.Page, cfg.PoolSize),
		pageTable:     make(map[common.PageID]common.FrameID, cfg.PoolSize),
		freeList:      make([]common.FrameID, cfg.PoolSize),
		replacer:      r,
		disk:          cfg.Disk,
		poolSize:      cfg.PoolSize,
		numInstances:  cfg.NumInstances,
		instanceIndex: cfg.InstanceIndex,
		nextPageID:    int64(cfg.InstanceIndex),
		metrics:       m,
	}
	for i := range inst.freeList {
		inst.freeList[i] = common.FrameID(i)
		inst.frames[i].Reset()
	}
	return inst, nil
}

// PoolSize returns the number of frames this instance manages.
func (inst *Instance) PoolSize() int { return inst.poolSize }

// AllocatePage returns a fresh page id and advances the allocator by the
// parallel pool's stride, keeping page_id mod num_instances ==
// instance_index invariant (spec §4.2).
func (inst *Instance) AllocatePage() common.PageID {
	id := inst.nextPageID
	inst.nextPageID += int64(inst.numInstances)
	return common.PageID(id)
}

// victimLocked finds a frame to reuse: the free list first, then the
// replacer, flushing a dirty victim before it's repurposed. Caller must
// hold inst.mu.
func (inst *Instance) victimLocked() (common.FrameID, error) {
	if n := len(inst.freeList); n > 0 {
		id := inst.freeList[n-1]
		inst.freeList = inst.freeList[:n-1]
		return id, nil
	}

	fid, ok := inst.replacer.Victim()
	if !ok {
		return 0, common.ErrNoFreeFrame
	}
	frame := &inst.frames[fid]
	if frame.IsDirty() {
		if err := inst.disk.WritePage(frame.ID(), frame.Data[:]); err != nil {
			return 0, fmt.Errorf("buffer: flush victim frame %d: %w", fid, err)
		}
		frame.ClearDirty()
	}
	delete(inst.pageTable, frame.ID())
	inst.metrics.RecordEviction(inst.instanceIndex)
	return fid, nil
}

// FetchPage returns the page for id, reading it from disk if it is not
// already resident (spec §4.2 FetchPage).
func (inst *Instance) FetchPage(id common.PageID) (*page.Page, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if fid, ok := inst.pageTable[id]; ok {
		frame := &inst.frames[fid]
		frame.Pin()
		inst.replacer.Pin(fid)
		inst.metrics.RecordHit(inst.instanceIndex)
		return frame, nil
	}

	inst.metrics.RecordMiss(inst.instanceIndex)
	fid, err := inst.victimLocked()
	if err != nil {
		return nil, err
	}

	frame := &inst.frames[fid]
	if err := inst.disk.ReadPage(id, frame.Data[:]); err != nil {
		inst.freeList = append(inst.freeList, fid)
		return nil, fmt.Errorf("buffer: fetch page %s: %w", id, err)
	}
	frame.Install(id)
	inst.pageTable[id] = fid
	inst.replacer.Pin(fid)
	log.WithField("page_id", id).Debug("fetched page")
	return frame, nil
}

// NewPage allocates a fresh page id, installs it into a frame, and
// returns the pinned page (spec §4.2 NewPage).
func (inst *Instance) NewPage() (*page.Page, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	fid, err := inst.victimLocked()
	if err != nil {
		return nil, err
	}

	id := inst.AllocatePage()
	frame := &inst.frames[fid]
	frame.Reset()
	frame.Install(id)
	inst.pageTable[id] = fid
	inst.replacer.Pin(fid)
	log.WithField("page_id", id).Debug("allocated new page")
	return frame, nil
}

// UnpinPage decrements id's pin count, OR-ing isDirty into the frame's
// dirty bit. Vacuous success if id is not resident or already unpinned
// (spec §4.2 UnpinPage).
func (inst *Instance) UnpinPage(id common.PageID, isDirty bool) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	fid, ok := inst.pageTable[id]
	if !ok {
		return nil
	}
	frame := &inst.frames[fid]
	if isDirty {
		frame.MarkDirty()
	}
	if frame.PinCount() == 0 {
		return nil
	}
	frame.Unpin()
	if frame.PinCount() == 0 {
		inst.replacer.Unpin(fid)
	}
	return nil
}

// FlushPage writes id's current frame content to disk and clears its
// dirty bit. Failing if id is not resident, per spec §4.2 FlushPage.
func (inst *Instance) FlushPage(id common.PageID) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.flushLocked(id)
}

func (inst *Instance) flushLocked(id common.PageID) error {
	if id == common.InvalidPageID {
		return common.ErrInvalidPageID
	}
	fid, ok := inst.pageTable[id]
	if !ok {
		return common.ErrPageNotResident
	}
	frame := &inst.frames[fid]
	frame.Latch.RLock()
	err := inst.disk.WritePage(id, frame.Data[:])
	frame.Latch.RUnlock()
	if err != nil {
		return fmt.Errorf("buffer: flush page %s: %w", id, err)
	}
	frame.ClearDirty()
	inst.metrics.RecordFlush(inst.instanceIndex)
	return nil
}

// FlushAllPages writes every resident page's content to disk,
// unconditionally (spec §4.2/§9: the defensive full-flush reading).
func (inst *Instance) FlushAllPages() error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	for id := range inst.pageTable {
		if err := inst.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes id from the pool, failing if it is still pinned.
// Vacuous success if not resident (spec §4.2 DeletePage).
func (inst *Instance) DeletePage(id common.PageID) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.disk.DeallocatePage(id)

	fid, ok := inst.pageTable[id]
	if !ok {
		return nil
	}
	frame := &inst.frames[fid]
	if frame.PinCount() > 0 {
		return common.ErrPagePinned
	}
	delete(inst.pageTable, id)
	inst.replacer.Pin(fid) // drop from candidate set if present
	frame.Reset()
	inst.freeList = append(inst.freeList, fid)
	return nil
}
