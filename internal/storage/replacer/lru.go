package replacer

import (
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
)

// LRU is the default Replacer: a doubly-linked order over candidate
// frames plus an O(1) membership check, protected by a single mutex, per
// spec §4.1. The link arrays are indexed directly by frame id, the same
// index-based-list idiom the teacher's BufferPool.addToTail/
// removeLRUByIndex uses for its own (unexported) LRU order.
type LRU struct {
	mu sync.Mutex

	next []int32 // -1 if tail or absent
	prev []int32 // -1 if head or absent
	in   []bool

	head int32 // least-recently-used: next Victim
	tail int32 // most-recently-used
	size int
}

// NewLRU builds a replacer over capacity possible frame ids, [0,capacity).
func NewLRU(capacity int) *LRU {
	r := &LRU{
		next: make([]int32, capacity),
		prev: make([]int32, capacity),
		in:   make([]bool, capacity),
		head: -1,
		tail: -1,
	}
	for i := range r.next {
		r.next[i] = -1
		r.prev[i] = -1
	}
	return r
}

func (r *LRU) Victim() (common.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.head == -1 {
		return 0, false
	}
	id := r.head
	r.removeLocked(id)
	return common.FrameID(id), true
}

func (r *LRU) Pin(id common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.in[id] {
		return
	}
	r.removeLocked(int32(id))
}

func (r *LRU) Unpin(id common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.in[id] {
		return
	}
	r.pushTailLocked(int32(id))
}

func (r *LRU) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *LRU) pushTailLocked(id int32) {
	r.in[id] = true
	r.prev[id] = r.tail
	r.next[id] = -1
	if r.tail != -1 {
		r.next[r.tail] = id
	}
	r.tail = id
	if r.head == -1 {
		r.head = id
	}
	r.size++
}

func (r *LRU) removeLocked(id int32) {
	prev, next := r.prev[id], r.next[id]
	switch {
	case prev == -1 && next == -1:
		r.head, r.tail = -1, -1
	case prev == -1:
		r.head = next
		r.prev[next] = -1
	case next == -1:
		r.tail = prev
		r.next[prev] = -1
	default:
		r.next[prev] = next
		r.prev[next] = prev
	}
	r.prev[id], r.next[id] = -1, -1
	r.in[id] = false
	r.size--
}
