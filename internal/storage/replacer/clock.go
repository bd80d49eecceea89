package replacer

import (
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
)

// Clock is an alternative Replacer using the second-chance/CLOCK
// algorithm, adapted from the teacher's pool_clock.go (which fused the
// clock hand with page storage and atomics); here it is pared down to
// just frame-id bookkeeping behind the same Replacer interface as LRU,
// since spec §4.1 only mandates LRU order for the instances themselves —
// Clock is additive, selectable via config for benchmarking.
type Clock struct {
	mu sync.Mutex

	candidate []bool
	refBit    []bool
	hand      int
	size      int
}

func NewClock(capacity int) *Clock {
	return &Clock{
		candidate: make([]bool, capacity),
		refBit:    make([]bool, capacity),
	}
}

func (c *Clock) Victim() (common.FrameID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.candidate)
	if n == 0 || c.size == 0 {
		return 0, false
	}
	for i := 0; i < 2*n; i++ {
		idx := c.hand
		c.hand = (c.hand + 1) % n
		if !c.candidate[idx] {
			continue
		}
		if c.refBit[idx] {
			c.refBit[idx] = false
			continue
		}
		c.candidate[idx] = false
		c.size--
		return common.FrameID(idx), true
	}
	return 0, false
}

func (c *Clock) Pin(id common.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.candidate[id] {
		c.candidate[id] = false
		c.refBit[id] = false
		c.size--
	}
}

func (c *Clock) Unpin(id common.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.candidate[id] {
		c.candidate[id] = true
		c.refBit[id] = true
		c.size++
	}
}

func (c *Clock) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
