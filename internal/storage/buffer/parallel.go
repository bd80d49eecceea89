package buffer

import (
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/metrics"
	"github.com/relcore-dev/reldb/internal/storage/disk"
	"github.com/relcore-dev/reldb/internal/storage/page"
	"github.com/relcore-dev/reldb/internal/storage/replacer"
)

// Pool is the ParallelBufferPool of spec §4.3: N independent Instances,
// page-id-keyed operations routed by modulus, NewPage tried round-robin
// across instances on failure.
type Pool struct {
	instances []*Instance

	mu           sync.Mutex
	nextInstance int
}

// NewPoolConfig configures a Pool of NumInstances shards, each sized
// PoolSize, sharing one disk manager.
type NewPoolConfig struct {
	NumInstances int
	PoolSize     int
	Disk         disk.Filer
	ReplacerFor  func(instanceIndex int) replacer.Replacer // nil defaults to LRU
	Metrics      metrics.Recorder
}

// NewPool builds a Pool per spec §4.3.
func NewPool(cfg NewPoolConfig) (*Pool, error) {
	if cfg.NumInstances <= 0 {
		cfg.NumInstances = 1
	}
	p := &Pool{instances: make([]*Instance, cfg.NumInstances)}
	for i := 0; i < cfg.NumInstances; i++ {
		var r replacer.Replacer
		if cfg.ReplacerFor != nil {
			r = cfg.ReplacerFor(i)
		}
		inst, err := New(Config{
			PoolSize:      cfg.PoolSize,
			NumInstances:  cfg.NumInstances,
			InstanceIndex: i,
			Disk:          cfg.Disk,
			Replacer:      r,
			Metrics:       cfg.Metrics,
		})
		if err != nil {
			return nil, err
		}
		p.instances[i] = inst
	}
	return p, nil
}

// NumInstances returns the shard count.
func (p *Pool) NumInstances() int { return len(p.instances) }

// GetInstance routes id to its owning shard by modulus, per spec §4.3.
func (p *Pool) GetInstance(id common.PageID) *Instance {
	n := len(p.instances)
	idx := int(id) % n
	if idx < 0 {
		idx += n
	}
	return p.instances[idx]
}

func (p *Pool) FetchPage(id common.PageID) (*page.Page, error) {
	return p.GetInstance(id).FetchPage(id)
}

func (p *Pool) UnpinPage(id common.PageID, isDirty bool) error {
	return p.GetInstance(id).UnpinPage(id, isDirty)
}

func (p *Pool) FlushPage(id common.PageID) error {
	return p.GetInstance(id).FlushPage(id)
}

func (p *Pool) DeletePage(id common.PageID) error {
	return p.GetInstance(id).DeletePage(id)
}

// NewPage tries instances round-robin starting from the pool's rotating
// pointer, advancing the pointer whether or not the attempt succeeds, and
// stopping once every instance has been tried once (spec §4.3).
func (p *Pool) NewPage() (*page.Page, error) {
	p.mu.Lock()
	start := p.nextInstance
	p.nextInstance = (p.nextInstance + 1) % len(p.instances)
	p.mu.Unlock()

	n := len(p.instances)
	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		pg, err := p.instances[idx].NewPage()
		if err == nil {
			return pg, nil
		}
		lastErr = err

		p.mu.Lock()
		p.nextInstance = (idx + 1) % n
		p.mu.Unlock()
	}
	return nil, lastErr
}

// FlushAllPages flushes each instance in turn (spec §4.3).
func (p *Pool) FlushAllPages() error {
	for _, inst := range p.instances {
		if err := inst.FlushAllPages(); err != nil {
			return err
		}
	}
	return nil
}
