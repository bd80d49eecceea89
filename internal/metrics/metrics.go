// Package metrics exposes buffer pool and lock manager counters through
// the bare github.com/prometheus/client_golang client (not the fuller
// OpenTelemetry SDK sushant-115-gojodb's pkg/telemetry wraps it in — that
// surface is out of proportion for a core this size, but the underlying
// client library is the same one gojodb depends on).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow interface the buffer pool and lock manager
// depend on, so neither package needs to import prometheus directly.
type Recorder interface {
	RecordHit(instance int)
	RecordMiss(instance int)
	RecordEviction(instance int)
	RecordFlush(instance int)
	RecordLockWait(isolation string)
	RecordWound()
}

// Collector is the Recorder implementation backing a Prometheus registry.
type Collector struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	flushes   *prometheus.CounterVec
	lockWaits *prometheus.CounterVec
	wounds    prometheus.Counter
}

// NewCollector builds and registers a Collector's metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reldb",
			Subsystem: "buffer_pool",
			Name:      "hits_total",
		}, []string{"instance"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reldb",
			Subsystem: "buffer_pool",
			Name:      "misses_total",
		}, []string{"instance"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reldb",
			Subsystem: "buffer_pool",
			Name:      "evictions_total",
		}, []string{"instance"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reldb",
			Subsystem: "buffer_pool",
			Name:      "flushes_total",
		}, []string{"instance"}),
		lockWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reldb",
			Subsystem: "lock_manager",
			Name:      "waits_total",
		}, []string{"isolation"}),
		wounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reldb",
			Subsystem: "lock_manager",
			Name:      "wounds_total",
		}),
	}
	reg.MustRegister(c.hits, c.misses, c.evictions, c.flushes, c.lockWaits, c.wounds)
	return c
}

func instanceLabel(i int) string {
	return strconv.Itoa(i)
}

func (c *Collector) RecordHit(instance int)      { c.hits.WithLabelValues(instanceLabel(instance)).Inc() }
func (c *Collector) RecordMiss(instance int)     { c.misses.WithLabelValues(instanceLabel(instance)).Inc() }
func (c *Collector) RecordEviction(instance int) { c.evictions.WithLabelValues(instanceLabel(instance)).Inc() }
func (c *Collector) RecordFlush(instance int)    { c.flushes.WithLabelValues(instanceLabel(instance)).Inc() }
func (c *Collector) RecordLockWait(isolation string) {
	c.lockWaits.WithLabelValues(isolation).Inc()
}
func (c *Collector) RecordWound() { c.wounds.Inc() }

// Noop satisfies Recorder while discarding everything, the default when
// no metrics registry is configured.
type Noop struct{}

func (Noop) RecordHit(int)            {}
func (Noop) RecordMiss(int)           {}
func (Noop) RecordEviction(int)       {}
func (Noop) RecordFlush(int)          {}
func (Noop) RecordLockWait(string)    {}
func (Noop) RecordWound()             {}
