package lock

import (
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/logging"
	"github.com/relcore-dev/reldb/internal/metrics"
)

var log = logging.For("lock_manager")

// Mode is the lock type a request queue entry holds.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

type lockRequest struct {
	txn     *Transaction
	mode    Mode
	granted bool
}

// rowQueue is one row's FIFO request queue plus the condition variable
// waiters block on, mirroring lock_manager.cpp's LockRequestQueue. Every
// rowQueue's cond shares the LockManager's single mutex as its Locker,
// the same "one global latch_" design the original uses.
type rowQueue struct {
	requests []*lockRequest
	cond     *sync.Cond

	// upgrading is the transaction currently mid-LockUpgrade on this
	// row, if any. Only one upgrade may be in flight per row at a time;
	// a second concurrent upgrader is rejected with ErrUpgradeConflict
	// rather than entering the wound-wait scan.
	upgrading *Transaction
}

// woundEvent is a single wound-wait preemption, kept for observability
// (spec's ambient stack, not a spec invariant).
type woundEvent struct {
	wounded common.TxnID
	wounder common.TxnID
	row     common.RowID
}

// LockManager grants shared/exclusive row locks under wound-wait
// deadlock prevention, per spec §4.7.
type LockManager struct {
	mu   sync.Mutex
	rows map[common.RowID]*rowQueue

	metrics metrics.Recorder

	woundMu  sync.Mutex
	woundLog []woundEvent
}

// NewLockManager builds an empty LockManager. metrics may be nil,
// defaulting to metrics.Noop{}.
func NewLockManager(recorder metrics.Recorder) *LockManager {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &LockManager{
		rows:    make(map[common.RowID]*rowQueue),
		metrics: recorder,
	}
}

func (lm *LockManager) queueFor(rid common.RowID) *rowQueue {
	q, ok := lm.rows[rid]
	if !ok {
		q = &rowQueue{cond: sync.NewCond(&lm.mu)}
		lm.rows[rid] = q
	}
	return q
}

func (lm *LockManager) recordWound(wounded, wounder *Transaction, rid common.RowID) {
	lm.metrics.RecordWound()
	lm.woundMu.Lock()
	lm.woundLog = append(lm.woundLog, woundEvent{wounded: wounded.ID(), wounder: wounder.ID(), row: rid})
	lm.woundMu.Unlock()
	log.WithField("wounded_txn", wounded.ID()).WithField("wounder_txn", wounder.ID()).
		WithField("row", rid).Info("transaction wounded")
}

// WoundLog returns a snapshot of every wound-wait preemption recorded so
// far, oldest first.
func (lm *LockManager) WoundLog() []woundEvent {
	lm.woundMu.Lock()
	defer lm.woundMu.Unlock()
	out := make([]woundEvent, len(lm.woundLog))
	copy(out, lm.woundLog)
	return out
}

// LockShared acquires a shared lock on rid for txn, per spec §4.7
// LockShared: rejected outright under READ_UNCOMMITTED, rejected while
// SHRINKING under REPEATABLE_READ, and otherwise queued and waited on
// with any younger exclusive holder wounded out of the way.
func (lm *LockManager) LockShared(txn *Transaction, rid common.RowID) error {
	if txn.State() == Aborted {
		return common.ErrTxnAborted
	}
	if txn.Isolation() == ReadUncommitted {
		txn.SetState(Aborted)
		return common.ErrSharedOnRU
	}
	if txn.State() == Shrinking && txn.Isolation() == RepeatableRead {
		txn.SetState(Aborted)
		return common.ErrLockOnShrinking
	}
	if txn.IsSharedLocked(rid) {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	q := lm.queueFor(rid)
	req := &lockRequest{txn: txn, mode: Shared}
	q.requests = append(q.requests, req)
	txn.addSharedLock(rid)
	lm.metrics.RecordLockWait(txn.Isolation().String())

	for lm.needWaitShared(txn, q, rid) {
		q.cond.Wait()
		if txn.State() == Aborted {
			return common.ErrDeadlock
		}
	}

	for _, r := range q.requests {
		if r.txn.ID() == txn.ID() && txn.State() != Aborted {
			r.granted = true
		}
	}
	txn.SetState(Growing)
	return nil
}

// needWaitShared reports whether txn must keep waiting for rid's shared
// lock, wounding (aborting) any younger exclusive holder it finds ahead
// of it in the queue along the way. Caller holds lm.mu.
func (lm *LockManager) needWaitShared(txn *Transaction, q *rowQueue, rid common.RowID) bool {
	if len(q.requests) > 0 && q.requests[0].txn.ID() == txn.ID() {
		return false
	}
	needWait := false
	existAbort := false
	for _, r := range q.requests {
		if r.txn.ID() == txn.ID() {
			break
		}
		if r.txn.ID() > txn.ID() {
			if r.mode == Exclusive && r.txn.State() != Aborted {
				r.txn.SetState(Aborted)
				lm.recordWound(r.txn, txn, rid)
				existAbort = true
			}
			continue
		}
		if r.mode == Exclusive {
			needWait = true
		}
	}
	if existAbort {
		q.cond.Broadcast()
	}
	return needWait
}

// LockExclusive acquires an exclusive lock on rid for txn, per spec
// §4.7 LockExclusive.
func (lm *LockManager) LockExclusive(txn *Transaction, rid common.RowID) error {
	if txn.State() == Aborted {
		return common.ErrTxnAborted
	}
	if txn.State() == Shrinking {
		txn.SetState(Aborted)
		return common.ErrLockOnShrinking
	}
	if txn.IsExclusiveLocked(rid) {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	q := lm.queueFor(rid)
	req := &lockRequest{txn: txn, mode: Exclusive}
	q.requests = append(q.requests, req)
	txn.addExclusiveLock(rid)
	lm.metrics.RecordLockWait(txn.Isolation().String())

	for lm.needWaitExclusive(txn, q, rid) {
		q.cond.Wait()
		if txn.State() == Aborted {
			return common.ErrDeadlock
		}
	}

	for _, r := range q.requests {
		if r.txn.ID() == txn.ID() && txn.State() != Aborted {
			r.granted = true
		}
	}
	txn.SetState(Growing)
	return nil
}

// needWaitExclusive wounds every younger request ahead of txn (of
// either mode, since all of them conflict with an exclusive request)
// and waits on any older one. Caller holds lm.mu.
func (lm *LockManager) needWaitExclusive(txn *Transaction, q *rowQueue, rid common.RowID) bool {
	if len(q.requests) > 0 && q.requests[0].txn.ID() == txn.ID() {
		return false
	}
	needWait := false
	existAbort := false
	for _, r := range q.requests {
		if r.txn.ID() == txn.ID() {
			break
		}
		if r.txn.ID() > txn.ID() {
			if r.txn.State() != Aborted {
				r.txn.SetState(Aborted)
				lm.recordWound(r.txn, txn, rid)
				existAbort = true
			}
			continue
		}
		needWait = true
	}
	if existAbort {
		q.cond.Broadcast()
	}
	return needWait
}

// LockUpgrade upgrades txn's existing shared lock on rid to exclusive in
// place, per spec §4.7 LockUpgrade: only one upgrade may be in flight
// per row at a time. A second transaction attempting to upgrade the
// same row while the first upgrade is still pending is aborted with
// ErrUpgradeConflict rather than joining the wound-wait scan.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid common.RowID) error {
	if txn.State() == Aborted {
		return common.ErrTxnAborted
	}
	if txn.State() == Shrinking {
		txn.SetState(Aborted)
		return common.ErrLockOnShrinking
	}
	if txn.IsExclusiveLocked(rid) {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	q := lm.queueFor(rid)

	if q.upgrading != nil && q.upgrading.ID() != txn.ID() {
		txn.SetState(Aborted)
		return common.ErrUpgradeConflict
	}
	q.upgrading = txn
	defer func() {
		if q.upgrading == txn {
			q.upgrading = nil
		}
	}()

	for {
		wait, existAbort, found := lm.needWaitUpgrade(txn, q, rid)
		if existAbort {
			q.cond.Broadcast()
		}
		if !found {
			return common.ErrLockNotHeld
		}
		if !wait {
			break
		}
		q.cond.Wait()
		if txn.State() == Aborted {
			return common.ErrDeadlock
		}
	}

	for _, r := range q.requests {
		if r.txn.ID() == txn.ID() {
			r.mode = Exclusive
		}
	}
	txn.upgradeSharedToExclusive(rid)
	txn.SetState(Growing)
	return nil
}

// needWaitUpgrade wounds younger requests ahead of txn's own queued
// request and reports whether an older one remains to wait for. found
// is false if txn has no queued request on rid at all (it must have
// called LockShared first). Caller holds lm.mu.
func (lm *LockManager) needWaitUpgrade(txn *Transaction, q *rowQueue, rid common.RowID) (wait, existAbort, found bool) {
	for _, r := range q.requests {
		if r.txn.ID() == txn.ID() {
			found = true
			break
		}
		if r.txn.ID() > txn.ID() {
			if r.txn.State() != Aborted {
				r.txn.SetState(Aborted)
				lm.recordWound(r.txn, txn, rid)
				existAbort = true
			}
			continue
		}
		wait = true
	}
	return wait, existAbort, found
}

// Unlock releases txn's lock on rid, per spec §4.7 Unlock: a
// REPEATABLE_READ transaction moves GROWING -> SHRINKING on any unlock;
// under the other isolation levels only releasing an exclusive lock
// does.
func (lm *LockManager) Unlock(txn *Transaction, rid common.RowID) error {
	wasShared := txn.IsSharedLocked(rid)
	wasExclusive := txn.IsExclusiveLocked(rid)
	if !wasShared && !wasExclusive {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	q := lm.queueFor(rid)
	found := false
	for i, r := range q.requests {
		if r.txn.ID() == txn.ID() {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			found = true
			q.cond.Broadcast()
			break
		}
	}
	if !found {
		return common.ErrLockNotHeld
	}

	if txn.Isolation() == RepeatableRead && txn.State() == Growing {
		txn.SetState(Shrinking)
	}
	if txn.Isolation() != RepeatableRead && txn.State() == Growing && wasExclusive {
		txn.SetState(Shrinking)
	}

	txn.removeSharedLock(rid)
	txn.removeExclusiveLock(rid)
	return nil
}

// ReleaseAll unlocks every row txn currently holds, used when a
// transaction commits or aborts.
func (lm *LockManager) ReleaseAll(txn *Transaction) {
	lm.mu.Lock()
	rows := make([]common.RowID, 0)
	for rid, q := range lm.rows {
		for _, r := range q.requests {
			if r.txn.ID() == txn.ID() {
				rows = append(rows, rid)
				break
			}
		}
	}
	lm.mu.Unlock()

	for _, rid := range rows {
		lm.Unlock(txn, rid)
	}
}

// Stats is a point-in-time snapshot of lock manager load, printed by the
// CLI's lock-demo command.
type Stats struct {
	RowsWithWaiters int
	TotalRequests   int
}

func (lm *LockManager) Stats() Stats {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var s Stats
	for _, q := range lm.rows {
		if len(q.requests) == 0 {
			continue
		}
		s.TotalRequests += len(q.requests)
		for _, r := range q.requests {
			if !r.granted {
				s.RowsWithWaiters++
				break
			}
		}
	}
	return s
}
