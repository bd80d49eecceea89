package lock

import (
	"testing"
	"time"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(page int32, slot uint32) common.RowID {
	return common.RowID{PageID: common.PageID(page), Slot: slot}
}

func TestLockSharedCompatibleGrants(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(1, 0)
	a := NewTransaction(1, RepeatableRead)
	b := NewTransaction(2, RepeatableRead)

	require.NoError(t, lm.LockShared(a, r))
	require.NoError(t, lm.LockShared(b, r))
	assert.Equal(t, Growing, a.State())
	assert.Equal(t, Growing, b.State())
}

// Scenario 5 (spec §8): an older transaction requesting an exclusive
// lock wounds a younger transaction holding it, proceeding immediately
// rather than waiting.
func TestWoundWaitOlderPreemptsYounger(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(1, 0)
	younger := NewTransaction(10, RepeatableRead)
	older := NewTransaction(5, RepeatableRead)

	require.NoError(t, lm.LockExclusive(younger, r))
	err := lm.LockExclusive(older, r)
	require.NoError(t, err)

	assert.Equal(t, Aborted, younger.State())
	assert.Equal(t, Growing, older.State())
}

func TestWoundWaitSharedWoundsYoungerExclusiveHolder(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(2, 0)
	younger := NewTransaction(20, ReadCommitted)
	older := NewTransaction(7, ReadCommitted)

	require.NoError(t, lm.LockExclusive(younger, r))
	err := lm.LockShared(older, r)
	require.NoError(t, err)

	assert.Equal(t, Aborted, younger.State())
}

// A younger transaction requesting a lock an older transaction already
// holds must block until the older one releases it — wound-wait never
// preempts an older holder.
func TestYoungerWaitsForOlderHolder(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(3, 0)
	older := NewTransaction(1, RepeatableRead)
	younger := NewTransaction(2, RepeatableRead)

	require.NoError(t, lm.LockExclusive(older, r))

	done := make(chan error, 1)
	go func() { done <- lm.LockExclusive(younger, r) }()

	select {
	case <-done:
		t.Fatal("younger transaction should not have been granted the lock yet")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, lm.Unlock(older, r))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("younger transaction was never granted the lock after release")
	}
	assert.Equal(t, Growing, younger.State())
}

// Scenario 6 (spec §8): a REPEATABLE_READ transaction that has entered
// SHRINKING (by unlocking anything) may not acquire any further lock.
func TestLockOnShrinkingAbortsUnderRepeatableRead(t *testing.T) {
	lm := NewLockManager(nil)
	r1 := row(4, 0)
	r2 := row(4, 1)
	txn := NewTransaction(1, RepeatableRead)

	require.NoError(t, lm.LockShared(txn, r1))
	require.NoError(t, lm.Unlock(txn, r1))
	assert.Equal(t, Shrinking, txn.State())

	err := lm.LockShared(txn, r2)
	assert.ErrorIs(t, err, common.ErrLockOnShrinking)
	assert.Equal(t, Aborted, txn.State())
}

// Under READ_COMMITTED, only releasing an exclusive lock enters
// SHRINKING; releasing a shared lock does not, so another lock may
// still be acquired afterward.
func TestSharedUnlockUnderReadCommittedStaysGrowing(t *testing.T) {
	lm := NewLockManager(nil)
	r1 := row(5, 0)
	r2 := row(5, 1)
	txn := NewTransaction(1, ReadCommitted)

	require.NoError(t, lm.LockShared(txn, r1))
	require.NoError(t, lm.Unlock(txn, r1))
	assert.Equal(t, Growing, txn.State())

	require.NoError(t, lm.LockShared(txn, r2))
	assert.Equal(t, Growing, txn.State())
}

func TestExclusiveUnlockEntersShrinkingUnderReadCommitted(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(6, 0)
	txn := NewTransaction(1, ReadCommitted)

	require.NoError(t, lm.LockExclusive(txn, r))
	require.NoError(t, lm.Unlock(txn, r))
	assert.Equal(t, Shrinking, txn.State())
}

func TestSharedLockRejectedUnderReadUncommitted(t *testing.T) {
	lm := NewLockManager(nil)
	txn := NewTransaction(1, ReadUncommitted)
	err := lm.LockShared(txn, row(7, 0))
	assert.ErrorIs(t, err, common.ErrSharedOnRU)
	assert.Equal(t, Aborted, txn.State())
}

func TestLockUpgradeToExclusive(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(8, 0)
	txn := NewTransaction(1, RepeatableRead)

	require.NoError(t, lm.LockShared(txn, r))
	require.NoError(t, lm.LockUpgrade(txn, r))
	assert.True(t, txn.IsExclusiveLocked(r))
	assert.False(t, txn.IsSharedLocked(r))
}

// A second transaction may not begin upgrading the same row while
// another transaction's upgrade is still pending on it.
func TestLockUpgradeConflictRejectsSecondUpgrader(t *testing.T) {
	lm := NewLockManager(nil)
	r := row(13, 0)
	a := NewTransaction(1, RepeatableRead)
	b := NewTransaction(2, RepeatableRead)

	require.NoError(t, lm.LockShared(a, r))
	require.NoError(t, lm.LockShared(b, r))

	q := lm.queueFor(r)
	q.upgrading = a

	err := lm.LockUpgrade(b, r)
	assert.ErrorIs(t, err, common.ErrUpgradeConflict)
	assert.Equal(t, Aborted, b.State())
}

func TestLockUpgradeWithoutPriorSharedFails(t *testing.T) {
	lm := NewLockManager(nil)
	txn := NewTransaction(1, RepeatableRead)
	err := lm.LockUpgrade(txn, row(9, 0))
	assert.ErrorIs(t, err, common.ErrLockNotHeld)
}

func TestUnlockUnknownRowIsVacuous(t *testing.T) {
	lm := NewLockManager(nil)
	txn := NewTransaction(1, RepeatableRead)
	assert.NoError(t, lm.Unlock(txn, row(10, 0)))
}

func TestReleaseAllDropsEveryHeldRow(t *testing.T) {
	lm := NewLockManager(nil)
	r1 := row(11, 0)
	r2 := row(11, 1)
	txn := NewTransaction(1, RepeatableRead)

	require.NoError(t, lm.LockShared(txn, r1))
	require.NoError(t, lm.LockExclusive(txn, r2))
	lm.ReleaseAll(txn)

	assert.False(t, txn.IsSharedLocked(r1))
	assert.False(t, txn.IsExclusiveLocked(r2))
}

func TestAbortedTransactionCannotAcquireNewLocks(t *testing.T) {
	lm := NewLockManager(nil)
	txn := NewTransaction(1, RepeatableRead)
	txn.SetState(Aborted)

	err := lm.LockShared(txn, row(12, 0))
	assert.ErrorIs(t, err, common.ErrTxnAborted)
}
