package common

import "errors"

// Sentinel errors returned by the storage and index layers. Following the
// teacher's own convention (internal/utils/errors.go): a flat block of
// package-level sentinels, wrapped with fmt.Errorf("...: %w", err) at call
// sites rather than reached for through a third-party error library.
var (
	ErrInvalidPageID       = errors.New("invalid page id")
	ErrInvalidPoolSize     = errors.New("invalid pool size")
	ErrNoFreeFrame         = errors.New("no free frame available")
	ErrPageNotFound        = errors.New("page not found in buffer pool")
	ErrPageNotResident     = errors.New("page is not resident")
	ErrPagePinned          = errors.New("page is still pinned")
	ErrOutOfBoundsFrame    = errors.New("frame index out of bounds")
	ErrReplacerEmpty       = errors.New("replacer has no evictable frame")
	ErrDuplicateEntry      = errors.New("duplicate key/value pair")
	ErrBucketFull          = errors.New("bucket page is full")
	ErrMaxDepthReached     = errors.New("directory global/local depth exceeds MaxDepth")
	ErrDirectoryOutOfRange = errors.New("directory index out of range")
	ErrNotMergeable        = errors.New("split images are not mergeable")
	ErrEntryNotFound       = errors.New("key/value pair not found")

	ErrTxnAborted      = errors.New("transaction already aborted")
	ErrLockOnShrinking = errors.New("lock requested while transaction is shrinking")
	ErrSharedOnRU      = errors.New("shared lock requested under read uncommitted")
	ErrUpgradeConflict = errors.New("another upgrade is already in progress for this row")
	ErrDeadlock        = errors.New("transaction wounded by an older transaction")
	ErrLockNotHeld     = errors.New("transaction does not hold a lock on this row")
)
