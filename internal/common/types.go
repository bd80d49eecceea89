// Package common holds the identifiers, constants, and sentinel errors
// shared by the storage, index, and lock packages.
package common

import "fmt"

// PageID identifies a page, either in the buffer pool or on disk.
// -1 is reserved as the invalid id, matching the rest of the pack's
// signed-id convention (array-db's util.PageID is unsigned, but the
// spec requires a signed sentinel, so this diverges from the teacher
// here to match spec §3/§6 exactly).
type PageID int32

// InvalidPageID is returned where no page is allocated.
const InvalidPageID PageID = -1

func (p PageID) String() string {
	if p == InvalidPageID {
		return "<invalid>"
	}
	return fmt.Sprintf("%d", int32(p))
}

// PageSize is the fixed frame size moved between disk and the buffer pool.
const PageSize = 4096

// FrameID indexes a slot in a buffer pool's frame array.
type FrameID int32

// TxnID identifies a transaction. Wound-wait compares these directly:
// a smaller TxnID is an older transaction.
type TxnID int64

// RowID identifies a tuple by the page that holds it and its slot within
// that page, per spec §6.
type RowID struct {
	PageID PageID
	Slot   uint32
}

func (r RowID) String() string {
	return fmt.Sprintf("%s:%d", r.PageID, r.Slot)
}
