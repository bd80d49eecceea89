// Package page defines the fixed-size frame content moved between disk
// and the buffer pool, plus the two page kinds the extendible hash index
// persists in it (directory and bucket pages, in directory.go/bucket.go).
package page

import (
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
)

// Page is a resident buffer frame: the teacher's page.Page (a PageHeader
// plus a Data array) generalized to carry an integer pin count and a
// frame-local reader/writer latch, per spec §3.
type Page struct {
	// Latch guards Data against concurrent readers/writers. The
	// instance mutex only protects page-table/pin bookkeeping, not
	// content (spec §4.6). The instance itself takes Latch in shared
	// mode while flushing a resident page; it reads into, evicts and
	// resets only frames whose pin count is 0, without taking Latch.
	Latch sync.RWMutex

	id       common.PageID
	pinCount int32
	isDirty  bool

	Data [common.PageSize]byte
}

// ID returns the page's identifier.
func (p *Page) ID() common.PageID { return p.id }

// PinCount returns the current pin count. Mutated only by the owning
// BufferPoolInstance under its instance mutex, per spec §4.2.
func (p *Page) PinCount() int32 { return p.pinCount }

// IsDirty reports whether the frame has unflushed writes.
func (p *Page) IsDirty() bool { return p.isDirty }

// Reset clears a frame's metadata and content, returning it to the state
// a freshly allocated frame starts in.
func (p *Page) Reset() {
	p.id = common.InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	for i := range p.Data {
		p.Data[i] = 0
	}
}

// Install populates a frame that has just become resident for id, with a
// starting pin count of 1 and a clean dirty bit, per spec §4.2 Fetch/New.
// Exported because BufferPoolInstance lives in a different package but is
// the only intended caller.
func (p *Page) Install(id common.PageID) {
	p.id = id
	p.pinCount = 1
	p.isDirty = false
}

// Pin increments the pin count.
func (p *Page) Pin() { p.pinCount++ }

// Unpin decrements the pin count. Callers must not drive it negative;
// BufferPoolInstance.UnpinPage guards this per spec §4.2.
func (p *Page) Unpin() { p.pinCount-- }

// MarkDirty sets the dirty bit. Once dirty, it stays dirty until a flush
// clears it (spec §4.2 UnpinPage).
func (p *Page) MarkDirty() { p.isDirty = true }

// ClearDirty clears the dirty bit, called after a successful flush.
func (p *Page) ClearDirty() { p.isDirty = false }
