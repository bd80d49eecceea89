package page

import (
	"encoding/binary"

	"github.com/relcore-dev/reldb/internal/common"
)

// MaxDepth bounds global/local depth at 9, per spec §9: the cap is
// structural, tied to fitting the directory's local-depth and bucket-id
// arrays inside one page. 2^9 slots * (1 local-depth byte + 4 id bytes)
// = 2560 bytes, comfortably under common.PageSize alongside the 8-byte
// header below.
const MaxDepth = 9

// DirectorySize is 2^MaxDepth, the largest the directory's slot arrays
// ever grow to.
const DirectorySize = 1 << MaxDepth

const (
	dirHeaderSize    = 8 // PageID(4) + GlobalDepth(4)
	dirLocalDepthOff = dirHeaderSize
	dirBucketIDOff   = dirLocalDepthOff + DirectorySize
)

// DirectoryPage holds the global depth and, for every slot, a local
// depth and bucket page id, per spec §3/§4.5. It binds directly onto a
// Page's Data buffer.
type DirectoryPage struct {
	data []byte
}

// BindDirectoryPage wraps data (a Page's Data[:]) as a directory page.
func BindDirectoryPage(data []byte) *DirectoryPage {
	return &DirectoryPage{data: data}
}

// PageID returns the directory page's own page id, stored in its header
// so a latch holder can identify it without a separate lookup.
func (d *DirectoryPage) PageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(d.data[0:4])))
}

func (d *DirectoryPage) SetPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(d.data[0:4], uint32(int32(id)))
}

func (d *DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[4:8])
}

func (d *DirectoryPage) SetGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.data[4:8], depth)
}

// GetGlobalDepthMask returns (1<<globalDepth)-1.
func (d *DirectoryPage) GetGlobalDepthMask() uint32 {
	return (1 << d.GlobalDepth()) - 1
}

// Size returns 1<<globalDepth, the number of directory slots currently in
// use.
func (d *DirectoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

func (d *DirectoryPage) LocalDepth(i uint32) uint32 {
	return uint32(d.data[dirLocalDepthOff+int(i)])
}

func (d *DirectoryPage) SetLocalDepth(i uint32, depth uint32) {
	d.data[dirLocalDepthOff+int(i)] = byte(depth)
}

func (d *DirectoryPage) BucketPageID(i uint32) common.PageID {
	off := dirBucketIDOff + int(i)*4
	return common.PageID(int32(binary.LittleEndian.Uint32(d.data[off : off+4])))
}

func (d *DirectoryPage) SetBucketPageID(i uint32, id common.PageID) {
	off := dirBucketIDOff + int(i)*4
	binary.LittleEndian.PutUint32(d.data[off:off+4], uint32(int32(id)))
}

// GetSplitImageIndex returns the index of the directory slot that shares
// i's bucket's local-depth prefix except for the high bit, per spec §4.5.
func (d *DirectoryPage) GetSplitImageIndex(i uint32) uint32 {
	localDepth := d.LocalDepth(i)
	if localDepth == 0 {
		return i
	}
	return i ^ (1 << (localDepth - 1))
}

// CanShrink reports whether every slot's local depth is strictly less
// than the global depth, the precondition for halving the directory
// (spec §4.5).
func (d *DirectoryPage) CanShrink() bool {
	global := d.GlobalDepth()
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if d.LocalDepth(i) >= global {
			return false
		}
	}
	return true
}

// IncrGlobalDepth doubles the directory: slot i+oldSize inherits slot i's
// bucket id and local depth, per spec §4.6 SplitInsert.
func (d *DirectoryPage) IncrGlobalDepth() {
	oldSize := d.Size()
	d.SetGlobalDepth(d.GlobalDepth() + 1)
	for i := uint32(0); i < oldSize; i++ {
		d.SetBucketPageID(i+oldSize, d.BucketPageID(i))
		d.SetLocalDepth(i+oldSize, d.LocalDepth(i))
	}
}

// DecrGlobalDepth halves the directory. Callers must have already
// checked CanShrink.
func (d *DirectoryPage) DecrGlobalDepth() {
	d.SetGlobalDepth(d.GlobalDepth() - 1)
}
