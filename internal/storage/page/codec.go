package page

import (
	"encoding/binary"

	"github.com/relcore-dev/reldb/internal/common"
)

// Codec fixes the on-disk width of a key or value type so bucket/
// directory pages can lay out a flat array of (key, value) slots, per
// spec §6's "at least (int,int) and (GenericKey<N>, RowId) for
// N in {4,8,16,32,64}" requirement. Go generics can't parameterize an
// array's length by a type parameter the way a C++ template can, so
// instead of a GenericKey[N] type this module carries a runtime Size()
// and fixed-width encode/decode, and the hash index is instantiated with
// whichever Codec the caller wants.
type Codec[T any] interface {
	Size() int
	Encode(v T, dst []byte)
	Decode(src []byte) T
}

// Int32Codec encodes a plain int32, covering spec §6's "(int, int)"
// instantiation.
type Int32Codec struct{}

func (Int32Codec) Size() int { return 4 }
func (Int32Codec) Encode(v int32, dst []byte) {
	binary.LittleEndian.PutUint32(dst, uint32(v))
}
func (Int32Codec) Decode(src []byte) int32 {
	return int32(binary.LittleEndian.Uint32(src))
}

// RowIDCodec encodes a common.RowID as PageID(4) + Slot(4).
type RowIDCodec struct{}

func (RowIDCodec) Size() int { return 8 }
func (RowIDCodec) Encode(v common.RowID, dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(v.PageID))
	binary.LittleEndian.PutUint32(dst[4:8], v.Slot)
}
func (RowIDCodec) Decode(src []byte) common.RowID {
	return common.RowID{
		PageID: common.PageID(int32(binary.LittleEndian.Uint32(src[0:4]))),
		Slot:   binary.LittleEndian.Uint32(src[4:8]),
	}
}

// GenericKey is a fixed-width, zero-padded byte key, the Go analogue of
// spec §6's GenericKey<N> template: N is carried at runtime as len(Bytes)
// rather than as a compile-time parameter. Supported widths are 4, 8, 16,
// 32, and 64 bytes, matching the spec's instantiation list.
type GenericKey struct {
	Bytes []byte
}

// NewGenericKey packs value (as little-endian) into a key of the given
// width, zero-padding the remainder.
func NewGenericKey(width int, value int64) GenericKey {
	b := make([]byte, width)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(value))
	n := width
	if n > 8 {
		n = 8
	}
	copy(b, tmp[:n])
	return GenericKey{Bytes: b}
}

// GenericKeyCodec encodes/decodes GenericKey values of a fixed Width.
type GenericKeyCodec struct {
	Width int
}

func (c GenericKeyCodec) Size() int { return c.Width }
func (c GenericKeyCodec) Encode(v GenericKey, dst []byte) {
	copy(dst, v.Bytes)
	for i := len(v.Bytes); i < c.Width; i++ {
		dst[i] = 0
	}
}
func (c GenericKeyCodec) Decode(src []byte) GenericKey {
	b := make([]byte, c.Width)
	copy(b, src[:c.Width])
	return GenericKey{Bytes: b}
}

// CompareGenericKey is a byte-lexicographic comparator suitable for
// GenericKey, matching how a fixed-width B-tree/hash key of raw bytes is
// ordinarily compared when no richer column type information is carried.
func CompareGenericKey(a, b GenericKey) int {
	n := len(a.Bytes)
	if len(b.Bytes) < n {
		n = len(b.Bytes)
	}
	for i := 0; i < n; i++ {
		if a.Bytes[i] != b.Bytes[i] {
			if a.Bytes[i] < b.Bytes[i] {
				return -1
			}
			return 1
		}
	}
	return len(a.Bytes) - len(b.Bytes)
}

// CompareRowID orders RowID first by page id, then by slot.
func CompareRowID(a, b common.RowID) int {
	if a.PageID != b.PageID {
		if a.PageID < b.PageID {
			return -1
		}
		return 1
	}
	switch {
	case a.Slot < b.Slot:
		return -1
	case a.Slot > b.Slot:
		return 1
	default:
		return 0
	}
}

// CompareInt32 is the natural comparator for Int32Codec keys.
func CompareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
