package page

import "github.com/relcore-dev/reldb/internal/common"

// BucketPage is the in-page open-addressed slot array described in spec
// §4.4: a fixed-capacity array of (key, value) pairs plus occupied/
// readable bitmaps. It binds directly onto a Page's Data buffer (no
// separate copy), the same way the bustub-lineage examples in
// other_examples/ryogrid-SamehadaDB lay bucket pages directly over a raw
// frame.
type BucketPage[K any, V any] struct {
	data     []byte
	capacity int
	keySize  int
	valSize  int
	keyCodec Codec[K]
	valCodec Codec[V]
}

// BucketArraySize returns the largest slot count that fits a page of
// common.PageSize bytes given key/value widths: capacity*(keySize+valSize)
// plus two ceil(capacity/8)-byte bitmaps must not exceed the page.
func BucketArraySize(keySize, valSize int) int {
	slot := keySize + valSize
	capacity := (common.PageSize * 8) / (8*slot + 2)
	for capacity > 0 {
		used := capacity*slot + 2*bitmapBytes(capacity)
		if used <= common.PageSize {
			break
		}
		capacity--
	}
	return capacity
}

// BindBucketPage wraps data (expected to be a Page's Data[:]) as a bucket
// page. data must already be zeroed for a freshly allocated page; for an
// existing page read from disk, the bitmaps and slots are read as-is.
func BindBucketPage[K any, V any](data []byte, keyCodec Codec[K], valCodec Codec[V]) *BucketPage[K, V] {
	capacity := BucketArraySize(keyCodec.Size(), valCodec.Size())
	return &BucketPage[K, V]{
		data:     data,
		capacity: capacity,
		keySize:  keyCodec.Size(),
		valSize:  valCodec.Size(),
		keyCodec: keyCodec,
		valCodec: valCodec,
	}
}

func (b *BucketPage[K, V]) Capacity() int { return b.capacity }

func (b *BucketPage[K, V]) occupiedBitmap() []byte {
	n := bitmapBytes(b.capacity)
	return b.data[0:n]
}

func (b *BucketPage[K, V]) readableBitmap() []byte {
	n := bitmapBytes(b.capacity)
	return b.data[n : 2*n]
}

func (b *BucketPage[K, V]) slotOffset(i int) int {
	return 2*bitmapBytes(b.capacity) + i*(b.keySize+b.valSize)
}

// IsOccupied reports whether slot i has ever been written. Sticky: never
// cleared by Remove.
func (b *BucketPage[K, V]) IsOccupied(i int) bool { return bitGet(b.occupiedBitmap(), i) }

// IsReadable reports whether slot i currently holds a live entry.
func (b *BucketPage[K, V]) IsReadable(i int) bool { return bitGet(b.readableBitmap(), i) }

// KeyAt decodes the key stored at slot i, regardless of readability.
func (b *BucketPage[K, V]) KeyAt(i int) K {
	off := b.slotOffset(i)
	return b.keyCodec.Decode(b.data[off : off+b.keySize])
}

// ValueAt decodes the value stored at slot i, regardless of readability.
func (b *BucketPage[K, V]) ValueAt(i int) V {
	off := b.slotOffset(i) + b.keySize
	return b.valCodec.Decode(b.data[off : off+b.valSize])
}

func (b *BucketPage[K, V]) writeAt(i int, key K, value V) {
	off := b.slotOffset(i)
	b.keyCodec.Encode(key, b.data[off:off+b.keySize])
	b.valCodec.Encode(value, b.data[off+b.keySize:off+b.keySize+b.valSize])
}

// GetValue appends every live value whose key compares equal to key,
// per spec §4.4: a full linear scan, tombstones (occupied but no longer
// readable slots) do not stop the scan early.
func (b *BucketPage[K, V]) GetValue(key K, cmp func(K, K) int, out []V) []V {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 {
			out = append(out, b.ValueAt(i))
		}
	}
	return out
}

// Insert writes (key, value) into the first non-readable slot, rejecting
// an exact duplicate pair found anywhere in the bucket (spec §4.4: the
// scan continues past the insertion point to detect duplicates).
func (b *BucketPage[K, V]) Insert(key K, value V, cmpK func(K, K) int, cmpV func(V, V) int) error {
	insertAt := -1
	for i := 0; i < b.capacity; i++ {
		if insertAt == -1 && !b.IsReadable(i) {
			insertAt = i
		}
		if b.IsReadable(i) && cmpK(key, b.KeyAt(i)) == 0 && cmpV(value, b.ValueAt(i)) == 0 {
			return common.ErrDuplicateEntry
		}
	}
	if insertAt == -1 {
		return common.ErrBucketFull
	}
	b.writeAt(insertAt, key, value)
	bitSet(b.occupiedBitmap(), insertAt)
	bitSet(b.readableBitmap(), insertAt)
	return nil
}

// Remove clears the readable bit of the first live slot matching
// (key, value). occupied stays set (spec §4.4: sticky on first write).
func (b *BucketPage[K, V]) Remove(key K, value V, cmpK func(K, K) int, cmpV func(V, V) int) bool {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmpK(key, b.KeyAt(i)) == 0 && cmpV(value, b.ValueAt(i)) == 0 {
			bitClear(b.readableBitmap(), i)
			return true
		}
	}
	return false
}

// RemoveAt clears the readable bit of slot i unconditionally; occupied
// stays set.
func (b *BucketPage[K, V]) RemoveAt(i int) {
	bitClear(b.readableBitmap(), i)
}

// IsFull reports whether every slot holds a live entry.
func (b *BucketPage[K, V]) IsFull() bool {
	return b.NumReadable() == b.capacity
}

// IsEmpty reports whether no slot holds a live entry.
func (b *BucketPage[K, V]) IsEmpty() bool {
	return b.NumReadable() == 0
}

// NumReadable counts live slots by scanning the readable bitmap; the
// design deliberately does not maintain a separate counter (spec §4.4).
func (b *BucketPage[K, V]) NumReadable() int {
	return bitCountSet(b.readableBitmap(), b.capacity)
}

// ForEachReadable visits every live (key, value) pair in slot order. Used
// by SplitInsert's redistribution to rehash a bucket's contents.
func (b *BucketPage[K, V]) ForEachReadable(fn func(i int, key K, value V)) {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			fn(i, b.KeyAt(i), b.ValueAt(i))
		}
	}
}
