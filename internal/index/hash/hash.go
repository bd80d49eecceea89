// Package hash implements the extendible hash index of spec §4.5-§4.6:
// a directory page fanning out to bucket pages, grown and shrunk by
// splitting and merging rather than full-table rehashing. Concurrency
// follows the latch-crabbing discipline spec §5 describes: a table-wide
// latch guards directory structure changes, while each page's own
// frame-local latch (page.Page.Latch) guards its content.
//
// There is no extendible-hash precedent in the teacher repo; this
// package is grounded directly on the directory/bucket page layout
// built for it (internal/storage/page) and on the buffer pool's
// pin/unpin discipline, which is the one piece of the pattern the
// teacher does show.
package hash

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/logging"
	"github.com/relcore-dev/reldb/internal/storage/buffer"
	"github.com/relcore-dev/reldb/internal/storage/page"
)

var log = logging.For("hash_index")

// Index is the ExtendibleHashIndex of spec §4.6, parameterized over key
// and value types the way the spec's GenericKey<N>/RID templates are
// parameterized in the original, via runtime Codecs rather than a
// compile-time array length (see page.Codec's doc comment).
type Index[K any, V any] struct {
	pool *buffer.Pool

	dirPageID common.PageID
	keyCodec  page.Codec[K]
	valCodec  page.Codec[V]
	cmpKey    func(K, K) int
	cmpVal    func(V, V) int
	hasher    func(K) uint64

	// latch is the table-wide latch of spec §5: held shared for Search
	// and the Insert/Remove fast paths, exclusive for SplitInsert/Merge.
	latch sync.RWMutex
}

// HashBytes hashes an already-encoded key with xxhash, the
// github.com/cespare/xxhash/v2 hasher the rest of the pack's indexing
// code (and this module's go.mod) standardize on.
func HashBytes(b []byte) uint64 { return xxhash.Sum64(b) }

// HasherFromCodec builds a hasher for K by encoding through codec and
// hashing the resulting bytes, the default New uses when no hasher is
// supplied.
func HasherFromCodec[K any](codec page.Codec[K]) func(K) uint64 {
	buf := make([]byte, codec.Size())
	return func(key K) uint64 {
		codec.Encode(key, buf)
		return HashBytes(buf)
	}
}

// New allocates a fresh directory page and its first bucket (global
// depth 0, one slot) and returns an Index bound to it. hasher may be
// nil, defaulting to HasherFromCodec(keyCodec).
func New[K any, V any](
	pool *buffer.Pool,
	keyCodec page.Codec[K],
	valCodec page.Codec[V],
	cmpKey func(K, K) int,
	cmpVal func(V, V) int,
	hasher func(K) uint64,
) (*Index[K, V], error) {
	if hasher == nil {
		hasher = HasherFromCodec(keyCodec)
	}

	dirPage, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	dirID := dirPage.ID()
	dir := page.BindDirectoryPage(dirPage.Data[:])
	dir.SetPageID(dirID)
	dir.SetGlobalDepth(0)

	bucketPage, err := pool.NewPage()
	if err != nil {
		pool.UnpinPage(dirID, false)
		return nil, err
	}
	dir.SetBucketPageID(0, bucketPage.ID())
	dir.SetLocalDepth(0, 0)

	if err := pool.UnpinPage(bucketPage.ID(), true); err != nil {
		return nil, err
	}
	if err := pool.UnpinPage(dirID, true); err != nil {
		return nil, err
	}

	log.WithField("dir_page_id", dirID).Info("created extendible hash index")
	return &Index[K, V]{
		pool:      pool,
		dirPageID: dirID,
		keyCodec:  keyCodec,
		valCodec:  valCodec,
		cmpKey:    cmpKey,
		cmpVal:    cmpVal,
		hasher:    hasher,
	}, nil
}

// Open binds an Index to an already-existing directory page, for
// reattaching to an index built in an earlier session.
func Open[K any, V any](
	pool *buffer.Pool,
	dirPageID common.PageID,
	keyCodec page.Codec[K],
	valCodec page.Codec[V],
	cmpKey func(K, K) int,
	cmpVal func(V, V) int,
	hasher func(K) uint64,
) *Index[K, V] {
	if hasher == nil {
		hasher = HasherFromCodec(keyCodec)
	}
	return &Index[K, V]{
		pool:      pool,
		dirPageID: dirPageID,
		keyCodec:  keyCodec,
		valCodec:  valCodec,
		cmpKey:    cmpKey,
		cmpVal:    cmpVal,
		hasher:    hasher,
	}
}

// DirectoryPageID returns the page id of the index's directory page, so
// callers (e.g. a catalog) can persist it and reopen the index later.
func (idx *Index[K, V]) DirectoryPageID() common.PageID { return idx.dirPageID }

func (idx *Index[K, V]) bucketIndex(dir *page.DirectoryPage, key K) uint32 {
	return uint32(idx.hasher(key)) & dir.GetGlobalDepthMask()
}

// Search returns every value stored under key, per spec §4.6 Search:
// held under the table-wide latch in shared mode, the bucket page's own
// latch in shared mode for the scan itself.
func (idx *Index[K, V]) Search(key K) ([]V, error) {
	idx.latch.RLock()
	defer idx.latch.RUnlock()

	dirPage, err := idx.pool.FetchPage(idx.dirPageID)
	if err != nil {
		return nil, err
	}
	dirPage.Latch.RLock()
	dir := page.BindDirectoryPage(dirPage.Data[:])
	bucketID := dir.BucketPageID(idx.bucketIndex(dir, key))
	dirPage.Latch.RUnlock()
	if err := idx.pool.UnpinPage(idx.dirPageID, false); err != nil {
		return nil, err
	}

	bucketPage, err := idx.pool.FetchPage(bucketID)
	if err != nil {
		return nil, err
	}
	bucketPage.Latch.RLock()
	bucket := page.BindBucketPage(bucketPage.Data[:], idx.keyCodec, idx.valCodec)
	result := bucket.GetValue(key, idx.cmpKey, nil)
	bucketPage.Latch.RUnlock()
	if err := idx.pool.UnpinPage(bucketID, false); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert is the fast path of spec §4.6: it tries to fit (key, value)
// into its bucket under the table-wide latch held shared, and falls
// back to SplitInsert (which re-takes the latch exclusive) only if the
// bucket is already full.
func (idx *Index[K, V]) Insert(key K, value V) error {
	idx.latch.RLock()
	dirPage, err := idx.pool.FetchPage(idx.dirPageID)
	if err != nil {
		idx.latch.RUnlock()
		return err
	}
	dir := page.BindDirectoryPage(dirPage.Data[:])
	bucketID := dir.BucketPageID(idx.bucketIndex(dir, key))
	if err := idx.pool.UnpinPage(idx.dirPageID, false); err != nil {
		idx.latch.RUnlock()
		return err
	}

	bucketPage, err := idx.pool.FetchPage(bucketID)
	if err != nil {
		idx.latch.RUnlock()
		return err
	}
	bucketPage.Latch.Lock()
	bucket := page.BindBucketPage(bucketPage.Data[:], idx.keyCodec, idx.valCodec)
	full := bucket.IsFull()
	var insertErr error
	if !full {
		insertErr = bucket.Insert(key, value, idx.cmpKey, idx.cmpVal)
	}
	bucketPage.Latch.Unlock()

	idx.pool.UnpinPage(bucketID, !full && insertErr == nil)
	idx.latch.RUnlock()

	if full {
		return idx.SplitInsert(key, value)
	}
	return insertErr
}

// SplitInsert performs the exclusive-latch slow path of spec §4.6:
// split the target bucket (growing the directory first if its local
// depth has caught up to the global depth), redistribute its entries,
// and retry until the insert fits. Loops rather than recursing because
// after a split the key's bucket can still be full if every colliding
// key shares the new bit (duplicate hash prefixes).
func (idx *Index[K, V]) SplitInsert(key K, value V) error {
	idx.latch.Lock()
	defer idx.latch.Unlock()

	for {
		dirPage, err := idx.pool.FetchPage(idx.dirPageID)
		if err != nil {
			return err
		}
		dir := page.BindDirectoryPage(dirPage.Data[:])
		bucketIdx := idx.bucketIndex(dir, key)
		bucketID := dir.BucketPageID(bucketIdx)

		bucketPage, err := idx.pool.FetchPage(bucketID)
		if err != nil {
			idx.pool.UnpinPage(idx.dirPageID, false)
			return err
		}
		bucket := page.BindBucketPage(bucketPage.Data[:], idx.keyCodec, idx.valCodec)

		if !bucket.IsFull() {
			insertErr := bucket.Insert(key, value, idx.cmpKey, idx.cmpVal)
			idx.pool.UnpinPage(bucketID, insertErr == nil)
			idx.pool.UnpinPage(idx.dirPageID, false)
			return insertErr
		}

		newBucketID, err := idx.splitBucket(dir, bucketIdx)
		if err != nil {
			idx.pool.UnpinPage(bucketID, false)
			idx.pool.UnpinPage(idx.dirPageID, false)
			return err
		}

		newBucketPage, err := idx.pool.FetchPage(newBucketID)
		if err != nil {
			idx.pool.UnpinPage(bucketID, false)
			idx.pool.UnpinPage(idx.dirPageID, true)
			return err
		}
		newBucket := page.BindBucketPage(newBucketPage.Data[:], idx.keyCodec, idx.valCodec)
		idx.redistribute(dir, bucket, newBucket, newBucketID)

		idx.pool.UnpinPage(newBucketID, true)
		idx.pool.UnpinPage(bucketID, true)
		idx.pool.UnpinPage(idx.dirPageID, true)
		// loop: re-fetch with the now-current directory and retry the insert
	}
}

// splitBucket grows the directory (if the target's local depth has
// caught up to the global depth) and allocates a sibling bucket,
// reassigning every directory slot that currently aliases the old
// bucket between the two according to their new local-depth bit, per
// spec §4.6.
func (idx *Index[K, V]) splitBucket(dir *page.DirectoryPage, bucketIdx uint32) (common.PageID, error) {
	oldBucketID := dir.BucketPageID(bucketIdx)
	localDepth := dir.LocalDepth(bucketIdx)

	if localDepth == dir.GlobalDepth() {
		if dir.GlobalDepth() >= page.MaxDepth {
			return 0, common.ErrMaxDepthReached
		}
		dir.IncrGlobalDepth()
	}
	newLocalDepth := localDepth + 1

	newBucketPage, err := idx.pool.NewPage()
	if err != nil {
		return 0, err
	}
	newBucketID := newBucketPage.ID()
	idx.pool.UnpinPage(newBucketID, true)

	splitBit := uint32(1) << (newLocalDepth - 1)
	size := dir.Size()
	for i := uint32(0); i < size; i++ {
		if dir.BucketPageID(i) != oldBucketID {
			continue
		}
		dir.SetLocalDepth(i, newLocalDepth)
		if i&splitBit != 0 {
			dir.SetBucketPageID(i, newBucketID)
		}
	}
	return newBucketID, nil
}

// redistribute moves every entry of an old bucket whose key now hashes
// to newBucketID's directory slots into newBucket.
func (idx *Index[K, V]) redistribute(dir *page.DirectoryPage, oldBucket, newBucket *page.BucketPage[K, V], newBucketID common.PageID) {
	type moved struct {
		key K
		val V
	}
	var toMove []moved
	oldBucket.ForEachReadable(func(_ int, key K, val V) {
		if dir.BucketPageID(idx.bucketIndex(dir, key)) == newBucketID {
			toMove = append(toMove, moved{key, val})
		}
	})
	for _, m := range toMove {
		oldBucket.Remove(m.key, m.val, idx.cmpKey, idx.cmpVal)
		// newBucket was just allocated empty; it cannot be full relative
		// to this bucket's share of the split, so the insert cannot fail.
		newBucket.Insert(m.key, m.val, idx.cmpKey, idx.cmpVal)
	}
}

// Remove deletes (key, value) from the index, returning
// common.ErrEntryNotFound if it wasn't present. If the removal leaves
// the bucket empty, Merge is attempted once the table-wide shared latch
// taken for the removal itself has been released (Merge needs the
// latch exclusive and latches are not reentrant), per spec §4.6 Remove.
func (idx *Index[K, V]) Remove(key K, value V) error {
	idx.latch.RLock()

	dirPage, err := idx.pool.FetchPage(idx.dirPageID)
	if err != nil {
		idx.latch.RUnlock()
		return err
	}
	dir := page.BindDirectoryPage(dirPage.Data[:])
	bucketIdx := idx.bucketIndex(dir, key)
	bucketID := dir.BucketPageID(bucketIdx)
	if err := idx.pool.UnpinPage(idx.dirPageID, false); err != nil {
		idx.latch.RUnlock()
		return err
	}

	bucketPage, err := idx.pool.FetchPage(bucketID)
	if err != nil {
		idx.latch.RUnlock()
		return err
	}
	bucketPage.Latch.Lock()
	bucket := page.BindBucketPage(bucketPage.Data[:], idx.keyCodec, idx.valCodec)
	removed := bucket.Remove(key, value, idx.cmpKey, idx.cmpVal)
	empty := removed && bucket.IsEmpty()
	bucketPage.Latch.Unlock()

	idx.pool.UnpinPage(bucketID, removed)
	idx.latch.RUnlock()

	if !removed {
		return common.ErrEntryNotFound
	}
	if empty {
		idx.Merge(key)
	}
	return nil
}

// Merge collapses key's bucket into its split image once it is empty
// and both share the same local depth, then shrinks the directory as
// far as CanShrink allows, per spec §4.6 Merge. bucketIdx is recomputed
// fresh from key under the exclusive latch (the directory can have
// grown or shrunk since the caller last looked it up), matching
// KeyToDirectoryIndex being recomputed inside Merge in
// extendible_hash_table.cpp rather than trusting a caller-supplied
// index. A no-op, not an error, if the merge preconditions don't hold.
func (idx *Index[K, V]) Merge(key K) error {
	idx.latch.Lock()
	defer idx.latch.Unlock()

	dirPage, err := idx.pool.FetchPage(idx.dirPageID)
	if err != nil {
		return err
	}
	dir := page.BindDirectoryPage(dirPage.Data[:])

	bucketIdx := idx.bucketIndex(dir, key)
	if bucketIdx >= dir.Size() {
		idx.pool.UnpinPage(idx.dirPageID, false)
		return nil
	}

	localDepth := dir.LocalDepth(bucketIdx)
	if localDepth == 0 {
		idx.pool.UnpinPage(idx.dirPageID, false)
		return nil
	}
	imageIdx := dir.GetSplitImageIndex(bucketIdx)
	if dir.LocalDepth(imageIdx) != localDepth {
		idx.pool.UnpinPage(idx.dirPageID, false)
		return nil
	}

	bucketID := dir.BucketPageID(bucketIdx)
	imageBucketID := dir.BucketPageID(imageIdx)
	if bucketID == imageBucketID {
		idx.pool.UnpinPage(idx.dirPageID, false)
		return nil
	}

	bucketPage, err := idx.pool.FetchPage(bucketID)
	if err != nil {
		idx.pool.UnpinPage(idx.dirPageID, false)
		return err
	}
	bucket := page.BindBucketPage(bucketPage.Data[:], idx.keyCodec, idx.valCodec)
	stillEmpty := bucket.IsEmpty()
	idx.pool.UnpinPage(bucketID, false)
	if !stillEmpty {
		idx.pool.UnpinPage(idx.dirPageID, false)
		return nil
	}

	newLocalDepth := localDepth - 1
	size := dir.Size()
	for i := uint32(0); i < size; i++ {
		if dir.BucketPageID(i) == bucketID || dir.BucketPageID(i) == imageBucketID {
			dir.SetBucketPageID(i, imageBucketID)
			dir.SetLocalDepth(i, newLocalDepth)
		}
	}

	if err := idx.pool.DeletePage(bucketID); err != nil {
		log.WithField("bucket_page_id", bucketID).WithError(err).Warn("failed to reclaim merged bucket page")
	}

	for dir.CanShrink() && dir.GlobalDepth() > 0 {
		dir.DecrGlobalDepth()
	}

	idx.pool.UnpinPage(idx.dirPageID, true)
	return nil
}
