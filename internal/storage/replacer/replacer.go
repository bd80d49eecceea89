// Package replacer implements victim-frame selection for the buffer
// pool: a bounded candidate set of unpinned, resident frames, ordered for
// eviction (spec §4.1). Grounded on the teacher's
// internal/storage/buffer/pool.go, which already tracks its LRU order as
// index-based forward/backward links (nextLRU/prevLRU) rather than a
// pointer-chasing list — that shape is kept here, generalized behind a
// Replacer interface so a second policy (Clock) can plug in alongside it.
package replacer

import "github.com/relcore-dev/reldb/internal/common"

// Replacer chooses victim frames among those currently unpinned and
// resident. It knows nothing about page content or disk I/O; it only
// ever sees frame ids (spec §4.1).
type Replacer interface {
	// Victim returns and evicts the next frame to reuse, or ok=false
	// if no frame is currently a candidate.
	Victim() (id common.FrameID, ok bool)

	// Pin removes id from the candidate set, a no-op if absent. Called
	// when a frame's pin count transitions from 0 to positive.
	Pin(id common.FrameID)

	// Unpin inserts id as the most-recently-used candidate, a no-op if
	// already present. Called when a frame's pin count reaches 0.
	Unpin(id common.FrameID)

	// Size returns the number of frames currently eligible for
	// eviction.
	Size() int
}
