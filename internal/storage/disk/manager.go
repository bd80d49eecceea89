// Package disk is the buffer pool's external collaborator (spec §6): a
// synchronous ReadPage/WritePage pair over common.PageSize-byte blocks.
// Adapted from the teacher's internal/storage/file.FileManager, but
// swapping its Windows-only mmap (internal/storage/file/db_windows.go,
// which the teacher repo never paired with a non-Windows counterpart)
// for plain os.File.ReadAt/WriteAt, growing the file on demand the same
// way the teacher's WritePage grows its mapping.
package disk

import (
	"fmt"
	"os"
	"sync"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/logging"
)

var log = logging.For("disk_manager")

// Manager implements the disk manager interface the buffer pool
// consumes: ReadPage, WritePage, AllocatePage, DeallocatePage (spec §6).
type Manager struct {
	mu   sync.Mutex
	file *os.File
	size int64

	nextPageID int64
}

// NewManager opens (creating if necessary) the backing file at path.
func NewManager(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}
	return &Manager{
		file:       f,
		size:       info.Size(),
		nextPageID: info.Size() / common.PageSize,
	}, nil
}

// ReadPage reads common.PageSize bytes for id into dst. Pages past the
// current end of file read as all-zero, matching a freshly allocated
// page's initial content.
func (m *Manager) ReadPage(id common.PageID, dst []byte) error {
	if id == common.InvalidPageID {
		return common.ErrInvalidPageID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(id) * common.PageSize
	if offset+common.PageSize > m.size {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	n, err := m.file.ReadAt(dst[:common.PageSize], offset)
	if err != nil {
		return fmt.Errorf("disk: read page %s: %w", id, err)
	}
	for i := n; i < common.PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage writes common.PageSize bytes of src for id, growing the file
// if needed.
func (m *Manager) WritePage(id common.PageID, src []byte) error {
	if id == common.InvalidPageID {
		return common.ErrInvalidPageID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(id) * common.PageSize
	if _, err := m.file.WriteAt(src[:common.PageSize], offset); err != nil {
		return fmt.Errorf("disk: write page %s: %w", id, err)
	}
	if offset+common.PageSize > m.size {
		m.size = offset + common.PageSize
	}
	log.WithField("page_id", id).Debug("wrote page")
	return nil
}

// AllocatePage reserves and returns a fresh on-disk page id from a
// counter that starts at the file's page count. ReadPage does not
// consult it: any id past the end of the file reads as zeros, allocated
// or not.
func (m *Manager) AllocatePage() common.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPageID
	m.nextPageID++
	return common.PageID(id)
}

// DeallocatePage is a no-op in this design: space reclamation on disk is
// out of scope (spec §1 Non-goals), matching the teacher's own posture
// that AllocatePage/DeallocatePage "may be no-ops in the reference
// design" (spec §6).
func (m *Manager) DeallocatePage(common.PageID) {}

// Close flushes and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("disk: sync: %w", err)
	}
	return m.file.Close()
}
