package disk

import "github.com/relcore-dev/reldb/internal/common"

// Filer is the disk manager interface the buffer pool consumes (spec §6).
// Named after the teacher's internal/storage/file.Filer, generalized to
// the id-based ReadPage/WritePage signature plus page allocation.
type Filer interface {
	ReadPage(id common.PageID, dst []byte) error
	WritePage(id common.PageID, src []byte) error
	AllocatePage() common.PageID
	DeallocatePage(id common.PageID)
}
