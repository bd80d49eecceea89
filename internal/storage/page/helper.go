package page

import "github.com/relcore-dev/reldb/internal/common"

// NewTestPage builds a resident Page pre-loaded with data, for use in
// tests that want to exercise bucket/directory code without going through
// a BufferPoolInstance.
func NewTestPage(id common.PageID, data []byte) *Page {
	p := &Page{}
	p.Install(id)
	if len(data) > len(p.Data) {
		data = data[:len(p.Data)]
	}
	copy(p.Data[:], data)
	return p
}
