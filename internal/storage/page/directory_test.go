package page

import (
	"testing"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/stretchr/testify/assert"
)

func newDirectory() *DirectoryPage {
	data := make([]byte, 4096)
	d := BindDirectoryPage(data)
	d.SetPageID(common.PageID(0))
	d.SetGlobalDepth(0)
	d.SetBucketPageID(0, common.PageID(1))
	d.SetLocalDepth(0, 0)
	return d
}

func TestDirectoryIncrGlobalDepth(t *testing.T) {
	d := newDirectory()
	d.IncrGlobalDepth()
	assert.Equal(t, uint32(1), d.GlobalDepth())
	assert.Equal(t, common.PageID(1), d.BucketPageID(1))
	assert.Equal(t, uint32(0), d.LocalDepth(1))
}

func TestDirectorySplitImageIndex(t *testing.T) {
	d := newDirectory()
	d.IncrGlobalDepth()
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(1, 1)
	assert.Equal(t, uint32(1), d.GetSplitImageIndex(0))
	assert.Equal(t, uint32(0), d.GetSplitImageIndex(1))
}

func TestDirectoryCanShrink(t *testing.T) {
	d := newDirectory()
	d.IncrGlobalDepth()
	assert.True(t, d.CanShrink())
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(1, 1)
	assert.False(t, d.CanShrink())
}

func TestDirectoryMask(t *testing.T) {
	d := newDirectory()
	d.SetGlobalDepth(3)
	assert.Equal(t, uint32(0b111), d.GetGlobalDepthMask())
	assert.Equal(t, uint32(8), d.Size())
}
