package huge

import (
	"testing"

	"github.com/heapcore/heapcore/corealloc"
	"github.com/heapcore/heapcore/internal/vm"
	"github.com/stretchr/testify/require"
)

func newTestAllocator() *Allocator {
	return New(corealloc.NewCore())
}

func TestHugeAllocFreeRoundTrip(t *testing.T) {
	h := newTestAllocator()

	size := uintptr(4 * ChunkSize)
	p := h.Alloc(size, false)
	require.NotNil(t, p)
	require.EqualValues(t, size, h.UsableSize(p))

	base, sz, ok := h.Lookup(uintptr(p) + ChunkSize)
	require.True(t, ok)
	require.Equal(t, uintptr(p), base)
	require.EqualValues(t, size, sz)

	h.Free(p)
	require.Zero(t, h.UsableSize(p))

	_, _, ok = h.Lookup(uintptr(p))
	require.False(t, ok)
}

func TestHugeReallocInPlaceWithinSameChunkCeiling(t *testing.T) {
	h := newTestAllocator()

	p := h.Alloc(ChunkSize+1, false)
	require.NotNil(t, p)
	require.EqualValues(t, vm.PageCeiling(ChunkSize+1), h.UsableSize(p))

	grown := uintptr(ChunkSize + 3*vm.PageSize + 1)
	ok := h.Realloc(p, grown)
	require.True(t, ok)
	require.EqualValues(t, vm.PageCeiling(grown), h.UsableSize(p))
}

func TestHugeReallocAcrossChunkCeilingFails(t *testing.T) {
	h := newTestAllocator()

	p := h.Alloc(ChunkSize+1, false)
	require.NotNil(t, p)

	ok := h.Realloc(p, 3*ChunkSize)
	require.False(t, ok)
}
