package heap

import (
	"testing"

	"github.com/heapcore/heapcore/arena"
	"github.com/stretchr/testify/require"
)

func TestMemalignRejectsNonPowerOfTwo(t *testing.T) {
	h := newTestHeap()
	require.Nil(t, h.Memalign(100, 64))
}

func TestMemalignPageAligned(t *testing.T) {
	h := newTestHeap()
	p := h.Memalign(4096, 100)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%4096)
	h.Free(p)
}

func TestPosixMemalignValidatesWordAlignment(t *testing.T) {
	h := newTestHeap()
	_, err := h.PosixMemalign(3, 64)
	require.ErrorIs(t, err, ErrBadAlignment)

	p, err := h.PosixMemalign(8192, 100)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%8192)
	require.GreaterOrEqual(t, h.MallocUsableSize(p), uintptr(100))
	h.Free(p)
}

func TestAlignedAllocRequiresSizeMultipleOfAlignment(t *testing.T) {
	h := newTestHeap()
	require.Nil(t, h.AlignedAlloc(64, 100))

	p := h.AlignedAlloc(64, 128)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%64)
	h.Free(p)
}

func TestVallocIsPageAligned(t *testing.T) {
	h := newTestHeap()
	p := h.Valloc(10)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%uintptr(arena.PageSize))
	h.Free(p)
}

func TestMemalignBeyondChunkSizeUsesHugeAligned(t *testing.T) {
	h := newTestHeap()
	alignment := 4 * 1024 * 1024 // larger than ChunkSize
	p := h.Memalign(alignment, arena.ArenaMaxclass+100)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%uintptr(alignment))
	require.Equal(t, TagLiveHuge, h.PtrInfo(p).Tag)
	h.Free(p)
}
