package heap

import (
	"testing"
	"unsafe"

	"github.com/heapcore/heapcore/arena"
	"github.com/heapcore/heapcore/corealloc"
	"github.com/stretchr/testify/require"
)

func newTestHeap() *Heap {
	return New(Options{NumArenas: 2, MaxDirtyPages: 64})
}

func TestMallocFreeSmallAndLarge(t *testing.T) {
	h := newTestHeap()

	small := h.Malloc(64)
	require.NotNil(t, small)
	require.GreaterOrEqual(t, h.MallocUsableSize(small), uintptr(64))

	large := h.Malloc(10000)
	require.NotNil(t, large)
	require.GreaterOrEqual(t, h.MallocUsableSize(large), uintptr(10000))

	h.Free(small)
	h.Free(large)
}

func TestMallocHugeRoundTrip(t *testing.T) {
	h := newTestHeap()

	size := arena.ArenaMaxclass + 1
	p := h.Malloc(size)
	require.NotNil(t, p)
	require.GreaterOrEqual(t, h.MallocUsableSize(p), uintptr(size))

	h.Free(p)
	require.Zero(t, h.MallocUsableSize(p))
}

func TestCallocZeroesAndChecksOverflow(t *testing.T) {
	h := newTestHeap()

	p := h.Calloc(16, 32)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 16*32)
	for _, v := range b {
		require.Zero(t, v)
	}
	h.Free(p)

	require.Nil(t, h.Calloc(1<<40, 1<<40))
}

func TestReallocGrowAndShrinkSmall(t *testing.T) {
	h := newTestHeap()

	p := h.Malloc(16)
	b := unsafe.Slice((*byte)(p), 16)
	for i := range b {
		b[i] = byte(i)
	}

	grown := h.Realloc(p, 400)
	require.NotNil(t, grown)
	gb := unsafe.Slice((*byte)(grown), 16)
	for i := range gb {
		require.Equal(t, byte(i), gb[i])
	}

	shrunk := h.Realloc(grown, 8)
	require.NotNil(t, shrunk)
	h.Free(shrunk)
}

func TestReallocLargeGrowInPlace(t *testing.T) {
	h := newTestHeap()

	p := h.Malloc(5000)
	require.NotNil(t, p)
	oldUsable := h.MallocUsableSize(p)

	grown := h.Realloc(p, 6000)
	require.NotNil(t, grown)
	require.Equal(t, p, grown)
	require.GreaterOrEqual(t, h.MallocUsableSize(grown), uintptr(6000))
	require.NotEqual(t, oldUsable, 0)

	h.Free(grown)
}

func TestReallocNilAndZero(t *testing.T) {
	h := newTestHeap()

	p := h.Realloc(nil, 32)
	require.NotNil(t, p)

	p2 := h.Realloc(p, 0)
	require.Nil(t, p2)
}

func TestMallocGoodSize(t *testing.T) {
	require.Equal(t, 0, MallocGoodSize(0))
	require.GreaterOrEqual(t, MallocGoodSize(10), 10)
	require.GreaterOrEqual(t, MallocGoodSize(3000), 3000)
	require.GreaterOrEqual(t, MallocGoodSize(arena.ArenaMaxclass+1), arena.ArenaMaxclass+1)
}

func TestPtrInfoClassifiesEveryTag(t *testing.T) {
	h := newTestHeap()

	small := h.Malloc(32)
	require.Equal(t, TagLiveSmall, h.PtrInfo(small).Tag)

	large := h.Malloc(5000)
	require.Equal(t, TagLiveLarge, h.PtrInfo(large).Tag)

	hugePtr := h.Malloc(arena.ArenaMaxclass + 1)
	require.Equal(t, TagLiveHuge, h.PtrInfo(hugePtr).Tag)

	require.Equal(t, TagUnknown, h.PtrInfo(unsafe.Pointer(uintptr(0x1))).Tag)

	h.Free(small)
	h.Free(large)
	h.Free(hugePtr)
}

func TestPurgeFreedPagesDrainsDirtyPages(t *testing.T) {
	h := newTestHeap()

	ptrs := make([]unsafe.Pointer, 0, 64)
	for i := 0; i < 64; i++ {
		ptrs = append(ptrs, h.Malloc(128))
	}
	for _, p := range ptrs {
		h.Free(p)
	}

	stats := h.Stats()
	require.NotZero(t, stats.Dirty)

	h.PurgeFreedPages()
	stats = h.Stats()
	require.Zero(t, stats.Dirty)
}

func TestCreateArenaAndArenaMalloc(t *testing.T) {
	h := newTestHeap()

	handle := h.CreateArena()
	ptr, err := h.ArenaMalloc(handle, 64, false)
	require.NoError(t, err)
	require.NotNil(t, ptr)

	require.NoError(t, h.ArenaFree(handle, ptr))
	require.NoError(t, h.DisposeArena(handle))

	_, err = h.ArenaMalloc(handle, 64, false)
	require.NoError(t, err) // handle stays valid; disposal only drops TLA assignment
}

func TestThreadLocalArenaAssignment(t *testing.T) {
	h := newTestHeap()

	handle := h.CreateArena()
	require.NoError(t, h.ThreadLocalArena(42, handle))

	got, ok := h.ArenaForKey(42)
	require.True(t, ok)
	require.Equal(t, handle, got)

	_, ok = h.ArenaForKey(99)
	require.False(t, ok)
}

func TestThreadLocalArenaUnknownHandle(t *testing.T) {
	h := newTestHeap()
	require.ErrorIs(t, h.ThreadLocalArena(1, ArenaHandle(999)), ErrUnknownArena)
}

func TestFreeForeignPointerPanics(t *testing.T) {
	h := newTestHeap()
	require.Panics(t, func() {
		h.Free(unsafe.Pointer(uintptr(0x1)))
	})
}

func TestReallocForeignPointerPanics(t *testing.T) {
	h := newTestHeap()
	require.Panics(t, func() {
		h.Realloc(unsafe.Pointer(uintptr(0x1)), 64)
	})
}

func TestStatsFieldSet(t *testing.T) {
	h := newTestHeap()

	ptrs := make([]unsafe.Pointer, 0, 300)
	for i := 0; i < 300; i++ {
		ptrs = append(ptrs, h.Malloc(4096))
	}
	for i, p := range ptrs {
		if i%2 == 0 {
			h.Free(p)
		}
	}

	stats := h.Stats()
	require.Positive(t, stats.Mapped)
	require.Positive(t, stats.Allocated)
	require.Positive(t, stats.PageCache)
	require.EqualValues(t, stats.Dirty*arena.PageSize, stats.PageCache)
	require.Equal(t, 2, stats.NArenas)
	require.Equal(t, arena.Quantum, stats.Quantum)
	require.Equal(t, arena.SmallMax, stats.SmallMax)
	require.Equal(t, arena.ArenaMaxclass, stats.LargeMax)
	require.EqualValues(t, corealloc.ChunkSize, stats.ChunkSize)
	require.Equal(t, arena.PageSize, stats.PageSize)
	require.Equal(t, 64, stats.DirtyMax)
	require.False(t, stats.OptJunk)
	require.False(t, stats.OptZero)

	h.PurgeFreedPages()
	stats = h.Stats()
	require.Zero(t, stats.PageCache)
}

func TestStatsBinUnusedTracksFreedSmallRegions(t *testing.T) {
	h := newTestHeap()

	ptrs := make([]unsafe.Pointer, 0, 100)
	for i := 0; i < 100; i++ {
		ptrs = append(ptrs, h.Malloc(32))
	}
	for i, p := range ptrs {
		if i%2 == 0 {
			h.Free(p)
		}
	}

	require.Positive(t, h.Stats().BinUnused)
}

func TestStatsBookkeepingTracksBaseUsage(t *testing.T) {
	h := newTestHeap()
	h.Malloc(64)

	require.Positive(t, h.Stats().Bookkeeping)
}

func TestStatsOptJunkAndOptZeroReflectOptions(t *testing.T) {
	h := New(Options{NumArenas: 1, MaxDirtyPages: 64, FillJunk: true, ZeroFill: true})
	stats := h.Stats()
	require.True(t, stats.OptJunk)
	require.True(t, stats.OptZero)
}
