package arena

import (
	"testing"
	"unsafe"

	"github.com/heapcore/heapcore/corealloc"
	"github.com/stretchr/testify/require"
)

func newTestArena() *Arena {
	core := corealloc.NewCore()
	return New(0, core, 64, false)
}

func newTestArenaJunk() *Arena {
	core := corealloc.NewCore()
	return New(0, core, 64, true)
}

func TestSmallAllocFreeReusesAddress(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(32, false)
	require.NotNil(t, p)
	a.Free(p)

	p2 := a.Malloc(32, false)
	require.Equal(t, p, p2)
}

func TestSmallAllocWritable(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(100, false)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 100)
	for i := range b {
		b[i] = 0xAB
	}
	for i := range b {
		require.Equal(t, byte(0xAB), b[i])
	}
}

func TestLargeAllocFreeReusesAddress(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(4096, false)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%PageSize)
	a.Free(p)

	p2 := a.Malloc(4096, false)
	require.Equal(t, p, p2)
}

func TestManySmallAllocationsAreDistinct(t *testing.T) {
	a := newTestArena()

	seen := make(map[uintptr]bool)
	for i := 0; i < 500; i++ {
		p := a.Malloc(48, false)
		require.NotNil(t, p)
		addr := uintptr(p)
		require.False(t, seen[addr], "address %x reused while still live", addr)
		seen[addr] = true
	}
}

func TestPtrInfoRoundTrip(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(4096, false)
	info := a.Info(p)
	require.Equal(t, TagLiveLarge, info.Tag)
	require.Equal(t, uintptr(p), info.Base)
	require.EqualValues(t, 4096, info.Size)

	a.Free(p)
	info = a.Info(p)
	require.NotEqual(t, TagLiveLarge, info.Tag)
}

func TestPurgeDrainsDirtyPages(t *testing.T) {
	a := newTestArena()

	var ptrs []unsafe.Pointer
	for i := 0; i < 300; i++ {
		ptrs = append(ptrs, a.Malloc(PageSize, false))
	}
	for i, p := range ptrs {
		if i%2 == 0 {
			a.Free(p)
		}
	}
	require.Positive(t, a.NumDirty())

	a.Purge(true)
	require.Zero(t, a.NumDirty())
}

func TestFreePoisonsSmallRegion(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(32, false)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 32)
	for i := range b {
		b[i] = 0x11
	}

	a.Free(p)
	for i := range b {
		require.Equal(t, byte(0xe5), b[i], "byte %d not poisoned", i)
	}
}

func TestFreePoisonsLargeRegion(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(PageSize, false)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), PageSize)
	for i := range b {
		b[i] = 0x11
	}

	a.Free(p)
	for i := range b {
		require.Equal(t, byte(0xe5), b[i], "byte %d not poisoned", i)
	}
}

func TestJunkFillOnSmallAllocWhenEnabled(t *testing.T) {
	a := newTestArenaJunk()

	p := a.Malloc(32, false)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 32)
	for i := range b {
		require.Equal(t, byte(0xe4), b[i], "byte %d not junk-filled", i)
	}
}

func TestJunkFillOnLargeAllocWhenEnabled(t *testing.T) {
	a := newTestArenaJunk()

	p := a.Malloc(PageSize, false)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), PageSize)
	for i := range b {
		require.Equal(t, byte(0xe4), b[i], "byte %d not junk-filled", i)
	}
}

func TestZeroRequestOverridesJunkFill(t *testing.T) {
	a := newTestArenaJunk()

	p := a.Malloc(32, true)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 32)
	for i := range b {
		require.Zero(t, b[i])
	}
}

func TestJunkFillDisabledByDefault(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(32, false)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 32)
	for i := range b {
		require.Zero(t, b[i], "fresh memory should read zero without junk-fill enabled")
	}
}

func TestGrowAndShrinkLarge(t *testing.T) {
	a := newTestArena()

	p := a.Malloc(4096, false)
	b := unsafe.Slice((*byte)(p), 4096)
	for i := range b {
		b[i] = 0x42
	}

	ok := a.GrowLarge(p, 8192)
	require.True(t, ok)
	info := a.Info(p)
	require.EqualValues(t, 8192, info.Size)
	for i := 0; i < 4096; i++ {
		require.Equal(t, byte(0x42), b[i])
	}

	a.ShrinkLarge(p, 4096)
	info = a.Info(p)
	require.EqualValues(t, 4096, info.Size)
}
