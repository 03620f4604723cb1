package corealloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestBaseAllocIsDistinctAndAligned(t *testing.T) {
	core := NewCore()
	b := core.Base

	p1 := b.Alloc(100)
	p2 := b.Alloc(40)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.NotEqual(t, p1, p2)
	require.Zero(t, uintptr(p2)%cacheline)
}

func TestBaseAllocGrowsAcrossChunks(t *testing.T) {
	core := NewCore()
	b := core.Base

	// Force several chunk replenishments.
	for i := 0; i < 4; i++ {
		p := b.Alloc(ChunkSize - cacheline)
		require.NotNil(t, p)
	}
}

func TestBaseNodeAllocReusesFreed(t *testing.T) {
	core := NewCore()
	b := core.Base

	n := b.NodeAlloc()
	require.NotNil(t, n)
	n.Addr = 0xdead
	b.NodeDealloc(n)

	n2 := b.NodeAlloc()
	require.Same(t, n, n2)
	require.Zero(t, n2.Addr)
}

func TestBaseNodeSize(t *testing.T) {
	require.Positive(t, unsafe.Sizeof(ExtentNode{}))
}
