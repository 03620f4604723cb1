package corealloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRadixSetGetUnset(t *testing.T) {
	core := NewCore()
	r := core.Radix

	const chunkA = uintptr(7) << radixChunkShift
	const chunkB = uintptr(1<<30) << radixChunkShift

	require.False(t, r.Get(chunkA))

	r.Set(chunkA, true)
	require.True(t, r.Get(chunkA))
	require.False(t, r.Get(chunkB))

	r.Set(chunkB, true)
	require.True(t, r.Get(chunkA))
	require.True(t, r.Get(chunkB))

	r.Unset(chunkA)
	require.False(t, r.Get(chunkA))
	require.True(t, r.Get(chunkB))
}

func TestRadixWithinChunkSharesFlag(t *testing.T) {
	core := NewCore()
	r := core.Radix

	chunkBase := uintptr(42) << radixChunkShift
	r.Set(chunkBase, true)

	require.True(t, r.Get(chunkBase+123))
	require.True(t, r.Get(chunkBase+ChunkSize-1))
}
