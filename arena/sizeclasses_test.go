package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinCountMatchesReferenceConfiguration(t *testing.T) {
	require.Equal(t, 35, NumBins)
}

func TestArenaMaxclass(t *testing.T) {
	require.Equal(t, 1044480, ArenaMaxclass)
}

func TestSizeToBinRoundsUp(t *testing.T) {
	idx, reg := SizeToBin(1)
	require.Equal(t, 8, reg)
	require.Equal(t, 0, idx)

	idx, reg = SizeToBin(17)
	require.Equal(t, 32, reg)
	require.Positive(t, idx)

	_, reg = SizeToBin(BinMaxclass)
	require.Equal(t, BinMaxclass, reg)
}

func TestClassifyLargeRoundsToPage(t *testing.T) {
	require.Equal(t, PageSize, ClassifyLarge(1))
	require.Equal(t, PageSize, ClassifyLarge(PageSize))
	require.Equal(t, 2*PageSize, ClassifyLarge(PageSize+1))
}

func TestIsSmallBoundary(t *testing.T) {
	require.True(t, IsSmall(BinMaxclass))
	require.False(t, IsSmall(BinMaxclass+1))
}
