package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOptionsSingleLetterTokens(t *testing.T) {
	base := DefaultOptions()
	base.FillJunk = false
	base.ZeroFill = false

	o := ParseOptions(base, "J,Z")
	require.True(t, o.FillJunk)
	require.True(t, o.ZeroFill)

	o = ParseOptions(o, "j z")
	require.False(t, o.FillJunk)
	require.False(t, o.ZeroFill)
}

func TestParseOptionsDirtyMaxHalveAndDouble(t *testing.T) {
	base := DefaultOptions()
	base.MaxDirtyPages = 512

	o := ParseOptions(base, "f")
	require.Equal(t, 256, o.MaxDirtyPages)

	o = ParseOptions(o, "F2")
	require.Equal(t, 1024, o.MaxDirtyPages)
}

func TestParseOptionsWordAliasesAreCaseFolded(t *testing.T) {
	base := DefaultOptions()
	base.FillJunk = false

	o := ParseOptions(base, "JUNK")
	require.True(t, o.FillJunk)

	o = ParseOptions(o, "NoJunk")
	require.False(t, o.FillJunk)

	o = ParseOptions(o, "arenas:3")
	require.Equal(t, 3, o.NumArenas)
}

func TestParseOptionsUnknownTokenIsIgnored(t *testing.T) {
	base := DefaultOptions()
	o := ParseOptions(base, "q")
	require.Equal(t, base.FillJunk, o.FillJunk)
	require.Equal(t, base.ZeroFill, o.ZeroFill)
}

func TestDefaultOptionsArenaCountIsBounded(t *testing.T) {
	o := DefaultOptions()
	require.GreaterOrEqual(t, o.NumArenas, 1)
	require.LessOrEqual(t, o.NumArenas, narenasAutoMax)
}

func TestDebugOptionsEnablesJunkAndZero(t *testing.T) {
	o := DebugOptions()
	require.True(t, o.FillJunk)
	require.True(t, o.ZeroFill)
	require.Equal(t, 1, o.NumArenas)
}
