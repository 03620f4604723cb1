package arena

import (
	"math/bits"
	"unsafe"
)

// MallocAligned serves a memalign-family request whose alignment
// exceeds a plain Malloc's guarantee, for alignment <= PageSize. Small
// requests whose bin already has at least that much natural alignment
// (the largest power of two dividing the bin's region size) go through
// the ordinary small path unchanged; everything else is forced through
// the large-run path, since every run this arena hands out starts at a
// page-aligned address (chunk.Base is ChunkSize-aligned and runs are
// offset by a whole number of pages). Returns nil if alignment exceeds
// PageSize (a page-aligned run offset is not, in general, aligned to
// anything finer-grained than the page) or if the size bumped up to
// satisfy alignment would exceed ArenaMaxclass; either way the caller
// should fall back to the huge allocator's aligned path.
func (a *Arena) MallocAligned(n, alignment int, zero bool) unsafe.Pointer {
	if alignment > PageSize {
		return nil
	}

	if IsSmall(n) {
		_, regSize := SizeToBin(n)
		natural := 1 << bits.TrailingZeros(uint(regSize))
		if alignment <= natural {
			return a.Malloc(n, zero)
		}
	}

	size := ClassifyLarge(n)
	if need := ClassifyLarge(alignment); need > size {
		size = need
	}
	if size > ArenaMaxclass {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mallocLarge(size, zero)
}
