package arena

// Chunk is the Go-side metadata for one chunk-sized extent owned by an
// Arena: a back-pointer to the arena, the dirty-page counter, and the
// page map. The raw OS memory the chunk describes lives at Base and is
// never touched by this struct directly — Chunk only ever hands out
// offsets into it.
//
// Page index 0 stands in for the header page the original reserves
// inside the chunk's own mapped bytes for exactly this bookkeeping;
// here the bookkeeping is an ordinary Go struct instead, but index 0 is
// still carved out of the usable page range so that ArenaMaxclass stays
// chunksize-minus-one-page, matching the reference configuration.
type Chunk struct {
	Base  uintptr
	Arena *Arena

	NDirty int
	Pages  [PagesPerChunk]PageMapEntry

	// smallRuns maps the first page index of a small run to its run
	// metadata (free-region bitmask, owning bin, fill level). Absent
	// for pages belonging to a large allocation or a free run.
	smallRuns map[int]*smallRun

	isSpare bool
}

func newChunk(base uintptr, arenaOwner *Arena) *Chunk {
	c := &Chunk{Base: base, Arena: arenaOwner, smallRuns: make(map[int]*smallRun)}
	c.Pages[0].set(FlagAllocated) // header page, never handed out

	freePages := PagesPerChunk - HeaderPages
	c.Pages[HeaderPages].RunOrSize = uintptr(freePages) * PageSize
	c.Pages[PagesPerChunk-1].RunOrSize = uintptr(freePages) * PageSize
	return c
}

func (c *Chunk) addr(pageIdx int) uintptr { return c.Base + uintptr(pageIdx)*PageSize }

// pageIndex returns the page index of addr within this chunk.
func (c *Chunk) pageIndex(addr uintptr) int { return int((addr - c.Base) / PageSize) }

// smallRun is the Go-side equivalent of a small run's in-band header:
// which bin it serves, the free-region bitmask (1 = free), and the
// fill state used to decide runcur vs. the non-full tree.
type smallRun struct {
	bin      *Bin
	chunk    *Chunk
	pageIdx  int // first page index of the run within its chunk
	regsMask []uint64
	nfree    int
	minElm   int
}

func (r *smallRun) baseAddr() uintptr { return r.chunk.addr(r.pageIdx) + uintptr(r.bin.reg0Offset) }
