package arena

import (
	"sync"
	"unsafe"

	"github.com/heapcore/heapcore/corealloc"
	"github.com/heapcore/heapcore/internal/vm"
)

// Arena is one independent allocator instance: the unit of lock
// contention. It owns a set of chunks obtained from a shared Core,
// partitions them into runs, and serves small allocations through its
// bins and large allocations through dedicated runs.
type Arena struct {
	mu sync.Mutex

	id   int
	core *corealloc.Core

	bins []*Bin

	runsAvail   *runAvailTree
	chunksDirty *chunkTree
	chunks      map[uintptr]*Chunk // chunk base -> chunk, for pointer lookup

	spare *Chunk

	numDirty int
	maxDirty int
	fillJunk bool

	// stats, read under mu.
	statAllocated uint64
	statMapped    uint64
}

// New constructs an arena backed by core, with maxDirty as the
// dirty-page high-water mark (opt_dirty_max's realization) and
// fillJunk enabling a 0xe4 fill on freshly returned, non-zeroed
// allocations (opt_junk's realization).
func New(id int, core *corealloc.Core, maxDirty int, fillJunk bool) *Arena {
	return &Arena{
		id:          id,
		core:        core,
		bins:        buildBins(),
		runsAvail:   newRunAvailTree(),
		chunksDirty: newChunkTree(),
		chunks:      make(map[uintptr]*Chunk),
		maxDirty:    maxDirty,
		fillJunk:    fillJunk,
	}
}

// Malloc serves a small or large request (n must be <= ArenaMaxclass;
// callers route huge requests to package huge instead).
func (a *Arena) Malloc(n int, zero bool) unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if IsSmall(n) {
		return a.mallocSmall(n, zero)
	}
	return a.mallocLarge(ClassifyLarge(n), zero)
}

func (a *Arena) mallocSmall(n int, zero bool) unsafe.Pointer {
	binIdx, regSize := SizeToBin(n)
	bin := a.bins[binIdx]

	var run *smallRun
	if bin.runcur != nil && bin.runcur.nfree > 0 {
		run = bin.runcur
	} else {
		run = a.mallocBinHard(bin)
		if run == nil {
			return nil
		}
	}

	elm, bit, ok := firstFreeBit(run.regsMask, run.minElm)
	if !ok {
		panic(ErrCorrupt)
	}
	clearBit(run.regsMask, elm, bit)
	if elm > run.minElm && run.regsMask[run.minElm] == 0 {
		run.minElm = elm
	}
	run.nfree--

	regind := elm*64 + bit
	addr := run.baseAddr() + uintptr(regind*regSize)

	a.statAllocated += uint64(regSize)

	ptr := unsafe.Pointer(addr)
	if zero {
		zeroRegion(ptr, regSize)
	} else if a.fillJunk {
		junkRegion(ptr, regSize)
	}
	return ptr
}

// mallocBinHard installs the lowest-address non-full run, or a fresh
// run, as runcur. It runs only when runcur is absent or has no free
// region, so the old runcur (if any) is full and is simply dropped: a
// full run sits neither in runcur nor in the non-full tree until
// DallocSmall frees one of its regions.
func (a *Arena) mallocBinHard(bin *Bin) *smallRun {
	if run, ok := bin.nonFull.DeleteMin(); ok {
		bin.runcur = run
		return run
	}

	chunk, pageIdx, ok := a.allocRun(bin.runSize, false, false)
	if !ok {
		return nil
	}
	run := &smallRun{
		bin:      bin,
		chunk:    chunk,
		pageIdx:  pageIdx,
		regsMask: newRegsMask(bin.nregs, bin.maskNelms),
		nfree:    bin.nregs,
	}
	chunk.smallRuns[pageIdx] = run
	bin.runcur = run
	return run
}

func (a *Arena) mallocLarge(size int, zero bool) unsafe.Pointer {
	chunk, pageIdx, ok := a.allocRun(size, true, zero)
	if !ok {
		return nil
	}
	a.statAllocated += uint64(size)
	ptr := unsafe.Pointer(chunk.addr(pageIdx))
	if !zero && a.fillJunk {
		junkRegion(ptr, size)
	}
	return ptr
}

// allocRun is AllocRun(size, large, zero): find the smallest run of at
// least size bytes (the lowest-address one among equal sizes) via the
// availability tree, or fall back to the
// spare, or map a fresh chunk; then SplitRun it down to exactly size.
func (a *Arena) allocRun(size int, large, zero bool) (*Chunk, int, bool) {
	key := searchKey(uintptr(size))
	n, ok := a.runsAvail.Ceiling(key)
	if !ok {
		if a.spare != nil {
			a.installSpareAsAvailable()
			n, ok = a.runsAvail.Ceiling(key)
		}
	}
	if !ok {
		chunk, success := a.mapFreshChunk()
		if !success {
			return nil, 0, false
		}
		n = &runNode{chunk: chunk, pageIdx: HeaderPages}
		ok = true
	}

	chunk, pageIdx := n.chunk, n.pageIdx
	a.splitRun(chunk, pageIdx, size, large, zero)
	return chunk, pageIdx, true
}

func (a *Arena) installSpareAsAvailable() {
	chunk := a.spare
	a.spare = nil
	a.runsAvail.Insert(&runNode{chunk: chunk, pageIdx: HeaderPages})
}

func (a *Arena) mapFreshChunk() (*Chunk, bool) {
	addr, zeroed, ok := a.core.Chunks.Alloc(ChunkSize, ChunkSize, false)
	if !ok {
		return nil, false
	}
	chunk := newChunk(uintptr(addr), a)
	if zeroed {
		for i := HeaderPages; i < PagesPerChunk; i++ {
			chunk.Pages[i].set(FlagZeroed)
		}
	}
	a.chunks[chunk.Base] = chunk
	a.statMapped += ChunkSize
	a.runsAvail.Insert(&runNode{chunk: chunk, pageIdx: HeaderPages})
	return chunk, true
}

// splitRun implements SplitRun: carve the `need` pages starting at
// pageIdx out of the free/large run found, reinserting any leftover
// tail, committing pages as needed, and writing final page-map tags.
func (a *Arena) splitRun(chunk *Chunk, pageIdx int, size int, large, zero bool) {
	totalPages := int(chunk.Pages[pageIdx].RunOrSize) / PageSize
	need := size / PageSize

	a.runsAvail.Delete(&runNode{chunk: chunk, pageIdx: pageIdx})

	rem := totalPages - need
	if rem > 0 {
		tailIdx := pageIdx + need
		tailSize := uintptr(rem) * PageSize
		chunk.Pages[tailIdx].RunOrSize = tailSize
		chunk.Pages[tailIdx+rem-1].RunOrSize = tailSize
		a.runsAvail.Insert(&runNode{chunk: chunk, pageIdx: tailIdx})
	}

	a.commitPages(chunk, pageIdx, need)

	runAddr := chunk.addr(pageIdx)
	for i := pageIdx; i < pageIdx+need; i++ {
		e := &chunk.Pages[i]
		wasDirty := e.has(FlagDirty)
		zeroed := e.has(FlagZeroed)
		e.Flags = 0
		e.set(FlagAllocated)
		if large {
			e.set(FlagLarge)
		} else {
			e.RunOrSize = runAddr
		}
		if wasDirty {
			chunk.NDirty--
			a.numDirty--
		}
		if zero && !zeroed {
			zeroRange(chunk.addr(i), PageSize)
		}
	}
	if large {
		chunk.Pages[pageIdx].RunOrSize = uintptr(size)
	}

	if chunk.NDirty == 0 {
		a.chunksDirty.Delete(chunk)
	}
}

func (a *Arena) commitPages(chunk *Chunk, pageIdx, need int) {
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		vm.Commit(unsafe.Pointer(chunk.addr(start)), uintptr(end-start)*PageSize)
		start = -1
	}
	for i := pageIdx; i < pageIdx+need; i++ {
		e := &chunk.Pages[i]
		if e.has(FlagDecommitted) || e.has(FlagMadvised) {
			e.clear(FlagDecommitted)
			e.clear(FlagMadvised)
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(pageIdx + need)
}

func zeroRegion(ptr unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(ptr), n)
	for i := range b {
		b[i] = 0
	}
}

// junkRegion fills n bytes at ptr with the junk byte pattern
// (0xe4), flagging uninitialized reads of freshly allocated memory.
func junkRegion(ptr unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(ptr), n)
	for i := range b {
		b[i] = 0xe4
	}
}

func zeroRange(addr uintptr, n uintptr) {
	zeroRegion(unsafe.Pointer(addr), int(n))
}
