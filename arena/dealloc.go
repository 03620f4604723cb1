package arena

import (
	"unsafe"

	"github.com/heapcore/heapcore/corealloc"
	"github.com/heapcore/heapcore/internal/vm"
)

// poisonRegion overwrites n bytes at ptr with the free-poison byte
// pattern (0xe5), unconditionally on every dealloc regardless of
// FillJunk: turning a use-after-free into a visibly wrong read is
// cheap enough that mozjemalloc never gates it behind opt_junk.
func poisonRegion(ptr unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(ptr), n)
	for i := range b {
		b[i] = 0xe5
	}
}

// Free dispatches a user pointer to the small or large dealloc path
// based on the owning chunk's page-map tag. It panics if ptr does not
// belong to any chunk this arena owns — a double-free or foreign
// pointer reaching this deep is a corruption, not a recoverable error.
func (a *Arena) Free(ptr unsafe.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chunk, pageIdx := a.lookup(ptr)
	e := &chunk.Pages[pageIdx]
	if !e.has(FlagAllocated) {
		panic(ErrCorrupt)
	}

	if e.has(FlagLarge) {
		a.dallocLarge(chunk, pageIdx)
		return
	}
	a.dallocSmall(chunk, pageIdx, ptr)
}

func (a *Arena) lookup(ptr unsafe.Pointer) (*Chunk, int) {
	addr := uintptr(ptr)
	base := addr &^ (ChunkSize - 1)
	chunk, ok := a.chunks[base]
	if !ok {
		panic(ErrCorrupt)
	}
	return chunk, chunk.pageIndex(addr)
}

// Owns reports whether ptr falls inside a chunk this arena has mapped,
// without panicking on a miss — package heap uses this to find the
// owning arena for a pointer whose radix membership is already known
// but whose specific arena is not.
func (a *Arena) Owns(ptr unsafe.Pointer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	base := uintptr(ptr) &^ (ChunkSize - 1)
	_, ok := a.chunks[base]
	return ok
}

func (a *Arena) dallocLarge(chunk *Chunk, pageIdx int) {
	size := chunk.Pages[pageIdx].RunOrSize
	poisonRegion(unsafe.Pointer(chunk.addr(pageIdx)), int(size))
	a.statAllocated -= uint64(size)
	a.dallocRun(chunk, pageIdx, int(size)/PageSize, true)
}

// dallocSmall implements DallocSmall: locate the run via the page-map
// run address stored at pageIdx, compute regind via plain division,
// flip the free bit, and either install/rotate runcur or hand the run
// to DallocRun once it is entirely free.
func (a *Arena) dallocSmall(chunk *Chunk, pageIdx int, ptr unsafe.Pointer) {
	runAddr := chunk.Pages[pageIdx].RunOrSize
	runPageIdx := chunk.pageIndex(runAddr)
	run := chunk.smallRuns[runPageIdx]
	if run == nil {
		panic(ErrCorrupt)
	}
	bin := run.bin

	regind := int((uintptr(ptr) - run.baseAddr()) / uintptr(bin.regSize))
	elm, bit := regIndexToElmBit(regind)
	if run.regsMask[elm]&(1<<bit) != 0 {
		panic(ErrCorrupt) // double free
	}
	poisonRegion(ptr, bin.regSize)
	setBit(run.regsMask, elm, bit)
	if elm < run.minElm {
		run.minElm = elm
	}
	run.nfree++
	a.statAllocated -= uint64(bin.regSize)

	switch {
	case run.nfree == bin.nregs:
		if bin.runcur == run {
			bin.runcur = nil
		} else {
			bin.nonFull.Delete(run)
		}
		delete(chunk.smallRuns, runPageIdx)
		a.dallocRun(chunk, runPageIdx, bin.runSize/PageSize, true)

	case run.nfree == 1 && bin.runcur != run:
		switch {
		case bin.runcur == nil:
			bin.runcur = run
		case run.chunk.addr(run.pageIdx) < bin.runcur.chunk.addr(bin.runcur.pageIdx):
			old := bin.runcur
			bin.runcur = run
			if old.nfree > 0 {
				bin.nonFull.Insert(old)
			}
		default:
			bin.nonFull.Insert(run)
		}
	}
}

// dallocRun implements DallocRun: mark the released pages (dirty or
// merely unallocated), coalesce with free neighbors, reinsert into
// runsAvail, collapse the whole chunk via DeallocChunk if it became
// entirely free, and trigger Purge if the dirty high-water mark was
// crossed. npages is supplied by the caller, which already knows it
// (from the large run's byte size or the small run's bin).
func (a *Arena) dallocRun(chunk *Chunk, pageIdx int, npages int, dirty bool) {
	wasDirty := chunk.NDirty > 0
	for i := pageIdx; i < pageIdx+npages; i++ {
		e := &chunk.Pages[i]
		e.clear(FlagLarge)
		e.clear(FlagAllocated)
		if dirty {
			if !e.has(FlagDirty) {
				e.set(FlagDirty)
				chunk.NDirty++
				a.numDirty++
			}
		}
	}
	if dirty && !wasDirty && chunk.NDirty > 0 {
		a.chunksDirty.Insert(chunk)
	}

	runSize := uintptr(npages) * PageSize
	chunk.Pages[pageIdx].RunOrSize = runSize
	chunk.Pages[pageIdx+npages-1].RunOrSize = runSize

	start, total := pageIdx, npages

	if start > HeaderPages && chunk.Pages[start-1].Free() {
		prevSize := chunk.Pages[start-1].RunOrSize
		prevIdx := start - int(prevSize/PageSize)
		a.runsAvail.Delete(&runNode{chunk: chunk, pageIdx: prevIdx})
		start = prevIdx
		total += int(prevSize / PageSize)
	}
	if start+total < PagesPerChunk && chunk.Pages[start+total].Free() {
		nextIdx := start + total
		nextSize := chunk.Pages[nextIdx].RunOrSize
		a.runsAvail.Delete(&runNode{chunk: chunk, pageIdx: nextIdx})
		total += int(nextSize / PageSize)
	}

	mergedSize := uintptr(total) * PageSize
	chunk.Pages[start].RunOrSize = mergedSize
	chunk.Pages[start+total-1].RunOrSize = mergedSize
	a.runsAvail.Insert(&runNode{chunk: chunk, pageIdx: start})

	if mergedSize == uintptr(ArenaMaxclass) {
		a.deallocChunk(chunk, start)
	}

	if a.numDirty > a.maxDirty {
		a.purge(false)
	}
}

// deallocChunk implements DeallocChunk: evict any existing spare back
// to the chunk pool, then install the newly-emptied chunk as the new
// spare.
func (a *Arena) deallocChunk(chunk *Chunk, runPageIdx int) {
	a.runsAvail.Delete(&runNode{chunk: chunk, pageIdx: runPageIdx})

	if a.spare != nil {
		old := a.spare
		if old.NDirty > 0 {
			a.chunksDirty.Delete(old)
			a.numDirty -= old.NDirty
		}
		delete(a.chunks, old.Base)
		a.statMapped -= ChunkSize
		a.core.Chunks.Dealloc(unsafe.Pointer(old.Base), ChunkSize, corealloc.Arena)
	}
	a.spare = chunk
}

// purge implements Purge(all): decommit/madvise dirty pages until
// numDirty falls to maxDirty/2 (or 0 if all), starting from the chunk
// with the highest address in chunksDirty as a stand-in for "most
// recently dirtied".
func (a *Arena) purge(all bool) {
	target := a.maxDirty / 2
	if all {
		target = 0
	}

	for a.numDirty > target {
		chunk, ok := a.chunksDirty.Max()
		if !ok {
			return
		}
		a.purgeChunk(chunk, target)
	}
}

func (a *Arena) purgeChunk(chunk *Chunk, target int) {
	for i := PagesPerChunk - 1; i >= HeaderPages && a.numDirty > target; i-- {
		e := &chunk.Pages[i]
		if !e.has(FlagDirty) {
			continue
		}
		end := i + 1
		for i >= HeaderPages && chunk.Pages[i].has(FlagDirty) && a.numDirty-(end-i) >= target {
			i--
		}
		start := i + 1

		zeroed := vm.Purge(unsafe.Pointer(chunk.addr(start)), uintptr(end-start)*PageSize, false)
		for p := start; p < end; p++ {
			pe := &chunk.Pages[p]
			pe.clear(FlagDirty)
			if vm.PurgeStyle == vm.DecommitStyle {
				pe.set(FlagDecommitted)
			} else {
				pe.set(FlagMadvised)
			}
			if zeroed {
				pe.set(FlagZeroed)
			}
			chunk.NDirty--
			a.numDirty--
		}
	}
	if chunk.NDirty == 0 {
		a.chunksDirty.Delete(chunk)
	}
}

// Purge forces a full or partial dirty-page purge; FreeDirtyPages in
// package heap calls this with all=true on every arena.
func (a *Arena) Purge(all bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purge(all)
}

// NumDirty reports the arena's current dirty-page count, for stats and
// for the Σ chunk.ndirty == arena.num_dirty testable property.
func (a *Arena) NumDirty() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.numDirty
}

// Prefork acquires this arena's lock ahead of a fork, so the forking
// thread cannot be suspended mid-allocation and leave the child with
// an arena permanently locked.
func (a *Arena) Prefork() { a.mu.Lock() }

// PostforkParent releases the lock Prefork took, in the parent.
func (a *Arena) PostforkParent() { a.mu.Unlock() }

// PostforkChild releases the lock Prefork took, in the child.
func (a *Arena) PostforkChild() { a.mu.Unlock() }

// Allocated reports bytes currently live in this arena's bins and
// large runs.
func (a *Arena) Allocated() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statAllocated
}

// Mapped reports bytes currently reserved by this arena's chunks,
// whether or not every byte within them is allocated.
func (a *Arena) Mapped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statMapped
}

// BinUnused reports bytes committed to small-allocation runs (the
// runcur plus every non-full run in every bin) that are not currently
// live, i.e. regSize times the free-region count, summed across bins.
func (a *Arena) BinUnused() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var unused uint64
	for _, bin := range a.bins {
		if bin.runcur != nil {
			unused += uint64(bin.runcur.nfree) * uint64(bin.regSize)
		}
		bin.nonFull.Ascend(func(r *smallRun) bool {
			unused += uint64(r.nfree) * uint64(bin.regSize)
			return true
		})
	}
	return unused
}
