package heap

import (
	"github.com/heapcore/heapcore/arena"
	"github.com/heapcore/heapcore/corealloc"
)

// ArenaStats reports one arena's bookkeeping counters, the per-arena
// granularity mozjemalloc's real jemalloc_stats_t carries beyond a
// trimmed process-wide total.
type ArenaStats struct {
	ID        int
	Allocated uint64
	Mapped    uint64
	Dirty     int
}

// Stats mirrors jemalloc_stats's fixed field set, plus, additively,
// the PerArena breakdown and a page-denominated Dirty count alongside
// PageCache's byte-denominated equivalent.
type Stats struct {
	Mapped      uint64
	Allocated   uint64
	Waste       uint64
	PageCache   uint64 // dirty, unpurged bytes: Dirty pages * PageSize
	Bookkeeping uint64 // bytes consumed by internal allocator metadata
	BinUnused   uint64 // bytes committed to small-allocation runs but not live

	OptJunk   bool
	OptZero   bool
	NArenas   int
	Quantum   int
	SmallMax  int
	LargeMax  int
	ChunkSize int
	PageSize  int
	DirtyMax  int

	Dirty    int   // dirty page count (PageCache's page-denominated twin)
	Retained int64 // bytes sitting in the chunk recycle cache

	PerArena []ArenaStats
}

// Stats implements jemalloc_stats(): a point-in-time snapshot across
// every arena plus the huge allocator and the shared chunk cache.
func (h *Heap) Stats() Stats {
	arenas := h.arenasSnapshot()
	var s Stats
	s.PerArena = make([]ArenaStats, len(arenas))

	var binUnused uint64
	for i, a := range arenas {
		as := ArenaStats{
			ID:        i,
			Allocated: a.Allocated(),
			Mapped:    a.Mapped(),
			Dirty:     a.NumDirty(),
		}
		s.PerArena[i] = as
		s.Allocated += as.Allocated
		s.Mapped += as.Mapped
		s.Dirty += as.Dirty
		binUnused += a.BinUnused()
	}
	s.Allocated += h.huge.Allocated()
	s.Retained = h.core.Chunks.CachedBytes()

	s.PageCache = uint64(s.Dirty) * uint64(arena.PageSize)
	s.Bookkeeping = h.core.Base.Allocated()
	s.BinUnused = binUnused

	if waste := int64(s.Mapped) - int64(s.Allocated) - int64(s.PageCache) - int64(s.BinUnused) - int64(s.Bookkeeping); waste > 0 {
		s.Waste = uint64(waste)
	}

	s.OptJunk = h.opts.FillJunk
	s.OptZero = h.opts.ZeroFill
	s.NArenas = len(arenas)
	s.Quantum = arena.Quantum
	s.SmallMax = arena.SmallMax
	s.LargeMax = arena.ArenaMaxclass
	s.ChunkSize = corealloc.ChunkSize
	s.PageSize = arena.PageSize
	s.DirtyMax = h.opts.MaxDirtyPages

	return s
}
