package heap

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/heapcore/heapcore/arena"
	"github.com/heapcore/heapcore/corealloc"
	"github.com/heapcore/heapcore/huge"
)

// Heap is the top-level allocator: a shared Core plus a fixed pool of
// arenas and a huge allocator, dispatching each request by size the
// way mozjemalloc's malloc() does (tiny/small/large to an arena, huge
// to the dedicated chunk-multiple path). Every field past
// construction is either immutable or independently synchronized, so
// a *Heap is safe for concurrent use without an outer lock.
type Heap struct {
	opts Options
	core *corealloc.Core
	huge *huge.Allocator

	arenas   []*arena.Arena
	roundRob atomic.Uint64

	tlaMu sync.RWMutex
	tla   map[int64]int // goroutine-ish caller key -> arena index, see ThreadLocalArena
}

// New constructs a Heap from opts. A zero Options{} is valid and is
// filled out the way DefaultOptions() would, except fields the caller
// explicitly set are preserved.
func New(opts Options) *Heap {
	if opts.NumArenas <= 0 {
		opts.NumArenas = autoNumArenas()
	}
	if opts.MaxDirtyPages <= 0 {
		opts.MaxDirtyPages = DefaultOptions().MaxDirtyPages
	}

	core := corealloc.NewCore()
	h := &Heap{
		opts: opts,
		core: core,
		huge: huge.New(core),
		tla:  make(map[int64]int),
	}
	h.arenas = make([]*arena.Arena, opts.NumArenas)
	for i := range h.arenas {
		h.arenas[i] = arena.New(i, core, opts.MaxDirtyPages, opts.FillJunk)
	}
	return h
}

// pickArena implements the round-robin arena choice Malloc and Calloc
// use, over the opts.NumArenas arenas New built. Arenas added later by
// CreateArena and thread-local assignments are not consulted.
func (h *Heap) pickArena() *arena.Arena {
	h.tlaMu.RLock()
	defer h.tlaMu.RUnlock()
	i := h.roundRob.Add(1) % uint64(h.opts.NumArenas)
	return h.arenas[i]
}

// arenasSnapshot returns the current arena slice under the lock that
// also guards CreateArena's append, for callers (ownerArena, Stats)
// that need to range over every arena without racing a concurrent
// CreateArena.
func (h *Heap) arenasSnapshot() []*arena.Arena {
	h.tlaMu.RLock()
	defer h.tlaMu.RUnlock()
	return h.arenas
}

// Malloc implements malloc(size): nil on size <= 0 or on allocation
// failure, never a panic for ordinary out-of-memory.
func (h *Heap) Malloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	if !arena.IsArenaManaged(size) {
		return h.huge.Alloc(uintptr(size), h.opts.ZeroFill)
	}
	return h.pickArena().Malloc(size, h.opts.ZeroFill)
}

// Calloc implements calloc(nmemb, size): always zero-filled, with the
// nmemb*size overflow check POSIX requires.
func (h *Heap) Calloc(nmemb, size int) unsafe.Pointer {
	if nmemb <= 0 || size <= 0 {
		return nil
	}
	total := nmemb * size
	if total/nmemb != size {
		return nil // overflow
	}
	if !arena.IsArenaManaged(total) {
		return h.huge.Alloc(uintptr(total), true)
	}
	return h.pickArena().Malloc(total, true)
}

// Free implements free(ptr): a no-op on a nil pointer, dispatched to
// the huge allocator or the owning arena by consulting the shared
// radix tree — mirroring idalloc's ownership check ahead of the
// size-class dispatch.
func (h *Heap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if h.lookupHuge(ptr) {
		h.huge.Free(ptr)
		return
	}
	h.ownerArena(ptr).Free(ptr)
}

// Realloc implements realloc(ptr, newSize). ptr == nil degenerates to
// Malloc; newSize == 0 degenerates to Free returning nil, matching
// mozjemalloc's realloc semantics exactly.
func (h *Heap) Realloc(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	if ptr == nil {
		return h.Malloc(newSize)
	}
	if newSize <= 0 {
		h.Free(ptr)
		return nil
	}

	if h.lookupHuge(ptr) {
		return h.reallocHuge(ptr, newSize)
	}
	return h.reallocArena(ptr, newSize)
}

func (h *Heap) reallocHuge(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	if arena.IsArenaManaged(newSize) {
		return h.reallocByCopy(ptr, newSize)
	}
	if h.huge.Realloc(ptr, uintptr(newSize)) {
		return ptr
	}
	return h.reallocByCopy(ptr, newSize)
}

func (h *Heap) reallocArena(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	a := h.ownerArena(ptr)
	info := a.Info(ptr)

	if info.Tag == arena.TagLiveLarge && !arena.IsSmall(newSize) && arena.IsArenaManaged(newSize) {
		newSizeRounded := arena.ClassifyLarge(newSize)
		oldSizeRounded := int(info.Size)
		switch {
		case newSizeRounded == oldSizeRounded:
			return ptr
		case newSizeRounded < oldSizeRounded:
			a.ShrinkLarge(ptr, newSize)
			return ptr
		default:
			if a.GrowLarge(ptr, newSize) {
				return ptr
			}
		}
	}

	return h.reallocByCopy(ptr, newSize)
}

// reallocByCopy is the fallback path realloc always bottoms out on when
// the in-place paths decline: allocate fresh, copy min(old, new) bytes,
// free the original.
func (h *Heap) reallocByCopy(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	oldSize := int(h.MallocUsableSize(ptr))
	newPtr := h.Malloc(newSize)
	if newPtr == nil {
		return nil
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	if n > 0 {
		copyRegion(newPtr, ptr, n)
	}
	h.Free(ptr)
	return newPtr
}

// MallocUsableSize implements malloc_usable_size: the allocator's
// actual reserved size for ptr, which may exceed the originally
// requested size, or 0 for a pointer no live chunk of this Heap holds.
func (h *Heap) MallocUsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}
	if h.lookupHuge(ptr) {
		return h.huge.UsableSize(ptr)
	}
	if !h.core.Owns(uintptr(ptr)) {
		return 0
	}
	return h.ownerArena(ptr).UsableSize(ptr)
}

// MallocGoodSize implements malloc_good_size: the usable size a
// request for size bytes would actually be rounded up to, without
// performing the allocation.
func MallocGoodSize(size int) int {
	switch {
	case size <= 0:
		return 0
	case arena.IsSmall(size):
		_, regSize := arena.SizeToBin(size)
		return regSize
	case arena.IsArenaManaged(size):
		return arena.ClassifyLarge(size)
	default:
		return int(chunkCeilingInt(size))
	}
}

func chunkCeilingInt(size int) int {
	const cs = corealloc.ChunkSize
	return (size + cs - 1) &^ (cs - 1)
}

func (h *Heap) lookupHuge(ptr unsafe.Pointer) bool {
	_, _, ok := h.huge.Lookup(uintptr(ptr))
	return ok
}

// ownerArena finds the arena that mapped ptr's chunk. It panics if no
// arena owns it — by the time this is called, Free/Realloc/
// MallocUsableSize have already ruled out the huge allocator, so an
// unowned pointer here is a foreign or corrupted one. The radix tree
// is probed first: it answers in O(1), without a lock, whether this
// Core has handed ptr's chunk to anyone at all, which rejects a
// foreign pointer without walking every arena's chunk map to find
// that out the hard way.
func (h *Heap) ownerArena(ptr unsafe.Pointer) *arena.Arena {
	if !h.core.Owns(uintptr(ptr)) {
		panic("heap: free/realloc of pointer owned by no arena")
	}
	for _, a := range h.arenasSnapshot() {
		if a.Owns(ptr) {
			return a
		}
	}
	panic("heap: free/realloc of pointer owned by no arena")
}

func copyRegion(dst, src unsafe.Pointer, n int) {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}
