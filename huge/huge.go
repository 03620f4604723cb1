package huge

import (
	"sync"
	"unsafe"

	"github.com/heapcore/heapcore/corealloc"
	"github.com/heapcore/heapcore/internal/rbtree"
	"github.com/heapcore/heapcore/internal/vm"
)

// ChunkSize mirrors corealloc.ChunkSize under a package-local name.
const ChunkSize = corealloc.ChunkSize

func cmpExtentAddr(a, b *corealloc.ExtentNode) int {
	switch {
	case a.Addr < b.Addr:
		return -1
	case a.Addr > b.Addr:
		return 1
	default:
		return 0
	}
}

// Allocator tracks every live huge allocation this process holds, in
// an address-ordered tree, guarded by its own lock (huge_mtx).
type Allocator struct {
	mu   sync.Mutex
	core *corealloc.Core
	tree *rbtree.Tree[*corealloc.ExtentNode]

	// csizeOverride records the true backing-extent size for an
	// over-alignment request, when it exceeds chunkCeiling(psize) — the
	// value Free/Realloc would otherwise (correctly, for every ordinary
	// allocation) recompute from the tracked user-visible size.
	csizeOverride map[uintptr]uintptr

	statAllocated uint64
}

// New constructs a huge allocator backed by core.
func New(core *corealloc.Core) *Allocator {
	return &Allocator{
		core:          core,
		tree:          rbtree.New[*corealloc.ExtentNode](cmpExtentAddr),
		csizeOverride: make(map[uintptr]uintptr),
	}
}

// Alloc reserves size bytes (already confirmed > arena.ArenaMaxclass)
// from the chunk pool, rounding csize up to a chunk multiple and
// recording psize — the page-rounded user-visible size — as the size
// the tree and MallocUsableSize report.
func (h *Allocator) Alloc(size uintptr, zero bool) unsafe.Pointer {
	csize := chunkCeiling(size)
	psize := vm.PageCeiling(size)

	h.mu.Lock()
	defer h.mu.Unlock()

	addr, zeroed, ok := h.core.Chunks.Alloc(csize, ChunkSize, false)
	if !ok {
		return nil
	}

	if csize > psize {
		vm.Decommit(unsafe.Pointer(uintptr(addr)+psize), csize-psize)
	}
	if zero && !zeroed {
		zeroRegion(addr, int(psize))
	}

	node := h.core.Base.NodeAlloc()
	node.Addr, node.Size = uintptr(addr), psize
	h.tree.Insert(node)
	h.statAllocated += uint64(psize)

	return addr
}

// AllocAligned reserves size bytes aligned to alignment (which may
// exceed ChunkSize, e.g. for posix_memalign requests larger than
// arena.ArenaMaxclass), bypassing the fixed ChunkSize alignment Alloc
// always requests.
func (h *Allocator) AllocAligned(size, alignment uintptr, zero bool) unsafe.Pointer {
	csize := chunkCeiling(size)
	if alignment > ChunkSize {
		csize = chunkCeiling(size + alignment - ChunkSize)
	}
	psize := vm.PageCeiling(size)

	h.mu.Lock()
	defer h.mu.Unlock()

	addr, zeroed, ok := h.core.Chunks.Alloc(csize, alignment, false)
	if !ok {
		return nil
	}
	if csize > psize {
		vm.Decommit(unsafe.Pointer(uintptr(addr)+psize), csize-psize)
	}
	if zero && !zeroed {
		zeroRegion(addr, int(psize))
	}

	node := h.core.Base.NodeAlloc()
	node.Addr, node.Size = uintptr(addr), psize
	h.tree.Insert(node)
	h.statAllocated += uint64(psize)

	if csize != chunkCeiling(psize) {
		h.csizeOverride[uintptr(addr)] = csize
	}

	return addr
}

// backingSize returns the actual extent size reserved for n, honoring
// csizeOverride when the allocation was made with an alignment wide
// enough to require extra chunk padding.
func (h *Allocator) backingSize(n *corealloc.ExtentNode) uintptr {
	if csize, ok := h.csizeOverride[n.Addr]; ok {
		return csize
	}
	return chunkCeiling(n.Size)
}

// Lookup reports the extent node covering addr, if addr falls inside a
// live huge allocation (used by ptr_info to classify foreign pointers
// before consulting any arena).
func (h *Allocator) Lookup(addr uintptr) (base uintptr, size uintptr, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.tree.Floor(&corealloc.ExtentNode{Addr: addr})
	if !ok || addr >= n.Addr+h.backingSize(n) {
		return 0, 0, false
	}
	return n.Addr, n.Size, true
}

// Free releases a huge allocation previously returned by Alloc.
func (h *Allocator) Free(addr unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.tree.Get(&corealloc.ExtentNode{Addr: uintptr(addr)})
	if !ok {
		panic("huge: free of unknown pointer")
	}
	h.tree.Delete(n)
	h.statAllocated -= uint64(n.Size)

	csize := h.backingSize(n)
	delete(h.csizeOverride, n.Addr)
	h.core.Base.NodeDealloc(n)
	h.core.Chunks.Dealloc(addr, csize, corealloc.Huge)
}

// Realloc implements the huge reallocation fast path: if the new and
// old chunk-ceilings are equal, the allocation is adjusted in place
// (committing or decommitting the tail); otherwise the caller must
// allocate new, copy, and free old (signalled by ok=false). An
// allocation made with extra alignment padding (csizeOverride) never
// takes the in-place path — its backing extent size doesn't follow the
// plain chunkCeiling rule newCsize is computed with, so any in-place
// adjustment risks either overrunning the real extent or leaving
// alignment padding miscounted.
func (h *Allocator) Realloc(addr unsafe.Pointer, newSize uintptr) (ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, found := h.tree.Get(&corealloc.ExtentNode{Addr: uintptr(addr)})
	if !found {
		panic("huge: realloc of unknown pointer")
	}
	if _, overridden := h.csizeOverride[n.Addr]; overridden {
		return false
	}

	oldCsize := chunkCeiling(n.Size)
	newCsize := chunkCeiling(newSize)
	if oldCsize != newCsize {
		return false
	}

	newPsize := vm.PageCeiling(newSize)
	oldPsize := vm.PageCeiling(n.Size)
	switch {
	case newPsize > oldPsize:
		vm.Commit(unsafe.Pointer(uintptr(addr)+oldPsize), newPsize-oldPsize)
	case newPsize < oldPsize:
		vm.Decommit(unsafe.Pointer(uintptr(addr)+newPsize), oldPsize-newPsize)
	}
	h.statAllocated += uint64(newPsize) - uint64(n.Size)
	n.Size = newPsize
	return true
}

// UsableSize returns the recorded psize for a live huge allocation, or
// 0 if addr is not one.
func (h *Allocator) UsableSize(addr unsafe.Pointer) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.tree.Get(&corealloc.ExtentNode{Addr: uintptr(addr)})
	if !ok {
		return 0
	}
	return n.Size
}

// Allocated reports the total bytes tracked across all live huge
// allocations, for jemalloc_stats-style reporting.
func (h *Allocator) Allocated() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statAllocated
}

func chunkCeiling(size uintptr) uintptr {
	return (size + ChunkSize - 1) &^ (ChunkSize - 1)
}

func zeroRegion(ptr unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(ptr), n)
	for i := range b {
		b[i] = 0
	}
}
