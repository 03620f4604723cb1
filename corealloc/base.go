package corealloc

import (
	"sync"
	"unsafe"

	"github.com/heapcore/heapcore/internal/vm"
)

// cacheline is the rounding granularity for base_alloc requests, the same
// constant freebits-style pool allocators round block sizes to for
// alignment-friendly access.
const cacheline = 64

// Base is a bump-pointer allocator backing internal allocator metadata
// (extent nodes, radix tree node arrays). It never releases
// memory and runs entirely under its own mutex so it never blocks on, or
// is blocked by, an arena lock.
type Base struct {
	mu sync.Mutex

	chunks *ChunkPool // set once by newCore; never reassigned after.

	base            uintptr // base of the current backing chunk
	next            uintptr // bump pointer
	past            uintptr // end of the current backing chunk
	nextDecommitted uintptr // watermark up to which pages are committed

	freelist *ExtentNode // freelist of reclaimed ExtentNode cells

	allocated uintptr // cumulative bytes handed out by Alloc, for stats
}

func newBase() *Base {
	return &Base{}
}

// Alloc returns size bytes of zeroed metadata memory, rounded up to a
// cacheline multiple. It commits pages incrementally as the bump pointer
// advances past the already-committed watermark.
func (b *Base) Alloc(size uintptr) unsafe.Pointer {
	size = (size + cacheline - 1) &^ (cacheline - 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next+size > b.past {
		b.grow(size)
	}

	addr := b.next
	b.next += size
	b.allocated += size
	b.ensureCommitted(addr + size)
	return unsafe.Pointer(addr)
}

// Allocated reports the cumulative bytes this Base has handed out,
// for jemalloc_stats's bookkeeping field. It never decreases: a freed
// ExtentNode cell is reused via the freelist rather than returned
// to the bump pointer, so it stays counted.
func (b *Base) Allocated() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(b.allocated)
}

// grow obtains a fresh backing chunk large enough for at least size bytes,
// via the chunk allocator's non-reentrant base path.
func (b *Base) grow(size uintptr) {
	chunkSize := vm.PageCeiling(size)
	if chunkSize < ChunkSize {
		chunkSize = ChunkSize
	}
	addr, _, ok := b.chunks.Alloc(chunkSize, ChunkSize, true)
	if !ok {
		panic("corealloc: base allocator out of address space")
	}
	b.base = uintptr(addr)
	b.next = b.base
	b.past = b.base + chunkSize
	b.nextDecommitted = b.base
}

// ensureCommitted commits any pages between the current watermark and
// upTo, advancing the watermark.
func (b *Base) ensureCommitted(upTo uintptr) {
	if upTo <= b.nextDecommitted {
		return
	}
	want := vm.PageCeiling(upTo - b.base)
	size := want - (b.nextDecommitted - b.base)
	if size == 0 {
		return
	}
	vm.Commit(unsafe.Pointer(b.nextDecommitted), size)
	b.nextDecommitted = b.base + want
}

// NodeAlloc returns an ExtentNode, reusing a freed one if available.
func (b *Base) NodeAlloc() *ExtentNode {
	b.mu.Lock()
	if n := b.freelist; n != nil {
		b.freelist = n.next
		b.mu.Unlock()
		*n = ExtentNode{}
		return n
	}
	b.mu.Unlock()

	ptr := b.Alloc(unsafe.Sizeof(ExtentNode{}))
	return (*ExtentNode)(ptr)
}

// NodeDealloc returns n to the freelist for reuse.
func (b *Base) NodeDealloc(n *ExtentNode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n.next = b.freelist
	b.freelist = n
}
