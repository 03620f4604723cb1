package corealloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/heapcore/heapcore/internal/rbtree"
	"github.com/heapcore/heapcore/internal/vm"
)

// ChunkSize is the unit of address-space reservation arenas and the huge
// allocator both work in: one megabyte, 256 native pages.
const ChunkSize = 1 << 20

// RecycleLimit caps the recycle cache's byte total, expressed as a
// count of chunk-sized extents: recycleLimitBytes converts it to the
// byte cap Dealloc actually enforces, since a single cached extent
// (coalesced, or carried over from a huge allocation) can be several
// chunks wide. It bounds worst-case address-space retention after a
// spike.
const RecycleLimit = 128

// recycleLimitBytes is the cache's byte cap: RecycleLimit chunk-sized
// extents' worth, though any single cached extent may be larger than
// one chunk once coalescing or huge-allocation provenance is involved.
const recycleLimitBytes = RecycleLimit * ChunkSize

// ChunkPool is the recycle cache for chunk-sized (and chunk-multiple)
// extents: chunk_alloc/chunk_dealloc from mozjemalloc's allocator lineage,
// reimplemented as two trees over the same set of ExtentNode cells so an
// allocation can be satisfied either by best-fit size or, on dealloc, by
// address-adjacency for coalescing.
type ChunkPool struct {
	mu sync.Mutex

	base *Base

	bySize *rbtree.Tree[*ExtentNode] // ordered by (size, addr)
	byAddr *rbtree.Tree[*ExtentNode] // ordered by addr, for coalescing

	recycled    int64 // atomic: bytes currently cached
	recycledCnt int64 // atomic: extents currently cached
	radix       *Radix
}

func newChunkPool(base *Base, radix *Radix) *ChunkPool {
	return &ChunkPool{
		base:   base,
		radix:  radix,
		bySize: rbtree.New[*ExtentNode](cmpBySizeAddr),
		byAddr: rbtree.New[*ExtentNode](cmpByAddr),
	}
}

// Alloc returns a chunk-aligned extent of at least size bytes, preferring
// the recycle cache over mapping new address space. isBase requests skip
// the recycle cache, so the base allocator can grow while a caller holds
// ChunkPool.mu (Dealloc allocates extent nodes under it), and they always
// get freshly mapped, zeroed memory. They are never registered in the
// radix tree: the base allocator's own chunks are never looked up by
// pointer.
func (p *ChunkPool) Alloc(size, alignment uintptr, isBase bool) (unsafe.Pointer, bool, bool) {
	if !isBase {
		if addr, zeroed, ok := p.allocRecycled(size, alignment); ok {
			p.radix.Set(addr, true)
			return unsafe.Pointer(addr), zeroed, true
		}
	}

	raw := vm.Map(size, alignment)
	if raw == nil {
		return nil, false, false
	}
	if !isBase {
		p.radix.Set(uintptr(raw), true)
	}
	return raw, true, true
}

func (p *ChunkPool) allocRecycled(size, alignment uintptr) (uintptr, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := &ExtentNode{Size: size}
	n, ok := p.bySize.Ceiling(key)
	for ok {
		if aligned := (n.Addr + alignment - 1) &^ (alignment - 1); aligned+size <= n.End() {
			break
		}
		// No aligned sub-run of size bytes in this candidate: look for
		// the next-larger extent that contains one. Scanning the whole
		// tree is acceptable here since aligned huge/chunk requests
		// above the native chunk size are rare.
		next, ok2 := p.bySize.Successor(n)
		if !ok2 {
			ok = false
			break
		}
		n, ok = next, true
	}
	if !ok {
		return 0, false, false
	}

	p.removeNode(n)

	leftover := n.Size - size
	addr := n.Addr
	if alignment > ChunkSize {
		aligned := (addr + alignment - 1) &^ (alignment - 1)
		if aligned != addr {
			lead := p.base.NodeAlloc()
			lead.Addr, lead.Size, lead.Type = addr, aligned-addr, n.Type
			p.insertNode(lead)
			n.Size -= lead.Size
			addr = aligned
			leftover = n.Size - size
		}
	}
	if leftover > 0 {
		tail := p.base.NodeAlloc()
		tail.Addr, tail.Size, tail.Type = addr+size, leftover, n.Type
		p.insertNode(tail)
	}

	zeroed := n.Type == Zeroed
	n.Addr, n.Size = addr, size
	p.base.NodeDealloc(n)
	return addr, zeroed, true
}

// Dealloc returns size bytes at addr to the cache, coalescing with
// address-adjacent neighbors and, once the cache exceeds
// recycleLimitBytes, evicting the smallest cached extent back to the
// OS. An acquire-load of the cached-byte total ahead of the lock lets
// a dealloc that would clearly overflow the cache skip straight to an
// unmap, the way mozjemalloc's chunk_dealloc checks recycled_size
// optimistically before ever taking chunks_mtx; the check is
// re-verified under the lock before acting on it.
func (p *ChunkPool) Dealloc(addr unsafe.Pointer, size uintptr, typ ChunkType) {
	a := uintptr(addr)
	p.radix.Unset(a)
	vm.Purge(addr, size, false)

	if atomic.LoadInt64(&p.recycled) > recycleLimitBytes {
		p.mu.Lock()
		if atomic.LoadInt64(&p.recycled) > recycleLimitBytes {
			p.mu.Unlock()
			vm.Unmap(addr, size)
			return
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.base.NodeAlloc()
	n.Addr, n.Size, n.Type = a, size, typ

	if prev, ok := p.byAddr.Floor(&ExtentNode{Addr: a}); ok && prev.End() == a {
		p.removeNode(prev)
		n.Addr = prev.Addr
		n.Size += prev.Size
		if prev.Type != n.Type {
			n.Type = Recycled
		}
		p.base.NodeDealloc(prev)
	}
	if next, ok := p.byAddr.Get(&ExtentNode{Addr: n.End()}); ok {
		p.removeNode(next)
		n.Size += next.Size
		if next.Type != n.Type {
			n.Type = Recycled
		}
		p.base.NodeDealloc(next)
	}

	p.insertNode(n)

	if atomic.LoadInt64(&p.recycled) > recycleLimitBytes {
		p.evictSmallest()
	}
}

func (p *ChunkPool) evictSmallest() {
	victim, ok := p.bySize.Min()
	if !ok {
		return
	}
	p.removeNode(victim)
	vm.Unmap(unsafe.Pointer(victim.Addr), victim.Size)
	p.base.NodeDealloc(victim)
}

func (p *ChunkPool) insertNode(n *ExtentNode) {
	p.bySize.Insert(n)
	p.byAddr.Insert(n)
	atomic.AddInt64(&p.recycled, int64(n.Size))
	atomic.AddInt64(&p.recycledCnt, 1)
}

func (p *ChunkPool) removeNode(n *ExtentNode) {
	p.bySize.Delete(n)
	p.byAddr.Delete(n)
	atomic.AddInt64(&p.recycled, -int64(n.Size))
	atomic.AddInt64(&p.recycledCnt, -1)
}

// CachedBytes reports how many bytes currently sit in the recycle cache.
func (p *ChunkPool) CachedBytes() int64 {
	return atomic.LoadInt64(&p.recycled)
}

// CachedExtents reports how many extents currently sit in the recycle
// cache, independent of their individual sizes.
func (p *ChunkPool) CachedExtents() int64 {
	return atomic.LoadInt64(&p.recycledCnt)
}
