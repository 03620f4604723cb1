package heap

import (
	"unsafe"

	"github.com/heapcore/heapcore/arena"
)

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Memalign implements memalign(align, n): align must be a power of
// two, per POSIX memalign semantics. Returns nil on bad alignment or allocation
// failure rather than signaling EINVAL — callers that need the POSIX
// error contract should use PosixMemalign.
func (h *Heap) Memalign(alignment, size int) unsafe.Pointer {
	if size <= 0 || !isPowerOfTwo(alignment) {
		return nil
	}
	return h.allocAligned(alignment, size, h.opts.ZeroFill)
}

// PosixMemalign implements posix_memalign(&out, align, n): align must
// be a power of two and at least the machine word size, matching
// posix_memalign's stated precondition; violations return ErrBadAlignment
// (this project's EINVAL).
func (h *Heap) PosixMemalign(alignment, size int) (unsafe.Pointer, error) {
	const wordSize = int(unsafe.Sizeof(uintptr(0)))
	if !isPowerOfTwo(alignment) || alignment < wordSize {
		return nil, ErrBadAlignment
	}
	if size <= 0 {
		return nil, nil
	}
	ptr := h.allocAligned(alignment, size, h.opts.ZeroFill)
	if ptr == nil && size > 0 {
		return nil, nil // ENOMEM-equivalent: nil pointer, no error object
	}
	return ptr, nil
}

// AlignedAlloc implements C11 aligned_alloc(align, n): align must be a
// power of two and size must be a multiple of align, else nil.
func (h *Heap) AlignedAlloc(alignment, size int) unsafe.Pointer {
	if size <= 0 || !isPowerOfTwo(alignment) || size%alignment != 0 {
		return nil
	}
	return h.allocAligned(alignment, size, h.opts.ZeroFill)
}

// Valloc implements valloc(n): page-aligned allocation.
func (h *Heap) Valloc(size int) unsafe.Pointer {
	return h.allocAligned(arenaPageSize, size, h.opts.ZeroFill)
}

const arenaPageSize = arena.PageSize

// allocAligned routes an over-aligned request to the arena path when
// alignment is no finer than a page and the result still fits under
// ArenaMaxclass (Arena.MallocAligned itself declines anything it can't
// satisfy), falling back to the huge allocator's AllocAligned — which
// supports arbitrary power-of-two alignment via the chunk pool's
// general trim strategy — for everything else.
func (h *Heap) allocAligned(alignment, size int, zero bool) unsafe.Pointer {
	if alignment <= arenaPageSize {
		if ptr := h.pickArena().MallocAligned(size, alignment, zero); ptr != nil {
			return ptr
		}
	}
	return h.huge.AllocAligned(uintptr(size), uintptr(alignment), zero)
}
