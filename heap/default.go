package heap

import (
	"os"
	"sync"
	"unsafe"
)

var (
	defaultOnce sync.Once
	defaultHeap *Heap
)

// Default returns the process-wide Heap, constructed on first use from
// DefaultOptions() layered with HEAPCORE_OPTIONS, if set. Package-level
// Malloc/Calloc/Realloc/Free/... all delegate here; tests should
// construct their own Heap via New instead of touching this one.
func Default() *Heap {
	defaultOnce.Do(func() {
		opts := DefaultOptions()
		if env := os.Getenv("HEAPCORE_OPTIONS"); env != "" {
			opts = ParseOptions(opts, env)
		}
		defaultHeap = New(opts)
	})
	return defaultHeap
}

// Malloc delegates to Default().Malloc.
func Malloc(size int) unsafe.Pointer { return Default().Malloc(size) }

// Calloc delegates to Default().Calloc.
func Calloc(nmemb, size int) unsafe.Pointer { return Default().Calloc(nmemb, size) }

// Realloc delegates to Default().Realloc.
func Realloc(ptr unsafe.Pointer, newSize int) unsafe.Pointer {
	return Default().Realloc(ptr, newSize)
}

// Free delegates to Default().Free.
func Free(ptr unsafe.Pointer) { Default().Free(ptr) }

// Memalign delegates to Default().Memalign.
func Memalign(alignment, size int) unsafe.Pointer { return Default().Memalign(alignment, size) }

// PosixMemalign delegates to Default().PosixMemalign.
func PosixMemalign(alignment, size int) (unsafe.Pointer, error) {
	return Default().PosixMemalign(alignment, size)
}

// AlignedAlloc delegates to Default().AlignedAlloc.
func AlignedAlloc(alignment, size int) unsafe.Pointer {
	return Default().AlignedAlloc(alignment, size)
}

// Valloc delegates to Default().Valloc.
func Valloc(size int) unsafe.Pointer { return Default().Valloc(size) }

// MallocUsableSize delegates to Default().MallocUsableSize.
func MallocUsableSize(ptr unsafe.Pointer) uintptr { return Default().MallocUsableSize(ptr) }
