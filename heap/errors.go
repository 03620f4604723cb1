package heap

import "errors"

// ErrBadAlignment is returned by PosixMemalign when the requested
// alignment is not a power of two or not a multiple of sizeof(void*).
// AlignedAlloc has no error return and reports a bad alignment with a
// nil pointer.
var ErrBadAlignment = errors.New("heap: bad alignment")

// ErrUnknownArena is returned by the per-arena API variants when the
// supplied ArenaHandle does not name a live arena on this Heap.
var ErrUnknownArena = errors.New("heap: unknown arena")
