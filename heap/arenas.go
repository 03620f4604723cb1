package heap

import (
	"unsafe"

	"github.com/heapcore/heapcore/arena"
)

// FreeDirtyPages implements jemalloc_free_dirty_pages: forces every
// arena to purge all of its dirty pages back to the OS.
func (h *Heap) FreeDirtyPages() {
	for _, a := range h.arenasSnapshot() {
		a.Purge(true)
	}
}

// PurgeFreedPages (mirrors `moz_malloc_purge`/`jemalloc_purge_freed_pages`)
// also forces every arena to purge all of its dirty pages. No separate
// list of madvised pages is kept, so it does the same work as
// FreeDirtyPages.
func (h *Heap) PurgeFreedPages() {
	for _, a := range h.arenasSnapshot() {
		a.Purge(true)
	}
}

// ArenaHandle names one of a Heap's fixed arena-pool slots for the
// CreateArena/DisposeArena/ArenaMalloc family, mirroring
// moz_create_arena's opaque arena_id_t.
type ArenaHandle int

// CreateArena implements moz_create_arena: grows the arena pool by one
// and returns a handle to the new arena. The new arena is not among the
// Options.NumArenas arenas the round-robin default picker draws from; it
// is reached through its handle (ArenaMalloc, ThreadLocalArena).
func (h *Heap) CreateArena() ArenaHandle {
	h.tlaMu.Lock()
	defer h.tlaMu.Unlock()

	id := len(h.arenas)
	h.arenas = append(h.arenas, arena.New(id, h.core, h.opts.MaxDirtyPages, h.opts.FillJunk))
	return ArenaHandle(id)
}

// DisposeArena implements moz_dispose_arena: purges the arena's dirty
// pages and removes it from thread-local assignment so ArenaForKey no
// longer reports it. The arena itself is not torn down: its
// already-live allocations remain valid and the handle still serves
// ArenaMalloc/ArenaFree, matching mozjemalloc's "no attempt to recover"
// stance on any allocation still outstanding against it.
func (h *Heap) DisposeArena(handle ArenaHandle) error {
	a, err := h.arenaByHandle(handle)
	if err != nil {
		return err
	}
	a.Purge(true)

	h.tlaMu.Lock()
	defer h.tlaMu.Unlock()
	for key, idx := range h.tla {
		if idx == int(handle) {
			delete(h.tla, key)
		}
	}
	return nil
}

func (h *Heap) arenaByHandle(handle ArenaHandle) (*arena.Arena, error) {
	h.tlaMu.RLock()
	defer h.tlaMu.RUnlock()
	if int(handle) < 0 || int(handle) >= len(h.arenas) {
		return nil, ErrUnknownArena
	}
	return h.arenas[int(handle)], nil
}

// ThreadLocalArena implements the moz_set_thread_local_arena half of
// the API: it records handle's arena as the assignment for the caller
// identified by key (typically a goroutine-scoped ID the embedder
// supplies, since Go has no stable thread handle), which ArenaForKey
// reads back. Malloc/Calloc/Realloc/Free take no key and do not consult
// the assignment; they keep using the round-robin default.
func (h *Heap) ThreadLocalArena(key int64, handle ArenaHandle) error {
	if _, err := h.arenaByHandle(handle); err != nil {
		return err
	}
	h.tlaMu.Lock()
	defer h.tlaMu.Unlock()
	h.tla[key] = int(handle)
	return nil
}

// ArenaForKey resolves the arena handle previously assigned to key via
// ThreadLocalArena. Go exposes no stable per-goroutine identity the
// way mozjemalloc reads from TLS, so unlike the original, this
// assignment is never consulted automatically by Malloc/Free — callers
// that want thread-local routing look it up explicitly and dispatch
// through ArenaMalloc/ArenaFree themselves.
func (h *Heap) ArenaForKey(key int64) (ArenaHandle, bool) {
	h.tlaMu.RLock()
	defer h.tlaMu.RUnlock()
	idx, ok := h.tla[key]
	return ArenaHandle(idx), ok
}

// ArenaMalloc implements the per-arena variant of Malloc, bypassing
// thread-local assignment and the round-robin picker entirely.
func (h *Heap) ArenaMalloc(handle ArenaHandle, size int, zero bool) (unsafe.Pointer, error) {
	a, err := h.arenaByHandle(handle)
	if err != nil {
		return nil, err
	}
	if !arena.IsArenaManaged(size) {
		return h.huge.Alloc(uintptr(size), zero), nil
	}
	return a.Malloc(size, zero), nil
}

// ArenaFree implements the per-arena variant of Free: it is
// functionally identical to Free (ownership is determined by the
// pointer, not the handle) and is exposed for API symmetry with
// ArenaMalloc. It checks only that handle names an arena; it does not
// check that ptr was issued by that arena.
func (h *Heap) ArenaFree(handle ArenaHandle, ptr unsafe.Pointer) error {
	if _, err := h.arenaByHandle(handle); err != nil {
		return err
	}
	h.Free(ptr)
	return nil
}
