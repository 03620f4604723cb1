package heap

import (
	"unsafe"

	"github.com/heapcore/heapcore/arena"
)

// PtrTag classifies a pointer the way jemalloc_ptr_info does, mirroring
// arena.PtrTag plus the two cases only package heap can see (huge
// allocations, and pointers belonging to no tracked allocation at
// all).
type PtrTag int

const (
	TagUnknown PtrTag = iota
	TagLiveSmall
	TagLiveLarge
	TagLiveHuge
	TagFreedPageDirty
	TagFreedPageDecommitted
	TagFreedPageMadvised
	TagFreedPageZeroed
	TagFreedSmall
)

// PtrInfo is the result of classifying an arbitrary pointer against
// everything this Heap currently tracks.
type PtrInfo struct {
	Tag  PtrTag
	Base uintptr
	Size uintptr
}

var arenaTagToHeapTag = map[arena.PtrTag]PtrTag{
	arena.TagUnknown:              TagUnknown,
	arena.TagLiveSmall:            TagLiveSmall,
	arena.TagLiveLarge:            TagLiveLarge,
	arena.TagFreedPageDirty:       TagFreedPageDirty,
	arena.TagFreedPageDecommitted: TagFreedPageDecommitted,
	arena.TagFreedPageMadvised:    TagFreedPageMadvised,
	arena.TagFreedPageZeroed:      TagFreedPageZeroed,
	arena.TagFreedSmall:           TagFreedSmall,
}

// PtrInfo implements jemalloc_ptr_info: classify ptr without panicking,
// even if it belongs to no allocation this Heap has ever made.
func (h *Heap) PtrInfo(ptr unsafe.Pointer) PtrInfo {
	if ptr == nil {
		return PtrInfo{Tag: TagUnknown}
	}

	if base, size, ok := h.huge.Lookup(uintptr(ptr)); ok {
		return PtrInfo{Tag: TagLiveHuge, Base: base, Size: size}
	}

	if !h.core.Owns(uintptr(ptr)) {
		return PtrInfo{Tag: TagUnknown}
	}

	for _, a := range h.arenasSnapshot() {
		if !a.Owns(ptr) {
			continue
		}
		info := a.Info(ptr)
		return PtrInfo{Tag: arenaTagToHeapTag[info.Tag], Base: info.Base, Size: info.Size}
	}

	return PtrInfo{Tag: TagUnknown}
}
