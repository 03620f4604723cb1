package huge

// Prefork acquires huge_mtx, last in the fork sequence after every
// arena and the shared core have taken their own locks.
func (h *Allocator) Prefork() {
	h.mu.Lock()
}

// PostforkParent releases huge_mtx, first in the parent's postfork
// unwind.
func (h *Allocator) PostforkParent() {
	h.mu.Unlock()
}

// PostforkChild releases huge_mtx in the freshly forked child.
func (h *Allocator) PostforkChild() {
	h.mu.Unlock()
}
