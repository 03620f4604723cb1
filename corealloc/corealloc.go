package corealloc

// Core bundles the base allocator, the chunk recycle cache, and the
// address radix tree: the three lowest layers of the allocator, wired
// together once at process start and shared by every arena and the huge
// allocator.
type Core struct {
	Base   *Base
	Chunks *ChunkPool
	Radix  *Radix
}

// NewCore constructs the three lowest layers in their required order:
// the base allocator first (empty, lazily grown), then the radix tree
// (whose node arrays come from Base), then the chunk pool (which needs
// both to register chunks and to recycle its own bookkeeping nodes).
func NewCore() *Core {
	base := newBase()
	radix := newRadix(base)
	chunks := newChunkPool(base, radix)
	base.chunks = chunks

	return &Core{Base: base, Chunks: chunks, Radix: radix}
}

// Owns reports whether addr falls within a chunk this Core has handed
// out to an arena or the huge allocator (never true for base-allocator
// chunks, which are not registered in the radix tree).
func (c *Core) Owns(addr uintptr) bool {
	return c.Radix.Get(addr)
}
