// Package corealloc implements the three lowest layers of the allocator:
// the base (bump-pointer) allocator, the chunk allocator and its recycle
// cache, and the address radix tree. The three are bundled into one
// package because they are genuinely mutually dependent: the base
// allocator replenishes itself by calling the chunk allocator with
// isBase set (the one reentrancy escape hatch in the whole design), the
// chunk allocator's recycle cache allocates its extent-node bookkeeping
// from the base allocator, and every non-base chunk the chunk allocator
// hands out is registered into the radix tree, whose internal node arrays
// are in turn allocated from the base allocator.
//
// Everything here runs under its own locks (Base.mu, ChunkPool.mu,
// Radix's internal lock) — none of it is the arena lock. An arena calls
// in here while holding its own lock; nothing here calls back into an
// arena.
package corealloc
