// Package rbtree implements a left-leaning red-black tree (Sedgewick's
// 2-3 variant), a balancing scheme well suited to ordered in-memory
// indexes. It backs the chunk
// recycle cache's size- and address-ordered trees, an arena's run
// availability and dirty-chunk trees, a bin's non-full-run tree, and the
// huge allocator's address tree — every ordered structure the allocator
// core needs, parameterized over its element type and a comparator.
package rbtree
