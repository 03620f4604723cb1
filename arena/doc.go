// Package arena implements the main allocation core: a chunk-owning
// arena that partitions its chunks into runs, carves small runs into
// equal-sized regions tracked by a bin's free bitmask, and tracks large
// allocations and dirty pages directly in each chunk's page map.
//
// An Arena is independent lock-wise from every other Arena; the unit of
// contention in this module is one Arena, not the process.
package arena
