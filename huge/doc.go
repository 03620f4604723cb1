// Package huge handles allocations larger than arena.ArenaMaxclass: it
// rounds the request to a chunk multiple, reserves contiguous chunks
// directly from the shared chunk pool, and tracks each live huge
// allocation in an address-keyed tree rather than inside any arena.
package huge
