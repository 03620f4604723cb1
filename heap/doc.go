// Package heap is the process-wide orchestration layer: it owns a set
// of arenas plus the huge allocator and shared core, and exposes the
// malloc-family entry points every other package in this module exists
// to serve. A Heap is an ordinary value — the package also keeps a
// default process-wide instance so the top-level functions (Malloc,
// Free, ...) have something to delegate to — but every test constructs
// its own Heap and never touches the default instance.
package heap
