// Package vm wraps the operating system's virtual memory primitives behind
// four idempotent, page-aligned operations: Map, Unmap, Commit/Decommit and
// Purge. Every other package in this module treats the OS as this package's
// problem and nobody else's.
package vm
