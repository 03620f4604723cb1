//go:build linux || freebsd

package vm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// On Linux and FreeBSD, MADV_DONTNEED immediately discards the backing
// pages and guarantees the range re-faults as zero, so Purge behaves like
// a decommit rather than a lazy hint.
func init() {
	PurgeStyle = DecommitStyle
}

func mapReserve(size uintptr) unsafe.Pointer {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// unmapRaw issues munmap directly: unix.Munmap only accepts the exact
// slice unix.Mmap returned, so it rejects the sub-ranges Map trims and
// the partial extents the chunk pool releases.
func unmapRaw(addr unsafe.Pointer, size uintptr) {
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, uintptr(addr), size, 0); errno != 0 {
		panic("vm: munmap failed: " + errno.Error())
	}
}

func commitRaw(addr unsafe.Pointer, size uintptr) bool {
	// Anonymous mappings on Linux/FreeBSD are always committed; re-commit
	// is a matter of telling the kernel the range will be used again.
	b := unsafe.Slice((*byte)(addr), int(size))
	_ = unix.Madvise(b, unix.MADV_WILLNEED)
	return true
}

func decommitRaw(addr unsafe.Pointer, size uintptr) bool {
	b := unsafe.Slice((*byte)(addr), int(size))
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return false
	}
	return true
}

func madviseFree(addr unsafe.Pointer, size uintptr) {
	b := unsafe.Slice((*byte)(addr), int(size))
	_ = unix.Madvise(b, unix.MADV_DONTNEED)
}
