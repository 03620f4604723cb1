//go:build darwin

package vm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Darwin's MADV_FREE hint does not guarantee the range reads back as zero
// until the kernel actually reclaims the pages, so the caller may not
// assume zero content without re-zeroing.
func init() {
	PurgeStyle = MadviseStyle
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
	b := unsafe.Slice((*byte)(addr), int(size))
	_ = unix.Madvise(b, unix.MADV_WILLNEED)
	return true
}

func decommitRaw(addr unsafe.Pointer, size uintptr) bool {
	// Darwin has no true decommit-and-guarantee-zero primitive short of
	// re-mapping; MADV_FREE plus an explicit zero on next commit is how
	// the arena path (SplitRun) compensates — see Purge's forceZero path.
	b := unsafe.Slice((*byte)(addr), int(size))
	if err := unix.Madvise(b, unix.MADV_FREE); err != nil {
		return false
	}
	return true
}

func madviseFree(addr unsafe.Pointer, size uintptr) {
	b := unsafe.Slice((*byte)(addr), int(size))
	_ = unix.Madvise(b, unix.MADV_FREE)
}
