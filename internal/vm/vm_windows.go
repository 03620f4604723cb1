//go:build windows

package vm

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// VirtualFree(MEM_DECOMMIT) guarantees that a later VirtualAlloc(MEM_COMMIT)
// of the same range reads back as zero, so Windows is decommit-style.
func init() {
	PurgeStyle = DecommitStyle
}

func mapReserve(size uintptr) unsafe.Pointer {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT,
		windows.PAGE_READWRITE)
	if err != nil {
		return nil
	}
	return unsafe.Pointer(addr)
}

func unmapRaw(addr unsafe.Pointer, size uintptr) {
	if err := windows.VirtualFree(uintptr(addr), 0, windows.MEM_RELEASE); err != nil {
		panic("vm: VirtualFree(MEM_RELEASE) failed: " + err.Error())
	}
}

func commitRaw(addr unsafe.Pointer, size uintptr) bool {
	_, err := windows.VirtualAlloc(uintptr(addr), size, windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err == nil
}

func decommitRaw(addr unsafe.Pointer, size uintptr) bool {
	err := windows.VirtualFree(uintptr(addr), size, windows.MEM_DECOMMIT)
	return err == nil
}

func madviseFree(addr unsafe.Pointer, size uintptr) {
	_ = windows.VirtualFree(uintptr(addr), size, windows.MEM_DECOMMIT)
}
