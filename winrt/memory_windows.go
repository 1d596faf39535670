//go:build windows

package winrt

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// CoTaskMemAlloc allocates a buffer a native caller can free
func CoTaskMemAlloc(size uintptr) unsafe.Pointer {
	r, _, _ := syscall.SyscallN(procCoTaskMemAlloc.Addr(), size)
	return *(*unsafe.Pointer)(unsafe.Pointer(&r))
}

// CoTaskMemFree frees a buffer allocated by a callee
func CoTaskMemFree(p unsafe.Pointer) {
	if p != nil {
		windows.CoTaskMemFree(p)
	}
}
