//go:build windows

package winrt

import (
	"syscall"
	"unsafe"
)

func invokeNative(this unsafe.Pointer, slot int, args []uintptr) HResult {
	vtbl := *(*unsafe.Pointer)(this)
	fn := *(*uintptr)(unsafe.Add(vtbl, uintptr(slot)*unsafe.Sizeof(uintptr(0))))

	callArgs := make([]uintptr, 0, len(args)+1)
	callArgs = append(callArgs, uintptr(this))
	callArgs = append(callArgs, args...)
	r, _, _ := syscall.SyscallN(fn, callArgs...)
	return HResult(uint32(r))
}
