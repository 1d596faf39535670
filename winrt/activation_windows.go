//go:build windows

package winrt

import (
	"syscall"
	"unsafe"
)

// roInitMultiThreaded is RO_INIT_MULTITHREADED
const roInitMultiThreaded = 1

func nativeFactory(classID string, iid GUID) (*IInspectable, error) {
	name, err := NewHString(classID)
	if err != nil {
		return nil, err
	}
	defer name.Free()

	var out unsafe.Pointer
	r, _, _ := syscall.SyscallN(procRoGetActivationFactory.Addr(),
		uintptr(name),
		uintptr(unsafe.Pointer(&iid)),
		uintptr(unsafe.Pointer(&out)))
	if hr := HResult(uint32(r)); hr.Failed() {
		return nil, NewCallError(hr)
	}
	if out == nil {
		return nil, ErrNoInterface
	}
	return Attach(out), nil
}

func initialize() error {
	r, _, _ := syscall.SyscallN(procRoInitialize.Addr(), roInitMultiThreaded)
	// S_FALSE means the thread was already initialized
	return Check(HResult(uint32(r)))
}

func uninitialize() {
	syscall.SyscallN(procRoUninitialize.Addr())
}
