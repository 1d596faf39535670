//go:build windows

package winrt

import (
	"syscall"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	combase                       = windows.NewLazySystemDLL("combase.dll")
	procWindowsCreateString       = combase.NewProc("WindowsCreateString")
	procWindowsDeleteString       = combase.NewProc("WindowsDeleteString")
	procWindowsGetStringRawBuffer = combase.NewProc("WindowsGetStringRawBuffer")
	procRoGetActivationFactory    = combase.NewProc("RoGetActivationFactory")
	procRoInitialize              = combase.NewProc("RoInitialize")
	procRoUninitialize            = combase.NewProc("RoUninitialize")
	procGetRestrictedErrorInfo    = combase.NewProc("GetRestrictedErrorInfo")

	ole32              = windows.NewLazySystemDLL("ole32.dll")
	procCoTaskMemAlloc = ole32.NewProc("CoTaskMemAlloc")

	oleaut32          = windows.NewLazySystemDLL("oleaut32.dll")
	procSysFreeString = oleaut32.NewProc("SysFreeString")
	procSysStringLen  = oleaut32.NewProc("SysStringLen")
)

func newHString(s string) (HString, error) {
	u, err := windows.UTF16FromString(s)
	if err != nil {
		return 0, &CallError{Code: E_INVALIDARG, Message: err.Error()}
	}
	var h HString
	r, _, _ := syscall.SyscallN(procWindowsCreateString.Addr(),
		uintptr(unsafe.Pointer(&u[0])),
		uintptr(len(u)-1),
		uintptr(unsafe.Pointer(&h)))
	if hr := HResult(uint32(r)); hr.Failed() {
		return 0, NewCallError(hr)
	}
	return h, nil
}

func hstringValue(h HString) string {
	var n uint32
	p, _, _ := syscall.SyscallN(procWindowsGetStringRawBuffer.Addr(), uintptr(h), uintptr(unsafe.Pointer(&n)))
	if p == 0 || n == 0 {
		return ""
	}
	buf := unsafe.Slice((*uint16)(*(*unsafe.Pointer)(unsafe.Pointer(&p))), n)
	return string(utf16.Decode(buf))
}

func deleteHString(h HString) {
	syscall.SyscallN(procWindowsDeleteString.Addr(), uintptr(h))
}
