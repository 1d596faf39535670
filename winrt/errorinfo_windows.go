//go:build windows

package winrt

import (
	"syscall"
	"unicode/utf16"
	"unsafe"
)

// slotGetErrorDetails is IRestrictedErrorInfo::GetErrorDetails
const slotGetErrorDetails = 3

func nativeErrorInfo(hr HResult) string {
	var info unsafe.Pointer
	r, _, _ := syscall.SyscallN(procGetRestrictedErrorInfo.Addr(), uintptr(unsafe.Pointer(&info)))
	if HResult(uint32(r)) != S_OK || info == nil {
		return ""
	}
	ref := Attach(info)
	defer ref.Release()

	var description, restricted, sid uintptr
	var code HResult
	status := Invoke(info, slotGetErrorDetails,
		uintptr(unsafe.Pointer(&description)),
		uintptr(unsafe.Pointer(&code)),
		uintptr(unsafe.Pointer(&restricted)),
		uintptr(unsafe.Pointer(&sid)))
	defer freeBSTR(description)
	defer freeBSTR(restricted)
	defer freeBSTR(sid)
	if status.Failed() || code != hr {
		return ""
	}
	if msg := bstr(restricted); msg != "" {
		return msg
	}
	return bstr(description)
}

func bstr(b uintptr) string {
	if b == 0 {
		return ""
	}
	n, _, _ := syscall.SyscallN(procSysStringLen.Addr(), b)
	if n == 0 {
		return ""
	}
	return string(utf16.Decode(unsafe.Slice((*uint16)(*(*unsafe.Pointer)(unsafe.Pointer(&b))), n)))
}

func freeBSTR(b uintptr) {
	if b != 0 {
		syscall.SyscallN(procSysFreeString.Addr(), b)
	}
}
