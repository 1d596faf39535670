//go:build !windows

package winrt

import (
	"unsafe"
)

func invokeNative(unsafe.Pointer, int, []uintptr) HResult {
	return E_NOTIMPL
}
