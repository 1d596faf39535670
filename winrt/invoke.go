package winrt

import (
	"unsafe"
)

// Invoke calls vtable slot of the interface pointer this with the given
// arguments and returns the status. Pointers converted to uintptr in the
// argument list stay valid for the duration of the call.
//
//go:uintptrescapes
func Invoke(this unsafe.Pointer, slot int, args ...uintptr) HResult {
	if this == nil {
		return E_POINTER
	}
	if obj := lookupObject(uintptr(this)); obj != nil {
		return obj.dispatch(slot, args)
	}
	return invokeNative(this, slot, args)
}
