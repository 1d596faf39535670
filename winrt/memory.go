package winrt

import (
	"unsafe"
)

// ReceiveArray copies a callee-allocated array and frees the native buffer
func ReceiveArray[T any](p unsafe.Pointer, n uint32) []T {
	if p == nil {
		return nil
	}
	defer CoTaskMemFree(p)
	out := make([]T, n)
	copy(out, unsafe.Slice((*T)(p), n))
	return out
}

// ReceiveStrings converts a callee-allocated array of string handles,
// freeing every handle and the buffer.
func ReceiveStrings(p unsafe.Pointer, n uint32) []string {
	hs := ReceiveArray[HString](p, n)
	if hs == nil {
		return nil
	}
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = TakeString(h)
	}
	return out
}

// ReceivePointers copies a callee-allocated array of interface pointers.
// Ownership of each pointer passes to the caller.
func ReceivePointers(p unsafe.Pointer, n uint32) []unsafe.Pointer {
	return ReceiveArray[unsafe.Pointer](p, n)
}

// Pointers lowers a slice of objects to a slice of borrowed pointers
func Pointers[T Object](v []T) []uintptr {
	out := make([]uintptr, len(v))
	for i, o := range v {
		out[i] = Raw(o)
	}
	return out
}

// NewArray allocates a native buffer holding a copy of v, to be returned
// from a Go-implemented method as a receive array.
func NewArray[T any](v []T) (unsafe.Pointer, uint32) {
	if len(v) == 0 {
		return nil, 0
	}
	var zero T
	p := CoTaskMemAlloc(uintptr(len(v)) * unsafe.Sizeof(zero))
	if p == nil {
		return nil, 0
	}
	copy(unsafe.Slice((*T)(p), len(v)), v)
	return p, uint32(len(v))
}
