package winrt

import (
	"math"
	"unsafe"
)

// Bool lowers a boolean to a one-byte argument
func Bool(v bool) uintptr {
	if v {
		return 1
	}
	return 0
}

// Float32 passes a float as its IEEE bit pattern
func Float32(v float32) uintptr {
	return uintptr(math.Float32bits(v))
}

// Float64 passes a double as its IEEE bit pattern
func Float64(v float64) uintptr {
	return uintptr(math.Float64bits(v))
}

// Pack copies a value of at most 8 bytes into one register argument
func Pack[T any](v T) uintptr {
	size := unsafe.Sizeof(v)
	if size > 8 {
		panic("winrt: Pack of a value larger than 8 bytes")
	}
	var w uint64
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&w)), size), unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	return uintptr(w)
}

// Unpack is the inverse of Pack
func Unpack[T any](raw uintptr) T {
	var v T
	size := unsafe.Sizeof(v)
	if size > 8 {
		panic("winrt: Unpack of a value larger than 8 bytes")
	}
	w := uint64(raw)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), size), unsafe.Slice((*byte)(unsafe.Pointer(&w)), size))
	return v
}

// Deref reads a T from an argument passed by pointer
func Deref[T any](raw uintptr) T {
	var zero T
	if raw == 0 {
		return zero
	}
	return *(*T)(*(*unsafe.Pointer)(unsafe.Pointer(&raw)))
}

// Store writes v through an out-parameter pointer
func Store[T any](raw uintptr, v T) {
	if raw == 0 {
		return
	}
	*(*T)(*(*unsafe.Pointer)(unsafe.Pointer(&raw))) = v
}
