//go:build !windows

package winrt

import (
	"sync"
	"unsafe"
)

// buffers keeps task allocations reachable until they are freed
var buffers = struct {
	m  map[unsafe.Pointer][]uint64
	mu sync.Mutex
}{m: make(map[unsafe.Pointer][]uint64)}

// CoTaskMemAlloc allocates an 8-byte aligned buffer
func CoTaskMemAlloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}
	buf := make([]uint64, (size+7)/8)
	p := unsafe.Pointer(&buf[0])
	buffers.mu.Lock()
	buffers.m[p] = buf
	buffers.mu.Unlock()
	return p
}

// CoTaskMemFree frees a buffer from CoTaskMemAlloc
func CoTaskMemFree(p unsafe.Pointer) {
	if p == nil {
		return
	}
	buffers.mu.Lock()
	delete(buffers.m, p)
	buffers.mu.Unlock()
}

// LiveBuffers returns the number of task allocations not yet freed
func LiveBuffers() int {
	buffers.mu.Lock()
	defer buffers.mu.Unlock()
	return len(buffers.m)
}
