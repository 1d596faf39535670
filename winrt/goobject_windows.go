//go:build windows

package winrt

import (
	"fmt"
	"sync"
	"syscall"
)

// maxGoMethods bounds the vtable of a Go-implemented object. Callbacks
// are a finite process resource, so one set of thunks is shared.
const maxGoMethods = 32

var (
	thunkOnce    sync.Once
	baseThunks   [3]uintptr
	methodThunks [maxGoMethods]uintptr
)

func initThunks() {
	baseThunks[SlotQueryInterface] = syscall.NewCallback(func(this, riid, out uintptr) uintptr {
		return callGo(this, SlotQueryInterface, riid, out)
	})
	baseThunks[SlotAddRef] = syscall.NewCallback(func(this uintptr) uintptr {
		return callGo(this, SlotAddRef)
	})
	baseThunks[SlotRelease] = syscall.NewCallback(func(this uintptr) uintptr {
		return callGo(this, SlotRelease)
	})
	for i := range methodThunks {
		slot := FirstUnknownSlot + i
		methodThunks[i] = syscall.NewCallback(func(this, a0, a1, a2, a3, a4, a5, a6, a7 uintptr) uintptr {
			return callGo(this, slot, a0, a1, a2, a3, a4, a5, a6, a7)
		})
	}
}

func callGo(this uintptr, slot int, args ...uintptr) uintptr {
	o := lookupObject(this)
	if o == nil {
		return uintptr(E_POINTER)
	}
	return uintptr(o.dispatch(slot, args))
}

func newVtable(methods int) []uintptr {
	if methods > maxGoMethods {
		panic(fmt.Sprintf("winrt: Go-implemented object with %d methods exceeds %d", methods, maxGoMethods))
	}
	thunkOnce.Do(initThunks)
	vt := make([]uintptr, 3+methods)
	copy(vt, baseThunks[:])
	copy(vt[3:], methodThunks[:methods])
	return vt
}
