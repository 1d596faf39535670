package winrt

import (
	"reflect"
	"sync/atomic"
	"unsafe"
)

// Fixed vtable slots of IUnknown and IInspectable
const (
	SlotQueryInterface      = 0
	SlotAddRef              = 1
	SlotRelease             = 2
	SlotGetIids             = 3
	SlotGetRuntimeClassName = 4
	SlotGetTrustLevel       = 5

	// FirstInspectableSlot is the first slot after IInspectable
	FirstInspectableSlot = 6
	// FirstUnknownSlot is the first slot after IUnknown, used by delegates
	FirstUnknownSlot = 3
)

// Object is anything backed by a native interface pointer
type Object interface {
	Ptr() unsafe.Pointer
}

// IUnknown is a reference to a native object. Owned references are
// released exactly once; borrowed references are never released.
type IUnknown struct {
	ptr      unsafe.Pointer
	owned    bool
	released atomic.Bool
}

// Ptr returns the interface pointer; nil receivers yield nil
func (u *IUnknown) Ptr() unsafe.Pointer {
	if u == nil || u.released.Load() {
		return nil
	}
	return u.ptr
}

// Owned reports whether Release gives up a reference
func (u *IUnknown) Owned() bool {
	return u != nil && u.owned
}

// Release gives up an owned reference. Later calls are no-ops.
func (u *IUnknown) Release() {
	if u == nil || !u.owned || u.ptr == nil {
		return
	}
	if u.released.CompareAndSwap(false, true) {
		Invoke(u.ptr, SlotRelease)
	}
}

// Released reports whether Release has run
func (u *IUnknown) Released() bool {
	return u != nil && u.released.Load()
}

// IInspectable is a reference to a Windows Runtime object
type IInspectable struct {
	IUnknown
}

// Ptr returns the interface pointer; nil receivers yield nil
func (i *IInspectable) Ptr() unsafe.Pointer {
	if i == nil {
		return nil
	}
	return i.IUnknown.Ptr()
}

// Release gives up an owned reference. Later calls are no-ops.
func (i *IInspectable) Release() {
	if i != nil {
		i.IUnknown.Release()
	}
}

// RuntimeClassName returns the class name the object reports
func (i *IInspectable) RuntimeClassName() (string, error) {
	var name HString
	hr := Invoke(i.Ptr(), SlotGetRuntimeClassName, uintptr(unsafe.Pointer(&name)))
	if hr != S_OK {
		return "", NewCallError(hr)
	}
	return TakeString(name), nil
}

// Attach takes ownership of a reference returned by a native call.
// A nil pointer yields nil.
func Attach(p unsafe.Pointer) *IInspectable {
	if p == nil {
		return nil
	}
	obj := &IInspectable{}
	obj.ptr = p
	obj.owned = true
	track(p, TrackAttach, 0)
	return obj
}

// Borrow wraps a pointer received as a call argument. The reference is
// not released by the wrapper.
func Borrow(raw uintptr) *IInspectable {
	if raw == 0 {
		return nil
	}
	obj := &IInspectable{}
	obj.ptr = *(*unsafe.Pointer)(unsafe.Pointer(&raw))
	return obj
}

// AttachUnknown is Attach for interfaces that derive from IUnknown only,
// such as delegates.
func AttachUnknown(p unsafe.Pointer) *IUnknown {
	if p == nil {
		return nil
	}
	track(p, TrackAttach, 0)
	return &IUnknown{ptr: p, owned: true}
}

// BorrowUnknown is Borrow for interfaces that derive from IUnknown only
func BorrowUnknown(raw uintptr) *IUnknown {
	if raw == 0 {
		return nil
	}
	return &IUnknown{ptr: *(*unsafe.Pointer)(unsafe.Pointer(&raw))}
}

// AddRef returns a new owned reference to the object behind o
func AddRef(o Object) *IInspectable {
	p := PtrOf(o)
	if p == nil {
		return nil
	}
	Invoke(p, SlotAddRef)
	return Attach(p)
}

// QueryInterface asks o for the interface iid and returns an owned
// reference. A failed query, or a success status with a nil result,
// yields ErrNoInterface.
func QueryInterface(o Object, iid GUID) (*IInspectable, error) {
	p := PtrOf(o)
	if p == nil {
		return nil, &CallError{Code: E_POINTER, Message: "query on a nil object"}
	}
	var out unsafe.Pointer
	hr := Invoke(p, SlotQueryInterface, uintptr(unsafe.Pointer(&iid)), uintptr(unsafe.Pointer(&out)))
	switch {
	case hr == E_NOINTERFACE:
		return nil, ErrNoInterface
	case hr != S_OK:
		return nil, NewCallError(hr)
	case out == nil:
		return nil, ErrNoInterface
	}
	return Attach(out), nil
}

// Raw returns the interface pointer of o as a call argument; nil objects
// pass as zero.
func Raw(o Object) uintptr {
	return uintptr(PtrOf(o))
}

// PtrOf returns the interface pointer of o; nil objects and typed nil
// wrappers yield nil.
func PtrOf(o Object) unsafe.Pointer {
	if o == nil {
		return nil
	}
	if v := reflect.ValueOf(o); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return o.Ptr()
}
