package winrt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Method implements one vtable slot of a Go-implemented object. args are
// the raw call arguments after the interface pointer.
type Method func(args []uintptr) HResult

// TrackEvent is a reference-count lifecycle event
type TrackEvent uint8

const (
	TrackCreate TrackEvent = iota
	TrackAddRef
	TrackRelease
	TrackDestroy
	TrackAttach
)

func (e TrackEvent) String() string {
	switch e {
	case TrackCreate:
		return "create"
	case TrackAddRef:
		return "addref"
	case TrackRelease:
		return "release"
	case TrackDestroy:
		return "destroy"
	case TrackAttach:
		return "attach"
	}
	return "unknown"
}

// Tracker observes reference counting. refs is the count after the event
// for Go-implemented objects and zero for native ones.
type Tracker func(ptr uintptr, event TrackEvent, refs int32)

var tracker atomic.Pointer[Tracker]

// SetTracker installs a reference-count observer; nil removes it
func SetTracker(t Tracker) {
	if t == nil {
		tracker.Store(nil)
		return
	}
	tracker.Store(&t)
}

func track(p unsafe.Pointer, e TrackEvent, refs int32) {
	if t := tracker.Load(); t != nil {
		(*t)(uintptr(p), e, refs)
	}
}

// object is a COM-shaped Go allocation. vtbl must stay the first field.
type object struct {
	vtbl    unsafe.Pointer
	vtable  []uintptr
	iids    []GUID
	methods []Method
	refs    atomic.Int32
}

var objects = struct {
	m  map[uintptr]*object
	mu sync.RWMutex
}{m: make(map[uintptr]*object)}

func lookupObject(p uintptr) *object {
	objects.mu.RLock()
	defer objects.mu.RUnlock()
	return objects.m[p]
}

// LiveObjects returns the number of Go-implemented objects not yet destroyed
func LiveObjects() int {
	objects.mu.RLock()
	defer objects.mu.RUnlock()
	return len(objects.m)
}

// NewObject creates a Go-implemented object answering to iids. methods fill
// the vtable from slot 3 on. The returned reference is owned; the object is
// destroyed when its last reference is released.
func NewObject(iids []GUID, methods ...Method) *IUnknown {
	o := &object{
		iids:    append([]GUID(nil), iids...),
		methods: methods,
	}
	o.vtable = newVtable(len(methods))
	if len(o.vtable) > 0 {
		o.vtbl = unsafe.Pointer(&o.vtable[0])
	}
	o.refs.Store(1)

	p := unsafe.Pointer(o)
	objects.mu.Lock()
	objects.m[uintptr(p)] = o
	objects.mu.Unlock()
	track(p, TrackCreate, 1)

	u := &IUnknown{ptr: p, owned: true}
	return u
}

// NewInspectable creates a Go-implemented runtime object. methods fill the
// vtable from slot 6 on; the IInspectable slots report className.
func NewInspectable(className string, iids []GUID, methods ...Method) *IInspectable {
	all := make([]Method, 0, len(methods)+3)
	all = append(all,
		func(args []uintptr) HResult {
			if len(args) < 2 || args[0] == 0 || args[1] == 0 {
				return E_POINTER
			}
			Store[uint32](args[0], 0)
			Store[uintptr](args[1], 0)
			return S_OK
		},
		func(args []uintptr) HResult {
			if len(args) < 1 || args[0] == 0 {
				return E_POINTER
			}
			h, err := NewHString(className)
			if err != nil {
				return HResultOf(err)
			}
			Store(args[0], h)
			return S_OK
		},
		func(args []uintptr) HResult {
			if len(args) < 1 || args[0] == 0 {
				return E_POINTER
			}
			Store[int32](args[0], 0)
			return S_OK
		},
	)
	all = append(all, methods...)
	u := NewObject(append([]GUID{IInspectableIID}, iids...), all...)
	obj := &IInspectable{}
	obj.ptr = u.ptr
	obj.owned = true
	return obj
}

func (o *object) dispatch(slot int, args []uintptr) HResult {
	switch slot {
	case SlotQueryInterface:
		if len(args) < 2 || args[0] == 0 || args[1] == 0 {
			return E_POINTER
		}
		iid := Deref[GUID](args[0])
		if !o.answers(iid) {
			Store[uintptr](args[1], 0)
			return E_NOINTERFACE
		}
		o.addRef()
		Store(args[1], uintptr(unsafe.Pointer(o)))
		return S_OK
	case SlotAddRef:
		return HResult(o.addRef())
	case SlotRelease:
		return HResult(o.release())
	}
	i := slot - FirstUnknownSlot
	if i < 0 || i >= len(o.methods) || o.methods[i] == nil {
		return E_NOTIMPL
	}
	return callMethod(o.methods[i], args)
}

// callMethod keeps a panicking Go method from unwinding into a native caller
func callMethod(m Method, args []uintptr) (hr HResult) {
	defer func() {
		if r := recover(); r != nil {
			hr = ReportError(E_FAIL, fmt.Sprint("panic in Go-implemented method: ", r))
		}
	}()
	return m(args)
}

func (o *object) answers(iid GUID) bool {
	if iid == IUnknownIID || iid == IAgileObjectIID {
		return true
	}
	for _, g := range o.iids {
		if g == iid {
			return true
		}
	}
	return false
}

func (o *object) addRef() uint32 {
	n := o.refs.Add(1)
	track(unsafe.Pointer(o), TrackAddRef, n)
	return uint32(n)
}

func (o *object) release() uint32 {
	n := o.refs.Add(-1)
	p := unsafe.Pointer(o)
	track(p, TrackRelease, n)
	if n == 0 {
		objects.mu.Lock()
		delete(objects.m, uintptr(p))
		objects.mu.Unlock()
		track(p, TrackDestroy, 0)
	}
	if n < 0 {
		return 0
	}
	return uint32(n)
}
