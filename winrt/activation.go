package winrt

import (
	"sync"
	"unsafe"
)

// slotActivateInstance is IActivationFactory::ActivateInstance
const slotActivateInstance = FirstInspectableSlot

var factories = struct {
	m  map[string]*IInspectable
	mu sync.RWMutex
}{m: make(map[string]*IInspectable)}

// RegisterActivationFactory makes a Go-implemented factory answer
// activation of classID ahead of the native runtime. The registry keeps
// its own reference; a nil factory removes the entry.
func RegisterActivationFactory(classID string, factory Object) {
	factories.mu.Lock()
	defer factories.mu.Unlock()
	if old, ok := factories.m[classID]; ok {
		old.Release()
		delete(factories.m, classID)
	}
	if ref := AddRef(factory); ref != nil {
		factories.m[classID] = ref
	}
}

// GetActivationFactory returns an owned reference to the factory
// interface iid of the runtime class classID.
func GetActivationFactory(classID string, iid GUID) (*IInspectable, error) {
	factories.mu.RLock()
	if registered := factories.m[classID]; registered != nil {
		defer factories.mu.RUnlock()
		return QueryInterface(registered, iid)
	}
	factories.mu.RUnlock()
	return nativeFactory(classID, iid)
}

// ActivateInstance creates an instance of classID with its default
// constructor and returns an owned reference.
func ActivateInstance(classID string) (*IInspectable, error) {
	factory, err := GetActivationFactory(classID, IActivationFactoryIID)
	if err != nil {
		return nil, err
	}
	defer factory.Release()

	var out unsafe.Pointer
	hr := Invoke(factory.Ptr(), slotActivateInstance, uintptr(unsafe.Pointer(&out)))
	if hr != S_OK {
		return nil, NewCallError(hr)
	}
	if out == nil {
		return nil, &CallError{Code: E_POINTER, Message: "factory returned no instance of " + classID}
	}
	return Attach(out), nil
}

// Initialize prepares the calling thread for native calls
func Initialize() error {
	return initialize()
}

// Uninitialize undoes Initialize
func Uninitialize() {
	uninitialize()
}
