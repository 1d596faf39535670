package winrt

// NewDelegate creates a Go-implemented delegate answering to iid whose
// Invoke slot runs invoke. The returned reference is owned.
func NewDelegate(iid GUID, invoke Method) *IUnknown {
	return NewObject([]GUID{iid}, invoke)
}

// InvokeDelegate calls the Invoke slot of a delegate
//
//go:uintptrescapes
func InvokeDelegate(d Object, args ...uintptr) error {
	p := PtrOf(d)
	if p == nil {
		return &CallError{Code: E_POINTER, Message: "invoke of a nil delegate"}
	}
	return Check(Invoke(p, FirstUnknownSlot, args...))
}
