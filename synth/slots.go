package synth

import (
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/winrt"
)

// Slot is one vtable entry of a generated wrapper
type Slot struct {
	Method *metadata.Method
	// Name is the Go method name of the wrapper
	Name  string
	Index int
}

// SlotTable returns the vtable slots of an interface or delegate. Interface
// methods follow the six IUnknown and IInspectable slots in declaration
// order; a delegate has its Invoke method after the three IUnknown slots.
// Other kinds have no slots.
func SlotTable(def *metadata.TypeDef) []Slot {
	switch def.Kind {
	case metadata.KindInterface:
		names := methodNames(def.Methods)
		slots := make([]Slot, len(def.Methods))
		for i, m := range def.Methods {
			slots[i] = Slot{Method: m, Name: names[i], Index: winrt.FirstInspectableSlot + i}
		}
		return slots
	case metadata.KindDelegate:
		if m := invokeMethod(def.Methods); m != nil {
			return []Slot{{Method: m, Name: "Invoke", Index: winrt.FirstUnknownSlot}}
		}
	}
	return nil
}

// invokeMethod returns the Invoke method of a delegate
func invokeMethod(methods []*metadata.Method) *metadata.Method {
	for _, m := range methods {
		if m.Name == "Invoke" {
			return m
		}
	}
	return nil
}
