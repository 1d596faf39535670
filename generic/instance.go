package generic

import (
	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/metadata"
)

// Arg is a fully resolved type argument
type Arg struct {
	// Def is nil for primitives and core library types
	Def *metadata.TypeDef
	// Instance is set when the argument is itself a generic instance
	Instance *Instance
	Sig      metadata.TypeSig
}

func (a Arg) String() string {
	return a.Sig.String()
}

// Instance is one concrete instantiation of a generic template. Instances are
// canonical: one pointer per (template, arguments) pair per Instantiator.
type Instance struct {
	Def        *metadata.TypeDef
	Args       []Arg
	Signature  string
	key        string
	methods    []*metadata.Method
	interfaces []metadata.InterfaceImpl
	properties []*metadata.Property
	events     []*metadata.Event
	IID        uuid.UUID
}

// Key returns the canonical name, e.g. "Windows.Foundation.IReference`1<Int32>"
func (i *Instance) Key() string {
	return i.key
}

func (i *Instance) String() string {
	return i.key
}

// ArgSigs returns the argument signatures in order
func (i *Instance) ArgSigs() []metadata.TypeSig {
	out := make([]metadata.TypeSig, len(i.Args))
	for n, a := range i.Args {
		out[n] = a.Sig
	}
	return out
}

// Sig returns the generic instance signature naming i
func (i *Instance) Sig() metadata.TypeSig {
	s := metadata.Instance(i.Def.Ref(), i.ArgSigs()...)
	s.Ref.Local = false
	s.ValueType = i.Def.Kind == metadata.KindStruct
	return s
}

// Methods returns the template's methods with every generic parameter
// replaced by the instance arguments.
func (i *Instance) Methods() []*metadata.Method {
	return i.methods
}

// Interfaces returns the required interfaces with arguments substituted
func (i *Instance) Interfaces() []metadata.InterfaceImpl {
	return i.interfaces
}

// Properties returns the substituted properties
func (i *Instance) Properties() []*metadata.Property {
	return i.properties
}

// Events returns the substituted events
func (i *Instance) Events() []*metadata.Event {
	return i.events
}

// Refs returns every type referenced by the substituted members
func (i *Instance) Refs() []metadata.TypeRef {
	shadow := *i.Def
	shadow.GenericParams = nil
	shadow.Methods = i.methods
	shadow.Interfaces = i.interfaces
	shadow.Properties = i.properties
	shadow.Events = i.events
	return shadow.Refs()
}

func (i *Instance) substitute() {
	args := i.ArgSigs()
	def := i.Def

	i.methods = make([]*metadata.Method, len(def.Methods))
	for n, m := range def.Methods {
		cp := *m
		cp.Params = make([]metadata.Param, len(m.Params))
		for k, p := range m.Params {
			p.Type = p.Type.Substitute(args)
			cp.Params[k] = p
		}
		if m.Return != nil {
			ret := *m.Return
			ret.Type = ret.Type.Substitute(args)
			cp.Return = &ret
		}
		i.methods[n] = &cp
	}

	i.interfaces = make([]metadata.InterfaceImpl, len(def.Interfaces))
	for n, impl := range def.Interfaces {
		impl.Interface = impl.Interface.Substitute(args)
		i.interfaces[n] = impl
	}

	i.properties = make([]*metadata.Property, len(def.Properties))
	for n, p := range def.Properties {
		cp := *p
		cp.Type = cp.Type.Substitute(args)
		i.properties[n] = &cp
	}

	i.events = make([]*metadata.Event, len(def.Events))
	for n, e := range def.Events {
		cp := *e
		cp.Type = cp.Type.Substitute(args)
		i.events[n] = &cp
	}
}
