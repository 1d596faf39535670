// Package mdbuild writes Windows Runtime metadata blobs.
//
// It produces bare metadata roots (BSJB) with the same heaps and tables the
// metadata package reads, so fixtures and tools can describe WinRT types in
// Go:
//
//	b := mdbuild.New("Demo")
//	b.Interface("Demo", "IGreeter", iid).
//		Method("Greet", mdbuild.String, mdbuild.In("name", mdbuild.String))
//	src, err := b.Load()
package mdbuild

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/metadata"
)

// Builder accumulates type definitions for one metadata source
type Builder struct {
	name  string
	types []*Type
}

// New creates a builder for a source with the given module name
func New(name string) *Builder {
	return &Builder{name: name}
}

// Name returns the module name
func (b *Builder) Name() string {
	return b.name
}

func (b *Builder) add(t *Type) *Type {
	b.types = append(b.types, t)
	return t
}

// Interface declares an interface with the given IID
func (b *Builder) Interface(namespace, name string, iid uuid.UUID) *Type {
	return b.add(&Type{namespace: namespace, name: name, flags: flagsInterface, attrs: []attr{guidAttr(iid)}})
}

// Class declares a runtime class
func (b *Builder) Class(namespace, name string) *Type {
	base := metadata.TypeRef{Namespace: "System", Name: "Object"}
	return b.add(&Type{namespace: namespace, name: name, flags: flagsClass, extends: &base})
}

// Struct declares a value type
func (b *Builder) Struct(namespace, name string) *Type {
	base := metadata.TypeRef{Namespace: "System", Name: "ValueType"}
	return b.add(&Type{namespace: namespace, name: name, flags: flagsValue, extends: &base})
}

// Enum declares an enum; flags enums have a UInt32 underlying type
func (b *Builder) Enum(namespace, name string, flags bool) *Type {
	base := metadata.TypeRef{Namespace: "System", Name: "Enum"}
	t := &Type{namespace: namespace, name: name, flags: flagsValue, extends: &base, underlying: Int32}
	if flags {
		t.underlying = UInt32
		t.attrs = append(t.attrs, newAttr(metadata.AttrFlags, nil))
	}
	t.fields = append(t.fields, &field{name: "value__", sig: t.underlying, flags: 0x0601})
	return b.add(t)
}

// Delegate declares a delegate whose Invoke has the given signature
func (b *Builder) Delegate(namespace, name string, iid uuid.UUID, ret metadata.TypeSig, params ...Param) *Type {
	base := metadata.TypeRef{Namespace: "System", Name: "MulticastDelegate"}
	t := &Type{namespace: namespace, name: name, flags: flagsClass, extends: &base, attrs: []attr{guidAttr(iid)}}
	t.methods = append(t.methods,
		&method{name: ".ctor", ret: Void, flags: 0x1886, params: []Param{
			In("object", Object),
			In("method", metadata.Primitive(metadata.ElementI)),
		}},
		&method{name: "Invoke", ret: ret, params: params, flags: 0x01C6},
	)
	return b.add(t)
}

// Contract declares an API contract (not projected)
func (b *Builder) Contract(namespace, name string) *Type {
	base := metadata.TypeRef{Namespace: "System", Name: "ValueType"}
	return b.add(&Type{
		namespace: namespace,
		name:      name,
		flags:     flagsValue,
		extends:   &base,
		attrs:     []attr{newAttr(metadata.AttrApiContract, nil)},
	})
}

// Load builds the blob and parses it
func (b *Builder) Load() (*metadata.Source, error) {
	blob, err := b.Build()
	if err != nil {
		return nil, err
	}
	return metadata.Load(b.name+".winmd", blob)
}

// Build serializes every declared type into a bare metadata root
func (b *Builder) Build() ([]byte, error) {
	e := newEncoder(b)
	if err := e.encode(); err != nil {
		return nil, fmt.Errorf("mdbuild %s: %w", b.name, err)
	}
	return e.finish()
}
