package mdbuild

import (
	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/metadata"
)

// Param declares a method parameter
type Param struct {
	Type metadata.TypeSig
	Name string
	Out  bool
}

// In declares an input parameter
func In(name string, sig metadata.TypeSig) Param {
	return Param{Name: name, Type: sig}
}

// Out declares an output parameter. Scalars are passed by reference.
func Out(name string, sig metadata.TypeSig) Param {
	return Param{Name: name, Type: sig, Out: true}
}

// Ref names a reference type, e.g. Ref("Windows.Foundation.IClosable")
func Ref(full string) metadata.TypeSig {
	return metadata.Named(metadata.ParseTypeName(full), false)
}

// ValueRef names a value type (struct or enum)
func ValueRef(full string) metadata.TypeSig {
	return metadata.Named(metadata.ParseTypeName(full), true)
}

// Generic instantiates the generic template named full
func Generic(full string, args ...metadata.TypeSig) metadata.TypeSig {
	return metadata.Instance(metadata.ParseTypeName(full), args...)
}

// Common primitive signatures
var (
	Void    = metadata.Primitive(metadata.ElementVoid)
	Bool    = metadata.Primitive(metadata.ElementBoolean)
	Char16  = metadata.Primitive(metadata.ElementChar)
	Int8    = metadata.Primitive(metadata.ElementI1)
	UInt8   = metadata.Primitive(metadata.ElementU1)
	Int16   = metadata.Primitive(metadata.ElementI2)
	UInt16  = metadata.Primitive(metadata.ElementU2)
	Int32   = metadata.Primitive(metadata.ElementI4)
	UInt32  = metadata.Primitive(metadata.ElementU4)
	Int64   = metadata.Primitive(metadata.ElementI8)
	UInt64  = metadata.Primitive(metadata.ElementU8)
	Float32 = metadata.Primitive(metadata.ElementR4)
	Float64 = metadata.Primitive(metadata.ElementR8)
	String  = metadata.Primitive(metadata.ElementString)
	Object  = metadata.Primitive(metadata.ElementObject)
	Guid    = ValueRef("System.Guid")
)

type method struct {
	name   string
	ret    metadata.TypeSig
	params []Param
	attrs  []attr
	flags  uint16
}

type field struct {
	name     string
	sig      metadata.TypeSig
	constant *int64
	flags    uint16
}

type impl struct {
	iface metadata.TypeSig
	attrs []attr
}

type property struct {
	name   string
	sig    metadata.TypeSig
	getter int
	setter int
}

type event struct {
	name    string
	handler metadata.TypeSig
	add     int
	remove  int
}

// attr is a custom attribute with its constructor parameter types
type attr struct {
	typ    metadata.TypeRef
	params []metadata.TypeSig
	args   []any
}

// Type is a type definition under construction
type Type struct {
	extends    *metadata.TypeRef
	namespace  string
	name       string
	generics   []string
	methods    []*method
	fields     []*field
	impls      []impl
	props      []*property
	events     []*event
	attrs      []attr
	underlying metadata.TypeSig
	flags      uint32
}

const (
	flagsInterface = metadata.TypeInterface | metadata.TypeAbstract | metadata.TypePublic | metadata.TypeWindowsRT
	flagsClass     = metadata.TypePublic | metadata.TypeSealed | metadata.TypeWindowsRT
	flagsValue     = metadata.TypePublic | metadata.TypeSealed | metadata.TypeWindowsRT | metadata.TypeSequential

	methodAbstract = metadata.MethodAbstract | metadata.MethodVirtual | 0x0006 | 0x0100 // public, newslot
	methodSpecial  = metadata.MethodSpecialName
)

var (
	systemType        = metadata.TypeRef{Namespace: "System", Name: "Type"}
	compositionType   = metadata.TypeRef{Namespace: "Windows.Foundation.Metadata", Name: "CompositionType"}
	registrationToken = ValueRef("Windows.Foundation.EventRegistrationToken")
)

func newAttr(full string, params []metadata.TypeSig, args ...any) attr {
	return attr{typ: metadata.ParseTypeName(full), params: params, args: args}
}

func guidAttr(g uuid.UUID) attr {
	u8 := metadata.Primitive(metadata.ElementU1)
	params := []metadata.TypeSig{
		metadata.Primitive(metadata.ElementU4),
		metadata.Primitive(metadata.ElementU2),
		metadata.Primitive(metadata.ElementU2),
		u8, u8, u8, u8, u8, u8, u8, u8,
	}
	args := []any{
		uint32(g[0])<<24 | uint32(g[1])<<16 | uint32(g[2])<<8 | uint32(g[3]),
		uint16(g[4])<<8 | uint16(g[5]),
		uint16(g[6])<<8 | uint16(g[7]),
	}
	for _, b := range g[8:] {
		args = append(args, b)
	}
	return newAttr(metadata.AttrGuid, params, args...)
}

func typeArgAttr(full, target string, version bool) attr {
	params := []metadata.TypeSig{metadata.Named(systemType, false)}
	args := []any{metadata.ParseTypeName(target)}
	if version {
		params = append(params, metadata.Primitive(metadata.ElementU4))
		args = append(args, uint32(1))
	}
	return newAttr(full, params, args...)
}

// Generic declares the generic parameters of t. The name should carry the
// matching backtick suffix.
func (t *Type) Generic(params ...string) *Type {
	t.generics = append(t.generics, params...)
	return t
}

// Method appends an instance method
func (t *Type) Method(name string, ret metadata.TypeSig, params ...Param) *Type {
	flags := uint16(0x0006)
	if t.flags&metadata.TypeInterface != 0 {
		flags = methodAbstract
	}
	t.methods = append(t.methods, &method{name: name, ret: ret, params: params, flags: flags})
	return t
}

// StaticMethod appends a static method
func (t *Type) StaticMethod(name string, ret metadata.TypeSig, params ...Param) *Type {
	t.methods = append(t.methods, &method{name: name, ret: ret, params: params, flags: 0x0006 | metadata.MethodStatic})
	return t
}

// Overload marks the most recently added method with [Overload(name)]
func (t *Type) Overload(name string) *Type {
	if m := t.last(); m != nil {
		m.attrs = append(m.attrs, newAttr(metadata.AttrOverload, []metadata.TypeSig{metadata.Primitive(metadata.ElementString)}, name))
	}
	return t
}

// DefaultOverload marks the most recently added method with [DefaultOverload]
func (t *Type) DefaultOverload() *Type {
	if m := t.last(); m != nil {
		m.attrs = append(m.attrs, newAttr(metadata.AttrDefaultOverload, nil))
	}
	return t
}

func (t *Type) last() *method {
	if len(t.methods) == 0 {
		return nil
	}
	return t.methods[len(t.methods)-1]
}

// Property appends a property with a getter and, when writable, a setter
func (t *Type) Property(name string, sig metadata.TypeSig, writable bool) *Type {
	p := &property{name: name, sig: sig, getter: len(t.methods), setter: -1}
	t.Method("get_"+name, sig)
	t.last().flags |= methodSpecial
	if writable {
		p.setter = len(t.methods)
		t.Method("put_"+name, Void, In("value", sig))
		t.last().flags |= methodSpecial
	}
	t.props = append(t.props, p)
	return t
}

// Event appends an event with add and remove accessors
func (t *Type) Event(name string, handler metadata.TypeSig) *Type {
	e := &event{name: name, handler: handler, add: len(t.methods)}
	t.Method("add_"+name, registrationToken, In("handler", handler))
	t.last().flags |= methodSpecial
	e.remove = len(t.methods)
	t.Method("remove_"+name, Void, In("token", registrationToken))
	t.last().flags |= methodSpecial
	t.events = append(t.events, e)
	return t
}

// Field appends an instance field
func (t *Type) Field(name string, sig metadata.TypeSig) *Type {
	t.fields = append(t.fields, &field{name: name, sig: sig, flags: 0x0006})
	return t
}

// Value appends an enum member
func (t *Type) Value(name string, v int64) *Type {
	self := metadata.Named(metadata.TypeRef{Namespace: t.namespace, Name: t.name}, true)
	t.fields = append(t.fields, &field{name: name, sig: self, constant: &v, flags: 0x0006 | metadata.FieldStatic | metadata.FieldLiteral | 0x8000})
	return t
}

// Implements adds a required or implemented interface
func (t *Type) Implements(iface metadata.TypeSig) *Type {
	t.impls = append(t.impls, impl{iface: iface})
	return t
}

// ImplementsDefault adds the [Default] interface of a class
func (t *Type) ImplementsDefault(iface metadata.TypeSig) *Type {
	t.impls = append(t.impls, impl{iface: iface, attrs: []attr{newAttr(metadata.AttrDefault, nil)}})
	return t
}

// Activatable adds [Activatable]; an empty factory means default activation
func (t *Type) Activatable(factory string) *Type {
	if factory == "" {
		t.attrs = append(t.attrs, newAttr(metadata.AttrActivatable, []metadata.TypeSig{metadata.Primitive(metadata.ElementU4)}, uint32(1)))
		return t
	}
	t.attrs = append(t.attrs, typeArgAttr(metadata.AttrActivatable, factory, true))
	return t
}

// Static adds [Static(iface)]
func (t *Type) Static(iface string) *Type {
	t.attrs = append(t.attrs, typeArgAttr(metadata.AttrStatic, iface, true))
	return t
}

// Composable adds [Composable(factory)]
func (t *Type) Composable(factory string, public bool) *Type {
	kind := int32(1)
	if public {
		kind = 2
	}
	params := []metadata.TypeSig{
		metadata.Named(systemType, false),
		metadata.Named(compositionType, true),
		metadata.Primitive(metadata.ElementU4),
	}
	t.attrs = append(t.attrs, newAttr(metadata.AttrComposable, params, metadata.ParseTypeName(factory), kind, uint32(1)))
	return t
}

// ExclusiveTo adds [ExclusiveTo(class)]
func (t *Type) ExclusiveTo(class string) *Type {
	t.attrs = append(t.attrs, typeArgAttr(metadata.AttrExclusiveTo, class, false))
	return t
}
