package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	mdbinary "github.com/wippyai/winrt-bindgen/metadata/internal/binary"
)

// Well-known attribute names
const (
	AttrGuid            = "Windows.Foundation.Metadata.GuidAttribute"
	AttrDefault         = "Windows.Foundation.Metadata.DefaultAttribute"
	AttrExclusiveTo     = "Windows.Foundation.Metadata.ExclusiveToAttribute"
	AttrActivatable     = "Windows.Foundation.Metadata.ActivatableAttribute"
	AttrStatic          = "Windows.Foundation.Metadata.StaticAttribute"
	AttrComposable      = "Windows.Foundation.Metadata.ComposableAttribute"
	AttrOverload        = "Windows.Foundation.Metadata.OverloadAttribute"
	AttrDefaultOverload = "Windows.Foundation.Metadata.DefaultOverloadAttribute"
	AttrOverridable     = "Windows.Foundation.Metadata.OverridableAttribute"
	AttrApiContract     = "Windows.Foundation.Metadata.ApiContractAttribute"
	AttrFlags           = "System.FlagsAttribute"
)

// composable visibility values of Windows.Foundation.Metadata.CompositionType
const compositionPublic = 2

// Attribute is a decoded custom attribute. Fixed argument values are bool,
// the sized integer types, float32, float64, string or TypeRef (for
// System.Type arguments). Enum arguments decode as int32.
type Attribute struct {
	Type  TypeRef
	Args  []any
	Named []NamedArg
}

// NamedArg is a named field or property argument
type NamedArg struct {
	Value    any
	Name     string
	Property bool
}

// FullName returns the attribute type's full name
func (a *Attribute) FullName() string {
	return a.Type.FullName()
}

// TypeArg returns fixed argument i as a TypeRef
func (a *Attribute) TypeArg(i int) (TypeRef, bool) {
	if i >= len(a.Args) {
		return TypeRef{}, false
	}
	t, ok := a.Args[i].(TypeRef)
	return t, ok
}

// Uint32Arg returns fixed argument i as a uint32
func (a *Attribute) Uint32Arg(i int) (uint32, bool) {
	if i >= len(a.Args) {
		return 0, false
	}
	switch v := a.Args[i].(type) {
	case uint32:
		return v, true
	case int32:
		return uint32(v), true
	}
	return 0, false
}

// StringArg returns fixed argument i as a string
func (a *Attribute) StringArg(i int) (string, bool) {
	if i >= len(a.Args) {
		return "", false
	}
	s, ok := a.Args[i].(string)
	return s, ok
}

func findAttribute(attrs []Attribute, fullName string) (*Attribute, bool) {
	for i := range attrs {
		if attrs[i].FullName() == fullName {
			return &attrs[i], true
		}
	}
	return nil, false
}

// HasAttribute reports whether attrs contains fullName
func HasAttribute(attrs []Attribute, fullName string) bool {
	_, ok := findAttribute(attrs, fullName)
	return ok
}

var systemType = TypeRef{Namespace: "System", Name: "Type"}

// decodeAttribute decodes a custom attribute value blob against the
// parameter types of its constructor.
func decodeAttribute(attrType TypeRef, ctor MethodSig, value []byte) (Attribute, error) {
	attr := Attribute{Type: attrType}
	if len(value) == 0 {
		return attr, nil
	}
	r := mdbinary.NewReader(bytes.NewReader(value))

	prolog, err := r.ReadU16LE()
	if err != nil {
		return attr, err
	}
	if prolog != 0x0001 {
		return attr, fmt.Errorf("bad custom attribute prolog 0x%04x", prolog)
	}

	for i, p := range ctor.Params {
		v, err := readFixedArg(r, p)
		if err != nil {
			return attr, fmt.Errorf("argument %d: %w", i, err)
		}
		attr.Args = append(attr.Args, v)
	}

	if r.Len() == 0 {
		return attr, nil
	}
	count, err := r.ReadU16LE()
	if err != nil {
		return attr, err
	}
	for i := 0; i < int(count); i++ {
		kind, err := r.ReadByte()
		if err != nil {
			return attr, err
		}
		if kind != 0x53 && kind != 0x54 {
			return attr, fmt.Errorf("named argument %d: bad kind 0x%02x", i, kind)
		}
		et, err := r.ReadByte()
		if err != nil {
			return attr, err
		}
		sig, err := namedArgType(r, ElementType(et))
		if err != nil {
			return attr, fmt.Errorf("named argument %d: %w", i, err)
		}
		name, err := readSerString(r)
		if err != nil {
			return attr, err
		}
		v, err := readFixedArg(r, sig)
		if err != nil {
			return attr, fmt.Errorf("named argument %s: %w", name, err)
		}
		attr.Named = append(attr.Named, NamedArg{Name: name, Value: v, Property: kind == 0x54})
	}
	return attr, nil
}

// namedArgType maps a FieldOrPropType encoding onto a TypeSig
func namedArgType(r *mdbinary.Reader, et ElementType) (TypeSig, error) {
	switch et {
	case ElementSystemType:
		return Named(systemType, false), nil
	case ElementEnum:
		name, err := readSerString(r)
		if err != nil {
			return TypeSig{}, err
		}
		return Named(ParseTypeName(name), true), nil
	case ElementSZArray:
		b, err := r.ReadByte()
		if err != nil {
			return TypeSig{}, err
		}
		elem, err := namedArgType(r, ElementType(b))
		if err != nil {
			return TypeSig{}, err
		}
		return ArrayOf(elem), nil
	case ElementBoxed:
		return TypeSig{}, errors.New("boxed named arguments are not supported")
	}
	return Primitive(et), nil
}

func readFixedArg(r *mdbinary.Reader, sig TypeSig) (any, error) {
	switch sig.Kind {
	case SigPrimitive:
		return readPrimitive(r, sig.Prim)
	case SigClass:
		if sig.Ref == systemType {
			s, err := readSerString(r)
			if err != nil {
				return nil, err
			}
			return ParseTypeName(s), nil
		}
		return nil, fmt.Errorf("unsupported class argument %s", sig.Ref.FullName())
	case SigValueType:
		v, err := r.ReadU32LE()
		return int32(v), err
	case SigArray:
		n, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		if n == math.MaxUint32 {
			return []any(nil), nil
		}
		if int(n) > r.Len() {
			return nil, fmt.Errorf("array of %d elements exceeds blob", n)
		}
		out := make([]any, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := readFixedArg(r, *sig.Elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported argument type %s", sig)
}

func readPrimitive(r *mdbinary.Reader, et ElementType) (any, error) {
	switch et {
	case ElementBoolean:
		b, err := r.ReadByte()
		return b != 0, err
	case ElementI1:
		b, err := r.ReadByte()
		return int8(b), err
	case ElementU1:
		return r.ReadByte()
	case ElementChar:
		v, err := r.ReadU16LE()
		return v, err
	case ElementI2:
		v, err := r.ReadU16LE()
		return int16(v), err
	case ElementU2:
		return r.ReadU16LE()
	case ElementI4:
		v, err := r.ReadU32LE()
		return int32(v), err
	case ElementU4:
		return r.ReadU32LE()
	case ElementI8:
		v, err := r.ReadU64LE()
		return int64(v), err
	case ElementU8:
		return r.ReadU64LE()
	case ElementR4:
		v, err := r.ReadU32LE()
		return math.Float32frombits(v), err
	case ElementR8:
		v, err := r.ReadU64LE()
		return math.Float64frombits(v), err
	case ElementString:
		return readSerString(r)
	}
	return nil, fmt.Errorf("unsupported primitive %s", et)
}

// readSerString reads a SerString; 0xFF encodes a null string.
func readSerString(r *mdbinary.Reader) (string, error) {
	pos := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	if b == 0xFF {
		return "", nil
	}
	if err := r.Reset(pos); err != nil {
		return "", err
	}
	n, err := r.ReadCompressed()
	if err != nil {
		return "", err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// guidFromArgs assembles the (uint32, uint16, uint16, 8 x uint8) arguments of GuidAttribute
func guidFromArgs(args []any) (uuid.UUID, bool) {
	var g uuid.UUID
	if len(args) != 11 {
		return g, false
	}
	d1, ok1 := args[0].(uint32)
	d2, ok2 := args[1].(uint16)
	d3, ok3 := args[2].(uint16)
	if !ok1 || !ok2 || !ok3 {
		return g, false
	}
	g[0], g[1], g[2], g[3] = byte(d1>>24), byte(d1>>16), byte(d1>>8), byte(d1)
	g[4], g[5] = byte(d2>>8), byte(d2)
	g[6], g[7] = byte(d3>>8), byte(d3)
	for i := 0; i < 8; i++ {
		b, ok := args[3+i].(uint8)
		if !ok {
			return g, false
		}
		g[8+i] = b
	}
	return g, true
}

// applyAttributes derives the typed attribute fields of d
func applyAttributes(d *TypeDef) {
	for i := range d.Attributes {
		a := &d.Attributes[i]
		switch a.FullName() {
		case AttrGuid:
			if g, ok := guidFromArgs(a.Args); ok {
				d.GUID = g
				d.HasGUID = true
			}
		case AttrExclusiveTo:
			if t, ok := a.TypeArg(0); ok {
				d.ExclusiveTo = &t
			}
		case AttrActivatable:
			act := Activation{}
			if t, ok := a.TypeArg(0); ok {
				act.Factory = t
				act.Version, _ = a.Uint32Arg(1)
			} else {
				act.Version, _ = a.Uint32Arg(0)
			}
			d.Activatable = append(d.Activatable, act)
		case AttrStatic:
			if t, ok := a.TypeArg(0); ok {
				d.Statics = append(d.Statics, t)
			}
		case AttrComposable:
			if t, ok := a.TypeArg(0); ok {
				comp := Composition{Factory: t}
				if kind, ok := a.Uint32Arg(1); ok {
					comp.Public = kind == compositionPublic
				}
				comp.Version, _ = a.Uint32Arg(2)
				d.Composable = append(d.Composable, comp)
			}
		case AttrFlags:
			d.IsFlags = true
		}
	}
}

// applyMethodAttributes derives overload information of m
func applyMethodAttributes(m *Method) {
	if a, ok := findAttribute(m.Attributes, AttrOverload); ok {
		m.Overload, _ = a.StringArg(0)
	}
	m.DefaultOverload = HasAttribute(m.Attributes, AttrDefaultOverload)
}
