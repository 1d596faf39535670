package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mdbinary "github.com/wippyai/winrt-bindgen/metadata/internal/binary"
)

// ElementType is an ECMA-335 signature element type (II.23.1.16)
type ElementType uint8

const (
	ElementEnd         ElementType = 0x00
	ElementVoid        ElementType = 0x01
	ElementBoolean     ElementType = 0x02
	ElementChar        ElementType = 0x03
	ElementI1          ElementType = 0x04
	ElementU1          ElementType = 0x05
	ElementI2          ElementType = 0x06
	ElementU2          ElementType = 0x07
	ElementI4          ElementType = 0x08
	ElementU4          ElementType = 0x09
	ElementI8          ElementType = 0x0a
	ElementU8          ElementType = 0x0b
	ElementR4          ElementType = 0x0c
	ElementR8          ElementType = 0x0d
	ElementString      ElementType = 0x0e
	ElementPtr         ElementType = 0x0f
	ElementByRef       ElementType = 0x10
	ElementValueType   ElementType = 0x11
	ElementClass       ElementType = 0x12
	ElementVar         ElementType = 0x13
	ElementArray       ElementType = 0x14
	ElementGenericInst ElementType = 0x15
	ElementTypedByRef  ElementType = 0x16
	ElementI           ElementType = 0x18
	ElementU           ElementType = 0x19
	ElementObject      ElementType = 0x1c
	ElementSZArray     ElementType = 0x1d
	ElementMVar        ElementType = 0x1e
	ElementCModReqd    ElementType = 0x1f
	ElementCModOpt     ElementType = 0x20
	ElementSentinel    ElementType = 0x41
	ElementPinned      ElementType = 0x45

	// custom attribute encodings
	ElementSystemType ElementType = 0x50
	ElementBoxed      ElementType = 0x51
	ElementEnum       ElementType = 0x55
)

var primitiveNames = map[ElementType]string{
	ElementVoid:    "Void",
	ElementBoolean: "Boolean",
	ElementChar:    "Char16",
	ElementI1:      "Int8",
	ElementU1:      "UInt8",
	ElementI2:      "Int16",
	ElementU2:      "UInt16",
	ElementI4:      "Int32",
	ElementU4:      "UInt32",
	ElementI8:      "Int64",
	ElementU8:      "UInt64",
	ElementR4:      "Single",
	ElementR8:      "Double",
	ElementString:  "String",
	ElementObject:  "Object",
	ElementI:       "IntPtr",
	ElementU:       "UIntPtr",
}

func (e ElementType) String() string {
	if name, ok := primitiveNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(0x%02x)", uint8(e))
}

// Signature calling convention bits
const (
	SigHasThis  = 0x20
	SigGeneric  = 0x10
	SigField    = 0x06
	SigProperty = 0x08
	SigGenInst  = 0x0a
)

// SigKind is the shape of a TypeSig node
type SigKind uint8

const (
	SigPrimitive SigKind = iota
	SigClass
	SigValueType
	SigVar
	SigMVar
	SigGenericInst
	SigArray
	SigByRef
)

// TypeSig is a type appearing in a signature. Trees bottom out in primitives,
// named references or generic parameters.
type TypeSig struct {
	Elem  *TypeSig // SigArray, SigByRef
	Ref   TypeRef  // SigClass, SigValueType, SigGenericInst (the template)
	Args  []TypeSig
	Index int // SigVar, SigMVar
	Kind  SigKind
	Prim  ElementType
	// ValueType is set for generic instances of value types
	ValueType bool
}

// Primitive builds a primitive TypeSig
func Primitive(e ElementType) TypeSig {
	return TypeSig{Kind: SigPrimitive, Prim: e}
}

// Named builds a class or value type TypeSig
func Named(ref TypeRef, valueType bool) TypeSig {
	if valueType {
		return TypeSig{Kind: SigValueType, Ref: ref}
	}
	return TypeSig{Kind: SigClass, Ref: ref}
}

// Instance builds a generic instance TypeSig
func Instance(template TypeRef, args ...TypeSig) TypeSig {
	return TypeSig{Kind: SigGenericInst, Ref: template, Args: args}
}

// Var builds a reference to generic parameter n of the enclosing type
func Var(n int) TypeSig {
	return TypeSig{Kind: SigVar, Index: n}
}

// ArrayOf builds a single-dimension array TypeSig
func ArrayOf(elem TypeSig) TypeSig {
	return TypeSig{Kind: SigArray, Elem: &elem}
}

// ByRef builds a by-reference TypeSig
func ByRef(elem TypeSig) TypeSig {
	return TypeSig{Kind: SigByRef, Elem: &elem}
}

// IsVoid reports whether s is the void type
func (s TypeSig) IsVoid() bool {
	return s.Kind == SigPrimitive && s.Prim == ElementVoid
}

// Deref strips a by-reference wrapper
func (s TypeSig) Deref() TypeSig {
	if s.Kind == SigByRef && s.Elem != nil {
		return *s.Elem
	}
	return s
}

// HasVars reports whether s mentions a generic parameter
func (s TypeSig) HasVars() bool {
	switch s.Kind {
	case SigVar, SigMVar:
		return true
	case SigGenericInst:
		for _, a := range s.Args {
			if a.HasVars() {
				return true
			}
		}
	case SigArray, SigByRef:
		return s.Elem != nil && s.Elem.HasVars()
	}
	return false
}

// Substitute replaces VAR n with args[n]
func (s TypeSig) Substitute(args []TypeSig) TypeSig {
	switch s.Kind {
	case SigVar:
		if s.Index < len(args) {
			return args[s.Index]
		}
	case SigGenericInst:
		out := s
		out.Args = make([]TypeSig, len(s.Args))
		for i, a := range s.Args {
			out.Args[i] = a.Substitute(args)
		}
		return out
	case SigArray, SigByRef:
		if s.Elem != nil {
			elem := s.Elem.Substitute(args)
			out := s
			out.Elem = &elem
			return out
		}
	}
	return s
}

// String returns the canonical form used in keys and diagnostics, e.g.
// "Windows.Foundation.Collections.IMap`2<String, Object>".
func (s TypeSig) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s TypeSig) write(b *strings.Builder) {
	switch s.Kind {
	case SigPrimitive:
		b.WriteString(s.Prim.String())
	case SigClass, SigValueType:
		b.WriteString(s.Ref.FullName())
	case SigVar:
		b.WriteString("!")
		b.WriteString(strconv.Itoa(s.Index))
	case SigMVar:
		b.WriteString("!!")
		b.WriteString(strconv.Itoa(s.Index))
	case SigGenericInst:
		b.WriteString(s.Ref.FullName())
		b.WriteByte('<')
		for i, a := range s.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		b.WriteByte('>')
	case SigArray:
		if s.Elem != nil {
			s.Elem.write(b)
		}
		b.WriteString("[]")
	case SigByRef:
		if s.Elem != nil {
			s.Elem.write(b)
		}
		b.WriteByte('&')
	}
}

// MethodSig is a decoded MethodDefSig or MethodRefSig
type MethodSig struct {
	Return       TypeSig
	Params       []TypeSig
	GenericCount int
	HasThis      bool
}

// typeResolver turns TypeDefOrRef coded values into names
type typeResolver interface {
	typeDefOrRef(table TableID, row uint32) (TypeSig, error)
}

// sigReader decodes signature blobs
type sigReader struct {
	r     *mdbinary.Reader
	res   typeResolver
	depth int
}

const maxSigDepth = 64

var errSigDepth = errors.New("signature nesting too deep")

func newSigReader(data []byte, res typeResolver) *sigReader {
	return &sigReader{r: mdbinary.NewReader(bytes.NewReader(data)), res: res}
}

func parseMethodSig(data []byte, res typeResolver) (MethodSig, error) {
	sr := newSigReader(data, res)
	var sig MethodSig

	conv, err := sr.r.ReadByte()
	if err != nil {
		return sig, err
	}
	sig.HasThis = conv&SigHasThis != 0
	if conv&SigGeneric != 0 {
		n, err := sr.r.ReadCompressed()
		if err != nil {
			return sig, err
		}
		sig.GenericCount = int(n)
	}
	count, err := sr.r.ReadCompressed()
	if err != nil {
		return sig, err
	}
	if int(count) > len(data) {
		return sig, fmt.Errorf("parameter count %d exceeds signature length", count)
	}
	if sig.Return, err = sr.typeSig(); err != nil {
		return sig, fmt.Errorf("return type: %w", err)
	}
	sig.Params = make([]TypeSig, 0, count)
	for i := 0; i < int(count); i++ {
		p, err := sr.typeSig()
		if err != nil {
			return sig, fmt.Errorf("parameter %d: %w", i, err)
		}
		sig.Params = append(sig.Params, p)
	}
	return sig, nil
}

func parseFieldSig(data []byte, res typeResolver) (TypeSig, error) {
	sr := newSigReader(data, res)
	conv, err := sr.r.ReadByte()
	if err != nil {
		return TypeSig{}, err
	}
	if conv&0x0f != SigField {
		return TypeSig{}, fmt.Errorf("not a field signature: 0x%02x", conv)
	}
	return sr.typeSig()
}

func parsePropertySig(data []byte, res typeResolver) (TypeSig, error) {
	sr := newSigReader(data, res)
	conv, err := sr.r.ReadByte()
	if err != nil {
		return TypeSig{}, err
	}
	if conv&0x0f != SigProperty {
		return TypeSig{}, fmt.Errorf("not a property signature: 0x%02x", conv)
	}
	if _, err := sr.r.ReadCompressed(); err != nil { // parameter count
		return TypeSig{}, err
	}
	return sr.typeSig()
}

func parseTypeSpec(data []byte, res typeResolver) (TypeSig, error) {
	return newSigReader(data, res).typeSig()
}

func (sr *sigReader) typeDefOrRefEncoded() (TypeSig, error) {
	v, err := sr.r.ReadCompressed()
	if err != nil {
		return TypeSig{}, err
	}
	table, row, ok := CodedTypeDefOrRef.Decode(v)
	if !ok {
		return TypeSig{}, fmt.Errorf("invalid TypeDefOrRef tag in 0x%x", v)
	}
	return sr.res.typeDefOrRef(table, row)
}

func (sr *sigReader) typeSig() (TypeSig, error) {
	sr.depth++
	defer func() { sr.depth-- }()
	if sr.depth > maxSigDepth {
		return TypeSig{}, errSigDepth
	}

	b, err := sr.r.ReadByte()
	if err != nil {
		return TypeSig{}, err
	}
	et := ElementType(b)
	switch et {
	case ElementCModReqd, ElementCModOpt:
		if _, err := sr.typeDefOrRefEncoded(); err != nil {
			return TypeSig{}, err
		}
		return sr.typeSig()
	case ElementVoid, ElementBoolean, ElementChar, ElementI1, ElementU1, ElementI2, ElementU2,
		ElementI4, ElementU4, ElementI8, ElementU8, ElementR4, ElementR8, ElementString,
		ElementObject, ElementI, ElementU:
		return Primitive(et), nil
	case ElementByRef:
		elem, err := sr.typeSig()
		if err != nil {
			return TypeSig{}, err
		}
		return ByRef(elem), nil
	case ElementSZArray:
		elem, err := sr.typeSig()
		if err != nil {
			return TypeSig{}, err
		}
		return ArrayOf(elem), nil
	case ElementClass, ElementValueType:
		s, err := sr.typeDefOrRefEncoded()
		if err != nil {
			return TypeSig{}, err
		}
		if s.Kind == SigClass && et == ElementValueType {
			s.Kind = SigValueType
		}
		return s, nil
	case ElementVar, ElementMVar:
		n, err := sr.r.ReadCompressed()
		if err != nil {
			return TypeSig{}, err
		}
		if et == ElementVar {
			return Var(int(n)), nil
		}
		return TypeSig{Kind: SigMVar, Index: int(n)}, nil
	case ElementGenericInst:
		kind, err := sr.r.ReadByte()
		if err != nil {
			return TypeSig{}, err
		}
		template, err := sr.typeDefOrRefEncoded()
		if err != nil {
			return TypeSig{}, err
		}
		count, err := sr.r.ReadCompressed()
		if err != nil {
			return TypeSig{}, err
		}
		if count == 0 || count > 32 {
			return TypeSig{}, fmt.Errorf("generic instance with %d arguments", count)
		}
		out := Instance(template.Ref)
		out.ValueType = ElementType(kind) == ElementValueType
		for i := 0; i < int(count); i++ {
			arg, err := sr.typeSig()
			if err != nil {
				return TypeSig{}, err
			}
			out.Args = append(out.Args, arg)
		}
		return out, nil
	}
	return TypeSig{}, fmt.Errorf("unsupported element type 0x%02x", b)
}
