package synth

import (
	"github.com/dave/jennifer/jen"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/metadata"
)

const winrtPath = "github.com/wippyai/winrt-bindgen/winrt"

// abiKind is how a value crosses the native boundary
type abiKind uint8

const (
	abiBool abiKind = iota
	abiInt
	abiFloat32
	abiFloat64
	abiGUID
	abiString
	abiStruct
	abiObject
	abiArray
)

// typeInfo is a signature type as seen from one package
type typeInfo struct {
	sig  metadata.TypeSig
	goT  func() *jen.Statement
	elem *typeInfo
	// wrap names the Wrap function of a typed object wrapper; nil for plain
	// runtime objects.
	wrap func() *jen.Statement
	// iid yields the interface identifier of an object type, when known
	iid  func() *jen.Statement
	kind abiKind
	size uint32
	// unknown marks objects that derive from IUnknown only
	unknown bool
}

// goType returns a fresh copy of the Go type
func (t *typeInfo) goType() *jen.Statement {
	return t.goT()
}

// zero returns the zero value of the Go type
func (t *typeInfo) zero() jen.Code {
	switch t.kind {
	case abiBool:
		return jen.False()
	case abiInt, abiFloat32, abiFloat64:
		return jen.Lit(0)
	case abiString:
		return jen.Lit("")
	case abiGUID, abiStruct:
		return t.goType().Values()
	}
	return jen.Nil()
}

// blittable reports whether a slice of the Go type has the native element
// layout.
func (t *typeInfo) blittable() bool {
	switch t.kind {
	case abiBool, abiInt, abiFloat32, abiFloat64, abiGUID, abiStruct:
		return true
	}
	return false
}

// register reports whether a struct travels in one register. Other sizes
// are passed by pointer to a copy.
func (t *typeInfo) register() bool {
	switch t.size {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// attach wraps an owned pointer returned by a call
func (t *typeInfo) attach(p jen.Code) jen.Code {
	fn := "Attach"
	if t.unknown {
		fn = "AttachUnknown"
	}
	return t.wrapped(jen.Qual(winrtPath, fn).Call(p))
}

// borrow wraps a pointer received as a callback argument
func (t *typeInfo) borrow(raw jen.Code) jen.Code {
	fn := "Borrow"
	if t.unknown {
		fn = "BorrowUnknown"
	}
	return t.wrapped(jen.Qual(winrtPath, fn).Call(raw))
}

func (t *typeInfo) wrapped(obj jen.Code) jen.Code {
	if t.wrap == nil {
		return obj
	}
	return t.wrap().Call(obj)
}

func winrtType(name string) func() *jen.Statement {
	return func() *jen.Statement { return jen.Qual(winrtPath, name) }
}

func ptrTo(path, name string) func() *jen.Statement {
	return func() *jen.Statement { return jen.Op("*").Qual(path, name) }
}

func guidCall(s string) func() *jen.Statement {
	return func() *jen.Statement { return jen.Qual(winrtPath, "MustParseGUID").Call(jen.Lit(s)) }
}

var primitiveTypes = map[metadata.ElementType]struct {
	goT  func() *jen.Statement
	kind abiKind
}{
	metadata.ElementBoolean: {jen.Bool, abiBool},
	metadata.ElementChar:    {jen.Uint16, abiInt},
	metadata.ElementI1:      {jen.Int8, abiInt},
	metadata.ElementU1:      {jen.Uint8, abiInt},
	metadata.ElementI2:      {jen.Int16, abiInt},
	metadata.ElementU2:      {jen.Uint16, abiInt},
	metadata.ElementI4:      {jen.Int32, abiInt},
	metadata.ElementU4:      {jen.Uint32, abiInt},
	metadata.ElementI8:      {jen.Int64, abiInt},
	metadata.ElementU8:      {jen.Uint64, abiInt},
	metadata.ElementI:       {jen.Uintptr, abiInt},
	metadata.ElementU:       {jen.Uintptr, abiInt},
	metadata.ElementR4:      {jen.Float32, abiFloat32},
	metadata.ElementR8:      {jen.Float64, abiFloat64},
	metadata.ElementString:  {jen.String, abiString},
}

// typeOf maps a signature type to its Go form in the emitter's package
func (em *emitter) typeOf(s metadata.TypeSig) (*typeInfo, error) {
	s = s.Deref()
	switch s.Kind {
	case metadata.SigPrimitive:
		if s.Prim == metadata.ElementObject {
			return &typeInfo{sig: s, kind: abiObject, goT: func() *jen.Statement {
				return jen.Op("*").Qual(winrtPath, "IInspectable")
			}}, nil
		}
		if p, ok := primitiveTypes[s.Prim]; ok {
			return &typeInfo{sig: s, kind: p.kind, goT: p.goT}, nil
		}
	case metadata.SigArray:
		if s.Elem == nil || s.Elem.Kind == metadata.SigArray {
			break
		}
		elem, err := em.typeOf(*s.Elem)
		if err != nil {
			return nil, err
		}
		return &typeInfo{sig: s, kind: abiArray, elem: elem, goT: func() *jen.Statement {
			return jen.Index().Add(elem.goType())
		}}, nil
	case metadata.SigClass, metadata.SigValueType, metadata.SigGenericInst:
		switch s.Ref.FullName() {
		case "System.Guid":
			return &typeInfo{sig: s, kind: abiGUID, goT: winrtType("GUID")}, nil
		case "System.Object":
			return em.typeOf(metadata.Primitive(metadata.ElementObject))
		}
		e, ok := em.plan.lookup(s)
		if !ok {
			break
		}
		return em.named(s, e)
	}
	return nil, errors.Unsupported(errors.PhaseSynthesize, "type "+s.String())
}

func (em *emitter) named(s metadata.TypeSig, e *entry) (*typeInfo, error) {
	t := &typeInfo{sig: s}
	switch e.node.Kind() {
	case metadata.KindEnum:
		em.use(e.pkg)
		t.kind = abiInt
		t.goT = func() *jen.Statement { return jen.Qual(e.pkg.path, e.name) }
		return t, nil
	case metadata.KindStruct:
		info, err := em.layoutOf(e.node.Def)
		if err != nil {
			return nil, err
		}
		em.use(e.pkg)
		t.kind = abiStruct
		t.size = info.Size
		t.goT = func() *jen.Statement { return jen.Qual(e.pkg.path, e.name) }
		return t, nil
	}

	t.kind = abiObject
	t.unknown = e.node.Kind() == metadata.KindDelegate
	if em.plan.isDemoted(em.entry.pkg, e.pkg) {
		base := "IInspectable"
		if t.unknown {
			base = "IUnknown"
		}
		t.goT = ptrTo(winrtPath, base)
		if iid, ok := iidOf(e); ok {
			t.iid = guidCall(iid)
		}
		return t, nil
	}
	em.use(e.pkg)
	t.goT = ptrTo(e.pkg.path, e.name)
	t.wrap = func() *jen.Statement { return jen.Qual(e.pkg.path, "Wrap"+e.name) }
	if _, ok := iidOf(e); ok {
		t.iid = func() *jen.Statement { return jen.Qual(e.pkg.path, e.name+"IID") }
	}
	return t, nil
}

// iidOf returns the interface identifier of an interface, delegate or
// instance entry.
func iidOf(e *entry) (string, bool) {
	n := e.node
	switch {
	case n.Instance != nil:
		return n.Instance.IID.String(), true
	case n.Def.Kind == metadata.KindInterface || n.Def.Kind == metadata.KindDelegate:
		if n.Def.HasGUID {
			return n.Def.GUID.String(), true
		}
	}
	return "", false
}

// fieldType maps a struct field to its Go field type. Strings are raw
// handles and object references raw pointers, so the Go struct has the
// native layout.
func (em *emitter) fieldType(s metadata.TypeSig) (jen.Code, error) {
	switch s.Kind {
	case metadata.SigPrimitive:
		switch s.Prim {
		case metadata.ElementString:
			return jen.Qual(winrtPath, "HString"), nil
		case metadata.ElementObject:
			return jen.Qual("unsafe", "Pointer"), nil
		}
	case metadata.SigClass, metadata.SigGenericInst:
		if s.Ref.FullName() == "System.Guid" {
			return jen.Qual(winrtPath, "GUID"), nil
		}
		return jen.Qual("unsafe", "Pointer"), nil
	}
	t, err := em.typeOf(s)
	if err != nil {
		return nil, err
	}
	if t.kind == abiObject || t.kind == abiArray {
		return nil, errors.Unsupported(errors.PhaseSynthesize, "struct field of type "+s.String())
	}
	return t.goType(), nil
}
