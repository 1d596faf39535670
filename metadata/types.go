package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies a type definition
type Kind uint8

const (
	KindClass Kind = iota
	KindInterface
	KindEnum
	KindStruct
	KindDelegate
	KindAttribute
	KindContract
)

var kindNames = [...]string{"class", "interface", "enum", "struct", "delegate", "attribute", "contract"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Projected reports whether definitions of this kind produce bindings
func (k Kind) Projected() bool {
	return k != KindAttribute && k != KindContract
}

// TypeAttributes flags used during classification
const (
	TypeInterface  uint32 = 0x00000020
	TypeAbstract   uint32 = 0x00000080
	TypeSealed     uint32 = 0x00000100
	TypeWindowsRT  uint32 = 0x00004000
	TypeVisibility uint32 = 0x00000007
	TypePublic     uint32 = 0x00000001
	TypeSequential uint32 = 0x00000008
)

// MethodAttributes flags
const (
	MethodStatic      uint16 = 0x0010
	MethodVirtual     uint16 = 0x0040
	MethodAbstract    uint16 = 0x0400
	MethodSpecialName uint16 = 0x0800
	MethodRTSpecial   uint16 = 0x1000
)

// ParamAttributes flags
const (
	ParamIn       uint16 = 0x0001
	ParamOut      uint16 = 0x0002
	ParamOptional uint16 = 0x0010
)

// FieldAttributes flags
const (
	FieldStatic  uint16 = 0x0010
	FieldLiteral uint16 = 0x0040
)

// MethodSemantics flags
const (
	SemanticsSetter   uint16 = 0x0001
	SemanticsGetter   uint16 = 0x0002
	SemanticsAddOn    uint16 = 0x0008
	SemanticsRemoveOn uint16 = 0x0010
)

// TypeRef names a type by namespace and name. Name carries the backtick arity
// suffix for generic definitions.
type TypeRef struct {
	Namespace string
	Name      string
	// Local is set when the reference was a TypeDef token of the same source
	Local bool
}

// FullName returns Namespace.Name
func (r TypeRef) FullName() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "." + r.Name
}

// Arity returns the generic parameter count encoded in the name suffix
func (r TypeRef) Arity() int {
	_, arity := SplitArity(r.Name)
	return arity
}

// IsZero reports whether r names nothing
func (r TypeRef) IsZero() bool {
	return r.Namespace == "" && r.Name == ""
}

// SplitArity splits "IVector`1" into ("IVector", 1)
func SplitArity(name string) (string, int) {
	i := strings.LastIndexByte(name, '`')
	if i < 0 {
		return name, 0
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 {
		return name, 0
	}
	return name[:i], n
}

// ParseTypeName splits "Windows.Foundation.Uri" into a TypeRef. Assembly
// qualification after a comma is dropped.
func ParseTypeName(full string) TypeRef {
	if i := strings.IndexByte(full, ','); i >= 0 {
		full = full[:i]
	}
	full = strings.TrimSpace(full)
	i := strings.LastIndexByte(full, '.')
	if i < 0 {
		return TypeRef{Name: full}
	}
	return TypeRef{Namespace: full[:i], Name: full[i+1:]}
}

// ParseTypeSig parses a type in its canonical string form, e.g.
// "Windows.Foundation.IReference`1<Int32>". Primitives use their metadata
// names. A template written without its arity suffix gets one from the
// argument count. Named types parse as class references.
func ParseTypeSig(s string) (TypeSig, error) {
	p := sigParser{s: s}
	sig, err := p.parse(0)
	if err != nil {
		return TypeSig{}, err
	}
	p.space()
	if p.i != len(p.s) {
		return TypeSig{}, fmt.Errorf("unexpected %q at offset %d in %q", p.s[p.i:], p.i, s)
	}
	return sig, nil
}

var primitiveByName = func() map[string]ElementType {
	m := make(map[string]ElementType, len(primitiveNames))
	for e, name := range primitiveNames {
		if e != ElementVoid {
			m[name] = e
		}
	}
	return m
}()

type sigParser struct {
	s string
	i int
}

func (p *sigParser) space() {
	for p.i < len(p.s) && p.s[p.i] == ' ' {
		p.i++
	}
}

func (p *sigParser) parse(depth int) (TypeSig, error) {
	if depth > maxSigDepth {
		return TypeSig{}, fmt.Errorf("type name %q nests too deeply", p.s)
	}
	p.space()
	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune("<>,", rune(p.s[p.i])) {
		p.i++
	}
	name := strings.TrimSpace(p.s[start:p.i])
	if name == "" {
		return TypeSig{}, fmt.Errorf("missing type name at offset %d in %q", start, p.s)
	}
	if p.i == len(p.s) || p.s[p.i] != '<' {
		if e, ok := primitiveByName[name]; ok {
			return Primitive(e), nil
		}
		return Named(ParseTypeName(name), false), nil
	}

	p.i++
	var args []TypeSig
	for {
		a, err := p.parse(depth + 1)
		if err != nil {
			return TypeSig{}, err
		}
		args = append(args, a)
		p.space()
		if p.i == len(p.s) {
			return TypeSig{}, fmt.Errorf("unterminated argument list in %q", p.s)
		}
		c := p.s[p.i]
		p.i++
		if c == '>' {
			break
		}
		if c != ',' {
			return TypeSig{}, fmt.Errorf("unexpected %q at offset %d in %q", c, p.i-1, p.s)
		}
	}
	ref := ParseTypeName(name)
	if _, n := SplitArity(ref.Name); n == 0 {
		ref.Name += "`" + strconv.Itoa(len(args))
	}
	return Instance(ref, args...), nil
}

// GenericParam is a generic parameter of a definition
type GenericParam struct {
	Name   string
	Number int
}

// ArrayCategory is the WinRT array passing convention of a parameter
type ArrayCategory uint8

const (
	ArrayNone    ArrayCategory = iota
	ArrayPass                  // in T[]
	ArrayFill                  // out T[] (caller allocated)
	ArrayReceive               // out T[] by reference (callee allocated)
)

func (a ArrayCategory) String() string {
	switch a {
	case ArrayPass:
		return "pass"
	case ArrayFill:
		return "fill"
	case ArrayReceive:
		return "receive"
	}
	return "none"
}

// Param is one method parameter. Sequence 0 is the return value.
type Param struct {
	Name     string
	Type     TypeSig
	Sequence int
	Flags    uint16
	Array    ArrayCategory
}

// In reports whether the parameter is an input
func (p *Param) In() bool {
	return !p.Out()
}

// Out reports whether the parameter is written by the callee
func (p *Param) Out() bool {
	if p.Flags&ParamOut != 0 {
		return true
	}
	return p.Type.Kind == SigByRef && p.Flags&ParamIn == 0
}

// Method is a method of an interface, class or delegate
type Method struct {
	Name       string
	Overload   string
	Params     []Param
	Return     *Param
	Attributes []Attribute
	Sig        MethodSig
	Flags      uint16
	ImplFlags  uint16
	// DefaultOverload is set by DefaultOverloadAttribute
	DefaultOverload bool
}

// ProjectedName returns the overload name when present, else the method name
func (m *Method) ProjectedName() string {
	if m.Overload != "" {
		return m.Overload
	}
	return m.Name
}

// Static reports whether the method is static
func (m *Method) Static() bool {
	return m.Flags&MethodStatic != 0
}

// Field is a field of a struct or enum
type Field struct {
	Name     string
	Type     TypeSig
	Constant *Constant
	Flags    uint16
}

// Constant is a literal field value
type Constant struct {
	Value uint64
	Type  ElementType
}

// Int64 returns the value as a signed integer honouring the element type
func (c *Constant) Int64() int64 {
	switch c.Type {
	case ElementI1:
		return int64(int8(c.Value))
	case ElementI2:
		return int64(int16(c.Value))
	case ElementI4:
		return int64(int32(c.Value))
	}
	return int64(c.Value)
}

// Property is a property of an interface or class
type Property struct {
	Name   string
	Type   TypeSig
	Getter string
	Setter string
}

// Event is an event of an interface or class
type Event struct {
	Name   string
	Type   TypeSig
	Add    string
	Remove string
}

// InterfaceImpl is an interface required by an interface or implemented by a class
type InterfaceImpl struct {
	Interface   TypeSig
	Attributes  []Attribute
	Default     bool
	Overridable bool
}

// Activation describes an [Activatable] entry. A zero Factory means the class
// is default-activatable with no arguments.
type Activation struct {
	Factory TypeRef
	Version uint32
}

// Composition describes a [Composable] entry
type Composition struct {
	Factory TypeRef
	Public  bool
	Version uint32
}

// TypeDef is an immutable type definition read from one source
type TypeDef struct {
	Extends       *TypeRef
	ExclusiveTo   *TypeRef
	Namespace     string
	Name          string
	Source        string
	Methods       []*Method
	Fields        []*Field
	Properties    []*Property
	Events        []*Event
	GenericParams []GenericParam
	Interfaces    []InterfaceImpl
	Attributes    []Attribute
	Activatable   []Activation
	Statics       []TypeRef
	Composable    []Composition
	Flags         uint32
	GUID          uuid.UUID
	Kind          Kind
	HasGUID       bool
	IsFlags       bool
}

// FullName returns Namespace.Name including the arity suffix
func (d *TypeDef) FullName() string {
	return d.Namespace + "." + d.Name
}

// Ref returns a reference naming d
func (d *TypeDef) Ref() TypeRef {
	return TypeRef{Namespace: d.Namespace, Name: d.Name, Local: true}
}

// Arity returns the number of generic parameters
func (d *TypeDef) Arity() int {
	return len(d.GenericParams)
}

// IsGeneric reports whether d is a generic template
func (d *TypeDef) IsGeneric() bool {
	return len(d.GenericParams) > 0
}

// DefaultInterface returns the interface marked [Default], if any
func (d *TypeDef) DefaultInterface() (TypeSig, bool) {
	for _, impl := range d.Interfaces {
		if impl.Default {
			return impl.Interface, true
		}
	}
	return TypeSig{}, false
}

// EnumUnderlying returns the element type of an enum's value__ field
func (d *TypeDef) EnumUnderlying() ElementType {
	for _, f := range d.Fields {
		if f.Flags&FieldStatic == 0 && f.Type.Kind == SigPrimitive {
			return f.Type.Prim
		}
	}
	return ElementI4
}

// Attribute returns the first attribute with the given full name
func (d *TypeDef) Attribute(fullName string) (*Attribute, bool) {
	return findAttribute(d.Attributes, fullName)
}

// Refs returns every type referenced by d: signature types of methods,
// fields, properties and events, required interfaces, the base type and the
// factory and static interfaces named by attributes. Generic parameters and
// primitives are omitted; generic instances contribute both the template and
// their arguments.
func (d *TypeDef) Refs() []TypeRef {
	seen := make(map[TypeRef]bool)
	var refs []TypeRef
	add := func(r TypeRef) {
		r.Local = false
		if r.IsZero() || seen[r] {
			return
		}
		seen[r] = true
		refs = append(refs, r)
	}
	var walk func(s *TypeSig)
	walk = func(s *TypeSig) {
		switch s.Kind {
		case SigClass, SigValueType:
			add(s.Ref)
		case SigGenericInst:
			add(s.Ref)
			for i := range s.Args {
				walk(&s.Args[i])
			}
		case SigArray, SigByRef:
			if s.Elem != nil {
				walk(s.Elem)
			}
		}
	}

	if d.Extends != nil {
		add(*d.Extends)
	}
	for i := range d.Interfaces {
		walk(&d.Interfaces[i].Interface)
	}
	for _, m := range d.Methods {
		if m.Return != nil {
			walk(&m.Return.Type)
		}
		for i := range m.Params {
			walk(&m.Params[i].Type)
		}
	}
	for _, f := range d.Fields {
		walk(&f.Type)
	}
	for _, p := range d.Properties {
		walk(&p.Type)
	}
	for _, e := range d.Events {
		walk(&e.Type)
	}
	for _, a := range d.Activatable {
		add(a.Factory)
	}
	for _, s := range d.Statics {
		add(s)
	}
	for _, c := range d.Composable {
		add(c.Factory)
	}
	return refs
}
