package metadata

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/wippyai/winrt-bindgen/errors"
)

// Source is an immutable, parsed metadata blob. It is safe for concurrent use.
type Source struct {
	byName      map[string]*TypeDef
	byBase      map[string][]*TypeDef
	byNamespace map[string][]*TypeDef
	Name        string
	Path        string
	Version     string
	types       []*TypeDef
	namespaces  []string
	Digest      uint64
}

// LoadFile reads and parses the metadata file at path
func LoadFile(path string) (*Source, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Source(path).
			Cause(err).
			Detail("cannot read metadata file").
			Build()
	}
	src, err := Load(filepath.Base(path), blob)
	if err != nil {
		return nil, err
	}
	src.Path = path
	return src, nil
}

// Load parses blob, which is either a PE image carrying a CLI header or a bare
// metadata root. Every cross-table reference is validated before Load returns.
func Load(name string, blob []byte) (*Source, error) {
	md, err := locateRoot(blob)
	if err != nil {
		return nil, errors.Malformed(name, "cannot locate metadata root", err)
	}
	rt, err := parseRoot(md)
	if err != nil {
		return nil, errors.Malformed(name, "invalid metadata root", err)
	}

	h := &heaps{
		strings: rt.streams["#Strings"],
		blobs:   rt.streams["#Blob"],
		guids:   rt.streams["#GUID"],
	}
	tstream, _ := rt.tableStream()
	ts, err := decodeTables(tstream, h)
	if err != nil {
		return nil, errors.Malformed(name, "invalid table stream", err)
	}

	b := &builder{name: name, h: h, ts: ts}
	src, err := b.build()
	if err != nil {
		return nil, errors.Malformed(name, "invalid type definitions", err)
	}
	src.Version = rt.version
	src.Digest = xxh3.Hash(blob)
	return src, nil
}

// LookupType returns the definition named namespace.name. The name may omit
// the backtick arity suffix when only one definition matches.
func (s *Source) LookupType(namespace, name string) (*TypeDef, bool) {
	full := namespace + "." + name
	if d, ok := s.byName[full]; ok {
		return d, true
	}
	if strings.IndexByte(name, '`') >= 0 {
		return nil, false
	}
	if cands := s.byBase[full]; len(cands) == 1 {
		return cands[0], true
	}
	return nil, false
}

// EnumerateNamespace returns the definitions of namespace in declaration order
func (s *Source) EnumerateNamespace(namespace string) []*TypeDef {
	defs := s.byNamespace[namespace]
	out := make([]*TypeDef, len(defs))
	copy(out, defs)
	return out
}

// Namespaces returns the sorted namespaces defined by the source
func (s *Source) Namespaces() []string {
	out := make([]string, len(s.namespaces))
	copy(out, s.namespaces)
	return out
}

// Types returns every definition in declaration order
func (s *Source) Types() []*TypeDef {
	out := make([]*TypeDef, len(s.types))
	copy(out, s.types)
	return out
}

type rowKey struct {
	table TableID
	row   uint32
}

// builder assembles TypeDefs from validated tables
type builder struct {
	h           *heaps
	ts          *tableSet
	attrs       map[rowKey][]Attribute
	accessors   map[rowKey][]uint32
	constants   map[uint32]uint32
	nested      map[uint32]uint32
	methodOwner []uint32
	name        string
	specDepth   int
}

const maxSpecDepth = 16

func (b *builder) str(t TableID, row uint32, col int) string {
	return b.h.str(b.ts.tables[t].get(row, col))
}

func (b *builder) blob(t TableID, row uint32, col int) []byte {
	return b.h.blob(b.ts.tables[t].get(row, col))
}

func (b *builder) cell(t TableID, row uint32, col int) uint32 {
	return b.ts.tables[t].get(row, col)
}

// typeDefOrRef implements typeResolver
func (b *builder) typeDefOrRef(table TableID, row uint32) (TypeSig, error) {
	if row == 0 || row > b.ts.rows(table) {
		return TypeSig{}, fmt.Errorf("%s row %d out of range", table, row)
	}
	switch table {
	case TableTypeDef:
		return Named(b.typeDefName(row), false), nil
	case TableTypeRef:
		ref, err := b.typeRefName(row, 0)
		if err != nil {
			return TypeSig{}, err
		}
		return Named(ref, false), nil
	case TableTypeSpec:
		b.specDepth++
		defer func() { b.specDepth-- }()
		if b.specDepth > maxSpecDepth {
			return TypeSig{}, fmt.Errorf("TypeSpec row %d nests too deeply", row)
		}
		return parseTypeSpec(b.blob(TableTypeSpec, row, 0), b)
	}
	return TypeSig{}, fmt.Errorf("%s is not a type table", table)
}

func (b *builder) typeDefName(row uint32) TypeRef {
	ref := TypeRef{
		Namespace: b.str(TableTypeDef, row, 2),
		Name:      b.str(TableTypeDef, row, 1),
		Local:     true,
	}
	if outer, ok := b.nested[row]; ok && ref.Namespace == "" {
		ref.Namespace = b.str(TableTypeDef, outer, 2) + "." + b.str(TableTypeDef, outer, 1)
	}
	return ref
}

func (b *builder) typeRefName(row uint32, depth int) (TypeRef, error) {
	if depth > maxSpecDepth {
		return TypeRef{}, fmt.Errorf("TypeRef row %d nests too deeply", row)
	}
	ref := TypeRef{
		Namespace: b.str(TableTypeRef, row, 2),
		Name:      b.str(TableTypeRef, row, 1),
	}
	if scope := b.cell(TableTypeRef, row, 0); scope != 0 {
		if t, outer, _ := CodedResolutionScope.Decode(scope); t == TableTypeRef && ref.Namespace == "" {
			enclosing, err := b.typeRefName(outer, depth+1)
			if err != nil {
				return TypeRef{}, err
			}
			ref.Namespace = enclosing.FullName()
		}
	}
	return ref, nil
}

func (b *builder) build() (*Source, error) {
	b.indexNested()
	b.indexMembers()
	b.indexMethodOwners()
	if err := b.indexAttributes(); err != nil {
		return nil, err
	}

	src := &Source{
		Name:        b.name,
		byName:      make(map[string]*TypeDef),
		byBase:      make(map[string][]*TypeDef),
		byNamespace: make(map[string][]*TypeDef),
	}

	defs := make(map[uint32]*TypeDef)
	for row := uint32(1); row <= b.ts.rows(TableTypeDef); row++ {
		if _, nested := b.nested[row]; nested {
			continue
		}
		name := b.str(TableTypeDef, row, 1)
		ns := b.str(TableTypeDef, row, 2)
		if ns == "" || name == "<Module>" {
			continue
		}
		d, err := b.typeDef(row)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ns, name, err)
		}
		full := d.FullName()
		if _, dup := src.byName[full]; dup {
			return nil, fmt.Errorf("%s defined twice", full)
		}
		defs[row] = d
		src.types = append(src.types, d)
		src.byName[full] = d
		base, _ := SplitArity(d.Name)
		src.byBase[d.Namespace+"."+base] = append(src.byBase[d.Namespace+"."+base], d)
		if _, ok := src.byNamespace[d.Namespace]; !ok {
			src.namespaces = append(src.namespaces, d.Namespace)
		}
		src.byNamespace[d.Namespace] = append(src.byNamespace[d.Namespace], d)
	}

	if err := b.attachInterfaces(defs); err != nil {
		return nil, err
	}
	if err := b.attachGenericParams(defs); err != nil {
		return nil, err
	}
	if err := b.attachProperties(defs); err != nil {
		return nil, err
	}
	if err := b.attachEvents(defs); err != nil {
		return nil, err
	}
	for _, d := range src.types {
		d.Kind = classify(d)
		applyAttributes(d)
	}

	sort.Strings(src.namespaces)
	return src, nil
}

func (b *builder) indexNested() {
	b.nested = make(map[uint32]uint32)
	for row := uint32(1); row <= b.ts.rows(TableNestedClass); row++ {
		b.nested[b.cell(TableNestedClass, row, 0)] = b.cell(TableNestedClass, row, 1)
	}
}

// indexMembers maps fields to their Constant rows and properties and events
// to their MethodSemantics rows.
func (b *builder) indexMembers() {
	b.constants = make(map[uint32]uint32)
	for c := uint32(1); c <= b.ts.rows(TableConstant); c++ {
		if t, r, _ := CodedHasConstant.Decode(b.cell(TableConstant, c, 1)); t == TableField {
			if _, seen := b.constants[r]; !seen {
				b.constants[r] = c
			}
		}
	}
	b.accessors = make(map[rowKey][]uint32)
	for s := uint32(1); s <= b.ts.rows(TableMethodSemantics); s++ {
		t, r, _ := CodedHasSemantics.Decode(b.cell(TableMethodSemantics, s, 2))
		key := rowKey{t, r}
		b.accessors[key] = append(b.accessors[key], s)
	}
}

func (b *builder) indexMethodOwners() {
	b.methodOwner = make([]uint32, b.ts.rowCount(TableMethodDef)+1)
	for row := uint32(1); row <= b.ts.rows(TableTypeDef); row++ {
		start, end := b.ts.listRange(TableTypeDef, row, 5, TableMethodDef)
		for m := start; m < end; m++ {
			b.methodOwner[m] = row
		}
	}
}

// indexAttributes decodes every CustomAttribute row and groups it by parent
func (b *builder) indexAttributes() error {
	b.attrs = make(map[rowKey][]Attribute)
	for row := uint32(1); row <= b.ts.rows(TableCustomAttribute); row++ {
		parentTable, parentRow, _ := CodedHasCustomAttribute.Decode(b.cell(TableCustomAttribute, row, 0))
		ctorTable, ctorRow, _ := CodedCustomAttributeType.Decode(b.cell(TableCustomAttribute, row, 1))

		var attrType TypeRef
		var sigBlob []byte
		switch ctorTable {
		case TableMethodDef:
			owner := b.methodOwner[ctorRow]
			if owner == 0 {
				return fmt.Errorf("custom attribute %d: constructor has no owner", row)
			}
			attrType = b.typeDefName(owner)
			sigBlob = b.blob(TableMethodDef, ctorRow, 4)
		case TableMemberRef:
			parent, prow, _ := CodedMemberRefParent.Decode(b.cell(TableMemberRef, ctorRow, 0))
			switch parent {
			case TableTypeRef, TableTypeDef:
				s, err := b.typeDefOrRef(parent, prow)
				if err != nil {
					return fmt.Errorf("custom attribute %d: %w", row, err)
				}
				attrType = s.Ref
			default:
				continue
			}
			sigBlob = b.blob(TableMemberRef, ctorRow, 2)
		}
		attrType.Local = false

		ctor, err := parseMethodSig(sigBlob, b)
		if err != nil {
			return fmt.Errorf("custom attribute %d constructor: %w", row, err)
		}
		attr, err := decodeAttribute(attrType, ctor, b.blob(TableCustomAttribute, row, 2))
		if err != nil {
			if strings.HasPrefix(attrType.Namespace, "Windows.Foundation.Metadata") {
				return fmt.Errorf("custom attribute %s: %w", attrType.FullName(), err)
			}
			attr = Attribute{Type: attrType}
		}
		key := rowKey{parentTable, parentRow}
		b.attrs[key] = append(b.attrs[key], attr)
	}
	return nil
}

func (b *builder) typeDef(row uint32) (*TypeDef, error) {
	ref := b.typeDefName(row)
	d := &TypeDef{
		Namespace:  ref.Namespace,
		Name:       ref.Name,
		Source:     b.name,
		Flags:      b.cell(TableTypeDef, row, 0),
		Attributes: b.attrs[rowKey{TableTypeDef, row}],
	}
	if ext := b.cell(TableTypeDef, row, 3); ext != 0 {
		t, r, _ := CodedTypeDefOrRef.Decode(ext)
		s, err := b.typeDefOrRef(t, r)
		if err != nil {
			return nil, fmt.Errorf("extends: %w", err)
		}
		base := s.Ref
		base.Local = false
		d.Extends = &base
	}

	start, end := b.ts.listRange(TableTypeDef, row, 4, TableField)
	for f := start; f < end; f++ {
		field, err := b.field(f)
		if err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, field)
	}

	start, end = b.ts.listRange(TableTypeDef, row, 5, TableMethodDef)
	for m := start; m < end; m++ {
		method, err := b.method(m)
		if err != nil {
			return nil, err
		}
		d.Methods = append(d.Methods, method)
	}
	return d, nil
}

func (b *builder) field(row uint32) (*Field, error) {
	name := b.str(TableField, row, 1)
	sig, err := parseFieldSig(b.blob(TableField, row, 2), b)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	f := &Field{
		Name:  name,
		Type:  sig,
		Flags: uint16(b.cell(TableField, row, 0)),
	}
	if c, ok := b.constants[row]; ok {
		var buf [8]byte
		copy(buf[:], b.blob(TableConstant, c, 2))
		f.Constant = &Constant{
			Type:  ElementType(b.cell(TableConstant, c, 0)),
			Value: binary.LittleEndian.Uint64(buf[:]),
		}
	}
	return f, nil
}

func (b *builder) method(row uint32) (*Method, error) {
	name := b.str(TableMethodDef, row, 3)
	sig, err := parseMethodSig(b.blob(TableMethodDef, row, 4), b)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", name, err)
	}
	m := &Method{
		Name:       name,
		Sig:        sig,
		ImplFlags:  uint16(b.cell(TableMethodDef, row, 1)),
		Flags:      uint16(b.cell(TableMethodDef, row, 2)),
		Attributes: b.attrs[rowKey{TableMethodDef, row}],
	}

	m.Params = make([]Param, len(sig.Params))
	for i, p := range sig.Params {
		m.Params[i] = Param{Name: fmt.Sprintf("arg%d", i), Type: p, Sequence: i + 1}
	}
	if !sig.Return.IsVoid() {
		m.Return = &Param{Name: "result", Type: sig.Return}
	}

	start, end := b.ts.listRange(TableMethodDef, row, 5, TableParam)
	for p := start; p < end; p++ {
		seq := int(b.cell(TableParam, p, 1))
		flags := uint16(b.cell(TableParam, p, 0))
		pname := b.str(TableParam, p, 2)
		switch {
		case seq == 0 && m.Return != nil:
			if pname != "" {
				m.Return.Name = pname
			}
			m.Return.Flags = flags
		case seq >= 1 && seq <= len(m.Params):
			if pname != "" {
				m.Params[seq-1].Name = pname
			}
			m.Params[seq-1].Flags = flags
		case seq > len(m.Params):
			return nil, fmt.Errorf("method %s: parameter sequence %d exceeds signature", name, seq)
		}
	}
	for i := range m.Params {
		m.Params[i].Array = arrayCategory(&m.Params[i])
	}
	if m.Return != nil && m.Return.Type.Kind == SigArray {
		m.Return.Array = ArrayReceive
	}
	applyMethodAttributes(m)
	return m, nil
}

func arrayCategory(p *Param) ArrayCategory {
	switch {
	case p.Type.Kind == SigArray && p.Flags&ParamOut != 0:
		return ArrayFill
	case p.Type.Kind == SigArray:
		return ArrayPass
	case p.Type.Kind == SigByRef && p.Type.Elem != nil && p.Type.Elem.Kind == SigArray:
		return ArrayReceive
	}
	return ArrayNone
}

func (b *builder) attachInterfaces(defs map[uint32]*TypeDef) error {
	for row := uint32(1); row <= b.ts.rows(TableInterfaceImpl); row++ {
		d, ok := defs[b.cell(TableInterfaceImpl, row, 0)]
		if !ok {
			continue
		}
		t, r, _ := CodedTypeDefOrRef.Decode(b.cell(TableInterfaceImpl, row, 1))
		iface, err := b.typeDefOrRef(t, r)
		if err != nil {
			return fmt.Errorf("%s interface impl: %w", d.FullName(), err)
		}
		attrs := b.attrs[rowKey{TableInterfaceImpl, row}]
		d.Interfaces = append(d.Interfaces, InterfaceImpl{
			Interface:   iface,
			Attributes:  attrs,
			Default:     HasAttribute(attrs, AttrDefault),
			Overridable: HasAttribute(attrs, AttrOverridable),
		})
	}
	return nil
}

func (b *builder) attachGenericParams(defs map[uint32]*TypeDef) error {
	for row := uint32(1); row <= b.ts.rows(TableGenericParam); row++ {
		t, owner, _ := CodedTypeOrMethodDef.Decode(b.cell(TableGenericParam, row, 2))
		if t != TableTypeDef {
			continue
		}
		d, ok := defs[owner]
		if !ok {
			continue
		}
		d.GenericParams = append(d.GenericParams, GenericParam{
			Number: int(b.cell(TableGenericParam, row, 0)),
			Name:   b.str(TableGenericParam, row, 3),
		})
	}
	for _, d := range defs {
		sort.SliceStable(d.GenericParams, func(i, j int) bool {
			return d.GenericParams[i].Number < d.GenericParams[j].Number
		})
		for i, gp := range d.GenericParams {
			if gp.Number != i {
				return fmt.Errorf("%s: generic parameter numbers are not dense", d.FullName())
			}
		}
		if _, arity := SplitArity(d.Name); arity != len(d.GenericParams) && arity != 0 {
			return fmt.Errorf("%s: name declares arity %d but has %d generic parameters", d.FullName(), arity, len(d.GenericParams))
		}
	}
	return nil
}

// semantics maps a property or event row to its accessor methods
func (b *builder) semantics(assoc TableID, row uint32) map[uint16]string {
	out := make(map[uint16]string)
	for _, s := range b.accessors[rowKey{assoc, row}] {
		flag := uint16(b.cell(TableMethodSemantics, s, 0))
		out[flag] = b.str(TableMethodDef, b.cell(TableMethodSemantics, s, 1), 3)
	}
	return out
}

func (b *builder) attachProperties(defs map[uint32]*TypeDef) error {
	for row := uint32(1); row <= b.ts.rows(TablePropertyMap); row++ {
		d, ok := defs[b.cell(TablePropertyMap, row, 0)]
		if !ok {
			continue
		}
		start, end := b.ts.listRange(TablePropertyMap, row, 1, TableProperty)
		for p := start; p < end; p++ {
			name := b.str(TableProperty, p, 1)
			sig, err := parsePropertySig(b.blob(TableProperty, p, 2), b)
			if err != nil {
				return fmt.Errorf("%s property %s: %w", d.FullName(), name, err)
			}
			acc := b.semantics(TableProperty, p)
			d.Properties = append(d.Properties, &Property{
				Name:   name,
				Type:   sig,
				Getter: acc[SemanticsGetter],
				Setter: acc[SemanticsSetter],
			})
		}
	}
	return nil
}

func (b *builder) attachEvents(defs map[uint32]*TypeDef) error {
	for row := uint32(1); row <= b.ts.rows(TableEventMap); row++ {
		d, ok := defs[b.cell(TableEventMap, row, 0)]
		if !ok {
			continue
		}
		start, end := b.ts.listRange(TableEventMap, row, 1, TableEvent)
		for e := start; e < end; e++ {
			name := b.str(TableEvent, e, 1)
			t, r, _ := CodedTypeDefOrRef.Decode(b.cell(TableEvent, e, 2))
			sig, err := b.typeDefOrRef(t, r)
			if err != nil {
				return fmt.Errorf("%s event %s: %w", d.FullName(), name, err)
			}
			acc := b.semantics(TableEvent, e)
			d.Events = append(d.Events, &Event{
				Name:   name,
				Type:   sig,
				Add:    acc[SemanticsAddOn],
				Remove: acc[SemanticsRemoveOn],
			})
		}
	}
	return nil
}

// classify derives the kind of d from its flags, base type and attributes
func classify(d *TypeDef) Kind {
	if d.Flags&TypeInterface != 0 {
		return KindInterface
	}
	if d.Extends != nil {
		switch d.Extends.FullName() {
		case "System.Enum":
			return KindEnum
		case "System.ValueType":
			if HasAttribute(d.Attributes, AttrApiContract) {
				return KindContract
			}
			return KindStruct
		case "System.MulticastDelegate":
			return KindDelegate
		case "System.Attribute":
			return KindAttribute
		}
	}
	if HasAttribute(d.Attributes, AttrApiContract) {
		return KindContract
	}
	return KindClass
}
