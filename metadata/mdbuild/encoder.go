package mdbuild

import (
	"fmt"
	"math"

	"fortio.org/safecast"
	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/metadata"
	mdbinary "github.com/wippyai/winrt-bindgen/metadata/internal/binary"
)

const metadataVersion = "WindowsRuntime 1.4"

type pendingAttr struct {
	a      attr
	parent uint32
}

// encoder lays out heaps and table rows for one Builder
type encoder struct {
	b            *Builder
	strIndex     map[string]uint32
	blobIndex    map[string]uint32
	typeDefRows  map[string]uint32
	typeRefRows  map[metadata.TypeRef]uint32
	typeSpecRows map[string]uint32
	memberRefs   map[string]uint32
	strings      []byte
	blobs        []byte
	guids        []byte
	attrs        []pendingAttr
	rows         [metadata.NumTables][][]uint32
}

func newEncoder(b *Builder) *encoder {
	return &encoder{
		b:            b,
		strIndex:     map[string]uint32{"": 0},
		blobIndex:    map[string]uint32{"": 0},
		typeDefRows:  make(map[string]uint32),
		typeRefRows:  make(map[metadata.TypeRef]uint32),
		typeSpecRows: make(map[string]uint32),
		memberRefs:   make(map[string]uint32),
		strings:      []byte{0},
		blobs:        []byte{0},
	}
}

func (e *encoder) nextRow(t metadata.TableID) uint32 {
	return uint32(len(e.rows[t]) + 1)
}

func (e *encoder) addRow(t metadata.TableID, cells ...uint32) uint32 {
	e.rows[t] = append(e.rows[t], cells)
	return uint32(len(e.rows[t]))
}

func (e *encoder) str(s string) uint32 {
	if i, ok := e.strIndex[s]; ok {
		return i
	}
	i := uint32(len(e.strings))
	e.strings = append(e.strings, s...)
	e.strings = append(e.strings, 0)
	e.strIndex[s] = i
	return i
}

func (e *encoder) blob(data []byte) uint32 {
	if i, ok := e.blobIndex[string(data)]; ok {
		return i
	}
	i := uint32(len(e.blobs))
	n, err := safecast.Conv[uint32](len(data))
	if err != nil {
		n = 0
	}
	e.blobs = mdbinary.AppendCompressed(e.blobs, n)
	e.blobs = append(e.blobs, data...)
	e.blobIndex[string(data)] = i
	return i
}

func (e *encoder) guid(g uuid.UUID) uint32 {
	raw := metadata.GUIDToMemory(g)
	e.guids = append(e.guids, raw[:]...)
	return uint32(len(e.guids) / 16)
}

func coded(c metadata.CodedIndex, t metadata.TableID, row uint32) uint32 {
	v, _ := c.Encode(t, row)
	return v
}

// typeRef interns a TypeRef row scoped to the first AssemblyRef
func (e *encoder) typeRef(ref metadata.TypeRef) uint32 {
	ref.Local = false
	if row, ok := e.typeRefRows[ref]; ok {
		return row
	}
	row := e.addRow(metadata.TableTypeRef,
		coded(metadata.CodedResolutionScope, metadata.TableAssemblyRef, 1),
		e.str(ref.Name),
		e.str(ref.Namespace),
	)
	e.typeRefRows[ref] = row
	return row
}

// typeDefOrRef returns the table and row naming ref
func (e *encoder) typeDefOrRef(ref metadata.TypeRef) (metadata.TableID, uint32) {
	if row, ok := e.typeDefRows[ref.FullName()]; ok {
		return metadata.TableTypeDef, row
	}
	return metadata.TableTypeRef, e.typeRef(ref)
}

// typeCoded encodes s as a TypeDefOrRef coded index, using a TypeSpec for
// anything that is not a plain named type.
func (e *encoder) typeCoded(s metadata.TypeSig) (uint32, error) {
	if s.Kind == metadata.SigClass || s.Kind == metadata.SigValueType {
		t, row := e.typeDefOrRef(s.Ref)
		return coded(metadata.CodedTypeDefOrRef, t, row), nil
	}
	sig, err := e.typeSig(nil, s)
	if err != nil {
		return 0, err
	}
	row, ok := e.typeSpecRows[string(sig)]
	if !ok {
		row = e.addRow(metadata.TableTypeSpec, e.blob(sig))
		e.typeSpecRows[string(sig)] = row
	}
	return coded(metadata.CodedTypeDefOrRef, metadata.TableTypeSpec, row), nil
}

func (e *encoder) typeSig(buf []byte, s metadata.TypeSig) ([]byte, error) {
	switch s.Kind {
	case metadata.SigPrimitive:
		return append(buf, byte(s.Prim)), nil
	case metadata.SigClass, metadata.SigValueType:
		lead := metadata.ElementClass
		if s.Kind == metadata.SigValueType {
			lead = metadata.ElementValueType
		}
		t, row := e.typeDefOrRef(s.Ref)
		return mdbinary.AppendCompressed(append(buf, byte(lead)), coded(metadata.CodedTypeDefOrRef, t, row)), nil
	case metadata.SigVar, metadata.SigMVar:
		lead := metadata.ElementVar
		if s.Kind == metadata.SigMVar {
			lead = metadata.ElementMVar
		}
		n, err := safecast.Conv[uint32](s.Index)
		if err != nil {
			return nil, err
		}
		return mdbinary.AppendCompressed(append(buf, byte(lead)), n), nil
	case metadata.SigGenericInst:
		lead := metadata.ElementClass
		if s.ValueType {
			lead = metadata.ElementValueType
		}
		t, row := e.typeDefOrRef(s.Ref)
		buf = append(buf, byte(metadata.ElementGenericInst), byte(lead))
		buf = mdbinary.AppendCompressed(buf, coded(metadata.CodedTypeDefOrRef, t, row))
		buf = mdbinary.AppendCompressed(buf, uint32(len(s.Args)))
		for _, a := range s.Args {
			var err error
			if buf, err = e.typeSig(buf, a); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case metadata.SigArray, metadata.SigByRef:
		lead := metadata.ElementSZArray
		if s.Kind == metadata.SigByRef {
			lead = metadata.ElementByRef
		}
		if s.Elem == nil {
			return nil, fmt.Errorf("%s without element type", s)
		}
		return e.typeSig(append(buf, byte(lead)), *s.Elem)
	}
	return nil, fmt.Errorf("cannot encode signature kind %d", s.Kind)
}

func paramSig(p Param) metadata.TypeSig {
	if p.Out && p.Type.Kind != metadata.SigArray && p.Type.Kind != metadata.SigByRef {
		return metadata.ByRef(p.Type)
	}
	return p.Type
}

func (e *encoder) methodSig(m *method) ([]byte, error) {
	conv := byte(metadata.SigHasThis)
	if m.flags&metadata.MethodStatic != 0 {
		conv = 0
	}
	buf := []byte{conv}
	buf = mdbinary.AppendCompressed(buf, uint32(len(m.params)))
	buf, err := e.typeSig(buf, m.ret)
	if err != nil {
		return nil, err
	}
	for _, p := range m.params {
		if buf, err = e.typeSig(buf, paramSig(p)); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (e *encoder) encode() error {
	e.addRow(metadata.TableModule, 0, e.str(e.b.name+".winmd"), e.guid(uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.b.name))), 0, 0)
	e.addRow(metadata.TableAssemblyRef, 255, 255, 255, 255, 0, 0, e.str("mscorlib"), 0, 0)

	for i, t := range e.b.types {
		full := t.namespace + "." + t.name
		if _, dup := e.typeDefRows[full]; dup {
			return fmt.Errorf("%s declared twice", full)
		}
		e.typeDefRows[full] = uint32(i + 2)
	}

	e.addRow(metadata.TableTypeDef, 0, e.str("<Module>"), 0, 0, 1, 1)
	for _, t := range e.b.types {
		if err := e.encodeType(t); err != nil {
			return fmt.Errorf("%s.%s: %w", t.namespace, t.name, err)
		}
	}
	for _, pa := range e.attrs {
		if err := e.encodeAttr(pa); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeType(t *Type) error {
	var extends uint32
	if t.extends != nil {
		tab, row := e.typeDefOrRef(*t.extends)
		extends = coded(metadata.CodedTypeDefOrRef, tab, row)
	}
	row := e.addRow(metadata.TableTypeDef,
		t.flags, e.str(t.name), e.str(t.namespace), extends,
		e.nextRow(metadata.TableField), e.nextRow(metadata.TableMethodDef),
	)
	e.queueAttrs(t.attrs, metadata.TableTypeDef, row)

	for _, f := range t.fields {
		sig, err := e.typeSig([]byte{metadata.SigField}, f.sig)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
		frow := e.addRow(metadata.TableField, uint32(f.flags), e.str(f.name), e.blob(sig))
		if f.constant != nil {
			elem, value := constantBlob(t.underlying, *f.constant)
			e.addRow(metadata.TableConstant, uint32(elem), coded(metadata.CodedHasConstant, metadata.TableField, frow), e.blob(value))
		}
	}

	firstMethod := e.nextRow(metadata.TableMethodDef)
	for _, m := range t.methods {
		sig, err := e.methodSig(m)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.name, err)
		}
		mrow := e.addRow(metadata.TableMethodDef, 0, 0, uint32(m.flags), e.str(m.name), e.blob(sig), e.nextRow(metadata.TableParam))
		for i, p := range m.params {
			flags := uint32(metadata.ParamIn)
			if p.Out {
				flags = uint32(metadata.ParamOut)
			}
			e.addRow(metadata.TableParam, flags, uint32(i+1), e.str(p.Name))
		}
		e.queueAttrs(m.attrs, metadata.TableMethodDef, mrow)
	}

	for i, g := range t.generics {
		e.addRow(metadata.TableGenericParam, uint32(i), 0, coded(metadata.CodedTypeOrMethodDef, metadata.TableTypeDef, row), e.str(g))
	}

	for _, im := range t.impls {
		iface, err := e.typeCoded(im.iface)
		if err != nil {
			return fmt.Errorf("interface %s: %w", im.iface, err)
		}
		irow := e.addRow(metadata.TableInterfaceImpl, row, iface)
		e.queueAttrs(im.attrs, metadata.TableInterfaceImpl, irow)
	}

	if len(t.props) > 0 {
		e.addRow(metadata.TablePropertyMap, row, e.nextRow(metadata.TableProperty))
		for _, p := range t.props {
			sig, err := e.typeSig([]byte{metadata.SigHasThis | metadata.SigProperty, 0}, p.sig)
			if err != nil {
				return fmt.Errorf("property %s: %w", p.name, err)
			}
			prow := e.addRow(metadata.TableProperty, 0, e.str(p.name), e.blob(sig))
			assoc := coded(metadata.CodedHasSemantics, metadata.TableProperty, prow)
			e.addRow(metadata.TableMethodSemantics, uint32(metadata.SemanticsGetter), firstMethod+uint32(p.getter), assoc)
			if p.setter >= 0 {
				e.addRow(metadata.TableMethodSemantics, uint32(metadata.SemanticsSetter), firstMethod+uint32(p.setter), assoc)
			}
		}
	}

	if len(t.events) > 0 {
		e.addRow(metadata.TableEventMap, row, e.nextRow(metadata.TableEvent))
		for _, ev := range t.events {
			handler, err := e.typeCoded(ev.handler)
			if err != nil {
				return fmt.Errorf("event %s: %w", ev.name, err)
			}
			erow := e.addRow(metadata.TableEvent, 0, e.str(ev.name), handler)
			assoc := coded(metadata.CodedHasSemantics, metadata.TableEvent, erow)
			e.addRow(metadata.TableMethodSemantics, uint32(metadata.SemanticsAddOn), firstMethod+uint32(ev.add), assoc)
			e.addRow(metadata.TableMethodSemantics, uint32(metadata.SemanticsRemoveOn), firstMethod+uint32(ev.remove), assoc)
		}
	}
	return nil
}

func constantBlob(underlying metadata.TypeSig, v int64) (metadata.ElementType, []byte) {
	w := mdbinary.NewWriter()
	elem := metadata.ElementI4
	if underlying.Kind == metadata.SigPrimitive {
		elem = underlying.Prim
	}
	switch elem {
	case metadata.ElementI8, metadata.ElementU8:
		w.WriteU64LE(uint64(v))
	default:
		w.WriteU32LE(uint32(v))
	}
	return elem, w.Bytes()
}

func (e *encoder) queueAttrs(attrs []attr, t metadata.TableID, row uint32) {
	for _, a := range attrs {
		e.attrs = append(e.attrs, pendingAttr{a: a, parent: coded(metadata.CodedHasCustomAttribute, t, row)})
	}
}

func (e *encoder) encodeAttr(pa pendingAttr) error {
	ctor := &method{name: ".ctor", ret: Void, flags: 0x1886}
	for i, p := range pa.a.params {
		ctor.params = append(ctor.params, In(fmt.Sprintf("p%d", i), p))
	}
	sig, err := e.methodSig(ctor)
	if err != nil {
		return err
	}
	key := pa.a.typ.FullName() + "\x00" + string(sig)
	mref, ok := e.memberRefs[key]
	if !ok {
		mref = e.addRow(metadata.TableMemberRef,
			coded(metadata.CodedMemberRefParent, metadata.TableTypeRef, e.typeRef(pa.a.typ)),
			e.str(".ctor"), e.blob(sig))
		e.memberRefs[key] = mref
	}

	value, err := attrValue(pa.a)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", pa.a.typ.FullName(), err)
	}
	e.addRow(metadata.TableCustomAttribute, pa.parent, coded(metadata.CodedCustomAttributeType, metadata.TableMemberRef, mref), e.blob(value))
	return nil
}

func attrValue(a attr) ([]byte, error) {
	if len(a.args) != len(a.params) {
		return nil, fmt.Errorf("%d arguments for %d parameters", len(a.args), len(a.params))
	}
	w := mdbinary.NewWriter()
	w.WriteU16LE(0x0001)
	for i, p := range a.params {
		if err := writeArg(w, p, a.args[i]); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	w.WriteU16LE(0) // named arguments
	return w.Bytes(), nil
}

func writeSerString(w *mdbinary.Writer, s string) {
	n, err := safecast.Conv[uint32](len(s))
	if err != nil {
		n = 0
		s = ""
	}
	w.WriteCompressed(n)
	w.WriteBytes([]byte(s))
}

func writeArg(w *mdbinary.Writer, p metadata.TypeSig, v any) error {
	switch p.Kind {
	case metadata.SigClass:
		ref, ok := v.(metadata.TypeRef)
		if !ok {
			return fmt.Errorf("expected type name, got %T", v)
		}
		writeSerString(w, ref.FullName())
		return nil
	case metadata.SigValueType:
		n, ok := v.(int32)
		if !ok {
			return fmt.Errorf("expected int32 enum value, got %T", v)
		}
		w.WriteU32LE(uint32(n))
		return nil
	case metadata.SigPrimitive:
	default:
		return fmt.Errorf("unsupported parameter %s", p)
	}

	switch x := v.(type) {
	case bool:
		if x {
			w.Byte(1)
		} else {
			w.Byte(0)
		}
	case uint8:
		w.Byte(x)
	case uint16:
		w.WriteU16LE(x)
	case uint32:
		w.WriteU32LE(x)
	case int32:
		w.WriteU32LE(uint32(x))
	case uint64:
		w.WriteU64LE(x)
	case float64:
		w.WriteU64LE(math.Float64bits(x))
	case string:
		writeSerString(w, x)
	default:
		return fmt.Errorf("unsupported argument %T", v)
	}
	return nil
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// finish serializes the table stream and wraps the heaps in a metadata root
func (e *encoder) finish() ([]byte, error) {
	var layout metadata.Layout
	var valid uint64
	for t := 0; t < metadata.NumTables; t++ {
		n, err := safecast.Conv[uint32](len(e.rows[t]))
		if err != nil {
			return nil, err
		}
		layout.Rows[t] = n
		if n > 0 {
			valid |= 1 << uint(t)
		}
	}
	if len(e.strings) >= 1<<16 {
		layout.HeapSizes |= metadata.HeapStringWide
	}
	if len(e.guids)/16 >= 1<<16 {
		layout.HeapSizes |= metadata.HeapGUIDWide
	}
	if len(e.blobs) >= 1<<16 {
		layout.HeapSizes |= metadata.HeapBlobWide
	}

	tw := mdbinary.NewWriter()
	tw.WriteU32LE(0)
	tw.Byte(2)
	tw.Byte(0)
	tw.Byte(layout.HeapSizes)
	tw.Byte(1)
	tw.WriteU64LE(valid)
	tw.WriteU64LE(0)
	for t := 0; t < metadata.NumTables; t++ {
		if layout.Rows[t] > 0 {
			tw.WriteU32LE(layout.Rows[t])
		}
	}
	for t := 0; t < metadata.NumTables; t++ {
		cols := metadata.TableID(t).Columns()
		for _, row := range e.rows[t] {
			if len(row) != len(cols) {
				return nil, fmt.Errorf("%s row has %d cells, want %d", metadata.TableID(t), len(row), len(cols))
			}
			for c, col := range cols {
				switch layout.ColumnWidth(col) {
				case 2:
					if row[c] > math.MaxUint16 {
						return nil, fmt.Errorf("%s column %s value %d exceeds 2 bytes", metadata.TableID(t), col.Name, row[c])
					}
					tw.WriteU16LE(uint16(row[c]))
				default:
					tw.WriteU32LE(row[c])
				}
			}
		}
	}
	tw.Align(4)

	streams := []struct {
		name string
		data []byte
	}{
		{"#~", tw.Bytes()},
		{"#Strings", pad4(e.strings)},
		{"#Blob", pad4(e.blobs)},
		{"#GUID", e.guids},
		{"#US", []byte{0, 0, 0, 0}},
	}

	version := pad4(append([]byte(metadataVersion), 0))
	header := 16 + len(version) + 4
	for _, s := range streams {
		header += 8 + len(pad4(append([]byte(s.name), 0)))
	}

	w := mdbinary.NewWriter()
	w.WriteU32LE(metadata.RootSignature)
	w.WriteU16LE(1)
	w.WriteU16LE(1)
	w.WriteU32LE(0)
	w.WriteU32LE(uint32(len(version)))
	w.WriteBytes(version)
	w.WriteU16LE(0)
	w.WriteU16LE(uint16(len(streams)))
	offset := header
	for _, s := range streams {
		w.WriteU32LE(uint32(offset))
		w.WriteU32LE(uint32(len(s.data)))
		w.WriteCString(s.name)
		w.Align(4)
		offset += len(s.data)
	}
	for _, s := range streams {
		w.WriteBytes(s.data)
	}
	return w.Bytes(), nil
}
