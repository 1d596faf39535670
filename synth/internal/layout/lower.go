package layout

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// Resolver returns the definition a field type refers to
type Resolver func(ref metadata.TypeRef) (*metadata.TypeDef, error)

var guidRecord = &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
	{Name: "Data1", Type: wit.U32{}},
	{Name: "Data2", Type: wit.U16{}},
	{Name: "Data3", Type: wit.U16{}},
	{Name: "Data4", Type: &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{
		wit.U8{}, wit.U8{}, wit.U8{}, wit.U8{}, wit.U8{}, wit.U8{}, wit.U8{}, wit.U8{},
	}}}},
}}}

// Lowerer maps struct definitions to WIT records. It is not safe for
// concurrent use.
type Lowerer struct {
	resolve Resolver
	cache   map[*metadata.TypeDef]*wit.TypeDef
	active  map[*metadata.TypeDef]bool
}

func NewLowerer(resolve Resolver) *Lowerer {
	return &Lowerer{
		resolve: resolve,
		cache:   make(map[*metadata.TypeDef]*wit.TypeDef),
		active:  make(map[*metadata.TypeDef]bool),
	}
}

// Struct lowers a struct definition to a record with one field per
// instance field, in declaration order.
func (l *Lowerer) Struct(def *metadata.TypeDef) (*wit.TypeDef, error) {
	if def.Kind != metadata.KindStruct {
		return nil, errors.New(errors.PhaseSynthesize, errors.KindInvalidInput).
			Type(def.FullName()).
			Detail("%s is not a struct", def.Kind).
			Build()
	}
	if td, ok := l.cache[def]; ok {
		return td, nil
	}
	if l.active[def] {
		return nil, errors.New(errors.PhaseSynthesize, errors.KindUnsupported).
			Type(def.FullName()).
			Detail("struct contains itself by value").
			Build()
	}
	l.active[def] = true
	defer delete(l.active, def)

	rec := &wit.Record{}
	for _, f := range def.Fields {
		if f.Flags&metadata.FieldStatic != 0 {
			continue
		}
		typ, err := l.Field(f.Type)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, wit.Field{Name: f.Name, Type: typ})
	}
	td := &wit.TypeDef{Kind: rec}
	l.cache[def] = td
	return td, nil
}

// Field lowers the type of one struct field
func (l *Lowerer) Field(s metadata.TypeSig) (wit.Type, error) {
	switch s.Kind {
	case metadata.SigPrimitive:
		if t, ok := primitive(s.Prim); ok {
			return t, nil
		}
	case metadata.SigGenericInst, metadata.SigClass:
		if s.Kind == metadata.SigClass && s.Ref.FullName() == "System.Guid" {
			return guidRecord, nil
		}
		return wit.U64{}, nil
	case metadata.SigValueType:
		if s.Ref.FullName() == "System.Guid" {
			return guidRecord, nil
		}
		def, err := l.resolve(s.Ref)
		if err != nil {
			return nil, err
		}
		switch def.Kind {
		case metadata.KindEnum:
			if def.EnumUnderlying() == metadata.ElementU4 {
				return wit.U32{}, nil
			}
			return wit.S32{}, nil
		case metadata.KindStruct:
			td, err := l.Struct(def)
			if err != nil {
				return nil, err
			}
			return td, nil
		}
	}
	return nil, errors.Unsupported(errors.PhaseSynthesize, "struct field of type "+s.String())
}

func primitive(e metadata.ElementType) (wit.Type, bool) {
	switch e {
	case metadata.ElementBoolean, metadata.ElementU1:
		return wit.U8{}, true
	case metadata.ElementI1:
		return wit.S8{}, true
	case metadata.ElementChar, metadata.ElementU2:
		return wit.U16{}, true
	case metadata.ElementI2:
		return wit.S16{}, true
	case metadata.ElementI4:
		return wit.S32{}, true
	case metadata.ElementU4:
		return wit.U32{}, true
	case metadata.ElementI8:
		return wit.S64{}, true
	case metadata.ElementU8, metadata.ElementString, metadata.ElementObject, metadata.ElementI, metadata.ElementU:
		return wit.U64{}, true
	case metadata.ElementR4:
		return wit.F32{}, true
	case metadata.ElementR8:
		return wit.F64{}, true
	}
	return nil, false
}
