package graph

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/wippyai/winrt-bindgen/metadata"
)

// fingerprint hashes the structure of a definition. Two sources that define
// the same name with equal fingerprints are interchangeable. Provenance and
// contract versions are excluded. Every list is prefixed with its length so
// that entries cannot shift between sections.
func fingerprint(def *metadata.TypeDef) uint64 {
	var buf []byte
	str := func(s string) {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	num := func(v uint64) {
		buf = binary.AppendUvarint(buf, v)
	}
	flag := func(b bool) {
		if b {
			num(1)
		} else {
			num(0)
		}
	}
	ref := func(r *metadata.TypeRef) {
		flag(r != nil)
		if r != nil {
			str(r.FullName())
		}
	}

	str(def.FullName())
	num(uint64(def.Kind))
	num(uint64(def.Flags))
	flag(def.HasGUID)
	flag(def.IsFlags)
	buf = append(buf, def.GUID[:]...)
	ref(def.Extends)
	ref(def.ExclusiveTo)

	num(uint64(len(def.GenericParams)))
	for _, gp := range def.GenericParams {
		str(gp.Name)
	}
	num(uint64(len(def.Interfaces)))
	for _, impl := range def.Interfaces {
		str(impl.Interface.String())
		flag(impl.Default)
	}
	num(uint64(len(def.Methods)))
	for _, m := range def.Methods {
		str(m.Name)
		str(m.Overload)
		num(uint64(m.Flags))
		flag(m.Return != nil)
		if m.Return != nil {
			str(m.Return.Type.String())
		}
		num(uint64(len(m.Params)))
		for _, p := range m.Params {
			str(p.Type.String())
			num(uint64(p.Flags))
		}
	}
	num(uint64(len(def.Fields)))
	for _, f := range def.Fields {
		str(f.Name)
		str(f.Type.String())
		num(uint64(f.Flags))
		flag(f.Constant != nil)
		if f.Constant != nil {
			num(uint64(f.Constant.Type))
			num(f.Constant.Value)
		}
	}
	num(uint64(len(def.Properties)))
	for _, p := range def.Properties {
		str(p.Name)
		str(p.Type.String())
		str(p.Getter)
		str(p.Setter)
	}
	num(uint64(len(def.Events)))
	for _, e := range def.Events {
		str(e.Name)
		str(e.Type.String())
	}
	num(uint64(len(def.Activatable)))
	for _, a := range def.Activatable {
		str(a.Factory.FullName())
	}
	num(uint64(len(def.Statics)))
	for _, s := range def.Statics {
		str(s.FullName())
	}
	num(uint64(len(def.Composable)))
	for _, c := range def.Composable {
		str(c.Factory.FullName())
		flag(c.Public)
	}
	return xxh3.Hash(buf)
}
