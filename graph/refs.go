package graph

import (
	"github.com/wippyai/winrt-bindgen/metadata"
)

// references lists every named type or generic instance the node needs,
// in declaration order. Closed generic instances are reported whole and their
// arguments again individually; open instances inside a template contribute
// only their template and closed arguments.
func references(n *Node) []metadata.TypeSig {
	var out []metadata.TypeSig
	var walk func(s metadata.TypeSig)
	walk = func(s metadata.TypeSig) {
		switch s.Kind {
		case metadata.SigClass, metadata.SigValueType:
			out = append(out, s)
		case metadata.SigGenericInst:
			if s.HasVars() {
				out = append(out, metadata.Named(s.Ref, s.ValueType))
			} else {
				out = append(out, s)
			}
			for _, a := range s.Args {
				walk(a)
			}
		case metadata.SigArray, metadata.SigByRef:
			if s.Elem != nil {
				walk(*s.Elem)
			}
		}
	}

	def := n.Def
	if def.Extends != nil {
		walk(metadata.Named(*def.Extends, false))
	}
	for _, impl := range n.Interfaces() {
		walk(impl.Interface)
	}
	for _, m := range n.Methods() {
		if m.Return != nil {
			walk(m.Return.Type)
		}
		for _, p := range m.Params {
			walk(p.Type)
		}
	}
	for _, f := range def.Fields {
		walk(f.Type)
	}
	for _, p := range n.Properties() {
		walk(p.Type)
	}
	for _, e := range n.Events() {
		walk(e.Type)
	}
	for _, a := range def.Activatable {
		if !a.Factory.IsZero() {
			walk(metadata.Named(a.Factory, false))
		}
	}
	for _, s := range def.Statics {
		walk(metadata.Named(s, false))
	}
	for _, c := range def.Composable {
		walk(metadata.Named(c.Factory, false))
	}
	return out
}
