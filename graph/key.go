package graph

import (
	"strings"

	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// Key identifies a graph node: a definition, or a generic instance when Args
// holds the canonical argument list.
type Key struct {
	Namespace string
	Name      string
	Args      string
}

// FullName returns Namespace.Name
func (k Key) FullName() string {
	return k.Namespace + "." + k.Name
}

// String returns "NS.Name" or "NS.Name`1<Arg, Arg>"
func (k Key) String() string {
	if k.Args == "" {
		return k.FullName()
	}
	return k.FullName() + "<" + k.Args + ">"
}

// IsInstance reports whether k names a generic instance
func (k Key) IsInstance() bool {
	return k.Args != ""
}

// Less orders keys by namespace, name, then arguments
func (k Key) Less(o Key) bool {
	if k.Namespace != o.Namespace {
		return k.Namespace < o.Namespace
	}
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.Args < o.Args
}

// DefKey returns the key of a definition
func DefKey(def *metadata.TypeDef) Key {
	return Key{Namespace: def.Namespace, Name: def.Name}
}

// InstanceKey returns the key of a generic instance
func InstanceKey(inst *generic.Instance) Key {
	return sigKey(inst.Sig())
}

func sigKey(s metadata.TypeSig) Key {
	k := Key{Namespace: s.Ref.Namespace, Name: s.Ref.Name}
	if s.Kind == metadata.SigGenericInst {
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = a.String()
		}
		k.Args = strings.Join(args, ", ")
	}
	return k
}

// KeyOf returns the node key a named or generic instance signature resolves
// to. Primitives, arrays and generic parameters have no key.
func KeyOf(s metadata.TypeSig) (Key, bool) {
	switch s.Kind {
	case metadata.SigClass, metadata.SigValueType, metadata.SigGenericInst:
		return sigKey(s), true
	}
	return Key{}, false
}
