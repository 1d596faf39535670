package synth

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/metadata"
)

var predeclared = map[string]bool{
	"any": true, "append": true, "bool": true, "byte": true, "cap": true, "clear": true,
	"close": true, "comparable": true, "complex": true, "complex64": true, "complex128": true,
	"copy": true, "delete": true, "error": true, "false": true, "float32": true, "float64": true,
	"imag": true, "int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"iota": true, "len": true, "make": true, "max": true, "min": true, "new": true, "nil": true,
	"panic": true, "print": true, "println": true, "real": true, "recover": true, "rune": true,
	"string": true, "true": true, "uint": true, "uint8": true, "uint16": true, "uint32": true,
	"uint64": true, "uintptr": true,
}

// promoted are the methods every wrapper inherits from the runtime types
var promoted = map[string]bool{
	"Ptr": true, "Release": true, "Owned": true, "Released": true, "RuntimeClassName": true,
}

var lower = cases.Lower(language.Und)

// exported upper-cases the first letter of name
func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// identifier replaces characters Go does not accept in identifiers
func identifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// typeName returns the Go name of a definition, without the arity suffix
func typeName(def *metadata.TypeDef) string {
	base, _ := metadata.SplitArity(def.Name)
	return exported(identifier(base))
}

// methodName maps property and event accessors to Go method names:
// get_X is X, put_X is SetX, add_X is AddX and remove_X is RemoveX.
func methodName(m *metadata.Method) string {
	name := m.ProjectedName()
	if m.Flags&metadata.MethodSpecialName != 0 {
		switch {
		case strings.HasPrefix(name, "get_"):
			name = name[len("get_"):]
		case strings.HasPrefix(name, "put_"):
			name = "Set" + exported(name[len("put_"):])
		case strings.HasPrefix(name, "add_"):
			name = "Add" + exported(name[len("add_"):])
		case strings.HasPrefix(name, "remove_"):
			name = "Remove" + exported(name[len("remove_"):])
		}
	}
	return exported(identifier(name))
}

// methodNames returns unique Go names for methods in declaration order
func methodNames(methods []*metadata.Method) []string {
	seen := make(map[string]bool, len(methods))
	out := make([]string, len(methods))
	for i, m := range methods {
		name := methodName(m)
		if promoted[name] {
			name += "Method"
		}
		out[i] = unique(name, seen)
	}
	return out
}

// unique returns name, or name with the smallest numeric suffix not in
// seen, and records the result.
func unique(name string, seen map[string]bool) string {
	candidate := name
	for n := 2; seen[candidate]; n++ {
		candidate = name + strconv.Itoa(n)
	}
	seen[candidate] = true
	return candidate
}

// argName is the fragment an instance argument contributes to an instance
// name: IVector`1<String> is IVectorOfString.
func argName(a generic.Arg) string {
	switch {
	case a.Instance != nil:
		return instanceName(a.Instance)
	case a.Def != nil:
		return typeName(a.Def)
	case a.Sig.Kind == metadata.SigPrimitive:
		return a.Sig.Prim.String()
	}
	base, _ := metadata.SplitArity(a.Sig.Ref.Name)
	return exported(identifier(base))
}

func instanceName(inst *generic.Instance) string {
	var b strings.Builder
	b.WriteString(typeName(inst.Def))
	b.WriteString("Of")
	for _, a := range inst.Args {
		b.WriteString(argName(a))
	}
	return b.String()
}

// packagePath folds a namespace to an import path below root and a package
// name: Windows.Foundation.Collections is root/windows/foundation/collections,
// package collections.
func packagePath(root, namespace string) (path, name string) {
	segs := strings.Split(namespace, ".")
	for i, s := range segs {
		segs[i] = identifier(lower.String(s))
	}
	name = segs[len(segs)-1]
	if token.IsKeyword(name) {
		name += "ns"
	}
	return root + "/" + strings.Join(segs, "/"), name
}

// scope allocates local identifiers inside one generated function
type scope struct {
	used map[string]bool
}

func newScope(reserved ...string) *scope {
	s := &scope{used: make(map[string]bool, len(reserved)+8)}
	for _, r := range reserved {
		s.used[r] = true
	}
	return s
}

// name returns a fresh identifier derived from base
func (s *scope) name(base string) string {
	if base == "" {
		base = "arg"
	}
	base = identifier(base)
	if token.IsKeyword(base) || predeclared[base] {
		base += "_"
	}
	return unique(base, s.used)
}
