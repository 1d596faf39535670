package generic

import (
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// Namespace is the UUIDv5 namespace of parameterized interface IIDs
var Namespace = uuid.MustParse("11f47ad5-7b73-42c0-abae-878b1e16adee")

// IID derives the interface identifier of a parameterized type from its
// signature string.
func IID(signature string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(signature))
}

// maxDepth bounds signature recursion; a class whose default interface is
// instantiated over the class itself never terminates otherwise.
const maxDepth = 32

var primitiveSignatures = map[metadata.ElementType]string{
	metadata.ElementBoolean: "b1",
	metadata.ElementChar:    "c2",
	metadata.ElementI1:      "i1",
	metadata.ElementU1:      "u1",
	metadata.ElementI2:      "i2",
	metadata.ElementU2:      "u2",
	metadata.ElementI4:      "i4",
	metadata.ElementU4:      "u4",
	metadata.ElementI8:      "i8",
	metadata.ElementU8:      "u8",
	metadata.ElementR4:      "f4",
	metadata.ElementR8:      "f8",
	metadata.ElementString:  "string",
	metadata.ElementObject:  "cinterface(IInspectable)",
}

// builtinSignatures covers core library types that no winmd defines
var builtinSignatures = map[string]string{
	"System.Guid":   "g16",
	"System.Object": "cinterface(IInspectable)",
}

// Builtin reports whether full names a core library type that is never
// looked up in metadata.
func Builtin(full string) bool {
	return strings.HasPrefix(full, "System.")
}

func braced(g uuid.UUID) string {
	return "{" + g.String() + "}"
}

// Signature returns the WinRT type signature of a fully bound TypeSig
func (in *Instantiator) Signature(s metadata.TypeSig) (string, error) {
	return in.signature(s, 0)
}

func (in *Instantiator) signature(s metadata.TypeSig, depth int) (string, error) {
	if depth > maxDepth {
		return "", errors.New(errors.PhaseInstantiate, errors.KindUnsupported).
			Type(s.String()).
			Detail("type signature nests deeper than %d levels", maxDepth).
			Build()
	}
	switch s.Kind {
	case metadata.SigPrimitive:
		if sig, ok := primitiveSignatures[s.Prim]; ok {
			return sig, nil
		}
		return "", errors.Unsupported(errors.PhaseInstantiate, "no type signature for "+s.String())
	case metadata.SigClass, metadata.SigValueType:
		if sig, ok := builtinSignatures[s.Ref.FullName()]; ok {
			return sig, nil
		}
		def, err := in.lookup.LookupDef(s.Ref)
		if err != nil {
			return "", err
		}
		return in.defSignature(def, depth)
	case metadata.SigGenericInst:
		def, err := in.lookup.LookupDef(s.Ref)
		if err != nil {
			return "", err
		}
		if !def.HasGUID {
			return "", missingGUID(def)
		}
		var b strings.Builder
		b.WriteString("pinterface(")
		b.WriteString(braced(def.GUID))
		for _, a := range s.Args {
			arg, err := in.signature(a, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteByte(';')
			b.WriteString(arg)
		}
		b.WriteByte(')')
		return b.String(), nil
	case metadata.SigVar, metadata.SigMVar:
		return "", errors.InvalidInput(errors.PhaseInstantiate, "unbound generic parameter "+s.String())
	}
	return "", errors.Unsupported(errors.PhaseInstantiate, "no type signature for "+s.String())
}

func (in *Instantiator) defSignature(def *metadata.TypeDef, depth int) (string, error) {
	switch def.Kind {
	case metadata.KindEnum:
		under := "i4"
		if def.EnumUnderlying() == metadata.ElementU4 {
			under = "u4"
		}
		return "enum(" + def.FullName() + ";" + under + ")", nil
	case metadata.KindStruct:
		parts := []string{def.FullName()}
		for _, f := range def.Fields {
			if f.Flags&metadata.FieldStatic != 0 {
				continue
			}
			sig, err := in.signature(f.Type, depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, sig)
		}
		return "struct(" + strings.Join(parts, ";") + ")", nil
	case metadata.KindDelegate, metadata.KindInterface:
		if def.IsGeneric() {
			return "", errors.InvalidInput(errors.PhaseInstantiate, "open generic "+def.FullName()+" used as a type argument")
		}
		if !def.HasGUID {
			return "", missingGUID(def)
		}
		if def.Kind == metadata.KindDelegate {
			return "delegate(" + braced(def.GUID) + ")", nil
		}
		return braced(def.GUID), nil
	case metadata.KindClass:
		iface, ok := def.DefaultInterface()
		if !ok {
			return "", errors.New(errors.PhaseInstantiate, errors.KindInvalidInput).
				Type(def.FullName()).
				Detail("runtime class has no default interface").
				Build()
		}
		sig, err := in.signature(iface, depth+1)
		if err != nil {
			return "", err
		}
		return "rc(" + def.FullName() + ";" + sig + ")", nil
	}
	return "", errors.Unsupported(errors.PhaseInstantiate, def.Kind.String()+" "+def.FullName()+" cannot be a type argument")
}

func missingGUID(def *metadata.TypeDef) error {
	return errors.New(errors.PhaseInstantiate, errors.KindInvalidInput).
		Type(def.FullName()).
		Source(def.Source).
		Detail("%s has no Guid attribute", def.Kind).
		Build()
}
