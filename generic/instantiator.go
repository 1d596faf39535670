package generic

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// Lookup resolves a named type to its single definition
type Lookup interface {
	LookupDef(ref metadata.TypeRef) (*metadata.TypeDef, error)
}

// LookupFunc adapts a function to Lookup
type LookupFunc func(ref metadata.TypeRef) (*metadata.TypeDef, error)

// LookupDef implements Lookup
func (f LookupFunc) LookupDef(ref metadata.TypeRef) (*metadata.TypeDef, error) {
	return f(ref)
}

// SourceLookup searches sources in order and returns the first definition
func SourceLookup(sources ...*metadata.Source) Lookup {
	return LookupFunc(func(ref metadata.TypeRef) (*metadata.TypeDef, error) {
		for _, src := range sources {
			if def, ok := src.LookupType(ref.Namespace, ref.Name); ok {
				return def, nil
			}
		}
		return nil, errors.Unresolved(ref.FullName(), nil)
	})
}

type entry struct {
	inst  *Instance
	err   error
	once  sync.Once
	ready atomic.Bool
}

// Instantiator specializes generic templates. Requests for the same template
// and arguments converge on one canonical Instance; it is safe for
// concurrent use.
type Instantiator struct {
	lookup  Lookup
	entries map[string]*entry
	log     *zap.Logger
	mu      sync.Mutex
}

// New creates an instantiator resolving type arguments through lookup
func New(lookup Lookup) *Instantiator {
	return &Instantiator{
		lookup:  lookup,
		entries: make(map[string]*entry),
		log:     Logger(),
	}
}

// WithLogger replaces the package logger for this instantiator
func (in *Instantiator) WithLogger(l *zap.Logger) *Instantiator {
	in.log = l
	return in
}

// Instantiate returns the canonical instance of def over args
func (in *Instantiator) Instantiate(def *metadata.TypeDef, args []Arg) (*Instance, error) {
	if !def.IsGeneric() {
		return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidInput).
			Type(def.FullName()).
			Detail("not a generic definition").
			Build()
	}
	if len(args) != def.Arity() {
		return nil, errors.ArityMismatch(def.FullName(), def.Arity(), len(args))
	}
	sigs := make([]metadata.TypeSig, len(args))
	for i, a := range args {
		if a.Sig.HasVars() {
			return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidInput).
				Type(def.FullName()).
				Detail("type argument %d (%s) is not closed", i, a.Sig).
				Build()
		}
		sigs[i] = a.Sig
	}
	key := metadata.Instance(def.Ref(), sigs...).String()

	in.mu.Lock()
	e, ok := in.entries[key]
	if !ok {
		e = &entry{}
		in.entries[key] = e
	}
	in.mu.Unlock()

	e.once.Do(func() {
		e.inst, e.err = in.build(def, args, key)
		e.ready.Store(true)
	})
	return e.inst, e.err
}

func (in *Instantiator) build(def *metadata.TypeDef, args []Arg, key string) (*Instance, error) {
	if !def.HasGUID {
		return nil, missingGUID(def)
	}
	inst := &Instance{
		Def:  def,
		Args: append([]Arg(nil), args...),
		key:  key,
	}
	parts := []string{"pinterface(" + braced(def.GUID)}
	for _, a := range args {
		sig, err := in.Signature(a.Sig)
		if err != nil {
			return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidInput).
				Type(key).
				Cause(err).
				Detail("cannot derive signature of argument %s", a.Sig).
				Build()
		}
		parts = append(parts, sig)
	}
	inst.Signature = strings.Join(parts, ";") + ")"
	inst.IID = IID(inst.Signature)
	inst.substitute()

	in.log.Debug("instantiated generic",
		zap.String("instance", key),
		zap.Stringer("iid", inst.IID))
	return inst, nil
}

// ResolveArg resolves a closed type signature into an argument, instantiating
// nested generic instances first.
func (in *Instantiator) ResolveArg(s metadata.TypeSig) (Arg, error) {
	arg := Arg{Sig: s}
	switch s.Kind {
	case metadata.SigPrimitive:
		return arg, nil
	case metadata.SigClass, metadata.SigValueType:
		if Builtin(s.Ref.FullName()) {
			return arg, nil
		}
		def, err := in.lookup.LookupDef(s.Ref)
		if err != nil {
			return Arg{}, err
		}
		arg.Def = def
		return arg, nil
	case metadata.SigGenericInst:
		inst, err := in.InstantiateSig(s)
		if err != nil {
			return Arg{}, err
		}
		arg.Def = inst.Def
		arg.Instance = inst
		return arg, nil
	}
	return Arg{}, errors.InvalidInput(errors.PhaseInstantiate, "type argument "+s.String()+" is not closed")
}

// InstantiateSig resolves the template and arguments of a generic instance
// signature and instantiates it.
func (in *Instantiator) InstantiateSig(s metadata.TypeSig) (*Instance, error) {
	if s.Kind != metadata.SigGenericInst {
		return nil, errors.InvalidInput(errors.PhaseInstantiate, s.String()+" is not a generic instance")
	}
	def, err := in.lookup.LookupDef(s.Ref)
	if err != nil {
		return nil, err
	}
	args := make([]Arg, len(s.Args))
	for i, a := range s.Args {
		if args[i], err = in.ResolveArg(a); err != nil {
			return nil, err
		}
	}
	return in.Instantiate(def, args)
}

// Lookup returns the instance with the given canonical key, if built
func (in *Instantiator) Lookup(key string) (*Instance, bool) {
	in.mu.Lock()
	e, ok := in.entries[key]
	in.mu.Unlock()
	if !ok || !e.ready.Load() {
		return nil, false
	}
	return e.inst, e.inst != nil
}

// Instances returns every successfully built instance sorted by key.
// Instances still being built are omitted.
func (in *Instantiator) Instances() []*Instance {
	in.mu.Lock()
	entries := make([]*entry, 0, len(in.entries))
	for _, e := range in.entries {
		entries = append(entries, e)
	}
	in.mu.Unlock()

	var out []*Instance
	for _, e := range entries {
		if e.ready.Load() && e.inst != nil {
			out = append(out, e.inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Len returns the number of successfully built instances
func (in *Instantiator) Len() int {
	return len(in.Instances())
}
