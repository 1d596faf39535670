package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/graph/internal/arena"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// ValidationMode selects how much of the dependency sources is checked
type ValidationMode uint8

const (
	// ValidateLazy checks only definitions reached from a root
	ValidateLazy ValidationMode = iota
	// ValidateEager also resolves every definition of the dependency
	// sources and reports their failures as warnings
	ValidateEager
)

func (m ValidationMode) String() string {
	if m == ValidateEager {
		return "eager"
	}
	return "lazy"
}

// ParseValidationMode parses "lazy" or "eager"; empty means lazy
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return ValidateLazy, nil
	case "eager":
		return ValidateEager, nil
	}
	return ValidateLazy, fmt.Errorf("unknown validation mode %q", s)
}

// Request describes one resolution run
type Request struct {
	// Roots are "Namespace.Name" identifiers, or generic instances with
	// explicit arguments such as "Namespace.Name`1<Int32>"
	Roots []string
	// Sources are the exported sources; roots must be defined here
	Sources []*metadata.Source
	// Dependencies contribute definitions reached transitively
	Dependencies []*metadata.Source
	Validation   ValidationMode
	// Workers bounds parallel root resolution; zero means GOMAXPROCS
	Workers int
	// Logger replaces the package logger for this run. The instantiator
	// logs under "generic" below it.
	Logger *zap.Logger
}

type lookupResult struct {
	def *metadata.TypeDef
	err error
}

// resolver holds the shared state of one run
type resolver struct {
	nodes    *arena.Arena[*Node]
	inst     *generic.Instantiator
	report   *errors.RejectionReport
	cache    map[string]lookupResult
	exported map[*metadata.Source]bool
	sources  []*metadata.Source
	flight   singleflight.Group
	log      *zap.Logger
	mu       sync.RWMutex
}

// Resolve computes the closure of every root across the sources. Failures of
// individual roots are collected in the graph's report; the returned error is
// reserved for invalid requests and cancellation.
func Resolve(ctx context.Context, req Request) (*Graph, error) {
	if len(req.Sources) == 0 {
		return nil, errors.InvalidInput(errors.PhaseResolve, "no metadata sources")
	}
	if len(req.Roots) == 0 {
		return nil, errors.InvalidInput(errors.PhaseResolve, "no roots requested")
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	r := &resolver{
		nodes:    arena.New[*Node](),
		report:   errors.NewRejectionReport(),
		cache:    make(map[string]lookupResult),
		exported: make(map[*metadata.Source]bool),
		log:      Logger(),
	}
	if req.Logger != nil {
		r.log = req.Logger
	}
	for _, src := range req.Sources {
		r.exported[src] = true
	}
	r.sources = append(append(r.sources, req.Sources...), req.Dependencies...)
	r.inst = generic.New(r)
	if req.Logger != nil {
		r.inst.WithLogger(req.Logger.Named("generic"))
	}

	roots := make([]*Node, len(req.Roots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range req.Roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := r.root(name)
			if err != nil {
				r.report.Add(name, err)
				return nil
			}
			roots[i] = n
			r.walk(n)
			return nil
		})
	}
	if req.Validation == ValidateEager {
		for _, src := range req.Dependencies {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.validateSource(src)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	gr := &Graph{
		nodes:  r.nodes,
		report: r.report,
		inst:   r.inst,
	}
	for i, n := range roots {
		if n == nil {
			continue
		}
		gr.roots = append(gr.roots, Root{Name: req.Roots[i], Key: n.Key})
	}
	r.propagate(gr)

	r.log.Debug("resolved type graph",
		zap.Int("roots", len(req.Roots)),
		zap.Int("nodes", r.nodes.Len()),
		zap.Int("instances", r.inst.Len()),
		zap.Bool("rejected", !r.report.Empty()))
	return gr, nil
}

// root resolves a requested root. The name is looked up across every
// source so that a dependency defining it differently is reported as
// ambiguous, but the definition must come from an exported source. A
// generic instance root names its arguments explicitly; a bare template is
// an arity mismatch.
func (r *resolver) root(name string) (*Node, *errors.Error) {
	sig, err := metadata.ParseTypeSig(name)
	if err != nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidInput).
			Type(name).
			Cause(err).
			Detail("malformed root name").
			Build()
	}
	if sig.Kind == metadata.SigPrimitive || generic.Builtin(sig.Ref.FullName()) {
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidInput).
			Type(name).
			Detail("root must name a metadata type").
			Build()
	}

	def, err := r.LookupDef(sig.Ref)
	if err != nil {
		return nil, asError(err, name)
	}
	if sig.Kind != metadata.SigGenericInst {
		if !r.exportedDef(def) {
			return nil, onlyDependency(name)
		}
		if def.IsGeneric() {
			return nil, errors.ArityMismatch(def.FullName(), def.Arity(), 0)
		}
		return r.intern(DefKey(def), def, nil), nil
	}

	if sig, err = r.closeSig(sig); err != nil {
		return nil, asError(err, name)
	}
	inst, err := r.inst.InstantiateSig(sig)
	if err != nil {
		return nil, asError(err, name)
	}
	if !r.isExported(inst.Def, inst) {
		return nil, onlyDependency(name)
	}
	return r.intern(InstanceKey(inst), inst.Def, inst), nil
}

func onlyDependency(name string) *errors.Error {
	e := errors.Unresolved(name, nil)
	e.Detail = "defined only by dependency sources"
	return e
}

// closeSig marks named arguments of a parsed instance that refer to structs
// or enums as value types, matching signatures decoded from metadata.
func (r *resolver) closeSig(s metadata.TypeSig) (metadata.TypeSig, error) {
	switch s.Kind {
	case metadata.SigClass:
		if generic.Builtin(s.Ref.FullName()) {
			return s, nil
		}
		def, err := r.LookupDef(s.Ref)
		if err != nil {
			return s, err
		}
		if def.Kind == metadata.KindStruct || def.Kind == metadata.KindEnum {
			s.Kind = metadata.SigValueType
		}
	case metadata.SigGenericInst:
		def, err := r.LookupDef(s.Ref)
		if err != nil {
			return s, err
		}
		args := make([]metadata.TypeSig, len(s.Args))
		for i, a := range s.Args {
			if args[i], err = r.closeSig(a); err != nil {
				return s, err
			}
		}
		s.Args = args
		s.ValueType = def.Kind == metadata.KindStruct
	}
	return s, nil
}

// asError returns err as a structured error
func asError(err error, typ string) *errors.Error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return errors.New(errors.PhaseResolve, errors.KindInvalidInput).Type(typ).Cause(err).Detail("root failed").Build()
	}
	return e
}

func (r *resolver) intern(key Key, def *metadata.TypeDef, inst *generic.Instance) *Node {
	_, n, created := r.nodes.Intern(key.String(), func(id arena.ID) *Node {
		n := newNode(id, key, def, inst)
		n.Exported = r.isExported(def, inst)
		return n
	})
	if created {
		r.log.Debug("discovered node", zap.Stringer("key", key))
	}
	return n
}

// isExported reports whether a definition comes from an exported source.
// Instances follow their template or any exported argument.
func (r *resolver) isExported(def *metadata.TypeDef, inst *generic.Instance) bool {
	if r.exportedDef(def) {
		return true
	}
	if inst == nil {
		return false
	}
	for _, a := range inst.Args {
		if a.Instance != nil && r.isExported(a.Instance.Def, a.Instance) {
			return true
		}
		if a.Def != nil && r.exportedDef(a.Def) {
			return true
		}
	}
	return false
}

func (r *resolver) exportedDef(def *metadata.TypeDef) bool {
	for src := range r.exported {
		if d, ok := src.LookupType(def.Namespace, def.Name); ok && d == def {
			return true
		}
	}
	return false
}

// walk visits the closure of n breadth first. Every node is expanded exactly
// once across all workers; a worker reaching a node another worker is
// expanding waits for it.
func (r *resolver) walk(start *Node) {
	seen := map[Key]bool{start.Key: true}
	queue := []*Node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		n.expand.Do(func() {
			n.visits.Add(1)
			r.expand(n)
		})
		for _, k := range n.Edges() {
			if seen[k] {
				continue
			}
			seen[k] = true
			if next, ok := r.nodes.Find(k.String()); ok {
				queue = append(queue, next)
			}
		}
	}
}

// expand resolves every reference of n into an edge
func (r *resolver) expand(n *Node) {
	if err := n.Advance(StateResolving); err != nil {
		return
	}
	for _, sig := range references(n) {
		target, err := r.resolveSig(sig)
		if err != nil {
			n.reject(withPath(err, n.Key))
			continue
		}
		if target != nil {
			n.addEdge(target.Key)
		}
	}
	if n.Instance != nil {
		_ = n.Advance(StateInstantiated)
	}
}

// resolveSig maps a reference to its node; core library types map to nil
func (r *resolver) resolveSig(s metadata.TypeSig) (*Node, error) {
	switch s.Kind {
	case metadata.SigClass, metadata.SigValueType:
		if generic.Builtin(s.Ref.FullName()) {
			return nil, nil
		}
		def, err := r.LookupDef(s.Ref)
		if err != nil {
			return nil, err
		}
		return r.intern(DefKey(def), def, nil), nil
	case metadata.SigGenericInst:
		inst, err := r.inst.InstantiateSig(s)
		if err != nil {
			return nil, err
		}
		return r.intern(InstanceKey(inst), inst.Def, inst), nil
	}
	return nil, nil
}

// LookupDef implements generic.Lookup across every source. Lookups of one
// name converge on a single search.
func (r *resolver) LookupDef(ref metadata.TypeRef) (*metadata.TypeDef, error) {
	name := ref.FullName()
	r.mu.RLock()
	res, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return res.def, res.err
	}

	v, _, _ := r.flight.Do(name, func() (any, error) {
		def, err := r.find(ref)
		res := lookupResult{def: def}
		if err != nil {
			res.err = err
		}
		r.mu.Lock()
		r.cache[name] = res
		r.mu.Unlock()
		return res, nil
	})
	res = v.(lookupResult)
	return res.def, res.err
}

func (r *resolver) find(ref metadata.TypeRef) (*metadata.TypeDef, *errors.Error) {
	var found []*metadata.TypeDef
	var cands []string
	seen := make(map[uint64]bool)
	for _, src := range r.sources {
		def, ok := src.LookupType(ref.Namespace, ref.Name)
		if !ok {
			continue
		}
		cands = append(cands, src.Name)
		if fp := fingerprint(def); !seen[fp] {
			seen[fp] = true
			found = append(found, def)
		}
	}
	switch {
	case len(found) == 0:
		return nil, errors.Unresolved(ref.FullName(), nil)
	case len(found) > 1:
		sort.Strings(cands)
		return nil, errors.Ambiguous(ref.FullName(), cands)
	}
	return found[0], nil
}

// validateSource eagerly resolves every reference of every definition of a
// dependency source without adding nodes to the graph.
func (r *resolver) validateSource(src *metadata.Source) {
	for _, def := range src.Types() {
		if !def.Kind.Projected() {
			continue
		}
		probe := newNode(0, DefKey(def), def, nil)
		for _, sig := range references(probe) {
			var err error
			switch {
			case sig.Kind == metadata.SigGenericInst:
				_, err = r.inst.InstantiateSig(sig)
			case !generic.Builtin(sig.Ref.FullName()):
				_, err = r.LookupDef(sig.Ref)
			}
			if err != nil {
				r.report.AddDependency(withPath(err, probe.Key))
			}
		}
	}
	r.log.Debug("validated dependency source", zap.String("source", src.Name))
}

// propagate rejects every node that reaches a rejected node and records,
// per root, the root causes and the dependency that carried them.
func (r *resolver) propagate(g *Graph) {
	nodes := g.Nodes()
	reverse := make(map[Key][]*Node)
	var broken []*Node
	for _, n := range nodes {
		for _, k := range n.Edges() {
			reverse[k] = append(reverse[k], n)
		}
		if len(n.Errors()) > 0 {
			broken = append(broken, n)
		}
	}

	for _, b := range broken {
		cause := b.Err()
		queue := []*Node{b}
		seen := map[Key]bool{b.Key: true}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for _, dep := range reverse[n.Key] {
				if seen[dep.Key] {
					continue
				}
				seen[dep.Key] = true
				dep.rejectDependency(errors.DependencyRejected(dep.Key.String(), b.Key.String(), cause))
				queue = append(queue, dep)
			}
		}
	}

	for _, root := range g.roots {
		var via *Node
		for _, n := range g.Closure(root.Key) {
			errs := n.Errors()
			for _, err := range errs {
				r.report.Add(root.Name, err)
			}
			if len(errs) > 0 && n.Key != root.Key && via == nil {
				via = n
			}
		}
		if via != nil {
			r.report.Add(root.Name, errors.DependencyRejected(root.Name, via.Key.String(), via.Err()))
		}
	}
}

// withPath copies err with the referencing node as its path
func withPath(err error, from Key) *errors.Error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.Wrap(errors.PhaseResolve, errors.KindInvalidInput, err, "reference failed")
	}
	cp := *e
	cp.Path = []string{from.String()}
	return &cp
}
