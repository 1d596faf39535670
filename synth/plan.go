package synth

import (
	"sort"
	"strings"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// pkg is the Go package generated for one namespace
type pkg struct {
	namespace string
	path      string
	name      string
}

// entry places one node in a package under a Go name
type entry struct {
	node *graph.Node
	pkg  *pkg
	name string
}

type pkgEdge struct {
	from, to string
}

// plan decides where every bindable node lives. Definitions live in their
// namespace's package, whichever source defines them. Generic instances live
// with their last named argument so that a namespace package never needs the
// package of a generic template.
type plan struct {
	g       *graph.Graph
	root    string
	entries map[graph.Key]*entry
	pkgs    map[string]*pkg
	// demoted holds package edges that may not be imported; object
	// references across them are typed as plain runtime objects.
	demoted map[pkgEdge]bool
}

func newPlan(g *graph.Graph, root string) (*plan, error) {
	p := &plan{
		g:       g,
		root:    root,
		entries: make(map[graph.Key]*entry),
		pkgs:    make(map[string]*pkg),
		demoted: make(map[pkgEdge]bool),
	}
	nodes := g.Nodes()
	for _, n := range nodes {
		if n.Template() || !n.Kind().Projected() || n.Rejected() {
			continue
		}
		e := &entry{node: n}
		if n.Instance == nil {
			e.pkg = p.pkgFor(n.Def.Namespace)
		} else {
			e.pkg = p.pkgFor(p.instanceHome(n.Instance))
		}
		p.entries[n.Key] = e
	}
	p.name(nodes)
	if err := p.breakCycles(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *plan) pkgFor(namespace string) *pkg {
	if pk, ok := p.pkgs[namespace]; ok {
		return pk
	}
	path, name := packagePath(p.root, namespace)
	pk := &pkg{namespace: namespace, path: path, name: name}
	p.pkgs[namespace] = pk
	return pk
}

// instanceHome returns the namespace of the last named argument of an
// instance, or the template's namespace when every argument is a primitive
// or core type.
func (p *plan) instanceHome(inst *generic.Instance) string {
	for i := len(inst.Args) - 1; i >= 0; i-- {
		a := inst.Args[i]
		switch {
		case a.Instance != nil:
			return p.instanceHome(a.Instance)
		case a.Def != nil:
			return a.Def.Namespace
		}
	}
	return inst.Def.Namespace
}

// name assigns Go type names, unique within each package, in key order
func (p *plan) name(nodes []*graph.Node) {
	seen := make(map[*pkg]map[string]bool)
	for _, n := range nodes {
		e := p.entries[n.Key]
		if e == nil {
			continue
		}
		if seen[e.pkg] == nil {
			seen[e.pkg] = make(map[string]bool)
		}
		base := typeName(n.Def)
		if n.Instance != nil {
			base = instanceName(n.Instance)
		}
		e.name = unique(base, seen[e.pkg])
	}
}

// emitted returns every entry ordered by key
func (p *plan) emitted() []*entry {
	out := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].node.Key.Less(out[j].node.Key) })
	return out
}

// lookup returns the entry a signature names
func (p *plan) lookup(s metadata.TypeSig) (*entry, bool) {
	k, ok := graph.KeyOf(s)
	if !ok {
		return nil, false
	}
	e, ok := p.entries[k]
	return e, ok
}

// isDemoted reports whether an object reference from one package to
// another must not import the target
func (p *plan) isDemoted(from, to *pkg) bool {
	return from != to && p.demoted[pkgEdge{from.path, to.path}]
}

// valueKind reports whether references to e are by value, which a package
// cycle cannot be broken on.
func valueKind(e *entry) bool {
	k := e.node.Kind()
	return k == metadata.KindStruct || k == metadata.KindEnum
}

// breakCycles demotes object references between packages of the same
// strongly connected component. Cycles made of value references alone
// cannot be bound.
func (p *plan) breakCycles() error {
	all := make(map[string]map[string]bool)
	values := make(map[string]map[string]bool)
	add := func(m map[string]map[string]bool, from, to string) {
		if m[from] == nil {
			m[from] = make(map[string]bool)
		}
		m[from][to] = true
	}

	type ref struct {
		from, to string
		value    bool
	}
	var refs []ref
	for _, e := range p.emitted() {
		for _, k := range e.node.Edges() {
			t := p.entries[k]
			if t == nil || t.pkg == e.pkg {
				continue
			}
			r := ref{from: e.pkg.path, to: t.pkg.path, value: valueKind(t)}
			refs = append(refs, r)
			add(all, r.from, r.to)
			if r.value {
				add(values, r.from, r.to)
			}
		}
	}

	component := components(all)
	for _, r := range refs {
		if !r.value && component[r.from] == component[r.to] {
			p.demoted[pkgEdge{r.from, r.to}] = true
		}
	}

	groups := make(map[int][]string)
	for path, c := range components(values) {
		groups[c] = append(groups[c], path)
	}
	for _, paths := range groups {
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		return errors.New(errors.PhaseSynthesize, errors.KindUnsupported).
			Path(paths...).
			Detail("packages %s reference each other's value types", strings.Join(paths, ", ")).
			Build()
	}
	return nil
}

// components labels every vertex of a directed graph with the index of its
// strongly connected component (Tarjan).
func components(edges map[string]map[string]bool) map[string]int {
	vertices := make([]string, 0, len(edges))
	seen := make(map[string]bool)
	for from, tos := range edges {
		if !seen[from] {
			seen[from] = true
			vertices = append(vertices, from)
		}
		for to := range tos {
			if !seen[to] {
				seen[to] = true
				vertices = append(vertices, to)
			}
		}
	}
	sort.Strings(vertices)

	index := make(map[string]int)
	low := make(map[string]int)
	onStack := make(map[string]bool)
	comp := make(map[string]int)
	var stack []string
	next, count := 0, 0

	var visit func(v string)
	visit = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		succ := make([]string, 0, len(edges[v]))
		for w := range edges[v] {
			succ = append(succ, w)
		}
		sort.Strings(succ)
		for _, w := range succ {
			if _, ok := index[w]; !ok {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = count
				if w == v {
					break
				}
			}
			count++
		}
	}
	for _, v := range vertices {
		if _, ok := index[v]; !ok {
			visit(v)
		}
	}
	return comp
}
