package graph

import (
	"sort"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/graph/internal/arena"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// Root is a requested root that was found in an exported source
type Root struct {
	Name string
	Key  Key
}

// Graph is the closure of the requested roots. It is read-only once Resolve
// returns, except for node state transitions.
type Graph struct {
	nodes  *arena.Arena[*Node]
	report *errors.RejectionReport
	inst   *generic.Instantiator
	roots  []Root
}

// Nodes returns every node ordered by namespace, name, then arguments
func (g *Graph) Nodes() []*Node {
	nodes := g.nodes.All()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key.Less(nodes[j].Key) })
	return nodes
}

// Node returns the node with the given key
func (g *Graph) Node(k Key) (*Node, bool) {
	return g.nodes.Find(k.String())
}

// NodeFor returns the node a named or generic instance signature resolves to
func (g *Graph) NodeFor(s metadata.TypeSig) (*Node, bool) {
	k, ok := KeyOf(s)
	if !ok {
		return nil, false
	}
	return g.Node(k)
}

// Roots returns the roots found in the exported sources, in request order
func (g *Graph) Roots() []Root {
	out := make([]Root, len(g.roots))
	copy(out, g.roots)
	return out
}

// Edges returns the keys referenced by the node k
func (g *Graph) Edges(k Key) []Key {
	n, ok := g.Node(k)
	if !ok {
		return nil
	}
	return n.Edges()
}

// Instances returns the generic instances in the graph, ordered by key
func (g *Graph) Instances() []*generic.Instance {
	var out []*generic.Instance
	for _, n := range g.Nodes() {
		if n.Instance != nil {
			out = append(out, n.Instance)
		}
	}
	return out
}

// Instantiator returns the instantiator that built the graph's instances
func (g *Graph) Instantiator() *generic.Instantiator {
	return g.inst
}

// Report returns the rejection report of the run
func (g *Graph) Report() *errors.RejectionReport {
	return g.report
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return g.nodes.Len()
}

// Closure returns the nodes reachable from k, including k, ordered by key
func (g *Graph) Closure(k Key) []*Node {
	start, ok := g.Node(k)
	if !ok {
		return nil
	}
	seen := map[Key]bool{k: true}
	out := []*Node{start}
	for i := 0; i < len(out); i++ {
		for _, e := range out[i].Edges() {
			if seen[e] {
				continue
			}
			seen[e] = true
			if n, ok := g.Node(e); ok {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
