package graph

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/graph/internal/arena"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// Node is one definition or generic instance reached from a root
type Node struct {
	Def *metadata.TypeDef
	// Instance is set for generic instances; Def is then the template
	Instance *generic.Instance
	Key      Key
	// Exported is set when the definition comes from an exported source.
	// Instances are exported when their template or any argument is.
	Exported bool

	edges  map[Key]struct{}
	errs   []*errors.Error
	cause  *errors.Error
	expand sync.Once
	visits atomic.Int32
	id     arena.ID
	state  State
	mu     sync.Mutex
}

func newNode(id arena.ID, key Key, def *metadata.TypeDef, inst *generic.Instance) *Node {
	return &Node{
		id:       id,
		Key:      key,
		Def:      def,
		Instance: inst,
		edges:    make(map[Key]struct{}),
	}
}

// ID returns the node's arena identifier
func (n *Node) ID() uint32 {
	return uint32(n.id)
}

// Kind returns the kind of the underlying definition
func (n *Node) Kind() metadata.Kind {
	return n.Def.Kind
}

// Template reports whether the node is an uninstantiated generic definition
func (n *Node) Template() bool {
	return n.Instance == nil && n.Def.IsGeneric()
}

// Visits returns how many times the node was expanded
func (n *Node) Visits() int {
	return int(n.visits.Load())
}

// State returns the lifecycle state
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Advance moves the node to next, validating the transition
func (n *Node) Advance(next State) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, err := n.state.Advance(next)
	if err != nil {
		return err
	}
	n.state = s
	return nil
}

// Errors returns the failures found while resolving this node's own
// references. Nodes rejected only through a dependency have none.
func (n *Node) Errors() []*errors.Error {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*errors.Error, len(n.errs))
	copy(out, n.errs)
	return out
}

// Err returns the reason the node was rejected, or nil
func (n *Node) Err() *errors.Error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errs) > 0 {
		return n.errs[0]
	}
	return n.cause
}

// Rejected reports whether the node cannot be emitted
func (n *Node) Rejected() bool {
	return n.State() == StateRejected
}

func (n *Node) reject(err *errors.Error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
	if !n.state.Terminal() {
		n.state = StateRejected
	}
}

func (n *Node) rejectDependency(err *errors.Error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cause == nil && len(n.errs) == 0 {
		n.cause = err
	}
	if !n.state.Terminal() {
		n.state = StateRejected
	}
}

func (n *Node) addEdge(k Key) {
	if k == n.Key {
		return
	}
	n.mu.Lock()
	n.edges[k] = struct{}{}
	n.mu.Unlock()
}

// Edges returns the keys n references, sorted
func (n *Node) Edges() []Key {
	n.mu.Lock()
	out := make([]Key, 0, len(n.edges))
	for k := range n.edges {
		out = append(out, k)
	}
	n.mu.Unlock()
	sortKeys(out)
	return out
}

// Methods returns the node's methods, substituted for instances
func (n *Node) Methods() []*metadata.Method {
	if n.Instance != nil {
		return n.Instance.Methods()
	}
	return n.Def.Methods
}

// Interfaces returns the node's required or implemented interfaces
func (n *Node) Interfaces() []metadata.InterfaceImpl {
	if n.Instance != nil {
		return n.Instance.Interfaces()
	}
	return n.Def.Interfaces
}

// Properties returns the node's properties, substituted for instances
func (n *Node) Properties() []*metadata.Property {
	if n.Instance != nil {
		return n.Instance.Properties()
	}
	return n.Def.Properties
}

// Events returns the node's events, substituted for instances
func (n *Node) Events() []*metadata.Event {
	if n.Instance != nil {
		return n.Instance.Events()
	}
	return n.Def.Events
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
