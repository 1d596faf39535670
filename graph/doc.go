// Package graph resolves requested root types into a closed type graph.
//
// Resolve walks every root breadth first across the exported and dependency
// metadata sources. Each reference in a signature, interface list or
// activation attribute becomes an edge to a node keyed by namespace, name and
// canonical generic arguments; generic instances are built by a shared
// generic.Instantiator. Cycles terminate on the visited set.
//
// Failures never stop the walk. Unresolved, ambiguous and mis-instantiated
// references reject the node that made them, every node that reaches it and
// every root whose closure contains it; the graph's report lists each broken
// root with its root causes.
package graph
