package graph_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/metadata/mdbuild"
)

func iid(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}

func load(t *testing.T, b *mdbuild.Builder) *metadata.Source {
	t.Helper()
	src, err := b.Load()
	if err != nil {
		t.Fatalf("load %s: %v", b.Name(), err)
	}
	return src
}

func resolve(t *testing.T, req graph.Request) *graph.Graph {
	t.Helper()
	g, err := graph.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return g
}

func hasKind(rejs []errors.Rejection, kind errors.Kind, typ string) bool {
	for _, r := range rejs {
		if r.Err.Kind == kind && r.Type == typ {
			return true
		}
	}
	return false
}

func TestCycleVisitsEachNodeOnce(t *testing.T) {
	b := mdbuild.New("Cycle")
	b.Interface("Cycle", "IA", iid(1)).Method("Next", mdbuild.Ref("Cycle.IB"))
	b.Interface("Cycle", "IB", iid(2)).
		Method("Back", mdbuild.Ref("Cycle.IA")).
		Method("Self", mdbuild.Ref("Cycle.IB"))
	src := load(t, b)

	g := resolve(t, graph.Request{Roots: []string{"Cycle.IA", "Cycle.IB"}, Sources: []*metadata.Source{src}, Workers: 2})

	if !g.Report().Empty() {
		t.Fatalf("unexpected rejections: %v", g.Report())
	}
	nodes := g.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(nodes))
	}
	for _, n := range nodes {
		if n.Visits() != 1 {
			t.Errorf("%s expanded %d times", n.Key, n.Visits())
		}
		if n.State() != graph.StateResolving {
			t.Errorf("%s state = %s", n.Key, n.State())
		}
	}
	edges := g.Edges(graph.Key{Namespace: "Cycle", Name: "IB"})
	if len(edges) != 1 || edges[0].Name != "IA" {
		t.Errorf("IB edges = %v (self edges are dropped)", edges)
	}
}

func TestUnresolvedRejectsDependentRoots(t *testing.T) {
	b := mdbuild.New("App")
	b.Interface("App", "IBroken", iid(1)).Method("Use", mdbuild.Void, mdbuild.In("x", mdbuild.Ref("Missing.Thing")))
	b.Interface("App", "IWidget", iid(2)).Method("Broken", mdbuild.Ref("App.IBroken"))
	b.Class("App", "Widget").ImplementsDefault(mdbuild.Ref("App.IWidget"))
	b.Interface("App", "IFine", iid(3)).Method("Name", mdbuild.String)
	src := load(t, b)

	g := resolve(t, graph.Request{
		Roots:   []string{"App.Widget", "App.IFine"},
		Sources: []*metadata.Source{src},
	})
	report := g.Report()

	if !report.Rejected("App.Widget") {
		t.Fatal("Widget should be rejected")
	}
	if report.Rejected("App.IFine") {
		t.Error("IFine does not reach the broken type")
	}
	rejs := report.ForRoot("App.Widget")
	if !hasKind(rejs, errors.KindUnresolvedReference, "Missing.Thing") {
		t.Errorf("missing unresolved entry naming Missing.Thing: %v", rejs)
	}
	if !hasKind(rejs, errors.KindDependencyRejected, "App.Widget") {
		t.Errorf("missing dependency_rejected entry: %v", rejs)
	}

	for _, name := range []string{"IBroken", "IWidget", "Widget"} {
		n, ok := g.Node(graph.Key{Namespace: "App", Name: name})
		if !ok {
			t.Fatalf("node %s missing", name)
		}
		if !n.Rejected() {
			t.Errorf("%s should be rejected", name)
		}
	}
	broken, _ := g.Node(graph.Key{Namespace: "App", Name: "IBroken"})
	if len(broken.Errors()) != 1 {
		t.Errorf("IBroken errors = %v", broken.Errors())
	}
	widget, _ := g.Node(graph.Key{Namespace: "App", Name: "Widget"})
	if len(widget.Errors()) != 0 || widget.Err() == nil || widget.Err().Kind != errors.KindDependencyRejected {
		t.Errorf("Widget should carry only a dependency cause, got %v", widget.Err())
	}
	fine, _ := g.Node(graph.Key{Namespace: "App", Name: "IFine"})
	if fine.Rejected() {
		t.Error("IFine node should not be rejected")
	}
}

func TestMissingRoot(t *testing.T) {
	b := mdbuild.New("App")
	b.Interface("App", "IFine", iid(1))
	src := load(t, b)

	dep := mdbuild.New("Dep")
	dep.Interface("Dep", "IOnlyDependency", iid(2))

	g := resolve(t, graph.Request{
		Roots:        []string{"App.Nope", "Dep.IOnlyDependency"},
		Sources:      []*metadata.Source{src},
		Dependencies: []*metadata.Source{load(t, dep)},
	})
	for _, root := range []string{"App.Nope", "Dep.IOnlyDependency"} {
		if !hasKind(g.Report().ForRoot(root), errors.KindUnresolvedReference, root) {
			t.Errorf("%s: expected unresolved reference, got %v", root, g.Report().ForRoot(root))
		}
	}
	if len(g.Roots()) != 0 || g.Len() != 0 {
		t.Errorf("roots=%v nodes=%d", g.Roots(), g.Len())
	}
}

func sharedThing(name string, extraMethod bool) *mdbuild.Builder {
	b := mdbuild.New(name)
	t := b.Interface("Shared", "IThing", iid(7)).Method("Get", mdbuild.Int32)
	if extraMethod {
		t.Method("Set", mdbuild.Void, mdbuild.In("v", mdbuild.Int32))
	}
	return b
}

func appUsingThing() *mdbuild.Builder {
	b := mdbuild.New("App")
	b.Interface("App", "IUser", iid(1)).Method("Thing", mdbuild.Ref("Shared.IThing"))
	return b
}

func TestAmbiguousReference(t *testing.T) {
	g := resolve(t, graph.Request{
		Roots:   []string{"App.IUser"},
		Sources: []*metadata.Source{load(t, appUsingThing())},
		Dependencies: []*metadata.Source{
			load(t, sharedThing("SharedA", false)),
			load(t, sharedThing("SharedB", true)),
		},
	})
	rejs := g.Report().ForRoot("App.IUser")
	var found *errors.Error
	for _, r := range rejs {
		if r.Err.Kind == errors.KindAmbiguousReference {
			found = r.Err
		}
	}
	if found == nil {
		t.Fatalf("expected ambiguous reference, got %v", rejs)
	}
	if found.Type != "Shared.IThing" || len(found.Candidates) != 2 ||
		found.Candidates[0] != "SharedA.winmd" || found.Candidates[1] != "SharedB.winmd" {
		t.Errorf("ambiguity = %+v", found)
	}
}

func TestAmbiguousRoot(t *testing.T) {
	app := mdbuild.New("App")
	app.Interface("Demo", "IFoo", iid(1)).Method("M", mdbuild.Int32)
	dep := mdbuild.New("Dep")
	dep.Interface("Demo", "IFoo", iid(1)).
		Method("M", mdbuild.String).
		Method("N", mdbuild.Int32)

	g := resolve(t, graph.Request{
		Roots:        []string{"Demo.IFoo"},
		Sources:      []*metadata.Source{load(t, app)},
		Dependencies: []*metadata.Source{load(t, dep)},
	})
	rejs := g.Report().ForRoot("Demo.IFoo")
	if !hasKind(rejs, errors.KindAmbiguousReference, "Demo.IFoo") {
		t.Fatalf("expected ambiguous root, got %v", rejs)
	}
	if len(rejs[0].Err.Candidates) != 2 {
		t.Errorf("candidates = %v", rejs[0].Err.Candidates)
	}
	if len(g.Roots()) != 0 {
		t.Errorf("roots = %v", g.Roots())
	}
}

func TestIdenticalDuplicatesCollapse(t *testing.T) {
	g := resolve(t, graph.Request{
		Roots:   []string{"App.IUser"},
		Sources: []*metadata.Source{load(t, appUsingThing())},
		Dependencies: []*metadata.Source{
			load(t, sharedThing("SharedA", false)),
			load(t, sharedThing("SharedB", false)),
		},
	})
	if !g.Report().Empty() {
		t.Fatalf("identical definitions should collapse: %v", g.Report())
	}
	n, ok := g.Node(graph.Key{Namespace: "Shared", Name: "IThing"})
	if !ok {
		t.Fatal("Shared.IThing missing")
	}
	if n.Exported {
		t.Error("dependency definitions are not exported")
	}
}

func brokenDependency() *metadata.Source {
	b := mdbuild.New("Dep")
	b.Interface("Dep", "IUsed", iid(10)).Method("Ok", mdbuild.Bool)
	b.Interface("Dep", "IUnused", iid(11)).Method("Bad", mdbuild.Ref("Gone.Away"))
	src, err := b.Load()
	if err != nil {
		panic(err)
	}
	return src
}

func TestValidationModes(t *testing.T) {
	app := mdbuild.New("App")
	app.Interface("App", "IRoot", iid(1)).Method("Dep", mdbuild.Ref("Dep.IUsed"))
	src := load(t, app)

	for _, mode := range []graph.ValidationMode{graph.ValidateLazy, graph.ValidateEager} {
		t.Run(mode.String(), func(t *testing.T) {
			g := resolve(t, graph.Request{
				Roots:        []string{"App.IRoot"},
				Sources:      []*metadata.Source{src},
				Dependencies: []*metadata.Source{brokenDependency()},
				Validation:   mode,
			})
			report := g.Report()
			if report.Rejected("App.IRoot") {
				t.Fatalf("root should not be rejected: %v", report)
			}
			deps := report.Dependencies()
			switch mode {
			case graph.ValidateLazy:
				if len(deps) != 0 {
					t.Errorf("lazy mode reported %v", deps)
				}
			case graph.ValidateEager:
				if !hasKind(deps, errors.KindUnresolvedReference, "Gone.Away") {
					t.Errorf("eager mode should warn about Gone.Away, got %v", deps)
				}
				if len(report.Rejections()) > 0 {
					t.Errorf("warnings must not reject roots: %v", report.Rejections())
				}
			}
			if _, ok := g.Node(graph.Key{Namespace: "Dep", Name: "IUnused"}); ok {
				t.Error("eager validation must not add nodes")
			}
		})
	}

	if m, err := graph.ParseValidationMode("Eager"); err != nil || m != graph.ValidateEager {
		t.Errorf("ParseValidationMode = %v, %v", m, err)
	}
	if _, err := graph.ParseValidationMode("sometimes"); err == nil {
		t.Error("unknown mode should fail")
	}
}

func fooBarBaz(t *testing.T) *metadata.Source {
	b := mdbuild.New("Demo")
	bazBar := mdbuild.Generic("Demo.IBar`1", mdbuild.ValueRef("Demo.Baz"))
	b.Interface("Demo", "IBar`1", iid(1)).Generic("T").
		Method("Get", metadata.Var(0))
	b.Struct("Demo", "Baz").Field("Value", mdbuild.Int32)
	b.Interface("Demo", "IFoo", iid(2)).
		Method("First", bazBar).
		Method("Second", mdbuild.Void, mdbuild.In("bar", bazBar))
	b.Class("Demo", "Foo").ImplementsDefault(mdbuild.Ref("Demo.IFoo"))
	return load(t, b)
}

func TestGenericInstanceScenario(t *testing.T) {
	g := resolve(t, graph.Request{Roots: []string{"Demo.Foo"}, Sources: []*metadata.Source{fooBarBaz(t)}})
	if !g.Report().Empty() {
		t.Fatalf("unexpected rejections: %v", g.Report())
	}

	insts := g.Instances()
	if len(insts) != 1 {
		t.Fatalf("instances = %d, want 1", len(insts))
	}
	if insts[0].Key() != "Demo.IBar`1<Demo.Baz>" {
		t.Errorf("instance = %s", insts[0].Key())
	}

	key := graph.Key{Namespace: "Demo", Name: "IBar`1", Args: "Demo.Baz"}
	n, ok := g.Node(key)
	if !ok {
		t.Fatalf("node %s missing", key)
	}
	if n.State() != graph.StateInstantiated || n.Instance != insts[0] || !n.Exported {
		t.Errorf("instance node state=%s exported=%v", n.State(), n.Exported)
	}
	if got := n.Methods()[0].Return.Type.String(); got != "Demo.Baz" {
		t.Errorf("substituted return = %s", got)
	}
	if byNode, ok := g.NodeFor(insts[0].Sig()); !ok || byNode != n {
		t.Error("NodeFor should find the instance node")
	}

	var keys []string
	for _, n := range g.Nodes() {
		keys = append(keys, n.Key.String())
	}
	want := []string{"Demo.Baz", "Demo.Foo", "Demo.IBar`1<Demo.Baz>", "Demo.IFoo"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("nodes = %v, want %v", keys, want)
	}
	if roots := g.Roots(); len(roots) != 1 || roots[0].Name != "Demo.Foo" {
		t.Errorf("roots = %v", roots)
	}
}

func TestInstanceRoot(t *testing.T) {
	src := fooBarBaz(t)
	for _, name := range []string{"Demo.IBar`1<Demo.Baz>", "Demo.IBar<Demo.Baz>"} {
		t.Run(name, func(t *testing.T) {
			g := resolve(t, graph.Request{Roots: []string{name}, Sources: []*metadata.Source{src}})
			if !g.Report().Empty() {
				t.Fatalf("unexpected rejections: %v", g.Report())
			}
			want := graph.Key{Namespace: "Demo", Name: "IBar`1", Args: "Demo.Baz"}
			roots := g.Roots()
			if len(roots) != 1 || roots[0].Name != name || roots[0].Key != want {
				t.Fatalf("roots = %v", roots)
			}
			n, _ := g.Node(want)
			if n.Instance == nil || n.State() != graph.StateInstantiated {
				t.Fatalf("root node = %+v", n)
			}
			if got := n.Methods()[0].Return.Type; got.Kind != metadata.SigValueType || got.String() != "Demo.Baz" {
				t.Errorf("substituted return = %s (kind %d)", got, got.Kind)
			}
			if _, ok := g.Node(graph.Key{Namespace: "Demo", Name: "Baz"}); !ok {
				t.Error("argument definition not reached")
			}
		})
	}
}

func TestRootErrors(t *testing.T) {
	tests := []struct {
		root string
		kind errors.Kind
		typ  string
	}{
		{"Demo.IBar`1", errors.KindArityMismatch, "Demo.IBar`1"},
		{"Demo.IBar`1<Demo.Baz, Int32>", errors.KindArityMismatch, "Demo.IBar`1"},
		{"Demo.IBar`1<Demo.Missing>", errors.KindUnresolvedReference, "Demo.Missing"},
		{"Demo.IBar`1<Demo.Baz", errors.KindInvalidInput, "Demo.IBar`1<Demo.Baz"},
		{"Int32", errors.KindInvalidInput, "Int32"},
	}
	src := fooBarBaz(t)
	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			g := resolve(t, graph.Request{Roots: []string{tt.root}, Sources: []*metadata.Source{src}})
			if rejs := g.Report().ForRoot(tt.root); !hasKind(rejs, tt.kind, tt.typ) {
				t.Errorf("expected %s for %s, got %v", tt.kind, tt.typ, rejs)
			}
			if len(g.Roots()) != 0 {
				t.Errorf("roots = %v", g.Roots())
			}
		})
	}
}

func TestArityMismatchRejects(t *testing.T) {
	b := mdbuild.New("Demo")
	b.Interface("Demo", "IBox`1", iid(1)).Generic("T")
	b.Interface("Demo", "IUser", iid(2)).
		Method("Box", mdbuild.Generic("Demo.IBox`1", mdbuild.Int32, mdbuild.String))
	g := resolve(t, graph.Request{Roots: []string{"Demo.IUser"}, Sources: []*metadata.Source{load(t, b)}})

	if !hasKind(g.Report().ForRoot("Demo.IUser"), errors.KindArityMismatch, "Demo.IBox`1") {
		t.Errorf("expected arity mismatch, got %v", g.Report())
	}
}

func TestManyRootsConverge(t *testing.T) {
	b := mdbuild.New("Wide")
	b.Interface("Wide", "IShared", iid(1000)).Method("Ping", mdbuild.Void)
	var roots []string
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("IRoot%d", i)
		b.Interface("Wide", name, iid(i+1)).Method("Shared", mdbuild.Ref("Wide.IShared"))
		roots = append(roots, "Wide."+name)
	}
	g := resolve(t, graph.Request{Roots: roots, Sources: []*metadata.Source{load(t, b)}, Workers: 8})

	if g.Len() != 41 {
		t.Fatalf("nodes = %d, want 41", g.Len())
	}
	for _, n := range g.Nodes() {
		if n.Visits() != 1 {
			t.Errorf("%s expanded %d times", n.Key, n.Visits())
		}
	}
}

func TestResolveRejectsEmptyRequest(t *testing.T) {
	if _, err := graph.Resolve(context.Background(), graph.Request{Roots: []string{"A.B"}}); err == nil {
		t.Error("expected error without sources")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := mdbuild.New("App")
	b.Interface("App", "IFine", iid(1))
	if _, err := graph.Resolve(ctx, graph.Request{Roots: []string{"App.IFine"}, Sources: []*metadata.Source{load(t, b)}}); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestStateAdvance(t *testing.T) {
	tests := []struct {
		from, to graph.State
		ok       bool
	}{
		{graph.StateDiscovered, graph.StateResolving, true},
		{graph.StateResolving, graph.StateInstantiated, true},
		{graph.StateResolving, graph.StateSynthesized, true},
		{graph.StateInstantiated, graph.StateSynthesized, true},
		{graph.StateSynthesized, graph.StateEmitted, true},
		{graph.StateDiscovered, graph.StateRejected, true},
		{graph.StateSynthesized, graph.StateRejected, true},
		{graph.StateDiscovered, graph.StateEmitted, false},
		{graph.StateEmitted, graph.StateRejected, false},
		{graph.StateRejected, graph.StateResolving, false},
		{graph.StateInstantiated, graph.StateResolving, false},
	}
	for _, tt := range tests {
		got, err := tt.from.Advance(tt.to)
		if tt.ok && (err != nil || got != tt.to) {
			t.Errorf("%s -> %s: %v", tt.from, tt.to, err)
		}
		if !tt.ok && (err == nil || got != tt.from) {
			t.Errorf("%s -> %s should fail", tt.from, tt.to)
		}
	}
}
