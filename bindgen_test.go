package bindgen_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	bindgen "github.com/wippyai/winrt-bindgen"
	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/manifest"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/metadata/mdbuild"
)

const root = "example.com/gen"

func iid(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}

// writeSource stores the metadata built by b in dir and returns its path
func writeSource(t *testing.T, dir string, b *mdbuild.Builder) string {
	t.Helper()
	blob, err := b.Build()
	require.NoError(t, err)
	path := filepath.Join(dir, b.Name()+".winmd")
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func demo() *mdbuild.Builder {
	b := mdbuild.New("Demo")
	bazBar := mdbuild.Generic("Demo.IBar`1", mdbuild.ValueRef("Demo.Baz"))
	b.Interface("Demo", "IBar`1", iid(1)).Generic("T").
		Method("Get", metadata.Var(0))
	b.Struct("Demo", "Baz").Field("Value", mdbuild.Int32)
	b.Interface("Demo", "IFoo", iid(2)).
		Method("First", bazBar).
		Method("Second", mdbuild.Void, mdbuild.In("bar", bazBar))
	b.Class("Demo", "Foo").ImplementsDefault(mdbuild.Ref("Demo.IFoo")).Activatable("")
	return b
}

func broken() *mdbuild.Builder {
	b := mdbuild.New("App")
	b.Interface("App", "IBroken", iid(1)).Method("Use", mdbuild.Void, mdbuild.In("x", mdbuild.Ref("Missing.Thing")))
	b.Interface("App", "IFine", iid(2)).Method("Name", mdbuild.String)
	return b
}

func request(roots []string, paths ...string) bindgen.Request {
	req := bindgen.Request{
		Options:     bindgen.DefaultOptions(),
		Roots:       roots,
		SourcePaths: paths,
	}
	req.ImportRoot = root
	return req
}

func TestGenerate(t *testing.T) {
	path := writeSource(t, t.TempDir(), demo())

	res, err := bindgen.Generate(context.Background(), request([]string{"Demo.Foo"}, path))
	require.NoError(t, err)
	require.NotNil(t, res.Manifest)

	require.Len(t, res.Files, 1)
	f := res.Files[0]
	assert.Equal(t, "demo/demo.go", f.Path)
	assert.Equal(t, root+"/demo", f.ImportPath)
	src := string(f.Source)
	assert.True(t, strings.HasPrefix(src, "// Code generated by winrt-bindgen. DO NOT EDIT."))
	for _, want := range []string{"type Foo struct", "func NewFoo() (*Foo, error)", "type IFoo struct", "type IBarOfBaz struct", "type Baz struct"} {
		assert.Contains(t, src, want)
	}

	m := res.Manifest
	assert.False(t, m.Rejected())
	assert.Equal(t, root, m.ImportRoot)
	assert.Equal(t, []string{"Demo.Foo"}, m.Roots)
	require.Len(t, m.Sources, 1)
	assert.Equal(t, path, m.Sources[0].Path)
	assert.NotZero(t, m.Sources[0].Digest)
	assert.False(t, m.Sources[0].Dependency)

	require.Len(t, m.Nodes, len(res.Bindings))
	nodes := make(map[string]manifest.Node)
	for _, n := range m.Nodes {
		nodes[n.Key] = n
	}
	assert.Equal(t, iid(2).String(), nodes["Demo.IFoo"].IID)
	assert.Equal(t, 2, nodes["Demo.IFoo"].Slots)
	assert.Equal(t, uint32(4), nodes["Demo.Baz"].Size)
	assert.Equal(t, "class", nodes["Demo.Foo"].Kind)
	assert.True(t, m.Unchanged("demo/demo.go", f.Source))

	for _, n := range res.Graph.Nodes() {
		if n.Template() {
			continue
		}
		assert.Equal(t, graph.StateEmitted, n.State(), n.Key.String())
	}
}

func TestGeneratePreloaded(t *testing.T) {
	src, err := demo().Load()
	require.NoError(t, err)

	req := bindgen.Request{Options: bindgen.DefaultOptions(), Roots: []string{"Demo.Foo"}}
	req.Sources = []*metadata.Source{src}
	req.Workers = 1
	res, err := bindgen.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "winrt/demo", res.Files[0].ImportPath)

	path := writeSource(t, t.TempDir(), demo())
	fromFile, err := bindgen.Generate(context.Background(), request([]string{"Demo.Foo"}, path))
	require.NoError(t, err)
	assert.Equal(t, src.Digest, fromFile.Manifest.Sources[0].Digest)
}

func TestGenerateRejected(t *testing.T) {
	path := writeSource(t, t.TempDir(), broken())

	res, err := bindgen.Generate(context.Background(), request([]string{"App.IBroken", "App.IFine"}, path))
	require.Error(t, err)
	var rep *errors.RejectionReport
	require.True(t, stderrors.As(err, &rep))
	assert.Equal(t, []string{"App.IBroken"}, rep.Roots())

	require.NotNil(t, res)
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Bindings)
	assert.True(t, res.Manifest.Rejected())
	assert.Empty(t, res.Manifest.Nodes)
	for _, r := range res.Manifest.Rejections {
		assert.Equal(t, "App.IBroken", r.Root)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, demo())
	bad := writeSource(t, dir, broken())

	rep, err := bindgen.Validate(context.Background(), request([]string{"Demo.Foo"}, good))
	require.NoError(t, err)
	assert.True(t, rep.Empty())

	rep, err = bindgen.Validate(context.Background(), request([]string{"App.IBroken", "App.IFine"}, bad))
	require.NoError(t, err)
	assert.True(t, rep.Rejected("App.IBroken"))
	assert.False(t, rep.Rejected("App.IFine"))
}

func TestDependencySources(t *testing.T) {
	dir := t.TempDir()
	base := mdbuild.New("Base")
	base.Struct("Base", "Size").Field("W", mdbuild.Int32).Field("H", mdbuild.Int32)
	app := mdbuild.New("App")
	app.Interface("App", "IView", iid(3)).Method("Size", mdbuild.ValueRef("Base.Size"))

	req := request([]string{"App.IView"}, writeSource(t, dir, app))
	req.DependencyPaths = []string{writeSource(t, dir, base)}
	res, err := bindgen.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Manifest.Sources, 2)
	assert.True(t, res.Manifest.Sources[1].Dependency)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "app/app.go", res.Files[0].Path)
	assert.Contains(t, string(res.Files[0].Source), `"example.com/gen/base"`)
	assert.Equal(t, "base/base.go", res.Files[1].Path)
	assert.Contains(t, string(res.Files[1].Source), "type Size struct")

	size, ok := res.Graph.Node(graph.Key{Namespace: "Base", Name: "Size"})
	require.True(t, ok)
	assert.False(t, size.Exported)
	assert.Equal(t, graph.StateEmitted, size.State())
}

func TestDependencyRootRejected(t *testing.T) {
	dir := t.TempDir()
	base := mdbuild.New("Base")
	base.Struct("Base", "Size").Field("W", mdbuild.Int32)
	app := mdbuild.New("App")
	app.Interface("App", "IView", iid(3)).Method("Size", mdbuild.ValueRef("Base.Size"))

	req := request([]string{"Base.Size"}, writeSource(t, dir, app))
	req.DependencyPaths = []string{writeSource(t, dir, base)}
	res, err := bindgen.Generate(context.Background(), req)
	var rep *errors.RejectionReport
	require.ErrorAs(t, err, &rep)
	assert.True(t, rep.Rejected("Base.Size"))
	assert.Empty(t, res.Files)
}

func TestGenerateInstanceRoot(t *testing.T) {
	path := writeSource(t, t.TempDir(), demo())
	res, err := bindgen.Generate(context.Background(), request([]string{"Demo.IBar`1<Demo.Baz>"}, path))
	require.NoError(t, err)
	require.Len(t, res.Bindings, 2)
	assert.Equal(t, "Demo.Baz", res.Bindings[0].Key.String())
	assert.Equal(t, "Demo.IBar`1<Demo.Baz>", res.Bindings[1].Key.String())
	require.Len(t, res.Files, 1)
	assert.Contains(t, string(res.Files[0].Source), "type IBarOfBaz struct")

	_, err = bindgen.Generate(context.Background(), request([]string{"Demo.IBar`1"}, path))
	var rep *errors.RejectionReport
	require.ErrorAs(t, err, &rep)
	rejs := rep.ForRoot("Demo.IBar`1")
	require.NotEmpty(t, rejs)
	assert.Equal(t, errors.KindArityMismatch, rejs[0].Err.Kind)
}

func TestRequestErrors(t *testing.T) {
	path := writeSource(t, t.TempDir(), demo())
	tests := []struct {
		name   string
		modify func(*bindgen.Request)
		kind   errors.Kind
		phase  errors.Phase
	}{
		{"no roots", func(r *bindgen.Request) { r.Roots = nil }, errors.KindInvalidInput, errors.PhaseConfig},
		{"no sources", func(r *bindgen.Request) { r.SourcePaths = nil }, errors.KindInvalidInput, errors.PhaseConfig},
		{"no import root", func(r *bindgen.Request) { r.ImportRoot = "" }, errors.KindInvalidInput, errors.PhaseConfig},
		{"negative workers", func(r *bindgen.Request) { r.Workers = -1 }, errors.KindInvalidInput, errors.PhaseConfig},
		{"missing file", func(r *bindgen.Request) { r.DependencyPaths = []string{path + ".none"} }, errors.KindNotFound, errors.PhaseLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request([]string{"Demo.Foo"}, path)
			tt.modify(&req)
			_, err := bindgen.Generate(context.Background(), req)
			assert.ErrorIs(t, err, &errors.Error{Phase: tt.phase, Kind: tt.kind})

			_, err = bindgen.Validate(context.Background(), req)
			assert.ErrorIs(t, err, &errors.Error{Phase: tt.phase, Kind: tt.kind})
		})
	}
}

func TestMalformedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.winmd")
	require.NoError(t, os.WriteFile(path, []byte("not metadata"), 0o644))

	_, err := bindgen.Generate(context.Background(), request([]string{"Demo.Foo"}, path))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindMalformedMetadata})
}

func TestWrite(t *testing.T) {
	path := writeSource(t, t.TempDir(), demo())
	out := t.TempDir()

	generate := func() *bindgen.Result {
		res, err := bindgen.Generate(context.Background(), request([]string{"Demo.Foo"}, path))
		require.NoError(t, err)
		return res
	}

	stats, err := generate().Write(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo/demo.go"}, stats.Written)
	written, err := os.ReadFile(filepath.Join(out, "demo", "demo.go"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "package demo")

	stats, err = generate().Write(out)
	require.NoError(t, err)
	assert.Empty(t, stats.Written)
	assert.Equal(t, []string{"demo/demo.go"}, stats.Unchanged)

	// A file the previous run produced and this one does not is removed
	prev, err := manifest.Read(out)
	require.NoError(t, err)
	require.NotNil(t, prev)
	stale := filepath.Join(out, "old", "old.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("package old\n"), 0o644))
	prev.AddFile("old/old.go", root+"/old", []byte("package old\n"))
	require.NoError(t, prev.Write(out))

	stats, err = generate().Write(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/old.go"}, stats.Removed)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	// Deleted output is rewritten even when the manifest records it
	require.NoError(t, os.Remove(filepath.Join(out, "demo", "demo.go")))
	stats, err = generate().Write(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo/demo.go"}, stats.Written)
}

func TestWriteRejected(t *testing.T) {
	path := writeSource(t, t.TempDir(), broken())
	out := t.TempDir()

	res, err := bindgen.Generate(context.Background(), request([]string{"App.IBroken"}, path))
	require.Error(t, err)
	stats, err := res.Write(out)
	require.NoError(t, err)
	assert.Empty(t, stats.Written)

	m, err := manifest.Read(out)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Rejected())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	req := request([]string{"Demo.Foo"}, writeSource(t, t.TempDir(), demo()))
	req.Logger = zap.New(core)

	_, err := bindgen.Generate(context.Background(), req)
	require.NoError(t, err)
	for _, name := range []string{"graph", "graph.generic", "synth"} {
		assert.NotZero(t, logs.FilterLoggerName(name).Len(), "no messages from %s", name)
	}
	assert.NotZero(t, logs.FilterMessage("generated bindings").Len())
}
