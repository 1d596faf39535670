package synth

import (
	"bytes"
	"go/parser"
	"go/token"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dave/jennifer/jen"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/synth/internal/layout"
)

const header = "Code generated by winrt-bindgen. DO NOT EDIT."

// DefaultImportRoot is the import path generated packages live below when
// no root is configured
const DefaultImportRoot = "winrt"

// Options configures synthesis
type Options struct {
	// ImportRoot is the import path of the directory generated packages
	// are written to. Types from dependency sources are expected to be
	// generated below the same root.
	ImportRoot string
	// Workers bounds parallel synthesis; zero means GOMAXPROCS
	Workers int
	// Logger replaces the package logger when set
	Logger *zap.Logger
}

// DefaultOptions returns options with the default import root and one
// worker per processor
func DefaultOptions() Options {
	return Options{
		ImportRoot: DefaultImportRoot,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// Binding is the generated Go code of one type or generic instance
type Binding struct {
	Key  graph.Key
	Kind metadata.Kind
	// Namespace is the namespace of the package the binding lives in. It
	// differs from Key.Namespace for generic instances.
	Namespace   string
	Package     string
	PackageName string
	// Name is the Go type name
	Name string
	// IID is set for interfaces, delegates and instances
	IID   uuid.UUID
	Slots []Slot
	// Size and Align are the native layout of structs
	Size  uint32
	Align uint32
	// Source is the binding rendered as a standalone file
	Source []byte

	dir     string
	decls   []jen.Code
	imports map[string]string
	node    *graph.Node
	log     *zap.Logger
}

// File is one generated Go source file
type File struct {
	Package    string
	ImportPath string
	// Path is relative to the output directory of the import root
	Path   string
	Source []byte
}

// Synthesize generates a binding for every definition and generic instance
// reached from the roots of g, including those of dependency sources. A
// graph with rejected roots is refused as a whole. Bindings are ordered by
// key.
func Synthesize(g *graph.Graph, opts Options) ([]Binding, error) {
	if g == nil {
		return nil, errors.InvalidInput(errors.PhaseSynthesize, "nil graph")
	}
	if rep := g.Report(); !rep.Empty() {
		return nil, errors.New(errors.PhaseSynthesize, errors.KindDependencyRejected).
			Detail("graph has rejected roots: %s", strings.Join(rep.Roots(), ", ")).
			Cause(rep).
			Build()
	}
	root := strings.TrimSuffix(opts.ImportRoot, "/")
	if root == "" {
		return nil, errors.InvalidInput(errors.PhaseSynthesize, "empty import root")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	p, err := newPlan(g, root)
	if err != nil {
		return nil, err
	}
	entries := p.emitted()
	bindings := make([]Binding, len(entries))
	errs := make([]error, len(entries))

	var (
		eg   errgroup.Group
		next atomic.Int64
	)
	for range min(workers, len(entries)) {
		eg.Go(func() error {
			l := layout.NewLowerer(p.resolveStruct)
			c := layout.NewCalculator()
			for {
				i := int(next.Add(1) - 1)
				if i >= len(entries) {
					return nil
				}
				bindings[i], errs[i] = p.bind(entries[i], l, c)
			}
		})
	}
	_ = eg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	for i := range bindings {
		bindings[i].log = log
		n := bindings[i].node
		if s := n.State(); s == graph.StateResolving || s == graph.StateInstantiated {
			if err := n.Advance(graph.StateSynthesized); err != nil {
				return nil, errors.Wrap(errors.PhaseSynthesize, errors.KindInvalidInput, err, n.Key.String())
			}
		}
	}
	log.Debug("synthesized bindings",
		zap.Int("bindings", len(bindings)),
		zap.Int("packages", len(p.pkgs)),
		zap.Int("demoted", len(p.demoted)))
	return bindings, nil
}

// resolveStruct finds the definition a struct field refers to
func (p *plan) resolveStruct(ref metadata.TypeRef) (*metadata.TypeDef, error) {
	n, ok := p.g.Node(graph.Key{Namespace: ref.Namespace, Name: ref.Name})
	if !ok {
		return nil, errors.Unresolved(ref.FullName(), nil)
	}
	return n.Def, nil
}

func (p *plan) bind(e *entry, l *layout.Lowerer, c *layout.Calculator) (Binding, error) {
	em := newEmitter(p, e, l, c)
	decls, err := em.emit()
	if err != nil {
		return Binding{}, err
	}
	b := Binding{
		Key:         e.node.Key,
		Kind:        e.node.Kind(),
		Namespace:   e.pkg.namespace,
		Package:     e.pkg.path,
		PackageName: e.pkg.name,
		Name:        e.name,
		Slots:       em.slots,
		Size:        em.size,
		Align:       em.align,
		dir:         strings.TrimPrefix(e.pkg.path, p.root+"/"),
		decls:       decls,
		imports:     em.imports,
		node:        e.node,
	}
	if iid, ok := iidOf(e); ok {
		b.IID = uuid.MustParse(iid)
	}
	b.Source, err = render(e.pkg.path, e.pkg.name, "", em.imports, decls)
	if err != nil {
		return Binding{}, withType(err, e.node.Key.String())
	}
	return b, nil
}

// render formats a file of decls and checks that it parses
func render(path, name, comment string, imports map[string]string, decls []jen.Code) ([]byte, error) {
	f := jen.NewFilePathName(path, name)
	f.HeaderComment(header)
	if comment != "" {
		f.PackageComment(comment)
	}
	f.ImportName(winrtPath, "winrt")
	// Packages sharing a name are left to jennifer, which aliases them
	count := map[string]int{"winrt": 1, "unsafe": 1, name: 1}
	for _, n := range imports {
		count[n]++
	}
	for p, n := range imports {
		if count[n] == 1 {
			f.ImportName(p, n)
		}
	}
	for i, d := range decls {
		if i > 0 {
			f.Line()
		}
		f.Add(d)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "render "+path)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), path, buf.Bytes(), parser.AllErrors); err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "parse "+path)
	}
	return buf.Bytes(), nil
}

// Files groups bindings into one file per package, ordered by import path.
// Every node whose binding is emitted moves to the emitted state.
func Files(bindings []Binding) ([]File, error) {
	type group struct {
		b       *Binding
		decls   []jen.Code
		imports map[string]string
		nodes   []*graph.Node
	}
	groups := make(map[string]*group)
	var paths []string
	for i := range bindings {
		b := &bindings[i]
		g := groups[b.Package]
		if g == nil {
			g = &group{b: b, imports: make(map[string]string)}
			groups[b.Package] = g
			paths = append(paths, b.Package)
		}
		g.decls = append(g.decls, b.decls...)
		for p, n := range b.imports {
			g.imports[p] = n
		}
		if b.node != nil {
			g.nodes = append(g.nodes, b.node)
		}
	}
	sort.Strings(paths)

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		g := groups[path]
		comment := "Package " + g.b.PackageName + " binds the " + g.b.Namespace + " namespace."
		src, err := render(path, g.b.PackageName, comment, g.imports, g.decls)
		if err != nil {
			return nil, err
		}
		files = append(files, File{
			Package:    g.b.PackageName,
			ImportPath: path,
			Path:       g.b.dir + "/" + g.b.PackageName + ".go",
			Source:     src,
		})
	}

	for _, path := range paths {
		for _, n := range groups[path].nodes {
			if n.State() == graph.StateSynthesized {
				if err := n.Advance(graph.StateEmitted); err != nil {
					return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, n.Key.String())
				}
			}
		}
	}
	log := Logger()
	if len(bindings) > 0 && bindings[0].log != nil {
		log = bindings[0].log
	}
	log.Debug("rendered files", zap.Int("files", len(files)), zap.Int("bindings", len(bindings)))
	return files, nil
}
