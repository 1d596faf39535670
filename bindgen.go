package bindgen

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/manifest"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/synth"
)

// Options configures a generation run
type Options struct {
	// ImportRoot is the import path generated packages live below
	ImportRoot string
	// Workers bounds parallel loading, resolution and synthesis; zero means
	// GOMAXPROCS
	Workers    int
	Validation graph.ValidationMode
}

// DefaultOptions returns lazy validation, the default import root and one
// worker per processor
func DefaultOptions() Options {
	return Options{
		ImportRoot: synth.DefaultImportRoot,
		Workers:    runtime.GOMAXPROCS(0),
		Validation: graph.ValidateLazy,
	}
}

// Request describes one run. Sources can be given as paths, as loaded
// sources, or both.
type Request struct {
	Options

	// Logger replaces the package loggers for this run. Each stage logs
	// under its own name below it.
	Logger *zap.Logger

	// Roots are "Namespace.Name" identifiers of the types to generate
	Roots []string

	SourcePaths     []string
	DependencyPaths []string
	Sources         []*metadata.Source
	Dependencies    []*metadata.Source
}

// Result is the outcome of Generate
type Result struct {
	Graph    *graph.Graph
	Manifest *manifest.Manifest
	Bindings []synth.Binding
	Files    []synth.File
}

type loaded struct {
	sources      []*metadata.Source
	dependencies []*metadata.Source
	log          *zap.Logger
}

// Generate resolves every root and synthesizes bindings for the closure.
// When a root is rejected no code is produced: Generate returns a result
// holding the graph and a manifest of the rejections, together with the
// rejection report as the error.
func Generate(ctx context.Context, req Request) (*Result, error) {
	in, err := load(ctx, req)
	if err != nil {
		return nil, err
	}
	g, err := resolve(ctx, req, in)
	if err != nil {
		return nil, err
	}

	res := &Result{Graph: g, Manifest: newManifest(req, in)}
	if rep := g.Report(); !rep.Empty() {
		res.Manifest.AddReport(rep)
		in.log.Info("roots rejected", zap.Strings("roots", rep.Roots()))
		return res, rep
	}

	res.Bindings, err = synth.Synthesize(g, req.synthOptions())
	if err != nil {
		return nil, err
	}
	res.Files, err = synth.Files(res.Bindings)
	if err != nil {
		return nil, err
	}

	for _, b := range res.Bindings {
		n := manifest.Node{
			Key:     b.Key.String(),
			Kind:    b.Kind.String(),
			Package: b.Package,
			Name:    b.Name,
			Slots:   len(b.Slots),
			Size:    b.Size,
			Align:   b.Align,
		}
		if b.IID != uuid.Nil {
			n.IID = b.IID.String()
		}
		res.Manifest.Nodes = append(res.Manifest.Nodes, n)
	}
	for _, f := range res.Files {
		res.Manifest.AddFile(f.Path, f.ImportPath, f.Source)
	}
	in.log.Info("generated bindings",
		zap.Int("roots", len(req.Roots)),
		zap.Int("bindings", len(res.Bindings)),
		zap.Int("files", len(res.Files)))
	return res, nil
}

// Validate runs generation without producing files. It returns the
// rejection report of the roots, which is empty when every root can be
// generated. Failures outside of individual roots are returned as the error.
func Validate(ctx context.Context, req Request) (*errors.RejectionReport, error) {
	in, err := load(ctx, req)
	if err != nil {
		return nil, err
	}
	g, err := resolve(ctx, req, in)
	if err != nil {
		return nil, err
	}
	rep := g.Report()
	if !rep.Empty() {
		return rep, nil
	}
	if _, err := synth.Synthesize(g, req.synthOptions()); err != nil {
		return nil, err
	}
	in.log.Debug("validated roots",
		zap.Int("roots", len(req.Roots)),
		zap.Int("warnings", len(rep.Dependencies())))
	return rep, nil
}

func resolve(ctx context.Context, req Request, in *loaded) (*graph.Graph, error) {
	return graph.Resolve(ctx, graph.Request{
		Roots:        req.Roots,
		Sources:      in.sources,
		Dependencies: in.dependencies,
		Validation:   req.Validation,
		Workers:      req.Workers,
		Logger:       req.named("graph"),
	})
}

func (r Request) synthOptions() synth.Options {
	return synth.Options{ImportRoot: r.ImportRoot, Workers: r.Workers, Logger: r.named("synth")}
}

// named returns the request logger under name, or nil to keep the stage's
// package logger
func (r Request) named(name string) *zap.Logger {
	if r.Logger == nil {
		return nil
	}
	return r.Logger.Named(name)
}

// load checks the request and reads every source path in parallel. A
// source that cannot be read or parsed aborts the run.
func load(ctx context.Context, req Request) (*loaded, error) {
	if len(req.Roots) == 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "no roots requested")
	}
	if len(req.SourcePaths) == 0 && len(req.Sources) == 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "no metadata sources")
	}
	if req.ImportRoot == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, "empty import root")
	}
	if req.Workers < 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(req.Workers).
			Detail("negative worker count").
			Build()
	}
	workers := req.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := req.Logger
	if log == nil {
		log = Logger()
	}

	sources := make([]*metadata.Source, len(req.SourcePaths))
	deps := make([]*metadata.Source, len(req.DependencyPaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	read := func(dst []*metadata.Source, paths []string) {
		for i, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				src, err := metadata.LoadFile(path)
				if err != nil {
					return err
				}
				dst[i] = src
				return nil
			})
		}
	}
	read(sources, req.SourcePaths)
	read(deps, req.DependencyPaths)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := &loaded{
		sources:      append(append([]*metadata.Source(nil), req.Sources...), sources...),
		dependencies: append(append([]*metadata.Source(nil), req.Dependencies...), deps...),
		log:          log,
	}
	log.Debug("loaded metadata",
		zap.Int("sources", len(in.sources)),
		zap.Int("dependencies", len(in.dependencies)))
	return in, nil
}

func newManifest(req Request, in *loaded) *manifest.Manifest {
	m := manifest.New(req.ImportRoot, req.Roots)
	add := func(srcs []*metadata.Source, dep bool) {
		for _, s := range srcs {
			m.Sources = append(m.Sources, manifest.Source{Name: s.Name, Path: s.Path, Digest: s.Digest, Dependency: dep})
		}
	}
	add(in.sources, false)
	add(in.dependencies, true)
	return m
}
