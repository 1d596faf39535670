// Package bindgen generates Go bindings for Windows Runtime APIs from their
// metadata.
//
// A run reads one or more metadata sources, computes the closure of the
// requested root types, instantiates the generic interfaces the closure
// needs and synthesizes Go code that calls the native objects through
// their vtables.
//
// # Quick Start
//
//	req := bindgen.Request{
//	    Options:         bindgen.DefaultOptions(),
//	    Roots:           []string{"Windows.Foundation.Uri"},
//	    SourcePaths:     []string{"Windows.Foundation.winmd"},
//	    DependencyPaths: []string{"Windows.winmd"},
//	}
//	req.ImportRoot = "example.com/app/winrt"
//
//	res, err := bindgen.Generate(ctx, req)
//	if err != nil {
//	    log.Fatal(err) // a *errors.RejectionReport lists every broken root
//	}
//	if _, err := res.Write("gen"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Architecture Overview
//
//	bindgen/             Generate, Validate and output writing
//	├── metadata/        ECMA-335 metadata reader
//	│   └── mdbuild/     metadata writer for fixtures and tools
//	├── graph/           type graph resolver
//	├── generic/         generic interface instantiation and IID derivation
//	├── synth/           vtable slots, ABI lowering and Go emission
//	├── winrt/           runtime support imported by generated code
//	├── errors/          structured errors and the rejection report
//	├── config/          TOML and YAML request files
//	├── manifest/        record of a run
//	└── cmd/winrt-bindgen/
//
// Data flows forward only: sources are loaded, the resolver walks every
// root and records failures per root, and only a graph without rejections
// is synthesized. A root whose closure reaches a broken type produces no
// code, while unrelated roots of the same request are still checked and
// reported.
//
// # Validation
//
// ValidateLazy, the default, checks only definitions reached from a root.
// ValidateEager also resolves every definition of the dependency sources
// and reports their failures as warnings in RejectionReport.Dependencies.
//
// # Logging
//
// Every stage logs through zap and is silent by default. SetLogger installs
// one logger for all of them; Request.Logger overrides the logger of a
// single run's own messages.
package bindgen
