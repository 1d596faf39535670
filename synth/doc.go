// Package synth turns a resolved type graph into Go bindings.
//
// Every node reached from a root becomes one Binding: the Go declarations for the
// type, rendered with jennifer and checked with go/parser. Files groups the
// bindings into one file per namespace package.
//
// # Packages
//
// A namespace maps to an import path below Options.ImportRoot, one lowered
// path segment per namespace segment:
//
//	Windows.Foundation.Collections -> <root>/windows/foundation/collections
//
// Types reached through dependency sources are bound like any other, so the
// generated tree is self-contained. Generic instances live in the package of
// their last named argument, or in the template's package when every
// argument is a primitive. Object references between packages that would
// import each other are typed as plain runtime objects.
//
// # Generated types
//
//   - interfaces and instances: a struct embedding *winrt.IInspectable with
//     one method per vtable slot, starting at slot 6, and As accessors for
//     required interfaces
//   - delegates: a struct embedding *winrt.IUnknown with Invoke at slot 3,
//     and for simple signatures a Func type and a New constructor backed by
//     a Go-implemented object
//   - classes: a struct embedding the default interface, a constructor for
//     default activation, one function per factory and static method, and
//     As accessors for the other interfaces
//   - structs: the native field layout with size and alignment constants
//     checked at compile time
//   - enums: a named int32 or uint32 with one constant per value
//
// Generated methods return their return value first, then out parameters,
// then an error holding a *winrt.CallError for failed calls.
package synth
