// Package errors provides structured error types for winrt-bindgen.
//
// Errors are categorized by Phase (where in a run the error occurred) and
// Kind (error category). The Error type carries the qualified type name,
// the metadata source, ambiguous candidates, a member path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnresolvedReference).
//		Type("Windows.Foundation.IClosable").
//		Path("Windows.Storage.StorageFile", "Close").
//		Detail("no metadata source defines this type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unresolved("Windows.Foundation.IClosable", nil)
//	err := errors.ArityMismatch("Windows.Foundation.Collections.IMap`2", 2, 1)
//
// A RejectionReport collects every rejected root of a generation run,
// grouped by root, so callers see all failures in one pass.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
