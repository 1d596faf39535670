package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in a generation run the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // metadata parsing
	PhaseResolve     Phase = "resolve"     // type graph closure
	PhaseInstantiate Phase = "instantiate" // generic specialization
	PhaseSynthesize  Phase = "synthesize"  // binding synthesis
	PhaseEmit        Phase = "emit"        // source rendering and output
	PhaseCall        Phase = "call"        // native calls from emitted code
	PhaseConfig      Phase = "config"      // request configuration
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedMetadata   Kind = "malformed_metadata"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindAmbiguousReference  Kind = "ambiguous_reference"
	KindArityMismatch       Kind = "arity_mismatch"
	KindDependencyRejected  Kind = "dependency_rejected"
	KindNativeCallFailure   Kind = "native_call_failure"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindUnsupported         Kind = "unsupported"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindOverflow            Kind = "overflow"
)

// Error is the structured error type used by the generator
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	Type       string
	Detail     string
	Source     string
	Candidates []string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": ")
		b.WriteString(e.Type)
	}

	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if len(e.Candidates) > 0 {
		b.WriteString(" (candidates: ")
		b.WriteString(strings.Join(e.Candidates, ", "))
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the qualified type name the error is about
func (b *Builder) Type(name string) *Builder {
	b.err.Type = name
	return b
}

// Source sets the metadata source name
func (b *Builder) Source(name string) *Builder {
	b.err.Source = name
	return b
}

// Candidates sets the conflicting definitions of an ambiguous reference
func (b *Builder) Candidates(c ...string) *Builder {
	b.err.Candidates = c
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Malformed creates a malformed metadata error for the named source
func Malformed(source, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMalformedMetadata,
		Source: source,
		Detail: detail,
		Cause:  cause,
	}
}

// Unresolved creates an unresolved reference error naming the missing type
func Unresolved(name string, path []string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolvedReference,
		Type:   name,
		Path:   path,
		Detail: "no metadata source defines this type",
	}
}

// Ambiguous creates an ambiguous reference error listing every candidate source
func Ambiguous(name string, candidates []string) *Error {
	return &Error{
		Phase:      PhaseResolve,
		Kind:       KindAmbiguousReference,
		Type:       name,
		Candidates: candidates,
		Detail:     "defined differently by more than one source",
	}
}

// ArityMismatch creates an error for a generic instantiated with the wrong argument count
func ArityMismatch(generic string, want, got int) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindArityMismatch,
		Type:   generic,
		Detail: fmt.Sprintf("expects %d type argument(s), got %d", want, got),
		Value:  got,
	}
}

// DependencyRejected creates an error for a type that reaches a rejected type
func DependencyRejected(name, via string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindDependencyRejected,
		Type:   name,
		Detail: fmt.Sprintf("depends on rejected type %s", via),
		Cause:  cause,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
