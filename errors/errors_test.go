package errors

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseResolve,
				Kind:   KindUnresolvedReference,
				Path:   []string{"Demo.Foo", "Bar"},
				Type:   "Demo.IMissing",
				Detail: "no metadata source defines this type",
			},
			contains: []string{"[resolve]", "unresolved_reference", "Demo.Foo.Bar", "Demo.IMissing", "no metadata source"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLoad,
				Kind:  KindMalformedMetadata,
			},
			contains: []string{"[load]", "malformed_metadata"},
		},
		{
			name: "ambiguous with candidates",
			err:  Ambiguous("Demo.Foo", []string{"a.winmd", "b.winmd"}),
			contains: []string{"ambiguous_reference", "Demo.Foo", "candidates: a.winmd, b.winmd"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindMalformedMetadata,
				Source: "Demo.winmd",
				Detail: "truncated table stream",
				Cause:  errors.New("unexpected EOF"),
			},
			contains: []string{"[load]", "in Demo.winmd", "truncated table stream", "caused by", "unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Malformed("x.winmd", "bad header", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Unresolved("Demo.IMissing", nil)

	if !err.Is(&Error{Phase: PhaseResolve, Kind: KindUnresolvedReference}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseLoad, Kind: KindUnresolvedReference}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseResolve, Kind: KindAmbiguousReference}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseResolve, Kind: KindUnresolvedReference}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseInstantiate, KindArityMismatch).
		Path("Demo.Foo", "Items").
		Type("Demo.IBox`1").
		Source("demo.winmd").
		Candidates("a", "b").
		Value(2).
		Cause(cause).
		Detail("expected %d, got %d", 1, 2).
		Build()

	if err.Phase != PhaseInstantiate {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseInstantiate)
	}
	if err.Kind != KindArityMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindArityMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "Demo.Foo" || err.Path[1] != "Items" {
		t.Errorf("Path = %v", err.Path)
	}
	if err.Type != "Demo.IBox`1" {
		t.Errorf("Type = %v", err.Type)
	}
	if err.Source != "demo.winmd" {
		t.Errorf("Source = %v", err.Source)
	}
	if len(err.Candidates) != 2 {
		t.Errorf("Candidates = %v", err.Candidates)
	}
	if err.Value != 2 {
		t.Errorf("Value = %v, want 2", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected 1, got 2" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ArityMismatch", func(t *testing.T) {
		err := ArityMismatch("Demo.IPair`2", 2, 1)
		if err.Kind != KindArityMismatch || err.Phase != PhaseInstantiate {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Detail, "expects 2") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("DependencyRejected", func(t *testing.T) {
		cause := Unresolved("Demo.IGone", nil)
		err := DependencyRejected("Demo.Root", "Demo.IGone", cause)
		if err.Kind != KindDependencyRejected {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !errors.Is(err, &Error{Phase: PhaseResolve, Kind: KindUnresolvedReference}) {
			t.Error("cause chain should expose the root cause")
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseLoad, []string{"TypeDef"}, 10, 5)
		if err.Kind != KindOutOfBounds || err.Value != 10 {
			t.Errorf("got %v value %v", err.Kind, err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseLoad, nil, 300, "uint8")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseResolve, "root", "Demo.Foo")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"Demo.Foo"`) {
			t.Errorf("got %v", err)
		}
	})
}

func TestRejectionReport(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r := NewRejectionReport()
		if !r.Empty() {
			t.Error("new report should be empty")
		}
		if r.Err() != nil {
			t.Error("empty report should not be an error")
		}
		if !strings.Contains(r.Error(), "no roots rejected") {
			t.Errorf("unexpected message %q", r.Error())
		}
	})

	t.Run("grouped by root", func(t *testing.T) {
		r := NewRejectionReport()
		missing := Unresolved("Demo.IMissing", nil)
		r.Add("Demo.B", DependencyRejected("Demo.B", "Demo.IMissing", missing))
		r.Add("Demo.A", missing)
		r.Add("Demo.A", missing)

		if got := r.Roots(); len(got) != 2 || got[0] != "Demo.A" || got[1] != "Demo.B" {
			t.Fatalf("Roots = %v", got)
		}
		if len(r.ForRoot("Demo.A")) != 1 {
			t.Errorf("duplicates should collapse, got %d", len(r.ForRoot("Demo.A")))
		}
		msg := r.Error()
		if !strings.Contains(msg, "2 root(s) rejected") {
			t.Errorf("missing count in %q", msg)
		}
		if !strings.Contains(msg, "  Demo.A:\n") || !strings.Contains(msg, "  Demo.B:\n") {
			t.Errorf("missing grouping in %q", msg)
		}
		if !errors.Is(r.Err(), &RejectionReport{}) {
			t.Error("errors.Is should match RejectionReport")
		}
	})

	t.Run("dependencies do not reject roots", func(t *testing.T) {
		r := NewRejectionReport()
		r.AddDependency(Unresolved("Base.IOld", nil))
		if !r.Empty() {
			t.Error("dependency warnings must not reject")
		}
		if len(r.Dependencies()) != 1 {
			t.Errorf("Dependencies = %d", len(r.Dependencies()))
		}
	})

	t.Run("concurrent add", func(t *testing.T) {
		r := NewRejectionReport()
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r.Add("Demo.Root", Unresolved("Demo.T"+string(rune('A'+i%8)), nil))
			}(i)
		}
		wg.Wait()
		if got := len(r.ForRoot("Demo.Root")); got != 8 {
			t.Errorf("got %d rejections, want 8", got)
		}
	})
}
