package generic_test

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/metadata/mdbuild"
)

const (
	collections = "Windows.Foundation.Collections"
	foundation  = "Windows.Foundation"
)

func foundationSource(t *testing.T) *metadata.Source {
	t.Helper()
	b := mdbuild.New("Windows.Foundation")
	b.Interface(collections, "IIterable`1", uuid.MustParse("faa585ea-6214-4217-afda-7f46de5869b3")).
		Generic("T").
		Method("First", mdbuild.Generic(collections+".IIterator`1", metadata.Var(0)))
	b.Interface(collections, "IIterator`1", uuid.MustParse("6a79e863-4300-459a-9966-cbb660963ee1")).
		Generic("T").
		Property("Current", metadata.Var(0), false)
	b.Interface(collections, "IVector`1", uuid.MustParse("913337e9-11a1-4345-a3a2-4e7f956e222d")).
		Generic("T").
		Implements(mdbuild.Generic(collections+".IIterable`1", metadata.Var(0))).
		Method("GetAt", metadata.Var(0), mdbuild.In("index", mdbuild.UInt32)).
		Property("Size", mdbuild.UInt32, false)
	b.Interface(collections, "IMap`2", uuid.MustParse("3c2925fe-8519-45c1-aa79-197b6718c1c1")).
		Generic("K", "V").
		Implements(mdbuild.Generic(collections+".IIterable`1",
			mdbuild.Generic(collections+".IKeyValuePair`2", metadata.Var(0), metadata.Var(1)))).
		Method("Lookup", metadata.Var(1), mdbuild.In("key", metadata.Var(0)))
	b.Interface(collections, "IKeyValuePair`2", uuid.MustParse("02b51929-c1c4-4a7e-8940-0312b5c18500")).
		Generic("K", "V")
	b.Interface(foundation, "IAsyncOperation`1", uuid.MustParse("9fc2b0bb-e446-44e2-aa61-9cab8f636af2")).
		Generic("TResult").
		Method("GetResults", metadata.Var(0))
	b.Interface(foundation, "IReference`1", uuid.MustParse("61c17706-2d65-11e0-9ae8-d48564015472")).
		Generic("T").
		Property("Value", metadata.Var(0), false)
	b.Interface(foundation, "IClosable", uuid.MustParse("30d5a829-7fa4-4026-83bb-d75bae4ea99e")).
		Method("Close", mdbuild.Void)
	b.Class(foundation, "Uri").
		ImplementsDefault(mdbuild.Ref(foundation + ".IClosable"))
	b.Struct(foundation, "Point").
		Field("X", mdbuild.Float32).
		Field("Y", mdbuild.Float32)
	b.Enum(foundation, "AsyncStatus", false).Value("Started", 0)
	b.Enum(foundation, "Options", true).Value("None", 0)
	b.Delegate(foundation, "DeferralCompletedHandler", uuid.MustParse("ed32a372-f3c8-4faa-9cfb-470148da3888"), mdbuild.Void)
	src, err := b.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return src
}

func iterable(arg metadata.TypeSig) metadata.TypeSig {
	return mdbuild.Generic(collections+".IIterable`1", arg)
}

func TestReferenceIIDs(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))

	tests := []struct {
		sig  metadata.TypeSig
		want string
	}{
		{iterable(mdbuild.String), "e2fcc7c1-3bfc-5a0b-b2b0-72e769d1cb7e"},
		{mdbuild.Generic(foundation+".IAsyncOperation`1", mdbuild.Bool), "cdb5efb3-5788-509d-9be1-71ccb8a3362a"},
		{mdbuild.Generic(collections+".IVector`1", mdbuild.String), "98b9acc1-4b56-532e-ac73-03d5291cca90"},
		{mdbuild.Generic(foundation+".IReference`1", mdbuild.Int32), "548cefbd-bc8a-5fa0-8df2-957440fc8bf4"},
		{mdbuild.Generic(collections+".IMap`2", mdbuild.String, mdbuild.Object), "1b0d3570-0877-5ec2-8a2c-3b9539506aca"},
		{iterable(mdbuild.Generic(collections+".IKeyValuePair`2", mdbuild.String, mdbuild.Object)), "fe2f3d47-5d47-5499-8374-430c7cda0204"},
	}
	for _, tt := range tests {
		t.Run(tt.sig.String(), func(t *testing.T) {
			inst, err := in.InstantiateSig(tt.sig)
			if err != nil {
				t.Fatalf("InstantiateSig: %v", err)
			}
			if got := inst.IID.String(); got != tt.want {
				t.Errorf("IID = %s, want %s (signature %s)", got, tt.want, inst.Signature)
			}
		})
	}
}

func TestSignatureForms(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))

	tests := []struct {
		sig  metadata.TypeSig
		want string
	}{
		{mdbuild.String, "string"},
		{mdbuild.Object, "cinterface(IInspectable)"},
		{mdbuild.Guid, "g16"},
		{mdbuild.Char16, "c2"},
		{mdbuild.Float64, "f8"},
		{mdbuild.ValueRef(foundation + ".AsyncStatus"), "enum(Windows.Foundation.AsyncStatus;i4)"},
		{mdbuild.ValueRef(foundation + ".Options"), "enum(Windows.Foundation.Options;u4)"},
		{mdbuild.ValueRef(foundation + ".Point"), "struct(Windows.Foundation.Point;f4;f4)"},
		{mdbuild.Ref(foundation + ".IClosable"), "{30d5a829-7fa4-4026-83bb-d75bae4ea99e}"},
		{mdbuild.Ref(foundation + ".Uri"), "rc(Windows.Foundation.Uri;{30d5a829-7fa4-4026-83bb-d75bae4ea99e})"},
		{mdbuild.Ref(foundation + ".DeferralCompletedHandler"), "delegate({ed32a372-f3c8-4faa-9cfb-470148da3888})"},
		{iterable(mdbuild.String), "pinterface({faa585ea-6214-4217-afda-7f46de5869b3};string)"},
	}
	for _, tt := range tests {
		got, err := in.Signature(tt.sig)
		if err != nil {
			t.Errorf("Signature(%s): %v", tt.sig, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Signature(%s) = %q, want %q", tt.sig, got, tt.want)
		}
	}

	if _, err := in.Signature(metadata.Var(0)); err == nil {
		t.Error("unbound generic parameter should not have a signature")
	}
}

func TestDeterministicAcrossInstantiators(t *testing.T) {
	src := foundationSource(t)
	sig := mdbuild.Generic(collections+".IMap`2", mdbuild.String, mdbuild.ValueRef(foundation+".Point"))

	a, err := generic.New(generic.SourceLookup(src)).InstantiateSig(sig)
	if err != nil {
		t.Fatal(err)
	}
	b, err := generic.New(generic.SourceLookup(src)).InstantiateSig(sig)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("separate instantiators should not share instances")
	}
	if a.IID != b.IID || a.Signature != b.Signature || a.Key() != b.Key() {
		t.Errorf("instances differ: %s/%s vs %s/%s", a.Key(), a.IID, b.Key(), b.IID)
	}
}

func TestArityMismatch(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))
	def, _ := src.LookupType(collections, "IMap`2")

	_, err := in.Instantiate(def, []generic.Arg{{Sig: mdbuild.String}})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInstantiate, Kind: errors.KindArityMismatch}) {
		t.Fatalf("expected arity mismatch, got %v", err)
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Type != collections+".IMap`2" {
		t.Errorf("error names %q", e.Type)
	}

	closable, _ := src.LookupType(foundation, "IClosable")
	if _, err := in.Instantiate(closable, nil); err == nil {
		t.Error("instantiating a non-generic definition should fail")
	}
	if _, err := in.Instantiate(def, []generic.Arg{{Sig: mdbuild.String}, {Sig: metadata.Var(0)}}); err == nil {
		t.Error("open type arguments should be rejected")
	}
}

func TestSubstitution(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))

	inst, err := in.InstantiateSig(mdbuild.Generic(collections+".IVector`1", mdbuild.String))
	if err != nil {
		t.Fatal(err)
	}
	var getAt *metadata.Method
	for _, m := range inst.Methods() {
		if m.Name == "GetAt" {
			getAt = m
		}
	}
	if getAt == nil || getAt.Return.Type.String() != "String" {
		t.Fatalf("GetAt = %+v", getAt)
	}
	if inst.Properties()[0].Type.String() != "UInt32" {
		t.Errorf("Size = %s", inst.Properties()[0].Type)
	}
	req := inst.Interfaces()
	if len(req) != 1 || req[0].Interface.String() != collections+".IIterable`1<String>" {
		t.Errorf("required interfaces = %v", req)
	}

	// the template itself is untouched
	def, _ := src.LookupType(collections, "IVector`1")
	for _, m := range def.Methods {
		if m.Name == "GetAt" && m.Return.Type.Kind != metadata.SigVar {
			t.Error("template method was mutated")
		}
	}
}

func TestNestedInstancesFinalizedFirst(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))

	kvp := mdbuild.Generic(collections+".IKeyValuePair`2", mdbuild.String, mdbuild.Object)
	outer, err := in.InstantiateSig(iterable(kvp))
	if err != nil {
		t.Fatal(err)
	}
	if outer.Args[0].Instance == nil {
		t.Fatal("nested argument should carry its instance")
	}
	inner, ok := in.Lookup(kvp.String())
	if !ok || inner != outer.Args[0].Instance {
		t.Error("nested instance should be canonical")
	}
	if in.Len() != 2 {
		t.Errorf("Len = %d, want 2", in.Len())
	}
}

func TestConcurrentInstantiateConverges(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))
	sig := mdbuild.Generic(foundation+".IReference`1", mdbuild.Int32)

	const n = 64
	results := make([]*generic.Instance, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := in.InstantiateSig(sig)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = inst
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d received a different instance", i)
		}
	}
	if got := in.Instances(); len(got) != 1 {
		t.Errorf("instances = %d, want 1", len(got))
	}
}

func TestUnresolvedArgument(t *testing.T) {
	src := foundationSource(t)
	in := generic.New(generic.SourceLookup(src))

	_, err := in.InstantiateSig(iterable(mdbuild.Ref("Missing.Widget")))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindUnresolvedReference}) {
		t.Errorf("expected unresolved reference, got %v", err)
	}
}
