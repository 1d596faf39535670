package metadata_test

import (
	"encoding/binary"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/metadata/mdbuild"
)

var (
	iidBar     = uuid.MustParse("5b0d3235-4dba-4d44-865e-8f1d0e4fd04d")
	iidHandler = uuid.MustParse("9de1c535-6ae1-11e0-84e1-18a905bcc53f")
	iidFoo     = uuid.MustParse("c4f5a1d0-33b7-4d4c-a1f1-000000000001")
)

func demoBuilder() *mdbuild.Builder {
	b := mdbuild.New("Demo")
	b.Interface("Demo", "IBar`1", iidBar).
		Generic("T").
		Method("Get", metadata.Var(0), mdbuild.In("index", mdbuild.UInt32)).
		Property("Size", mdbuild.UInt32, false)
	b.Interface("Demo", "IFoo", iidFoo).
		ExclusiveTo("Demo.Foo").
		Method("Items", mdbuild.Generic("Demo.IBar`1", mdbuild.ValueRef("Demo.Baz"))).
		Method("Fill", mdbuild.Void, mdbuild.Out("values", metadata.ArrayOf(mdbuild.Int32))).
		Method("Take", mdbuild.Void, mdbuild.Out("values", metadata.ByRef(metadata.ArrayOf(mdbuild.String)))).
		Method("Put", mdbuild.Void, mdbuild.In("values", metadata.ArrayOf(mdbuild.UInt8))).
		Method("Create", mdbuild.Ref("Demo.Foo"), mdbuild.In("name", mdbuild.String)).
		Overload("CreateWithName").
		Method("TryGet", mdbuild.Bool, mdbuild.Out("value", mdbuild.Int64)).
		Event("Changed", mdbuild.Ref("Demo.ChangedHandler"))
	b.Class("Demo", "Foo").
		ImplementsDefault(mdbuild.Ref("Demo.IFoo")).
		Implements(mdbuild.Generic("Demo.IBar`1", mdbuild.ValueRef("Demo.Baz"))).
		Activatable("").
		Static("Demo.IFooStatics")
	b.Struct("Demo", "Baz").
		Field("X", mdbuild.Int32).
		Field("Y", mdbuild.Float64)
	b.Enum("Demo", "Mode", false).
		Value("Off", 0).
		Value("On", 1).
		Value("Broken", -1)
	b.Enum("Demo", "Options", true).
		Value("None", 0).
		Value("All", 0xFFFFFFFF)
	b.Delegate("Demo", "ChangedHandler", iidHandler, mdbuild.Void,
		mdbuild.In("sender", mdbuild.Ref("Demo.Foo")), mdbuild.In("args", mdbuild.Object))
	b.Contract("Demo", "DemoContract")
	return b
}

func loadDemo(t *testing.T) *metadata.Source {
	t.Helper()
	src, err := demoBuilder().Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return src
}

func TestLoadRoundTrip(t *testing.T) {
	src := loadDemo(t)

	if src.Name != "Demo.winmd" {
		t.Errorf("Name = %q", src.Name)
	}
	if src.Digest == 0 {
		t.Error("Digest should be set")
	}
	if got := src.Namespaces(); len(got) != 1 || got[0] != "Demo" {
		t.Errorf("Namespaces = %v", got)
	}

	defs := src.EnumerateNamespace("Demo")
	want := []string{"IBar`1", "IFoo", "Foo", "Baz", "Mode", "Options", "ChangedHandler", "DemoContract"}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("definition %d = %s, want %s", i, d.Name, want[i])
		}
	}
}

func TestKindClassification(t *testing.T) {
	src := loadDemo(t)
	tests := []struct {
		name string
		kind metadata.Kind
	}{
		{"IBar`1", metadata.KindInterface},
		{"IFoo", metadata.KindInterface},
		{"Foo", metadata.KindClass},
		{"Baz", metadata.KindStruct},
		{"Mode", metadata.KindEnum},
		{"ChangedHandler", metadata.KindDelegate},
		{"DemoContract", metadata.KindContract},
	}
	for _, tt := range tests {
		d, ok := src.LookupType("Demo", tt.name)
		if !ok {
			t.Fatalf("LookupType(%s) failed", tt.name)
		}
		if d.Kind != tt.kind {
			t.Errorf("%s: kind = %s, want %s", tt.name, d.Kind, tt.kind)
		}
	}
	if d, _ := src.LookupType("Demo", "DemoContract"); d.Kind.Projected() {
		t.Error("contracts must not be projected")
	}
}

func TestLookupArity(t *testing.T) {
	src := loadDemo(t)

	bar, ok := src.LookupType("Demo", "IBar`1")
	if !ok {
		t.Fatal("exact lookup failed")
	}
	short, ok := src.LookupType("Demo", "IBar")
	if !ok || short != bar {
		t.Error("lookup without arity suffix should find the unique generic")
	}
	if _, ok := src.LookupType("Demo", "IBar`2"); ok {
		t.Error("wrong arity must not match")
	}
	if _, ok := src.LookupType("Demo", "Missing"); ok {
		t.Error("missing type must not match")
	}
	if bar.Arity() != 1 || bar.GenericParams[0].Name != "T" {
		t.Errorf("generic params = %+v", bar.GenericParams)
	}
}

func TestInterfaceMembers(t *testing.T) {
	src := loadDemo(t)
	bar, _ := src.LookupType("Demo", "IBar`1")

	if !bar.HasGUID || bar.GUID != iidBar {
		t.Errorf("GUID = %s, want %s", bar.GUID, iidBar)
	}
	if len(bar.Methods) != 2 {
		t.Fatalf("methods = %d", len(bar.Methods))
	}
	get := bar.Methods[0]
	if get.Return == nil || get.Return.Type.Kind != metadata.SigVar || get.Return.Type.Index != 0 {
		t.Errorf("Get returns %v", get.Return)
	}
	if get.Params[0].Name != "index" || get.Params[0].Type.Prim != metadata.ElementU4 {
		t.Errorf("Get param = %+v", get.Params[0])
	}
	if len(bar.Properties) != 1 || bar.Properties[0].Getter != "get_Size" || bar.Properties[0].Setter != "" {
		t.Errorf("properties = %+v", bar.Properties)
	}

	foo, _ := src.LookupType("Demo", "IFoo")
	if foo.ExclusiveTo == nil || foo.ExclusiveTo.FullName() != "Demo.Foo" {
		t.Errorf("ExclusiveTo = %v", foo.ExclusiveTo)
	}
	byName := make(map[string]*metadata.Method)
	for _, m := range foo.Methods {
		byName[m.Name] = m
	}

	items := byName["Items"].Return.Type
	if items.Kind != metadata.SigGenericInst || items.Ref.FullName() != "Demo.IBar`1" {
		t.Fatalf("Items returns %s", items)
	}
	if items.String() != "Demo.IBar`1<Demo.Baz>" {
		t.Errorf("canonical form = %q", items.String())
	}
	if items.Args[0].Kind != metadata.SigValueType {
		t.Errorf("Baz should decode as a value type, got %v", items.Args[0].Kind)
	}

	if got := byName["Fill"].Params[0].Array; got != metadata.ArrayFill {
		t.Errorf("Fill array = %s", got)
	}
	if got := byName["Take"].Params[0].Array; got != metadata.ArrayReceive {
		t.Errorf("Take array = %s", got)
	}
	if got := byName["Put"].Params[0].Array; got != metadata.ArrayPass {
		t.Errorf("Put array = %s", got)
	}
	if byName["Create"].Overload != "CreateWithName" || byName["Create"].ProjectedName() != "CreateWithName" {
		t.Errorf("overload = %q", byName["Create"].Overload)
	}
	tryGet := byName["TryGet"].Params[0]
	if !tryGet.Out() || tryGet.Type.Kind != metadata.SigByRef {
		t.Errorf("TryGet param = %+v", tryGet)
	}
	if len(foo.Events) != 1 || foo.Events[0].Add != "add_Changed" || foo.Events[0].Remove != "remove_Changed" {
		t.Errorf("events = %+v", foo.Events)
	}
}

func TestClassAttributes(t *testing.T) {
	src := loadDemo(t)
	foo, _ := src.LookupType("Demo", "Foo")

	def, ok := foo.DefaultInterface()
	if !ok || def.Ref.FullName() != "Demo.IFoo" {
		t.Errorf("default interface = %v", def)
	}
	if len(foo.Interfaces) != 2 || foo.Interfaces[1].Interface.Kind != metadata.SigGenericInst {
		t.Errorf("interfaces = %+v", foo.Interfaces)
	}
	if len(foo.Activatable) != 1 || !foo.Activatable[0].Factory.IsZero() {
		t.Errorf("activatable = %+v", foo.Activatable)
	}
	if len(foo.Statics) != 1 || foo.Statics[0].FullName() != "Demo.IFooStatics" {
		t.Errorf("statics = %+v", foo.Statics)
	}

	refs := make(map[string]bool)
	for _, r := range foo.Refs() {
		refs[r.FullName()] = true
	}
	for _, want := range []string{"Demo.IFoo", "Demo.IBar`1", "Demo.Baz", "Demo.IFooStatics", "System.Object"} {
		if !refs[want] {
			t.Errorf("Refs() missing %s (got %v)", want, refs)
		}
	}
}

func TestEnumsAndStructs(t *testing.T) {
	src := loadDemo(t)

	mode, _ := src.LookupType("Demo", "Mode")
	if mode.IsFlags || mode.EnumUnderlying() != metadata.ElementI4 {
		t.Errorf("Mode flags=%v underlying=%s", mode.IsFlags, mode.EnumUnderlying())
	}
	values := make(map[string]int64)
	for _, f := range mode.Fields {
		if f.Constant != nil {
			values[f.Name] = f.Constant.Int64()
		}
	}
	if values["On"] != 1 || values["Broken"] != -1 {
		t.Errorf("values = %v", values)
	}

	opts, _ := src.LookupType("Demo", "Options")
	if !opts.IsFlags || opts.EnumUnderlying() != metadata.ElementU4 {
		t.Errorf("Options flags=%v underlying=%s", opts.IsFlags, opts.EnumUnderlying())
	}

	baz, _ := src.LookupType("Demo", "Baz")
	if len(baz.Fields) != 2 || baz.Fields[1].Type.Prim != metadata.ElementR8 {
		t.Errorf("Baz fields = %+v", baz.Fields)
	}
}

func TestDelegate(t *testing.T) {
	src := loadDemo(t)
	h, _ := src.LookupType("Demo", "ChangedHandler")
	if !h.HasGUID || h.GUID != iidHandler {
		t.Errorf("GUID = %s", h.GUID)
	}
	var invoke *metadata.Method
	for _, m := range h.Methods {
		if m.Name == "Invoke" {
			invoke = m
		}
	}
	if invoke == nil || len(invoke.Params) != 2 || invoke.Params[0].Name != "sender" {
		t.Fatalf("Invoke = %+v", invoke)
	}
}

func TestTypeSigSubstitute(t *testing.T) {
	sig := metadata.Instance(metadata.ParseTypeName("Demo.IBar`1"), metadata.ArrayOf(metadata.Var(0)))
	if !sig.HasVars() {
		t.Fatal("expected vars")
	}
	out := sig.Substitute([]metadata.TypeSig{mdbuild.String})
	if out.HasVars() {
		t.Error("substitution left vars behind")
	}
	if out.String() != "Demo.IBar`1<String[]>" {
		t.Errorf("got %s", out)
	}
	if sig.String() != "Demo.IBar`1<!0[]>" {
		t.Errorf("original mutated: %s", sig)
	}
}

func TestLoadMalformed(t *testing.T) {
	good, err := demoBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}

	corrupt := func(f func(b []byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not metadata at all")},
		{"truncated", good[:len(good)/2]},
		{"bad signature after MZ", []byte("MZ\x00\x00")},
		{"stream outside root", corrupt(func(b []byte) {
			// first stream header offset field follows the fixed header and version
			vlen := binary.LittleEndian.Uint32(b[12:])
			binary.LittleEndian.PutUint32(b[16+int(vlen)+4:], 0x7FFFFFFF)
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metadata.Load("bad.winmd", tt.blob)
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindMalformedMetadata}) {
				t.Errorf("expected malformed_metadata, got %v", err)
			}
		})
	}
}

func TestLoadDanglingIndex(t *testing.T) {
	good, err := demoBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	// Truncating the #Strings stream leaves table string indexes dangling.
	b := append([]byte(nil), good...)
	vlen := binary.LittleEndian.Uint32(b[12:])
	hdr := 16 + int(vlen) + 4
	// second stream header: skip "#~" header (8 + 4 bytes)
	stringsSize := hdr + 12 + 4
	binary.LittleEndian.PutUint32(b[stringsSize:], 4)

	if _, err := metadata.Load("dangling.winmd", b); err == nil {
		t.Fatal("expected dangling string index to be rejected")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := metadata.LoadFile("/nonexistent/Demo.winmd")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound}) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestParseTypeName(t *testing.T) {
	tests := []struct {
		in       string
		ns, name string
	}{
		{"Windows.Foundation.Uri", "Windows.Foundation", "Uri"},
		{"Windows.Foundation.IUriRuntimeClassFactory, Windows, Version=255.255.255.255", "Windows.Foundation", "IUriRuntimeClassFactory"},
		{"Plain", "", "Plain"},
	}
	for _, tt := range tests {
		got := metadata.ParseTypeName(tt.in)
		if got.Namespace != tt.ns || got.Name != tt.name {
			t.Errorf("ParseTypeName(%q) = %+v", tt.in, got)
		}
	}
	if base, n := metadata.SplitArity("IMap`2"); base != "IMap" || n != 2 {
		t.Errorf("SplitArity = %s, %d", base, n)
	}
}

func TestParseTypeSig(t *testing.T) {
	tests := []struct {
		in, want string
		kind     metadata.SigKind
	}{
		{"Demo.Baz", "Demo.Baz", metadata.SigClass},
		{"Int32", "Int32", metadata.SigPrimitive},
		{"Demo.IBar`1<Demo.Baz>", "Demo.IBar`1<Demo.Baz>", metadata.SigGenericInst},
		{"Demo.IBar<Demo.Baz>", "Demo.IBar`1<Demo.Baz>", metadata.SigGenericInst},
		{
			"Windows.Foundation.Collections.IMap`2<String, Windows.Foundation.IReference`1<Int32>>",
			"Windows.Foundation.Collections.IMap`2<String, Windows.Foundation.IReference`1<Int32>>",
			metadata.SigGenericInst,
		},
		{" Demo.IPair<Int32,Object> ", "Demo.IPair`2<Int32, Object>", metadata.SigGenericInst},
	}
	for _, tt := range tests {
		got, err := metadata.ParseTypeSig(tt.in)
		if err != nil {
			t.Errorf("ParseTypeSig(%q): %v", tt.in, err)
			continue
		}
		if got.String() != tt.want || got.Kind != tt.kind {
			t.Errorf("ParseTypeSig(%q) = %s (kind %d), want %s", tt.in, got, got.Kind, tt.want)
		}
	}

	for _, in := range []string{"", "Demo.IBar<", "Demo.IBar<>", "Demo.IBar<Int32>>", "Demo.IBar<Int32 Int32"} {
		if _, err := metadata.ParseTypeSig(in); err == nil {
			t.Errorf("ParseTypeSig(%q) should fail", in)
		}
	}
}
