package synth

import (
	"github.com/dave/jennifer/jen"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/synth/internal/layout"
	"github.com/wippyai/winrt-bindgen/winrt"
)

// emitter renders the declarations of one entry. It is not safe for
// concurrent use; the lowerer and calculator belong to one worker.
type emitter struct {
	plan    *plan
	entry   *entry
	lowerer *layout.Lowerer
	calc    *layout.Calculator
	// imports maps import paths to package names
	imports map[string]string

	slots []Slot
	size  uint32
	align uint32
}

func newEmitter(p *plan, e *entry, l *layout.Lowerer, c *layout.Calculator) *emitter {
	return &emitter{
		plan:    p,
		entry:   e,
		lowerer: l,
		calc:    c,
		imports: make(map[string]string),
	}
}

// use records an import of pk unless it is the emitter's own package
func (em *emitter) use(pk *pkg) {
	if pk == em.entry.pkg {
		return
	}
	em.imports[pk.path] = pk.name
}

func (em *emitter) layoutOf(def *metadata.TypeDef) (layout.Info, error) {
	td, err := em.lowerer.Struct(def)
	if err != nil {
		return layout.Info{}, err
	}
	return em.calc.Calculate(td), nil
}

// reserved lists the identifiers generated locals must not shadow
func (em *emitter) reserved(extra ...string) []string {
	out := append([]string{"winrt", "unsafe"}, extra...)
	for _, pk := range em.plan.pkgs {
		out = append(out, pk.name)
	}
	return out
}

func (em *emitter) emit() ([]jen.Code, error) {
	var (
		decls []jen.Code
		err   error
	)
	switch n := em.entry.node; n.Kind() {
	case metadata.KindInterface:
		decls, err = em.emitInterface()
	case metadata.KindClass:
		decls, err = em.emitClass()
	case metadata.KindStruct:
		decls, err = em.emitStruct()
	case metadata.KindEnum:
		decls, err = em.emitEnum()
	case metadata.KindDelegate:
		decls, err = em.emitDelegate()
	default:
		err = errors.Unsupported(errors.PhaseSynthesize, n.Kind().String()+" "+n.Key.String())
	}
	if err != nil {
		return nil, withType(err, em.entry.node.Key.String())
	}
	return decls, nil
}

func withType(err error, typ string) error {
	if e, ok := err.(*errors.Error); ok && e.Type == "" {
		cp := *e
		cp.Type = typ
		return &cp
	}
	return err
}

func decl(comment string, code jen.Code) jen.Code {
	return jen.Comment(comment).Line().Add(code)
}

func noGUID(n *graph.Node) error {
	return errors.New(errors.PhaseSynthesize, errors.KindInvalidInput).
		Type(n.Key.String()).
		Detail("%s has no GUID", n.Kind()).
		Build()
}

// wrapper declares the IID variable, the wrapper struct and its Wrap
// function of an interface-shaped entry.
func (em *emitter) wrapper(base string) ([]jen.Code, error) {
	n, name := em.entry.node, em.entry.name
	iid, ok := iidOf(em.entry)
	if !ok {
		return nil, noGUID(n)
	}
	return []jen.Code{
		decl(name+"IID identifies "+n.Key.String(),
			jen.Var().Id(name+"IID").Op("=").Qual(winrtPath, "MustParseGUID").Call(jen.Lit(iid))),
		decl(name+" is a reference to "+n.Key.String(),
			jen.Type().Id(name).Struct(jen.Op("*").Qual(winrtPath, base))),
		wrapFunc(name, base, jen.Id(base).Op(":").Id("obj")),
	}, nil
}

func wrapFunc(name, base string, field jen.Code) jen.Code {
	return decl("Wrap"+name+" types obj; a nil obj yields nil",
		jen.Func().Id("Wrap"+name).Params(jen.Id("obj").Op("*").Qual(winrtPath, base)).Op("*").Id(name).Block(
			jen.If(jen.Id("obj").Op("==").Nil()).Block(jen.Return(jen.Nil())),
			jen.Return(jen.Op("&").Id(name).Values(field)),
		))
}

// method renders the wrapper method of one slot
func (em *emitter) method(recv string, s Slot) (jen.Code, error) {
	sc := newScope(em.reserved("i", "hr", "err")...)
	c, err := em.lower(s.Method, sc)
	if err != nil {
		return nil, err
	}
	head := jen.Func().Params(jen.Id("i").Op("*").Id(recv)).Id(s.Name)
	return c.signature(head).Block(c.body(jen.Qual(winrtPath, "PtrOf").Call(jen.Id("i")), s.Index)...), nil
}

func (em *emitter) emitInterface() ([]jen.Code, error) {
	n, name := em.entry.node, em.entry.name
	decls, err := em.wrapper("IInspectable")
	if err != nil {
		return nil, err
	}

	// Names come from the template so that every instance of one generic
	// interface has the same method set.
	methods := n.Methods()
	template := SlotTable(n.Def)
	if len(methods) != len(template) {
		return nil, errors.New(errors.PhaseSynthesize, errors.KindInvalidInput).
			Type(n.Key.String()).
			Detail("instance has %d methods, template %d", len(methods), len(template)).
			Build()
	}
	seen := make(map[string]bool, len(template))
	for k := range promoted {
		seen[k] = true
	}
	for i, t := range template {
		s := Slot{Method: methods[i], Name: t.Name, Index: t.Index}
		seen[s.Name] = true
		m, err := em.method(name, s)
		if err != nil {
			return nil, err
		}
		decls = append(decls, m)
		em.slots = append(em.slots, s)
	}

	as, err := em.accessors(name, n.Interfaces(), false, seen)
	if err != nil {
		return nil, err
	}
	return append(decls, as...), nil
}

// accessors renders As<Interface> methods querying for each interface in
// impls. The default interface of a class is skipped when skipDefault is
// set.
func (em *emitter) accessors(recv string, impls []metadata.InterfaceImpl, skipDefault bool, seen map[string]bool) ([]jen.Code, error) {
	var decls []jen.Code
	for _, impl := range impls {
		if skipDefault && impl.Default {
			continue
		}
		t, err := em.typeOf(impl.Interface)
		if err != nil {
			return nil, err
		}
		target, ok := em.plan.lookup(impl.Interface.Deref())
		if !ok || t.iid == nil {
			continue
		}
		fn := unique("As"+target.name, seen)
		decls = append(decls, decl(fn+" queries the object for "+target.node.Key.String(),
			jen.Func().Params(jen.Id("i").Op("*").Id(recv)).Id(fn).Params().Params(t.goType(), jen.Error()).Block(
				jen.List(jen.Id("obj"), jen.Err()).Op(":=").Qual(winrtPath, "QueryInterface").Call(jen.Id("i"), t.iid()),
				jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
				jen.Return(t.wrapped(jen.Id("obj")), jen.Nil()),
			)))
	}
	return decls, nil
}

func (em *emitter) emitClass() ([]jen.Code, error) {
	n, name := em.entry.node, em.entry.name
	className := name + "ClassName"
	decls := []jen.Code{
		decl(className+" is the runtime class name of "+name,
			jen.Const().Id(className).Op("=").Lit(n.Def.FullName())),
	}

	var (
		def     *typeInfo
		defName string
	)
	if sig, ok := n.Def.DefaultInterface(); ok {
		t, err := em.typeOf(sig)
		if err != nil {
			return nil, err
		}
		if e, ok := em.plan.lookup(sig.Deref()); ok && t.wrap != nil {
			def, defName = t, e.name
		}
	}
	if def != nil {
		decls = append(decls,
			decl(name+" is an instance of the "+n.Key.String()+" runtime class",
				jen.Type().Id(name).Struct(def.goType())),
			wrapFunc(name, "IInspectable", jen.Id(defName).Op(":").Add(def.wrapped(jen.Id("obj")))),
		)
	} else {
		decls = append(decls,
			decl(name+" is an instance of the "+n.Key.String()+" runtime class",
				jen.Type().Id(name).Struct(jen.Op("*").Qual(winrtPath, "IInspectable"))),
			wrapFunc(name, "IInspectable", jen.Id("IInspectable").Op(":").Id("obj")),
		)
	}

	seen := map[string]bool{"Wrap" + name: true}
	for _, act := range n.Def.Activatable {
		if !act.Factory.IsZero() {
			continue
		}
		fn := unique("New"+name, seen)
		decls = append(decls, em.activator(fn, className, def))
		break
	}
	var factories []metadata.TypeRef
	for _, act := range n.Def.Activatable {
		if !act.Factory.IsZero() {
			factories = append(factories, act.Factory)
		}
	}
	for _, comp := range n.Def.Composable {
		if comp.Public {
			factories = append(factories, comp.Factory)
		}
	}
	factories = append(factories, n.Def.Statics...)
	for _, ref := range factories {
		fns, err := em.factory(name, className, ref, seen)
		if err != nil {
			return nil, err
		}
		decls = append(decls, fns...)
	}

	methods := map[string]bool{}
	for k := range promoted {
		methods[k] = true
	}
	if def != nil {
		if e, ok := em.plan.lookup(def.sig); ok {
			for _, s := range SlotTable(e.node.Def) {
				methods[s.Name] = true
			}
		}
	}
	as, err := em.accessors(name, n.Interfaces(), def != nil, methods)
	if err != nil {
		return nil, err
	}
	return append(decls, as...), nil
}

// activator renders the default constructor of a class
func (em *emitter) activator(fn, className string, def *typeInfo) jen.Code {
	name := em.entry.name
	activate := jen.List(jen.Id("inst"), jen.Err()).Op(":=").Qual(winrtPath, "ActivateInstance").Call(jen.Id(className))
	failed := jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err()))
	var body []jen.Code
	if def == nil || def.iid == nil {
		body = []jen.Code{activate, failed, jen.Return(jen.Id("Wrap"+name).Call(jen.Id("inst")), jen.Nil())}
	} else {
		body = []jen.Code{
			activate,
			failed,
			jen.Defer().Id("inst").Dot("Release").Call(),
			jen.List(jen.Id("obj"), jen.Err()).Op(":=").Qual(winrtPath, "QueryInterface").Call(jen.Id("inst"), def.iid()),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Return(jen.Id("Wrap"+name).Call(jen.Id("obj")), jen.Nil()),
		}
	}
	return decl(fn+" activates a new "+name+" with no arguments",
		jen.Func().Id(fn).Params().Params(jen.Op("*").Id(name), jen.Error()).Block(body...))
}

// factory renders one package function per method of an activation,
// composition or statics interface. Each call fetches the activation
// factory for the interface and releases it before returning.
func (em *emitter) factory(name, className string, ref metadata.TypeRef, seen map[string]bool) ([]jen.Code, error) {
	sig := metadata.Named(ref, false)
	e, ok := em.plan.lookup(sig)
	if !ok {
		return nil, errors.Unresolved(ref.FullName(), []string{em.entry.node.Key.String()})
	}
	t, err := em.typeOf(sig)
	if err != nil {
		return nil, err
	}
	if t.wrap == nil || t.iid == nil {
		return nil, nil
	}

	var decls []jen.Code
	for _, s := range SlotTable(e.node.Def) {
		sc := newScope(em.reserved("factory", "err")...)
		c, err := em.lower(s.Method, sc)
		if err != nil {
			return nil, err
		}
		fn := unique(name+s.Name, seen)
		body := []jen.Code{
			jen.List(jen.Id("factory"), jen.Err()).Op(":=").Qual(winrtPath, "GetActivationFactory").Call(jen.Id(className), t.iid()),
			jen.If(jen.Err().Op("!=").Nil()).Block(c.fail(jen.Err())),
			jen.Defer().Id("factory").Dot("Release").Call(),
			jen.Return(t.wrap().Call(jen.Id("factory")).Dot(s.Name).Call(c.forward()...)),
		}
		decls = append(decls, decl(fn+" calls "+s.Name+" of "+e.node.Key.String(),
			c.signature(jen.Func().Id(fn)).Block(body...)))
	}
	return decls, nil
}

func (em *emitter) emitStruct() ([]jen.Code, error) {
	n, name := em.entry.node, em.entry.name
	info, err := em.layoutOf(n.Def)
	if err != nil {
		return nil, err
	}
	em.size, em.align = info.Size, info.Align

	var fields, frees []jen.Code
	seen := make(map[string]bool)
	for _, f := range n.Def.Fields {
		if f.Flags&metadata.FieldStatic != 0 {
			continue
		}
		ft, err := em.fieldType(f.Type)
		if err != nil {
			return nil, withMember(err, f.Name)
		}
		id := unique(exported(identifier(f.Name)), seen)
		fields = append(fields, jen.Id(id).Add(ft))
		if em.holdsStrings(f.Type, 0) {
			frees = append(frees, jen.Id("s").Dot(id).Dot("Free").Call())
			if f.Type.Kind == metadata.SigPrimitive {
				frees = append(frees, jen.Id("s").Dot(id).Op("=").Lit(0))
			}
		}
	}

	typ := jen.Type().Id(name).Struct(fields...)
	free := unique("Free", seen)
	if len(frees) > 0 {
		typ = jen.Comment("Values received from calls own their string handles; release them").
			Line().Comment("with " + free + ".").
			Line().Add(typ)
	}
	size, align := name+"Size", name+"Align"
	value := jen.Id(name).Values()
	decls := []jen.Code{
		decl(name+" is the "+n.Key.String()+" struct.", typ),
		decl(size+" and "+align+" are the native layout of "+name,
			jen.Const().Defs(
				jen.Id(size).Op("=").Lit(int(info.Size)),
				jen.Id(align).Op("=").Lit(int(info.Align)),
			)),
		jen.Var().Defs(
			jen.Id("_").Index(jen.Id(size).Op("-").Qual("unsafe", "Sizeof").Call(value)).Byte(),
			jen.Id("_").Index(jen.Qual("unsafe", "Sizeof").Call(value).Op("-").Id(size)).Byte(),
			jen.Id("_").Index(jen.Id(align).Op("-").Qual("unsafe", "Alignof").Call(value)).Byte(),
			jen.Id("_").Index(jen.Qual("unsafe", "Alignof").Call(value).Op("-").Id(align)).Byte(),
		),
	}
	if len(frees) > 0 {
		decls = append(decls, decl(free+" releases the string handles of s and clears them",
			jen.Func().Params(jen.Id("s").Op("*").Id(name)).Id(free).Params().Block(frees...)))
	}
	return decls, nil
}

// maxFieldDepth bounds the walk through nested struct fields
const maxFieldDepth = 32

// holdsStrings reports whether a struct field of type s owns string handles
func (em *emitter) holdsStrings(s metadata.TypeSig, depth int) bool {
	switch {
	case s.Kind == metadata.SigPrimitive:
		return s.Prim == metadata.ElementString
	case s.Kind != metadata.SigValueType || depth > maxFieldDepth:
		return false
	}
	e, ok := em.plan.lookup(s)
	if !ok || e.node.Kind() != metadata.KindStruct {
		return false
	}
	for _, f := range e.node.Def.Fields {
		if f.Flags&metadata.FieldStatic == 0 && em.holdsStrings(f.Type, depth+1) {
			return true
		}
	}
	return false
}

func (em *emitter) emitEnum() ([]jen.Code, error) {
	n, name := em.entry.node, em.entry.name
	unsigned := n.Def.EnumUnderlying() == metadata.ElementU4
	under := jen.Int32()
	if unsigned {
		under = jen.Uint32()
	}

	var consts []jen.Code
	seen := map[string]bool{name: true}
	for _, f := range n.Def.Fields {
		if f.Flags&metadata.FieldStatic == 0 || f.Constant == nil {
			continue
		}
		v := int(f.Constant.Int64())
		if unsigned {
			v = int(uint32(f.Constant.Value))
		}
		consts = append(consts, jen.Id(unique(name+exported(identifier(f.Name)), seen)).Id(name).Op("=").Lit(v))
	}

	decls := []jen.Code{decl(name+" is the "+n.Key.String()+" enumeration", jen.Type().Id(name).Add(under))}
	if len(consts) > 0 {
		decls = append(decls, jen.Const().Defs(consts...))
	}
	return decls, nil
}

func (em *emitter) emitDelegate() ([]jen.Code, error) {
	n, name := em.entry.node, em.entry.name
	decls, err := em.wrapper("IUnknown")
	if err != nil {
		return nil, err
	}
	m := invokeMethod(n.Methods())
	if m == nil {
		return nil, errors.New(errors.PhaseSynthesize, errors.KindInvalidInput).
			Type(n.Key.String()).
			Detail("delegate has no Invoke method").
			Build()
	}
	s := Slot{Method: m, Name: "Invoke", Index: winrt.FirstUnknownSlot}
	invoke, err := em.method(name, s)
	if err != nil {
		return nil, err
	}
	em.slots = append(em.slots, s)
	decls = append(decls, invoke)

	fn, err := em.callback(m)
	if err != nil {
		return nil, err
	}
	return append(decls, fn...), nil
}

// callback renders the Go function type of a delegate and the constructor
// of a Go-implemented delegate. Only delegates whose parameters are all
// scalar or object inputs and that return nothing get one: results and
// arrays would need to be written back through raw pointers, and float
// arguments do not arrive in the integer slots a Go callback sees.
func (em *emitter) callback(m *metadata.Method) ([]jen.Code, error) {
	if m.Return != nil && !m.Return.Type.IsVoid() {
		return nil, nil
	}
	types := make([]*typeInfo, len(m.Params))
	for i := range m.Params {
		p := &m.Params[i]
		if p.Out() || p.Array != metadata.ArrayNone {
			return nil, nil
		}
		t, err := em.typeOf(p.Type)
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case abiFloat32, abiFloat64, abiArray:
			return nil, nil
		}
		types[i] = t
	}

	name := em.entry.name
	funcName := name + "Func"
	sc := newScope(em.reserved()...)
	params := make([]jen.Code, len(types))
	args := make([]jen.Code, len(types))
	for i, t := range types {
		params[i] = jen.Id(sc.name(m.Params[i].Name)).Add(t.goType())
		args[i] = unmarshal(t, jen.Id("args").Index(jen.Lit(i)))
	}

	var body []jen.Code
	if len(types) > 0 {
		body = append(body, jen.If(jen.Len(jen.Id("args")).Op("<").Lit(len(types))).Block(
			jen.Return(jen.Qual(winrtPath, "E_INVALIDARG")),
		))
	}
	body = append(body, jen.Return(jen.Qual(winrtPath, "HResultOf").Call(jen.Id("fn").Call(args...))))

	return []jen.Code{
		decl(funcName+" implements "+name,
			jen.Type().Id(funcName).Func().Params(params...).Error()),
		decl("New"+name+" returns a delegate calling fn. The reference is owned by the caller.",
			jen.Func().Id("New"+name).Params(jen.Id("fn").Id(funcName)).Op("*").Id(name).Block(
				jen.Return(jen.Id("Wrap"+name).Call(jen.Qual(winrtPath, "NewDelegate").Call(
					jen.Id(name+"IID"),
					jen.Func().Params(jen.Id("args").Index().Uintptr()).Qual(winrtPath, "HResult").Block(body...),
				))),
			)),
	}, nil
}

// unmarshal converts one raw callback argument to its Go value. Objects
// are borrowed for the duration of the call.
func unmarshal(t *typeInfo, raw *jen.Statement) jen.Code {
	switch t.kind {
	case abiBool:
		return jen.Uint8().Call(raw).Op("!=").Lit(0)
	case abiGUID:
		return jen.Qual(winrtPath, "Deref").Types(t.goType()).Call(raw)
	case abiString:
		return jen.Qual(winrtPath, "HString").Call(raw).Dot("String").Call()
	case abiStruct:
		if t.register() {
			return jen.Qual(winrtPath, "Unpack").Types(t.goType()).Call(raw)
		}
		return jen.Qual(winrtPath, "Deref").Types(t.goType()).Call(raw)
	case abiObject:
		return t.borrow(raw)
	}
	return t.goType().Call(raw)
}
