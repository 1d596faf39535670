package synth

import (
	"github.com/dave/jennifer/jen"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/metadata"
)

// call is the lowered form of one method: the Go signature and the
// statements around the vtable invocation.
type call struct {
	params  []jen.Code
	names   []string
	results []*typeInfo
	// pre statements are built once every result is known, so early
	// returns list the full zero results.
	pre     []func() jen.Code
	args    []jen.Code
	post    []jen.Code
	values  []jen.Code
	// retval is the return value; it comes first among the Go results
	retval *typeInfo
	retVal jen.Code
}

// fail returns the zero results followed by err
func (c *call) fail(err jen.Code) jen.Code {
	out := make([]jen.Code, 0, len(c.results)+2)
	if c.retval != nil {
		out = append(out, c.retval.zero())
	}
	for _, r := range c.results {
		out = append(out, r.zero())
	}
	return jen.Return(append(out, err)...)
}

// resultTypes returns the Go result list, error last
func (c *call) resultTypes() []jen.Code {
	var out []jen.Code
	if c.retval != nil {
		out = append(out, c.retval.goType())
	}
	for _, r := range c.results {
		out = append(out, r.goType())
	}
	return append(out, jen.Error())
}

// signature appends the parameter and result lists to a function head
func (c *call) signature(head *jen.Statement) *jen.Statement {
	head = head.Params(c.params...)
	if c.retval == nil && len(c.results) == 0 {
		return head.Error()
	}
	return head.Params(c.resultTypes()...)
}

// body returns the statements invoking slot on this
func (c *call) body(this jen.Code, slot int) []jen.Code {
	invoke := jen.Qual(winrtPath, "Invoke").Call(append([]jen.Code{this, jen.Lit(slot)}, c.args...)...)
	stmts := make([]jen.Code, 0, len(c.pre)+4)
	for _, p := range c.pre {
		stmts = append(stmts, p())
	}
	if c.retval == nil && len(c.results) == 0 && len(c.post) == 0 {
		return append(stmts, jen.Return(jen.Qual(winrtPath, "Check").Call(invoke)))
	}
	stmts = append(stmts,
		jen.Id("hr").Op(":=").Add(invoke),
		jen.If(jen.Id("hr").Op("!=").Qual(winrtPath, "S_OK")).Block(
			c.fail(jen.Qual(winrtPath, "NewCallError").Call(jen.Id("hr"))),
		),
	)
	stmts = append(stmts, c.post...)
	var values []jen.Code
	if c.retval != nil {
		values = append(values, c.retVal)
	}
	values = append(values, c.values...)
	return append(stmts, jen.Return(append(values, jen.Nil())...))
}

// forward returns the argument list passing every Go parameter through
func (c *call) forward() []jen.Code {
	out := make([]jen.Code, len(c.names))
	for i, n := range c.names {
		out[i] = jen.Id(n)
	}
	return out
}

// returnOnErr returns the early return after a failed conversion
func (c *call) returnOnErr() func() jen.Code {
	return func() jen.Code {
		return jen.If(jen.Err().Op("!=").Nil()).Block(c.fail(jen.Err()))
	}
}

func now(code jen.Code) func() jen.Code {
	return func() jen.Code { return code }
}

func addr(name string) jen.Code {
	return jen.Uintptr().Call(jen.Qual("unsafe", "Pointer").Call(jen.Op("&").Id(name)))
}

func sliceData(name string) jen.Code {
	return jen.Uintptr().Call(jen.Qual("unsafe", "Pointer").Call(jen.Qual("unsafe", "SliceData").Call(jen.Id(name))))
}

func sliceLen(name string) jen.Code {
	return jen.Uintptr().Call(jen.Len(jen.Id(name)))
}

// lower builds the call of m. sc already holds the names the caller uses.
func (em *emitter) lower(m *metadata.Method, sc *scope) (*call, error) {
	c := &call{}
	for i := range m.Params {
		p := &m.Params[i]
		name := sc.name(p.Name)
		var err error
		switch {
		case p.Array == metadata.ArrayReceive:
			err = em.receive(c, sc, p.Type, name, false)
		case p.Array == metadata.ArrayFill:
			err = em.fill(c, sc, p.Type, name)
		case p.Array == metadata.ArrayPass:
			err = em.pass(c, sc, p.Type, name)
		case p.Out():
			err = em.out(c, sc, p.Type, name, false)
		default:
			err = em.in(c, sc, p.Type, name)
		}
		if err != nil {
			return nil, withMember(err, m.Name, p.Name)
		}
	}
	if m.Return != nil && !m.Return.Type.IsVoid() {
		name := m.Return.Name
		if name == "" {
			name = "result"
		}
		name = sc.name(name)
		var err error
		if m.Return.Type.Kind == metadata.SigArray {
			err = em.receive(c, sc, m.Return.Type, name, true)
		} else {
			err = em.out(c, sc, m.Return.Type, name, true)
		}
		if err != nil {
			return nil, withMember(err, m.Name, "return")
		}
	}
	return c, nil
}

func withMember(err error, path ...string) error {
	if e, ok := err.(*errors.Error); ok {
		cp := *e
		cp.Path = append(append([]string(nil), path...), e.Path...)
		return &cp
	}
	return err
}

// in lowers an input parameter
func (em *emitter) in(c *call, sc *scope, s metadata.TypeSig, name string) error {
	t, err := em.typeOf(s)
	if err != nil {
		return err
	}
	c.params = append(c.params, jen.Id(name).Add(t.goType()))
	c.names = append(c.names, name)
	switch t.kind {
	case abiBool:
		c.args = append(c.args, jen.Qual(winrtPath, "Bool").Call(jen.Id(name)))
	case abiInt:
		c.args = append(c.args, jen.Uintptr().Call(jen.Id(name)))
	case abiFloat32:
		c.args = append(c.args, jen.Qual(winrtPath, "Float32").Call(jen.Id(name)))
	case abiFloat64:
		c.args = append(c.args, jen.Qual(winrtPath, "Float64").Call(jen.Id(name)))
	case abiGUID:
		c.args = append(c.args, addr(name))
	case abiString:
		h := sc.name(name + "H")
		c.pre = append(c.pre,
			now(jen.List(jen.Id(h), jen.Err()).Op(":=").Qual(winrtPath, "NewHString").Call(jen.Id(name))),
			c.returnOnErr(),
			now(jen.Defer().Id(h).Dot("Free").Call()),
		)
		c.args = append(c.args, jen.Uintptr().Call(jen.Id(h)))
	case abiStruct:
		if t.register() {
			c.args = append(c.args, jen.Qual(winrtPath, "Pack").Call(jen.Id(name)))
		} else {
			c.args = append(c.args, addr(name))
		}
	case abiObject:
		c.args = append(c.args, jen.Qual(winrtPath, "Raw").Call(jen.Id(name)))
	default:
		return errors.Unsupported(errors.PhaseSynthesize, "input of type "+s.String())
	}
	return nil
}

// out lowers a scalar output parameter or return value
func (em *emitter) out(c *call, sc *scope, s metadata.TypeSig, name string, ret bool) error {
	t, err := em.typeOf(s)
	if err != nil {
		return err
	}
	var value jen.Code
	switch t.kind {
	case abiBool, abiInt, abiFloat32, abiFloat64, abiGUID, abiStruct:
		c.pre = append(c.pre, now(jen.Var().Id(name).Add(t.goType())))
		c.args = append(c.args, addr(name))
		value = jen.Id(name)
	case abiString:
		h := sc.name(name + "H")
		c.pre = append(c.pre, now(jen.Var().Id(h).Qual(winrtPath, "HString")))
		c.args = append(c.args, addr(h))
		value = jen.Qual(winrtPath, "TakeString").Call(jen.Id(h))
	case abiObject:
		p := sc.name(name + "P")
		c.pre = append(c.pre, now(jen.Var().Id(p).Qual("unsafe", "Pointer")))
		c.args = append(c.args, addr(p))
		value = t.attach(jen.Id(p))
	default:
		return errors.Unsupported(errors.PhaseSynthesize, "output of type "+s.String())
	}
	em.result(c, t, value, ret)
	return nil
}

func (em *emitter) result(c *call, t *typeInfo, value jen.Code, ret bool) {
	if ret {
		c.retval = t
		c.retVal = value
		return
	}
	c.results = append(c.results, t)
	c.values = append(c.values, value)
}

// receive lowers a callee-allocated array: a length and a buffer pointer
// the caller copies from and frees.
func (em *emitter) receive(c *call, sc *scope, s metadata.TypeSig, name string, ret bool) error {
	t, err := em.typeOf(s)
	if err != nil {
		return err
	}
	if t.kind != abiArray {
		return errors.Unsupported(errors.PhaseSynthesize, "receive array of type "+s.String())
	}
	n, p := sc.name(name+"N"), sc.name(name+"P")
	c.pre = append(c.pre,
		now(jen.Var().Id(n).Uint32()),
		now(jen.Var().Id(p).Qual("unsafe", "Pointer")),
	)
	c.args = append(c.args, addr(n), addr(p))

	var value jen.Code
	switch {
	case t.elem.blittable():
		value = jen.Qual(winrtPath, "ReceiveArray").Types(t.elem.goType()).Call(jen.Id(p), jen.Id(n))
	case t.elem.kind == abiString:
		value = jen.Qual(winrtPath, "ReceiveStrings").Call(jen.Id(p), jen.Id(n))
	case t.elem.kind == abiObject:
		ptrs, k, v := sc.name(name+"Ptrs"), sc.name("k"), sc.name("v")
		c.post = append(c.post,
			jen.Id(ptrs).Op(":=").Qual(winrtPath, "ReceivePointers").Call(jen.Id(p), jen.Id(n)),
			jen.Id(name).Op(":=").Make(t.goType(), jen.Len(jen.Id(ptrs))),
			jen.For(jen.List(jen.Id(k), jen.Id(v)).Op(":=").Range().Id(ptrs)).Block(
				jen.Id(name).Index(jen.Id(k)).Op("=").Add(t.elem.attach(jen.Id(v))),
			),
		)
		value = jen.Id(name)
	default:
		return errors.Unsupported(errors.PhaseSynthesize, "receive array of type "+s.String())
	}
	em.result(c, t, value, ret)
	return nil
}

// pass lowers an input array: a length and a pointer to the elements
func (em *emitter) pass(c *call, sc *scope, s metadata.TypeSig, name string) error {
	t, err := em.typeOf(s)
	if err != nil {
		return err
	}
	if t.kind != abiArray {
		return errors.Unsupported(errors.PhaseSynthesize, "array of type "+s.String())
	}
	c.params = append(c.params, jen.Id(name).Add(t.goType()))
	c.names = append(c.names, name)
	switch {
	case t.elem.blittable():
		c.args = append(c.args, sliceLen(name), sliceData(name))
	case t.elem.kind == abiString:
		h := sc.name(name + "H")
		c.pre = append(c.pre,
			now(jen.List(jen.Id(h), jen.Err()).Op(":=").Qual(winrtPath, "NewHStrings").Call(jen.Id(name))),
			c.returnOnErr(),
			now(jen.Defer().Qual(winrtPath, "FreeHStrings").Call(jen.Id(h))),
		)
		c.args = append(c.args, sliceLen(h), sliceData(h))
	case t.elem.kind == abiObject:
		p := sc.name(name + "P")
		c.pre = append(c.pre, now(jen.Id(p).Op(":=").Qual(winrtPath, "Pointers").Call(jen.Id(name))))
		c.args = append(c.args, sliceLen(p), sliceData(p))
	default:
		return errors.Unsupported(errors.PhaseSynthesize, "array of type "+s.String())
	}
	return nil
}

// fill lowers a caller-allocated array the callee writes into
func (em *emitter) fill(c *call, sc *scope, s metadata.TypeSig, name string) error {
	t, err := em.typeOf(s)
	if err != nil {
		return err
	}
	if t.kind != abiArray {
		return errors.Unsupported(errors.PhaseSynthesize, "array of type "+s.String())
	}
	c.params = append(c.params, jen.Id(name).Add(t.goType()))
	c.names = append(c.names, name)
	switch {
	case t.elem.blittable():
		c.args = append(c.args, sliceLen(name), sliceData(name))
	case t.elem.kind == abiString:
		h, k, v := sc.name(name+"H"), sc.name("k"), sc.name("v")
		c.pre = append(c.pre, now(jen.Id(h).Op(":=").Make(jen.Index().Qual(winrtPath, "HString"), jen.Len(jen.Id(name)))))
		c.args = append(c.args, sliceLen(h), sliceData(h))
		c.post = append(c.post, jen.For(jen.List(jen.Id(k), jen.Id(v)).Op(":=").Range().Id(h)).Block(
			jen.Id(name).Index(jen.Id(k)).Op("=").Qual(winrtPath, "TakeString").Call(jen.Id(v)),
		))
	case t.elem.kind == abiObject:
		p, k, v := sc.name(name+"P"), sc.name("k"), sc.name("v")
		c.pre = append(c.pre, now(jen.Id(p).Op(":=").Make(jen.Index().Qual("unsafe", "Pointer"), jen.Len(jen.Id(name)))))
		c.args = append(c.args, sliceLen(p), sliceData(p))
		c.post = append(c.post, jen.For(jen.List(jen.Id(k), jen.Id(v)).Op(":=").Range().Id(p)).Block(
			jen.Id(name).Index(jen.Id(k)).Op("=").Add(t.elem.attach(jen.Id(v))),
		))
	default:
		return errors.Unsupported(errors.PhaseSynthesize, "array of type "+s.String())
	}
	return nil
}
