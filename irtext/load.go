//  Copyright (c) 2025 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package irtext loads module descriptions written in YAML into bound and lowered IR. It stands in
// for the binder of a real compiler: a description declares types, members and their nullability
// annotations, and method bodies whose expressions use Go expression syntax (plus `null!` for a
// suppressed null literal, `new(T, args...)` for object creation and `&x` for by-reference
// arguments).
//
// YAML does not allow `?` inside a plain scalar of a flow collection, so a nullable type written
// in `{...}` or `[...]` must be quoted, as in `{name: s, type: "string?"}`. Block style needs no
// quotes.
package irtext

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"os"
	"strings"

	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/refs"
	"gopkg.in/yaml.v3"
)

// Module is a loaded module description.
type Module struct {
	// Assembly is the source assembly. Its references always include the core library.
	Assembly *refs.Assembly
	// Closure is the reference closure of Assembly.
	Closure *refs.Closure
	// NullableContext is the module-wide nullable analysis context.
	NullableContext bool
	// Fset maps the positions of the module's spans.
	Fset *token.FileSet
}

// Error is a loading error at a position of the description.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	if !e.Pos.IsValid() {
		return e.Msg
	}
	return e.Pos.String() + ": " + e.Msg
}

// Option configures loading.
type Option func(*loader)

// DefaultNullableContext sets the nullable context of a description that does not name one.
// Without it, the context is disabled.
func DefaultNullableContext(enabled bool) Option {
	return func(l *loader) { l.enabled = enabled }
}

// LoadFile reads and loads the description at path.
func LoadFile(fset *token.FileSet, path string, opts ...Option) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module description: %w", err)
	}
	return Load(fset, path, src, opts...)
}

// Load loads the description src, recording positions in fset under filename.
func Load(fset *token.FileSet, filename string, src []byte, opts ...Option) (*Module, error) {
	var decl moduleDecl
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&decl); err != nil {
		return nil, fmt.Errorf("%s: decode module description: %w", filename, err)
	}

	file := fset.AddFile(filename, -1, len(src))
	file.SetLinesForContent(src)

	l := &loader{fset: fset, file: file}
	for _, opt := range opts {
		opt(l)
	}
	enabled, err := parseContext(decl.Nullable, l.enabled)
	if err != nil {
		return nil, l.errorf(nodePos{}, "%v", err)
	}
	l.enabled = enabled

	core := refs.CoreLibrary()
	asm := &refs.Assembly{Name: decl.Assembly, References: []*refs.Assembly{core}}
	if asm.Name == "" {
		asm.Name = "App"
	}
	for _, r := range decl.References {
		switch r {
		case refs.AnnotationsLibraryName:
			asm.References = append(asm.References, refs.AnnotationsLibrary(core))
		case refs.CoreLibraryName:
		default:
			return nil, l.errorf(nodePos{}, "unknown reference %q", r)
		}
	}
	l.asm = asm
	l.closure = refs.NewClosure(asm)

	if err := l.load(decl.Types); err != nil {
		return nil, err
	}
	return &Module{Assembly: asm, Closure: l.closure, NullableContext: enabled, Fset: fset}, nil
}

// Method returns the method with the given qualified name: "Type.Method" or "Namespace.Type.Method".
// Accessors are named "Type.get_P" and "Type.set_P", constructors "Type..ctor".
func (m *Module) Method(name string) *ir.Method {
	for _, t := range m.Assembly.Types {
		for _, meth := range t.Methods {
			if meth.FullName() == name || t.String()+"."+meth.Name == name {
				return meth
			}
		}
	}
	return nil
}

// Type returns the source type with the given simple or qualified name.
func (m *Module) Type(name string) *ir.NamedType {
	for _, t := range m.Assembly.Types {
		if t.Name == name || t.FullName() == name {
			return t
		}
	}
	return nil
}

type loader struct {
	fset    *token.FileSet
	file    *token.File
	enabled bool
	asm     *refs.Assembly
	closure *refs.Closure

	pending []pendingBody
}

// decided is a method whose override or explicit implementation is resolved once every type of
// the module is declared.
type decided struct {
	m     *ir.Method
	pos   nodePos
	decl  *methodDecl
	scope *typeScope
}

// pendingBody is a body bound after every signature of the module is known.
type pendingBody struct {
	m      *ir.Method
	nodes  []yaml.Node
	scope  *typeScope
	seq    bool
	locals map[string]*ir.Method
}

func parseContext(s string, inherited bool) (bool, error) {
	switch s {
	case "":
		return inherited, nil
	case "enable":
		return true, nil
	case "disable":
		return false, nil
	}
	return false, fmt.Errorf("invalid nullable context %q, want \"enable\" or \"disable\"", s)
}

func (l *loader) pos(p nodePos) token.Pos {
	if p.line <= 0 || p.line > l.file.LineCount() {
		return token.NoPos
	}
	return l.file.LineStart(p.line) + token.Pos(p.col-1)
}

func (l *loader) span(p nodePos) ir.Span {
	start := l.pos(p)
	if !start.IsValid() {
		return ir.Span{}
	}
	return ir.Span{Pos: start, End: start + token.Pos(p.width)}
}

func (l *loader) errorf(p nodePos, format string, args ...any) error {
	e := &Error{Msg: fmt.Sprintf(format, args...)}
	if pos := l.pos(p); pos.IsValid() {
		e.Pos = l.fset.Position(pos)
	}
	return e
}

func (l *loader) wrap(p nodePos, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return l.errorf(p, "%v", err)
}

func (l *loader) load(decls []typeDecl) error {
	types := make([]*ir.NamedType, len(decls))
	scopes := make([]*typeScope, len(decls))

	// Declare every type first so that members may refer to types declared later.
	for i := range decls {
		d := &decls[i]
		enabled, err := parseContext(d.Nullable, l.enabled)
		if err != nil {
			return l.errorf(d.pos, "%v", err)
		}
		t := &ir.NamedType{
			Namespace: d.Namespace,
			Name:      d.Name,
			Static:    d.Static,
			Sealed:    d.Sealed || d.Static,
			Abstract:  d.Abstract || d.Static,
			Internal:  d.Internal,
			Span:      l.span(d.pos),
		}
		switch d.Kind {
		case "", "class":
			t.Kind = ir.KindClass
		case "struct":
			t.Kind = ir.KindStruct
		case "interface":
			t.Kind = ir.KindInterface
		case "enum":
			t.Kind = ir.KindEnum
		default:
			return l.errorf(d.pos, "unknown type kind %q", d.Kind)
		}
		for j, src := range d.TypeParams {
			tp, err := parseTypeParam(src, j, enabled)
			if err != nil {
				return l.errorf(d.pos, "%v", err)
			}
			t.TypeParams = append(t.TypeParams, tp)
		}
		types[i] = t
		scopes[i] = (&typeScope{l: l}).with(t.TypeParams, enabled)
		l.asm.Types = append(l.asm.Types, t)
	}

	var (
		overrides []decided
		explicits []decided
	)
	for i := range decls {
		d, t, scope := &decls[i], types[i], scopes[i]
		if err := l.declareHeader(d, t, scope); err != nil {
			return err
		}
		for j := range d.Fields {
			fd := &d.Fields[j]
			ft, err := scope.resolve(fd.Type)
			if err != nil {
				return l.errorf(fd.pos, "field %s: %v", fd.Name, err)
			}
			t.Fields = append(t.Fields, &ir.Field{Name: fd.Name, Container: t, Type: ft, Static: fd.Static, Span: l.span(fd.pos)})
		}
		for j := range d.Properties {
			pd := &d.Properties[j]
			accessors, err := l.declareProperty(pd, t, scope)
			if err != nil {
				return err
			}
			if pd.Override {
				for _, a := range accessors {
					overrides = append(overrides, decided{m: a, pos: pd.pos})
				}
			}
		}
		for j := range d.Ctors {
			cd := &d.Ctors[j]
			cd.Name = ".ctor"
			cd.Returns = "void"
			if _, err := l.declareMethod(cd, t, ir.MethodConstructor, scope); err != nil {
				return err
			}
		}
		for j := range d.Methods {
			md := &d.Methods[j]
			m, err := l.declareMethod(md, t, ir.MethodOrdinary, scope)
			if err != nil {
				return err
			}
			if md.Override {
				overrides = append(overrides, decided{m: m, pos: md.pos})
			}
			if len(md.Implements) > 0 {
				explicits = append(explicits, decided{m: m, pos: md.pos, decl: md, scope: scope})
			}
		}
	}

	for _, o := range overrides {
		if err := l.resolveOverride(o.m); err != nil {
			return l.errorf(o.pos, "%v", err)
		}
	}
	for _, e := range explicits {
		if err := l.resolveExplicit(e.m, e.decl.Implements, e.scope); err != nil {
			return l.errorf(e.pos, "%v", err)
		}
	}

	for _, p := range l.pending {
		if err := l.bindBody(p); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) declareHeader(d *typeDecl, t *ir.NamedType, scope *typeScope) error {
	switch {
	case d.Base != "":
		base, err := scope.resolve(d.Base)
		if err != nil {
			return l.errorf(d.pos, "base of %s: %v", d.Name, err)
		}
		n, ok := base.Type.(*ir.NamedType)
		if !ok {
			return l.errorf(d.pos, "base of %s is not a named type", d.Name)
		}
		t.Base = n
	case t.Kind == ir.KindClass:
		t.Base = l.closure.SpecialType(ir.SpecialObject)
	case t.Kind == ir.KindStruct || t.Kind == ir.KindEnum:
		t.Base = l.closure.LookupType("System.ValueType")
	}
	for _, src := range d.Interfaces {
		iface, err := scope.resolve(src)
		if err != nil {
			return l.errorf(d.pos, "interface of %s: %v", d.Name, err)
		}
		n, ok := iface.Type.(*ir.NamedType)
		if !ok || !n.IsInterface() {
			return l.errorf(d.pos, "%s is not an interface", src)
		}
		t.Interfaces = append(t.Interfaces, n)
	}
	attrs, err := l.attributes(d.Attributes)
	if err != nil {
		return l.errorf(d.pos, "%v", err)
	}
	t.Attributes = attrs
	return nil
}

// attributes resolves attribute names, with or without the "Attribute" suffix.
func (l *loader) attributes(names []string) ([]*ir.Attribute, error) {
	var attrs []*ir.Attribute
	for _, name := range names {
		class := l.lookupNamed(name+"Attribute", 0)
		if class == nil {
			class = l.lookupNamed(name, 0)
		}
		if class == nil {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		attrs = append(attrs, &ir.Attribute{Class: class})
	}
	return attrs, nil
}

func parseFlow(names []string) (ir.FlowAnnotations, error) {
	var f ir.FlowAnnotations
	for _, n := range names {
		switch n {
		case "AllowNull":
			f |= ir.AllowNull
		case "DisallowNull":
			f |= ir.DisallowNull
		case "MaybeNull":
			f |= ir.MaybeNull
		case "NotNull":
			f |= ir.NotNull
		default:
			return 0, fmt.Errorf("unknown flow annotation %q", n)
		}
	}
	return f, nil
}

func (l *loader) param(d *paramDecl, ordinal int, scope *typeScope, owner *ir.Method) (*ir.Param, error) {
	pt, err := scope.resolve(d.Type)
	if err != nil {
		return nil, l.errorf(d.pos, "parameter %s: %v", d.Name, err)
	}
	flow, err := parseFlow(d.Flow)
	if err != nil {
		return nil, l.errorf(d.pos, "parameter %s: %v", d.Name, err)
	}
	attrs, err := l.attributes(d.Attributes)
	if err != nil {
		return nil, l.errorf(d.pos, "parameter %s: %v", d.Name, err)
	}
	p := &ir.Param{Name: d.Name, Ordinal: ordinal, Type: pt, Flow: flow, Attributes: attrs, Owner: owner, Span: l.span(d.pos)}
	switch d.Ref {
	case "":
	case "ref":
		p.RefKind = ir.RefRef
	case "out":
		p.RefKind = ir.RefOut
	case "in":
		p.RefKind = ir.RefIn
	default:
		return nil, l.errorf(d.pos, "parameter %s: unknown ref kind %q", d.Name, d.Ref)
	}
	return p, nil
}

// cloneParams copies params for owner without their syntax, the way the host clones accessor
// and closure parameters.
func cloneParams(params []*ir.Param, owner *ir.Method) []*ir.Param {
	out := make([]*ir.Param, len(params))
	for i, p := range params {
		c := *p
		c.Owner = owner
		c.Span = ir.Span{}
		out[i] = &c
	}
	return out
}

func (l *loader) signature(d *methodDecl, m *ir.Method, scope *typeScope) (*typeScope, error) {
	enabled, err := parseContext(d.Nullable, scope.enabled)
	if err != nil {
		return nil, l.errorf(d.pos, "%v", err)
	}
	for i, src := range d.TypeParams {
		tp, err := parseTypeParam(src, i, enabled)
		if err != nil {
			return nil, l.errorf(d.pos, "%v", err)
		}
		m.TypeParams = append(m.TypeParams, tp)
	}
	ms := scope.with(m.TypeParams, enabled)
	for i := range d.Params {
		p, err := l.param(&d.Params[i], i, ms, m)
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, p)
	}
	ret := d.Returns
	if ret == "" {
		ret = "void"
	}
	if m.Return, err = ms.resolve(ret); err != nil {
		return nil, l.errorf(d.pos, "return type of %s: %v", d.Name, err)
	}
	if m.ReturnFlow, err = parseFlow(d.ReturnFlow); err != nil {
		return nil, l.errorf(d.pos, "%v", err)
	}
	if m.Attributes, err = l.attributes(d.Attributes); err != nil {
		return nil, l.errorf(d.pos, "%v", err)
	}
	if m.ReturnAttributes, err = l.attributes(d.ReturnAttributes); err != nil {
		return nil, l.errorf(d.pos, "%v", err)
	}
	return ms, nil
}

func (l *loader) declareMethod(d *methodDecl, t *ir.NamedType, kind ir.MethodKind, scope *typeScope) (*ir.Method, error) {
	m := &ir.Method{
		Name:      d.Name,
		Container: t,
		Kind:      kind,
		Static:    d.Static || t.Static,
		Internal:  d.Internal,
		Iterator:  d.Iterator,
		Async:     d.Async,
		Extern:    d.Extern || t.IsInterface(),
		Span:      l.span(d.pos),
	}
	ms, err := l.signature(d, m, scope)
	if err != nil {
		return nil, err
	}
	t.Methods = append(t.Methods, m)

	locals := make(map[string]*ir.Method)
	for i := range d.LocalFunctions {
		c, err := l.declareClosure(&d.LocalFunctions[i], m, ir.MethodLocalFunction, i, ms)
		if err != nil {
			return nil, err
		}
		locals[d.LocalFunctions[i].Name] = c
	}
	for i := range d.Lambdas {
		if _, err := l.declareClosure(&d.Lambdas[i], m, ir.MethodLambda, i, ms); err != nil {
			return nil, err
		}
	}
	if !m.Extern {
		l.pending = append(l.pending, pendingBody{m: m, nodes: d.Body, scope: ms, seq: seqPoints(d), locals: locals})
	}
	return m, nil
}

func seqPoints(d *methodDecl) bool {
	return d.SequencePoints == nil || *d.SequencePoints
}

// declareClosure declares a lambda or local function of outer the way closure conversion leaves
// it: the declaration keeps the source parameters, and the synthesized method that receives the
// body, added to the containing type, has cloned parameters without syntax.
func (l *loader) declareClosure(d *methodDecl, outer *ir.Method, kind ir.MethodKind, ordinal int, scope *typeScope) (*ir.Method, error) {
	decl := &ir.Method{
		Name:      d.Name,
		Container: outer.Container,
		Kind:      kind,
		Static:    outer.Static,
		Iterator:  d.Iterator,
		Async:     d.Async,
		Span:      l.span(d.pos),
	}
	cs, err := l.signature(d, decl, scope)
	if err != nil {
		return nil, err
	}

	closure := *decl
	closure.Base = decl
	closure.Span = ir.Span{}
	closure.Params = cloneParams(decl.Params, &closure)
	closure.Impl = ir.CompilerGenerated
	if kind == ir.MethodLocalFunction {
		closure.Name = fmt.Sprintf("<%s>g__%s|%d_0", outer.Name, d.Name, ordinal)
	} else {
		closure.Name = fmt.Sprintf("<%s>b__%d_0", outer.Name, ordinal)
	}
	outer.Container.Methods = append(outer.Container.Methods, &closure)
	l.pending = append(l.pending, pendingBody{m: &closure, nodes: d.Body, scope: cs, seq: seqPoints(d)})
	return &closure, nil
}

// declareProperty declares a property or indexer of t and its accessors, which it returns. The
// accessors of an interface property, or of one marked extern, have no body.
func (l *loader) declareProperty(d *propertyDecl, t *ir.NamedType, scope *typeScope) ([]*ir.Method, error) {
	pt, err := scope.resolve(d.Type)
	if err != nil {
		return nil, l.errorf(d.pos, "property %s: %v", d.Name, err)
	}
	attrs, err := l.attributes(d.Attributes)
	if err != nil {
		return nil, l.errorf(d.pos, "property %s: %v", d.Name, err)
	}
	flow, err := parseFlow(d.Flow)
	if err != nil {
		return nil, l.errorf(d.pos, "property %s: %v", d.Name, err)
	}
	p := &ir.Property{
		Name:       d.Name,
		Container:  t,
		Type:       pt,
		Static:     d.Static || t.Static,
		Indexer:    len(d.Params) > 0,
		Attributes: attrs,
		Span:       l.span(d.pos),
	}
	for i := range d.Params {
		pp, err := l.param(&d.Params[i], i, scope, nil)
		if err != nil {
			return nil, err
		}
		p.Params = append(p.Params, pp)
	}
	t.Properties = append(t.Properties, p)

	accessorName := p.Name
	if p.Indexer {
		accessorName = "Item"
	}
	extern := d.Extern || t.IsInterface()
	if d.Auto && p.Indexer {
		return nil, l.errorf(d.pos, "indexer %s cannot be an auto-property", d.Name)
	}
	if d.Auto && !extern {
		p.BackingField = &ir.Field{Name: "<" + p.Name + ">k__BackingField", Container: t, Type: pt, Static: p.Static}
		t.Fields = append(t.Fields, p.BackingField)
	}

	var accessors []*ir.Method
	if d.Auto || d.hasGet {
		g := &ir.Method{
			Name:       "get_" + accessorName,
			Container:  t,
			Kind:       ir.MethodPropertyGet,
			Static:     p.Static,
			Property:   p,
			Return:     pt,
			ReturnFlow: flow & (ir.MaybeNull | ir.NotNull),
			Extern:     extern,
			Span:       p.Span,
		}
		g.Params = cloneParams(p.Params, g)
		p.Getter = g
		t.Methods = append(t.Methods, g)
		accessors = append(accessors, g)
		switch {
		case extern:
		case d.Auto:
			g.Body = &ir.Block{Stmts: []ir.Stmt{&ir.SequencePoint{
				Span: p.Span,
				Stmt: &ir.Return{X: &ir.FieldRef{Receiver: l.receiver(t, p.Static), Field: p.BackingField}},
			}}}
		default:
			l.pending = append(l.pending, pendingBody{m: g, nodes: d.Get, scope: scope, seq: true})
		}
	}
	if d.Auto || d.hasSet {
		s := &ir.Method{
			Name:      "set_" + accessorName,
			Container: t,
			Kind:      ir.MethodPropertySet,
			Static:    p.Static,
			Property:  p,
			Return:    ir.TypeWithAnnotations{Type: l.closure.SpecialType(ir.SpecialVoid)},
			Extern:    extern,
			Span:      p.Span,
		}
		s.Params = cloneParams(p.Params, s)
		s.Params = append(s.Params, &ir.Param{
			Name:    "value",
			Ordinal: len(s.Params),
			Type:    pt,
			Flow:    flow & (ir.AllowNull | ir.DisallowNull),
			Owner:   s,
		})
		p.Setter = s
		t.Methods = append(t.Methods, s)
		accessors = append(accessors, s)
		switch {
		case extern:
		case d.Auto:
			s.Body = &ir.Block{Stmts: []ir.Stmt{&ir.SequencePoint{
				Span: p.Span,
				Stmt: &ir.ExprStmt{X: &ir.Assign{
					Left:  &ir.FieldRef{Receiver: l.receiver(t, p.Static), Field: p.BackingField},
					Right: &ir.ParamRef{Param: s.Params[len(s.Params)-1]},
				}},
			}}}
		default:
			l.pending = append(l.pending, pendingBody{m: s, nodes: d.Set, scope: scope, seq: true})
		}
	}
	return accessors, nil
}

func (l *loader) receiver(t *ir.NamedType, static bool) ir.Expr {
	if static {
		return nil
	}
	return &ir.This{T: t}
}

func (l *loader) resolveOverride(m *ir.Method) error {
	seen := make(map[*ir.NamedType]bool)
	for base := m.Container.Base; base != nil && !seen[base]; base = base.Origin().Base {
		seen[base] = true
		for _, cand := range base.Origin().Methods {
			if cand.Name == m.Name && cand.Kind == m.Kind && !cand.Static && ir.SameSignature(m, cand, nil) {
				m.Overridden = cand
				return nil
			}
		}
	}
	return fmt.Errorf("%s: no suitable method found to override", m.FullName())
}

func (l *loader) resolveExplicit(m *ir.Method, ifaces []string, scope *typeScope) error {
	name := m.Name
	var qualified []string
	for _, src := range ifaces {
		it, err := scope.resolve(src)
		if err != nil {
			return err
		}
		iface, ok := it.Type.(*ir.NamedType)
		if !ok || !iface.IsInterface() {
			return fmt.Errorf("%s is not an interface", src)
		}
		var found *ir.Method
		for _, im := range iface.Origin().Methods {
			if im.Name == name && ir.SameSignature(m, im, iface) {
				found = im
				break
			}
		}
		if found == nil {
			return fmt.Errorf("%s does not declare a method %s matching %s", src, name, m)
		}
		m.ExplicitImpls = append(m.ExplicitImpls, found)
		qualified = append(qualified, iface.String())
	}
	m.Name = strings.Join(qualified, ",") + "." + name
	return nil
}
