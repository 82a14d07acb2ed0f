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

// Package synth builds the IR nodes of synthesized code. A Factory is bound to the compilation it
// synthesizes for: it knows the core library's special types and resolves catalog members through
// the compilation's symbol cache.
package synth

import (
	"fmt"
	"strconv"

	"go.uber.org/nilguard/descriptor"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/symcache"
)

// MissingMemberError reports that a catalog member needed by synthesized code could not be
// resolved. Callers recover from it at the point where they asked for the member.
type MissingMemberError struct {
	Member *descriptor.Member
}

func (e *MissingMemberError) Error() string {
	return fmt.Sprintf("missing predefined member %s", e.Member)
}

// SpecialTypes looks up core library types. *refs.Closure implements it.
type SpecialTypes interface {
	SpecialType(s ir.SpecialType) *ir.NamedType
}

// Factory synthesizes IR nodes.
type Factory struct {
	special SpecialTypes
	cache   *symcache.Cache
}

// New returns a factory for the compilation whose core library is reachable through special and
// whose catalog symbols are resolved by cache.
func New(special SpecialTypes, cache *symcache.Cache) *Factory {
	return &Factory{special: special, cache: cache}
}

// SpecialType returns the core library type s. It panics if the reference closure has no core
// library, which no compilation can be built without.
func (f *Factory) SpecialType(s ir.SpecialType) *ir.NamedType {
	t := f.special.SpecialType(s)
	if t == nil {
		panic(fmt.Sprintf("synth: core library type %d is not available", s))
	}
	return t
}

// Member resolves the catalog member id, failing with *MissingMemberError.
func (f *Factory) Member(id descriptor.MemberID) (*ir.Method, error) {
	m, ok := f.cache.ResolveMember(id)
	if !ok {
		return nil, &MissingMemberError{Member: descriptor.Describe(id)}
	}
	return m, nil
}

// String returns a string literal.
func (f *Factory) String(s string) *ir.Literal {
	return &ir.Literal{Value: s, T: f.SpecialType(ir.SpecialString)}
}

// Null returns the null literal of type t.
func (f *Factory) Null(t ir.Type) *ir.Literal {
	return &ir.Literal{T: t}
}

// Param returns a reference to p.
func (f *Factory) Param(p *ir.Param) *ir.ParamRef {
	return &ir.ParamRef{Param: p}
}

// Local returns a reference to l.
func (f *Factory) Local(l *ir.Local) *ir.LocalRef {
	return &ir.LocalRef{Local: l}
}

// Temp returns a synthesized local of type t named prefix followed by n.
func (f *Factory) Temp(prefix string, n int, t ir.Type) *ir.Local {
	return &ir.Local{Name: prefix + strconv.Itoa(n), Type: t, Synthesized: true}
}

// AsObject converts x to object so that it can be compared by reference. Values of type
// parameters are boxed, since comparing an unconstrained type parameter against null directly is
// not legal; other reference types convert implicitly. An operand that already is object is
// returned as is.
func (f *Factory) AsObject(x ir.Expr) ir.Expr {
	object := f.SpecialType(ir.SpecialObject)
	switch t := x.Type().(type) {
	case *ir.TypeParam:
		return &ir.Conversion{X: x, T: object, Kind: ir.ConvBoxing}
	case *ir.NamedType:
		if t.Origin() == object {
			return x
		}
		if t.IsValueType() {
			return &ir.Conversion{X: x, T: object, Kind: ir.ConvBoxing}
		}
	}
	return &ir.Conversion{X: x, T: object, Kind: ir.ConvImplicitReference}
}

// IsNull returns the reference comparison of x against null.
func (f *Factory) IsNull(x ir.Expr) *ir.Binary {
	return f.ObjectEqual(x, f.Null(f.SpecialType(ir.SpecialObject)))
}

// ObjectEqual returns the reference equality of x and y. Type parameter operands are boxed.
func (f *Factory) ObjectEqual(x, y ir.Expr) *ir.Binary {
	return &ir.Binary{Op: ir.ObjectEqual, X: f.boxTypeParam(x), Y: f.boxTypeParam(y), T: f.SpecialType(ir.SpecialBoolean)}
}

func (f *Factory) boxTypeParam(x ir.Expr) ir.Expr {
	if _, ok := x.Type().(*ir.TypeParam); ok {
		return f.AsObject(x)
	}
	return x
}

// Convert returns x converted to t, or x itself when its type already is t.
func (f *Factory) Convert(t ir.Type, x ir.Expr) ir.Expr {
	if xt := x.Type(); xt != nil && ir.Identical(xt, t) {
		return x
	}
	kind := ir.ConvImplicitReference
	if _, ok := x.Type().(*ir.TypeParam); ok || (x.Type() != nil && x.Type().IsValueType()) {
		kind = ir.ConvBoxing
	}
	return &ir.Conversion{X: x, T: t, Kind: kind}
}

// StaticCall returns a call of the static method m.
func (f *Factory) StaticCall(m *ir.Method, args ...ir.Expr) *ir.Call {
	return &ir.Call{Method: m, Args: args}
}

// New returns the construction of an object through ctor.
func (f *Factory) New(ctor *ir.Method, args ...ir.Expr) *ir.New {
	return &ir.New{Ctor: ctor, Args: args}
}

// Assign returns the statement storing right into left.
func (f *Factory) Assign(left, right ir.Expr) *ir.ExprStmt {
	return &ir.ExprStmt{X: &ir.Assign{Left: left, Right: right}}
}

// ExprStmt returns the statement evaluating x.
func (f *Factory) ExprStmt(x ir.Expr) *ir.ExprStmt {
	return &ir.ExprStmt{X: x}
}

// If returns `if (cond) then`.
func (f *Factory) If(cond ir.Expr, then ir.Stmt) *ir.If {
	return &ir.If{Cond: cond, Then: then}
}

// Throw returns `throw x`.
func (f *Factory) Throw(x ir.Expr) *ir.Throw {
	return &ir.Throw{X: x}
}

// Return returns `return x`, or a bare return when x is nil.
func (f *Factory) Return(x ir.Expr) *ir.Return {
	return &ir.Return{X: x}
}

// Block returns a block scoping locals.
func (f *Factory) Block(locals []*ir.Local, stmts ...ir.Stmt) *ir.Block {
	return &ir.Block{Locals: locals, Stmts: stmts}
}

// List returns a statement list of the non-nil statements of stmts, or nil when none is left.
func (f *Factory) List(stmts ...ir.Stmt) ir.Stmt {
	var out []ir.Stmt
	for _, s := range stmts {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &ir.StatementList{Stmts: out}
}

// SequencePoint attributes s to span.
func (f *Factory) SequencePoint(span ir.Span, s ir.Stmt) *ir.SequencePoint {
	return &ir.SequencePoint{Span: span, Stmt: s}
}
