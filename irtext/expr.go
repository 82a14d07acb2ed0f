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

package irtext

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"go.uber.org/nilguard/ir"
)

func (b *binder) expr(src string) (ir.Expr, error) {
	src = strings.TrimSpace(src)
	e, err := parser.ParseExpr(rewriteNullBang(src))
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", src, err)
	}
	return b.bind(e)
}

func (b *binder) special(s ir.SpecialType) *ir.NamedType {
	return b.l.closure.SpecialType(s)
}

func (b *binder) bind(e ast.Expr) (ir.Expr, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return b.bind(e.X)
	case *ast.BasicLit:
		return b.literal(e)
	case *ast.Ident:
		switch e.Name {
		case "null":
			return &ir.Literal{T: b.special(ir.SpecialObject)}, nil
		case nullBang:
			return &ir.Literal{T: b.special(ir.SpecialObject), Suppressed: true}, nil
		case "true", "false":
			return &ir.Literal{Value: e.Name == "true", T: b.special(ir.SpecialBoolean)}, nil
		case "this":
			if b.m.Static {
				return nil, fmt.Errorf("this in static method %s", b.m.Name)
			}
			return &ir.This{T: b.m.Container}, nil
		}
		return b.ident(e.Name)
	case *ast.SelectorExpr:
		if t := b.staticType(e.X); t != nil {
			return b.member(nil, t, e.Sel.Name)
		}
		recv, err := b.bind(e.X)
		if err != nil {
			return nil, err
		}
		t, ok := recv.Type().(*ir.NamedType)
		if !ok {
			return nil, fmt.Errorf("cannot select %s on %s", e.Sel.Name, recv.Type())
		}
		return b.member(recv, t, e.Sel.Name)
	case *ast.CallExpr:
		return b.call(e)
	case *ast.UnaryExpr:
		if e.Op != token.AND {
			return nil, fmt.Errorf("unsupported operator %s", e.Op)
		}
		x, err := b.bind(e.X)
		if err != nil {
			return nil, err
		}
		return &ir.AddressOf{X: x}, nil
	case *ast.BinaryExpr:
		var op ir.BinaryOp
		switch e.Op {
		case token.EQL:
			op = ir.ObjectEqual
		case token.NEQ:
			op = ir.ObjectNotEqual
		default:
			return nil, fmt.Errorf("unsupported operator %s", e.Op)
		}
		x, err := b.bind(e.X)
		if err != nil {
			return nil, err
		}
		y, err := b.bind(e.Y)
		if err != nil {
			return nil, err
		}
		object := b.special(ir.SpecialObject)
		return &ir.Binary{Op: op, X: b.boxTypeParam(x, object), Y: b.boxTypeParam(y, object), T: b.special(ir.SpecialBoolean)}, nil
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func (b *binder) boxTypeParam(x ir.Expr, object ir.Type) ir.Expr {
	if _, ok := x.Type().(*ir.TypeParam); ok {
		return &ir.Conversion{X: x, T: object, Kind: ir.ConvBoxing}
	}
	return x
}

func (b *binder) literal(e *ast.BasicLit) (ir.Expr, error) {
	switch e.Kind {
	case token.STRING:
		s, err := strconv.Unquote(e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.Literal{Value: s, T: b.special(ir.SpecialString)}, nil
	case token.INT:
		v, err := strconv.ParseInt(e.Value, 0, 32)
		if err != nil {
			return nil, err
		}
		return &ir.Literal{Value: v, T: b.special(ir.SpecialInt32)}, nil
	}
	return nil, fmt.Errorf("unsupported literal %s", e.Value)
}

func (b *binder) ident(name string) (ir.Expr, error) {
	if l := b.lookupLocal(name); l != nil {
		return &ir.LocalRef{Local: l}, nil
	}
	for _, p := range b.m.Params {
		if p.Name == name {
			return &ir.ParamRef{Param: p}, nil
		}
	}
	var recv ir.Expr
	if !b.m.Static {
		recv = &ir.This{T: b.m.Container}
	}
	return b.member(recv, b.m.Container, name)
}

// isValueName reports whether name denotes a value in the body's scope.
func (b *binder) isValueName(name string) bool {
	if name == "this" || name == "null" || name == nullBang || b.lookupLocal(name) != nil {
		return true
	}
	for _, p := range b.m.Params {
		if p.Name == name {
			return true
		}
	}
	return lookupField(b.m.Container, name) != nil || lookupProperty(b.m.Container, name) != nil
}

// staticType returns the type named by x when x names a type rather than a value.
func (b *binder) staticType(x ast.Expr) *ir.NamedType {
	var name string
	switch x := x.(type) {
	case *ast.Ident:
		if b.isValueName(x.Name) {
			return nil
		}
		name = x.Name
	case *ast.SelectorExpr:
		id, ok := x.X.(*ast.Ident)
		if !ok || b.isValueName(id.Name) {
			return nil
		}
		name = id.Name + "." + x.Sel.Name
	default:
		return nil
	}
	twa, err := b.scope.resolve(name)
	if err != nil {
		return nil
	}
	t, _ := twa.Type.(*ir.NamedType)
	return t
}

// member binds the field or property name of t. A nil recv selects a static member.
func (b *binder) member(recv ir.Expr, t *ir.NamedType, name string) (ir.Expr, error) {
	if f := lookupField(t, name); f != nil {
		if f.Static {
			recv = nil
		} else if recv == nil {
			return nil, fmt.Errorf("instance field %s used without an instance", name)
		}
		return &ir.FieldRef{Receiver: recv, Field: f}, nil
	}
	if p := lookupProperty(t, name); p != nil {
		if p.Static {
			recv = nil
		} else if recv == nil {
			return nil, fmt.Errorf("instance property %s used without an instance", name)
		}
		return &ir.PropertyRef{Receiver: recv, Property: p}, nil
	}
	return nil, fmt.Errorf("unknown identifier %q", name)
}

func lookupField(t *ir.NamedType, name string) *ir.Field {
	seen := make(map[*ir.NamedType]bool)
	for cur := t; cur != nil && !seen[cur]; cur = cur.Origin().Base {
		seen[cur] = true
		if f := cur.Field(name); f != nil {
			return f
		}
	}
	return nil
}

func lookupProperty(t *ir.NamedType, name string) *ir.Property {
	seen := make(map[*ir.NamedType]bool)
	for cur := t; cur != nil && !seen[cur]; cur = cur.Origin().Base {
		seen[cur] = true
		if p := cur.Property(name); p != nil {
			return p
		}
	}
	return nil
}

func (b *binder) call(e *ast.CallExpr) (ir.Expr, error) {
	if id, ok := e.Fun.(*ast.Ident); ok && id.Name == "new" {
		return b.newObject(e)
	}
	args, err := b.args(e.Args)
	if err != nil {
		return nil, err
	}

	var (
		recv ir.Expr
		t    *ir.NamedType
		name string
	)
	switch fun := e.Fun.(type) {
	case *ast.Ident:
		if c, ok := b.closures[fun.Name]; ok {
			if !c.Static {
				recv = &ir.This{T: b.m.Container}
			}
			return b.finishCall(recv, c, args)
		}
		t, name = b.m.Container, fun.Name
		if !b.m.Static {
			recv = &ir.This{T: t}
		}
	case *ast.SelectorExpr:
		name = fun.Sel.Name
		if t = b.staticType(fun.X); t == nil {
			if recv, err = b.bind(fun.X); err != nil {
				return nil, err
			}
			n, ok := recv.Type().(*ir.NamedType)
			if !ok {
				return nil, fmt.Errorf("cannot call %s on %s", name, recv.Type())
			}
			t = n
		}
	default:
		return nil, fmt.Errorf("unsupported call target %T", e.Fun)
	}

	m := lookupMethod(t, name, args)
	if m == nil {
		return nil, fmt.Errorf("no method %s.%s taking %d arguments", t, name, len(args))
	}
	if m.Static {
		recv = nil
	} else if recv == nil {
		return nil, fmt.Errorf("instance method %s called without an instance", m.FullName())
	}
	return b.finishCall(recv, m, args)
}

func (b *binder) finishCall(recv ir.Expr, m *ir.Method, args []ir.Expr) (ir.Expr, error) {
	converted, err := b.bindArgs(m, args)
	if err != nil {
		return nil, err
	}
	return &ir.Call{Receiver: recv, Method: m, Args: converted}, nil
}

func (b *binder) newObject(e *ast.CallExpr) (ir.Expr, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("new requires a type")
	}
	t := b.staticType(e.Args[0])
	if t == nil {
		return nil, fmt.Errorf("new: %s is not a type", types(e.Args[0]))
	}
	args, err := b.args(e.Args[1:])
	if err != nil {
		return nil, err
	}
	var ctor *ir.Method
	for _, c := range t.Constructors() {
		if !c.Static && len(c.Params) == len(args) && (ctor == nil || argsMatch(c, args)) {
			ctor = c
		}
	}
	if ctor == nil {
		return nil, fmt.Errorf("no constructor of %s taking %d arguments", t, len(args))
	}
	converted, err := b.bindArgs(ctor, args)
	if err != nil {
		return nil, err
	}
	return &ir.New{Ctor: ctor, Args: converted}, nil
}

func types(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return types(e.X) + "." + e.Sel.Name
	}
	return fmt.Sprintf("%T", e)
}

func (b *binder) args(exprs []ast.Expr) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(exprs))
	for i, a := range exprs {
		x, err := b.bind(a)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (b *binder) bindArgs(m *ir.Method, args []ir.Expr) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(args))
	for i, a := range args {
		p := m.Params[i]
		_, isRef := a.(*ir.AddressOf)
		if (p.RefKind != ir.RefNone) != isRef {
			return nil, fmt.Errorf("argument %d of %s: ref mismatch for parameter %s", i, m.FullName(), p.Name)
		}
		if isRef {
			out[i] = a
			continue
		}
		out[i] = b.convert(a, p.Type.Type)
	}
	return out, nil
}

// lookupMethod picks the method of t (or its bases) called name whose parameter count matches
// args, preferring an exact match of argument types.
func lookupMethod(t *ir.NamedType, name string, args []ir.Expr) *ir.Method {
	var fallback *ir.Method
	seen := make(map[*ir.NamedType]bool)
	for cur := t; cur != nil && !seen[cur]; cur = cur.Origin().Base {
		seen[cur] = true
		for _, m := range cur.Origin().Methods {
			if m.Name != name || m.Kind == ir.MethodConstructor || len(m.Params) != len(args) {
				continue
			}
			if argsMatch(m, args) {
				return m
			}
			if fallback == nil {
				fallback = m
			}
		}
	}
	return fallback
}

func argsMatch(m *ir.Method, args []ir.Expr) bool {
	for i, a := range args {
		if ir.IsNullLiteral(a) {
			continue
		}
		if ref, ok := a.(*ir.AddressOf); ok {
			a = ref.X
		}
		if !ir.Identical(a.Type(), m.Params[i].Type.Type) {
			return false
		}
	}
	return true
}
