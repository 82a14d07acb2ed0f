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
	"strings"

	"go.uber.org/nilguard/ir"
	"gopkg.in/yaml.v3"
)

// binder binds the body of one method.
type binder struct {
	l      *loader
	m      *ir.Method
	scope  *typeScope
	seq    bool
	locals []*ir.Local
	// closures are the local functions callable by name from the body.
	closures map[string]*ir.Method
}

func (l *loader) bindBody(p pendingBody) error {
	b := &binder{l: l, m: p.m, scope: p.scope, seq: p.seq, closures: p.locals}
	stmts, err := b.stmts(p.nodes)
	if err != nil {
		return err
	}
	p.m.Body = &ir.Block{Locals: b.locals, Stmts: stmts}
	return nil
}

func (b *binder) stmts(nodes []yaml.Node) ([]ir.Stmt, error) {
	var out []ir.Stmt
	for i := range nodes {
		s, err := b.stmt(&nodes[i])
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// stmt binds one statement, wrapped in a sequence point at its source position. It returns nil
// for a local declaration without initializer.
func (b *binder) stmt(n *yaml.Node) (ir.Stmt, error) {
	s, p, err := b.stmtNoSeq(n)
	if err != nil {
		return nil, b.l.wrap(p, err)
	}
	if s == nil || !b.seq {
		return s, nil
	}
	return &ir.SequencePoint{Span: b.l.span(p), Stmt: s}, nil
}

func (b *binder) stmtNoSeq(n *yaml.Node) (ir.Stmt, nodePos, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		p := posOf(n)
		src := strings.TrimSpace(n.Value)
		switch src {
		case "return":
			return &ir.Return{}, p, nil
		case "yield break":
			return &ir.YieldBreak{}, p, nil
		}
		s, err := b.exprStmt(src)
		return s, p, err
	case yaml.MappingNode:
		if len(n.Content) < 2 {
			return nil, posOf(n), fmt.Errorf("empty statement")
		}
		key, val := n.Content[0], n.Content[1]
		p := nodePos{line: key.Line, col: key.Column}
		if val.Kind == yaml.ScalarNode {
			// The span runs from the keyword to the end of its operand.
			p.width = len(key.Value) + 2 + len(val.Value)
		}
		switch key.Value {
		case "return":
			s, err := b.returnStmt(val.Value)
			return s, p, err
		case "yield":
			s, err := b.yieldStmt(val.Value)
			return s, p, err
		case "throw":
			x, err := b.expr(val.Value)
			if err != nil {
				return nil, p, err
			}
			return &ir.Throw{X: x}, p, nil
		case "local":
			s, err := b.local(val.Value)
			return s, p, err
		case "if":
			s, err := b.ifStmt(n, val.Value)
			return s, p, err
		}
		return nil, p, fmt.Errorf("unknown statement %q", key.Value)
	}
	return nil, posOf(n), fmt.Errorf("statement must be a string or a mapping")
}

func (b *binder) exprStmt(src string) (ir.Stmt, error) {
	if i := findAssign(src); i >= 0 {
		left, err := b.expr(src[:i])
		if err != nil {
			return nil, err
		}
		right, err := b.expr(src[i+1:])
		if err != nil {
			return nil, err
		}
		return &ir.ExprStmt{X: &ir.Assign{Left: left, Right: b.convert(right, left.Type())}}, nil
	}
	x, err := b.expr(src)
	if err != nil {
		return nil, err
	}
	return &ir.ExprStmt{X: x}, nil
}

func (b *binder) returnStmt(src string) (ir.Stmt, error) {
	if b.m.Iterator {
		return nil, fmt.Errorf("iterator %s cannot return a value, use yield", b.m.Name)
	}
	target, ok := ir.UnwrapResult(b.m)
	if !ok {
		return nil, fmt.Errorf("%s does not return a value", b.m.Name)
	}
	x, err := b.expr(src)
	if err != nil {
		return nil, err
	}
	return &ir.Return{X: b.convert(x, target.Type)}, nil
}

func (b *binder) yieldStmt(src string) (ir.Stmt, error) {
	if !b.m.Iterator {
		return nil, fmt.Errorf("%s is not an iterator", b.m.Name)
	}
	elem, ok := ir.UnwrapResult(b.m)
	if !ok {
		return nil, fmt.Errorf("iterator %s has no element type", b.m.Name)
	}
	x, err := b.expr(src)
	if err != nil {
		return nil, err
	}
	return &ir.YieldReturn{X: b.convert(x, elem.Type)}, nil
}

// local binds "type name" or "type name = value".
func (b *binder) local(src string) (ir.Stmt, error) {
	decl, init := src, ""
	if i := findAssign(src); i >= 0 {
		decl, init = src[:i], src[i+1:]
	}
	decl = strings.TrimSpace(decl)
	sp := strings.LastIndexByte(decl, ' ')
	if sp < 0 {
		return nil, fmt.Errorf("local must be declared as \"type name\": %q", src)
	}
	lt, err := b.scope.resolve(decl[:sp])
	if err != nil {
		return nil, err
	}
	loc := &ir.Local{Name: strings.TrimSpace(decl[sp+1:]), Type: lt.Type}
	if b.lookupLocal(loc.Name) != nil {
		return nil, fmt.Errorf("local %q redeclared", loc.Name)
	}
	b.locals = append(b.locals, loc)
	if init == "" {
		return nil, nil
	}
	x, err := b.expr(init)
	if err != nil {
		return nil, err
	}
	return &ir.ExprStmt{X: &ir.Assign{Left: &ir.LocalRef{Local: loc}, Right: b.convert(x, loc.Type)}}, nil
}

func (b *binder) ifStmt(n *yaml.Node, cond string) (ir.Stmt, error) {
	c, err := b.expr(cond)
	if err != nil {
		return nil, err
	}
	s := &ir.If{Cond: c}
	for _, branch := range []struct {
		key string
		dst *ir.Stmt
	}{{"then", &s.Then}, {"else", &s.Else}} {
		v := valueOf(n, branch.key)
		if v == nil {
			continue
		}
		if v.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%q of an if statement must be a list", branch.key)
		}
		var nodes []yaml.Node
		for _, c := range v.Content {
			nodes = append(nodes, *c)
		}
		stmts, err := b.stmts(nodes)
		if err != nil {
			return nil, err
		}
		*branch.dst = &ir.Block{Stmts: stmts}
	}
	if s.Then == nil {
		return nil, fmt.Errorf("if statement without then")
	}
	return s, nil
}

func (b *binder) lookupLocal(name string) *ir.Local {
	for _, l := range b.locals {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// findAssign returns the index of the top-level simple assignment operator of src, or -1.
func findAssign(src string) int {
	depth := 0
	inString := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i > 0 && strings.ContainsRune("=!<>", rune(src[i-1])) {
				continue
			}
			if i+1 < len(src) && src[i+1] == '=' {
				i++
				continue
			}
			return i
		}
	}
	return -1
}

// convert applies the implicit conversion of x to target, if any.
func (b *binder) convert(x ir.Expr, target ir.Type) ir.Expr {
	if target == nil {
		return x
	}
	if lit, ok := x.(*ir.Literal); ok && lit.Value == nil {
		if lit.Suppressed {
			return &ir.Conversion{X: lit, T: target, Kind: ir.ConvImplicitReference}
		}
		return &ir.Literal{T: target}
	}
	src := x.Type()
	if src == nil || ir.Identical(src, target) {
		return x
	}
	if _, ok := target.(*ir.TypeParam); ok {
		return &ir.Conversion{X: x, T: target, Kind: ir.ConvIdentity}
	}
	if _, isParam := src.(*ir.TypeParam); isParam || src.IsValueType() {
		return &ir.Conversion{X: x, T: target, Kind: ir.ConvBoxing}
	}
	return &ir.Conversion{X: x, T: target, Kind: ir.ConvImplicitReference}
}

// nullBang stands for `null!`, which is not Go syntax.
const nullBang = "__null_suppressed__"

// rewriteNullBang replaces `null!` (but not `null != ...`) outside string literals.
func rewriteNullBang(src string) string {
	var sb strings.Builder
	inString := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				sb.WriteByte(src[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if strings.HasPrefix(src[i:], "null!") && (i+5 == len(src) || src[i+5] != '=') &&
			(i == 0 || !isIdentByte(src[i-1])) {
			sb.WriteString(nullBang)
			i += len("null!") - 1
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
