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

package ir

import (
	"fmt"
	"go/token"
	"io"
	"strconv"
	"strings"
)

// Fprint writes a C#-like rendering of n to w. Sequence points are rendered as `[seq L:C-L:C]`
// prefixes resolved through fset; a nil fset renders raw offsets instead.
func Fprint(w io.Writer, fset *token.FileSet, n Node) error {
	p := &printer{fset: fset}
	p.node(n)
	_, err := io.WriteString(w, p.sb.String())
	return err
}

// Sprint returns the rendering of n produced by Fprint.
func Sprint(fset *token.FileSet, n Node) string {
	var sb strings.Builder
	_ = Fprint(&sb, fset, n) // strings.Builder never fails
	return sb.String()
}

type printer struct {
	fset   *token.FileSet
	sb     strings.Builder
	indent int
}

func (p *printer) node(n Node) {
	switch n := n.(type) {
	case Stmt:
		p.stmt(n)
	case Expr:
		p.sb.WriteString(p.expr(n))
	}
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.line("{")
		p.indent++
		for _, l := range s.Locals {
			p.line("%s %s;", typeString(l.Type), l.Name)
		}
		for _, st := range s.Stmts {
			p.stmt(st)
		}
		p.indent--
		p.line("}")
	case *StatementList:
		for _, st := range s.Stmts {
			p.stmt(st)
		}
	case *SequencePoint:
		// The prefix sits on its own line so that nested blocks keep their indentation.
		p.line("[seq %s]", p.span(s.Span))
		if s.Stmt != nil {
			p.stmt(s.Stmt)
		}
	case *If:
		p.ifStmt(s)
	default:
		p.line("%s", p.simple(s))
	}
}

func (p *printer) ifStmt(s *If) {
	head := "if (" + p.expr(s.Cond) + ")"
	if _, ok := s.Then.(*Block); ok || !isSimple(s.Then) {
		p.line("%s", head)
		p.indent++
		p.stmt(s.Then)
		p.indent--
	} else {
		p.line("%s %s", head, p.simple(s.Then))
	}
	if s.Else == nil {
		return
	}
	if isSimple(s.Else) {
		p.line("else %s", p.simple(s.Else))
		return
	}
	p.line("else")
	p.indent++
	p.stmt(s.Else)
	p.indent--
}

func isSimple(s Stmt) bool {
	switch s.(type) {
	case *ExprStmt, *Return, *YieldReturn, *YieldBreak, *Throw:
		return true
	}
	return false
}

func (p *printer) simple(s Stmt) string {
	switch s := s.(type) {
	case *ExprStmt:
		return p.expr(s.X) + ";"
	case *Return:
		if s.X == nil {
			return "return;"
		}
		return "return " + p.expr(s.X) + ";"
	case *YieldReturn:
		return "yield return " + p.expr(s.X) + ";"
	case *YieldBreak:
		return "yield break;"
	case *Throw:
		return "throw " + p.expr(s.X) + ";"
	}
	panic(fmt.Sprintf("ir: unexpected statement %T", s))
}

func (p *printer) span(s Span) string {
	if !s.IsValid() {
		return "hidden"
	}
	if p.fset == nil {
		return fmt.Sprintf("@%d-%d", s.Pos, s.End)
	}
	start := p.fset.Position(s.Pos)
	if !s.End.IsValid() {
		return fmt.Sprintf("%d:%d", start.Line, start.Column)
	}
	end := p.fset.Position(s.End)
	return fmt.Sprintf("%d:%d-%d:%d", start.Line, start.Column, end.Line, end.Column)
}

func (p *printer) args(args []Expr) string {
	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = p.expr(a)
	}
	return strings.Join(strs, ", ")
}

func (p *printer) expr(e Expr) string {
	switch e := e.(type) {
	case *Literal:
		switch v := e.Value.(type) {
		case nil:
			if e.Suppressed {
				return "null!"
			}
			return "null"
		case string:
			return strconv.Quote(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case bool:
			return strconv.FormatBool(v)
		default:
			return fmt.Sprint(v)
		}
	case *This:
		return "this"
	case *ParamRef:
		return e.Param.Name
	case *LocalRef:
		return e.Local.Name
	case *FieldRef:
		return p.receiver(e.Receiver, e.Field.Container) + "." + e.Field.Name
	case *PropertyRef:
		return p.receiver(e.Receiver, e.Property.Container) + "." + e.Property.Name
	case *Call:
		return p.receiver(e.Receiver, e.Method.Container) + "." + e.Method.Name + "(" + p.args(e.Args) + ")"
	case *New:
		return "new " + e.Ctor.Container.String() + "(" + p.args(e.Args) + ")"
	case *Conversion:
		return "(" + typeString(e.T) + ")" + p.expr(e.X)
	case *Binary:
		return p.expr(e.X) + " " + e.Op.String() + " " + p.expr(e.Y)
	case *Assign:
		return p.expr(e.Left) + " = " + p.expr(e.Right)
	case *AddressOf:
		return "ref " + p.expr(e.X)
	}
	panic(fmt.Sprintf("ir: unexpected expression %T", e))
}

func (p *printer) receiver(recv Expr, container *NamedType) string {
	if recv != nil {
		return p.expr(recv)
	}
	if container == nil {
		return "?"
	}
	return container.String()
}

func typeString(t Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}
