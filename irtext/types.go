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
)

var _keywordTypes = map[string]string{
	"object": "System.Object",
	"string": "System.String",
	"void":   "System.Void",
	"int":    "System.Int32",
	"bool":   "System.Boolean",
}

// typeExpr is a parsed type expression: Name<Args...>?.
type typeExpr struct {
	name     string
	args     []*typeExpr
	nullable bool
}

func parseTypeExpr(s string) (*typeExpr, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.off != len(p.src) {
		return nil, fmt.Errorf("unexpected %q in type %q", p.src[p.off:], s)
	}
	return t, nil
}

type typeParser struct {
	src string
	off int
}

func (p *typeParser) skipSpace() {
	for p.off < len(p.src) && p.src[p.off] == ' ' {
		p.off++
	}
}

func (p *typeParser) parse() (*typeExpr, error) {
	p.skipSpace()
	start := p.off
	for p.off < len(p.src) && !strings.ContainsRune("<>,? ", rune(p.src[p.off])) {
		p.off++
	}
	if start == p.off {
		return nil, fmt.Errorf("missing type name in %q", p.src)
	}
	t := &typeExpr{name: p.src[start:p.off]}
	p.skipSpace()
	if p.off < len(p.src) && p.src[p.off] == '<' {
		p.off++
		for {
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			t.args = append(t.args, arg)
			p.skipSpace()
			if p.off >= len(p.src) {
				return nil, fmt.Errorf("unterminated type argument list in %q", p.src)
			}
			if p.src[p.off] == '>' {
				p.off++
				break
			}
			if p.src[p.off] != ',' {
				return nil, fmt.Errorf("unexpected %q in %q", p.src[p.off], p.src)
			}
			p.off++
		}
	}
	p.skipSpace()
	if p.off < len(p.src) && p.src[p.off] == '?' {
		p.off++
		t.nullable = true
	}
	return t, nil
}

// typeScope resolves type names: type parameters first, then the types of the module being
// loaded, then the types of its references.
type typeScope struct {
	l          *loader
	typeParams []*ir.TypeParam
	enabled    bool
}

func (s *typeScope) with(tps []*ir.TypeParam, enabled bool) *typeScope {
	return &typeScope{l: s.l, typeParams: append(append([]*ir.TypeParam(nil), s.typeParams...), tps...), enabled: enabled}
}

func (s *typeScope) resolve(src string) (ir.TypeWithAnnotations, error) {
	te, err := parseTypeExpr(src)
	if err != nil {
		return ir.TypeWithAnnotations{}, err
	}
	return s.resolveExpr(te)
}

func (s *typeScope) resolveExpr(te *typeExpr) (ir.TypeWithAnnotations, error) {
	twa := ir.TypeWithAnnotations{Annotation: ir.Oblivious}
	switch {
	case te.nullable:
		twa.Annotation = ir.Annotated
	case s.enabled:
		twa.Annotation = ir.NotAnnotated
	}

	if len(te.args) == 0 {
		// Innermost type parameters shadow outer ones.
		for i := len(s.typeParams) - 1; i >= 0; i-- {
			if tp := s.typeParams[i]; tp.Name == te.name {
				twa.Type = tp
				return twa, nil
			}
		}
	}
	def := s.l.lookupNamed(te.name, len(te.args))
	if def == nil {
		return ir.TypeWithAnnotations{}, fmt.Errorf("unknown type %q", te.name)
	}
	if len(te.args) == 0 {
		twa.Type = def
		return twa, nil
	}
	args := make([]ir.TypeWithAnnotations, len(te.args))
	for i, a := range te.args {
		arg, err := s.resolveExpr(a)
		if err != nil {
			return ir.TypeWithAnnotations{}, err
		}
		args[i] = arg
	}
	twa.Type = def.Construct(args...)
	return twa, nil
}

// lookupNamed finds a named type by keyword, full name or simple name, with the given arity.
func (l *loader) lookupNamed(name string, arity int) *ir.NamedType {
	if full, ok := _keywordTypes[name]; ok && arity == 0 {
		return l.closure.LookupType(full)
	}
	metadataName := name
	if arity > 0 {
		metadataName = fmt.Sprintf("%s`%d", name, arity)
	}
	if t := l.closure.LookupType(metadataName); t != nil {
		return t
	}
	for _, a := range l.closure.Assemblies() {
		for _, t := range a.Types {
			if t.Name == name && len(t.TypeParams) == arity {
				return t
			}
		}
	}
	return nil
}

func parseTypeParam(src string, ordinal int, enabled bool) (*ir.TypeParam, error) {
	name, constraint, _ := strings.Cut(src, ":")
	tp := &ir.TypeParam{Name: strings.TrimSpace(name), Ordinal: ordinal, NullableContext: enabled}
	if tp.Name == "" {
		return nil, fmt.Errorf("missing type parameter name in %q", src)
	}
	switch c := strings.TrimSpace(constraint); c {
	case "":
		tp.Constraint = ir.ConstraintNone
	case "class":
		tp.Constraint = ir.ConstraintClass
	case "class?":
		tp.Constraint = ir.ConstraintNullableClass
	case "notnull":
		tp.Constraint = ir.ConstraintNotNull
	case "struct":
		tp.Constraint = ir.ConstraintStruct
	default:
		return nil, fmt.Errorf("unknown constraint %q", c)
	}
	return tp, nil
}
