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

// Package annotation implements the policy that decides which parameters and return values of a
// method need a runtime null guard. The decision combines the static nullability state of the
// type usage, the flow annotations of the boundary, the constraints of type parameters and, when
// the static state is oblivious, the secondary not-null marker inherited along override chains
// and interface implementations.
package annotation

import (
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/descriptor"
	"go.uber.org/nilguard/guard"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/suppression"
	"go.uber.org/nilguard/symcache"
	"go.uber.org/nilguard/util/orderedset"
)

// Evaluator evaluates the guard policy for the methods of one compilation. It holds no mutable
// state and may be shared by concurrently rewritten methods.
type Evaluator struct {
	cache      *symcache.Cache
	suppressed *suppression.Index
}

// NewEvaluator returns an evaluator that resolves the not-null marker through cache and consults
// suppressed for exempt properties. suppressed may be nil.
func NewEvaluator(cache *symcache.Cache, suppressed *suppression.Index) *Evaluator {
	return &Evaluator{cache: cache, suppressed: suppressed}
}

// IsExcluded returns true iff m is exempt from guards regardless of its signature: members of
// the runtime's compiler services namespace, and accessors of suppressed properties.
func (e *Evaluator) IsExcluded(m *ir.Method) bool {
	if m.Container != nil && m.Container.Origin().Namespace == config.RuntimeNamespace {
		return true
	}
	return m.IsAccessor() && e.suppressed.IsSuppressed(m.Property)
}

// Plan returns the guard sites of m. The plan of an excluded method is empty.
func (e *Evaluator) Plan(m *ir.Method) *guard.Plan {
	plan := &guard.Plan{}
	if e.IsExcluded(m) {
		return plan
	}
	decls := DeclParams(m)
	for i, p := range m.Params {
		decl := decls[i]
		if p.IsInput() && e.NeedsInputGuard(m, decl) {
			plan.Inputs = append(plan.Inputs, guard.Site{Kind: guard.Input, Param: p, Decl: decl, Type: p.Type.Type, Span: decl.Span})
		}
		if p.IsOutput() && e.NeedsOutputGuard(m, decl) {
			plan.Outputs = append(plan.Outputs, guard.Site{Kind: guard.Output, Param: p, Decl: decl, Type: p.Type.Type})
		}
	}
	if site, ok := e.ReturnSite(m); ok {
		plan.Return = &site
	}
	return plan
}

// DeclParams returns the parameters decisions about m's parameters are made on, index-aligned
// with m.Params. A converted lambda or local function uses the parameters of its declaration,
// which keep their source syntax; an indexer accessor uses the indexer's parameters, the
// trailing value parameter of a setter standing for itself.
func DeclParams(m *ir.Method) []*ir.Param {
	decls := append([]*ir.Param(nil), m.Params...)
	var base []*ir.Param
	switch {
	case m.IsClosure() && m.Base != nil:
		base = m.Base.Params
	case m.IsAccessor() && m.Property.Indexer:
		base = m.Property.Params
	}
	for i := range base {
		if i < len(decls) {
			decls[i] = base[i]
		}
	}
	return decls
}

// NeedsInputGuard returns true iff the value flowing into m through p must be checked on entry.
// p is a parameter of m or the parameter DeclParams maps one of m's parameters to; the
// parameters of the same ordinal along m's override chain and in the interface methods m
// implements are consulted for the not-null marker.
func (e *Evaluator) NeedsInputGuard(m *ir.Method, p *ir.Param) bool {
	if !p.IsInput() {
		return false
	}
	return e.decide(p.Type, p.Flow, ir.AllowNull, ir.DisallowNull, func() bool { return e.paramInherits(m, p) })
}

// NeedsOutputGuard returns true iff the value an out or ref parameter p of m hands back to the
// caller must be checked at every return point.
func (e *Evaluator) NeedsOutputGuard(m *ir.Method, p *ir.Param) bool {
	if !p.IsOutput() {
		return false
	}
	return e.decide(p.Type, p.Flow, ir.MaybeNull, ir.NotNull, func() bool { return e.paramInherits(m, p) })
}

// ReturnSite returns the return value site of m, if its value needs a guard. The checked type
// is the result type unwrapped from an iterator or task wrapper.
func (e *Evaluator) ReturnSite(m *ir.Method) (guard.Site, bool) {
	if m.ReturnsByRef || m.Kind == ir.MethodConstructor {
		return guard.Site{}, false
	}
	result, ok := ir.UnwrapResult(m)
	if !ok || !e.decide(result, m.ReturnFlow, ir.MaybeNull, ir.NotNull, func() bool { return e.returnInherits(m) }) {
		return guard.Site{}, false
	}
	kind := guard.ReturnOrdinary
	if m.Iterator {
		kind = guard.ReturnYield
	}
	return guard.Site{Kind: kind, Type: result.Type}, true
}

// decide applies the three-way policy to a type usage. exempt is the flow annotation that lifts
// the guard of a non-nullable usage, demand the one that requires a guard on a nullable usage.
// inherits is consulted only for oblivious usages.
func (e *Evaluator) decide(t ir.TypeWithAnnotations, flow, exempt, demand ir.FlowAnnotations, inherits func() bool) bool {
	if t.Type == nil || t.Type.IsValueType() {
		return false
	}
	if tp, ok := t.Type.(*ir.TypeParam); ok {
		if notNull, known := tp.NotNullable(); known && !notNull {
			return false
		}
	}
	switch t.Annotation {
	case ir.NotAnnotated:
		return !flow.Has(exempt)
	case ir.Annotated:
		return flow.Has(demand)
	default:
		return inherits()
	}
}

func (e *Evaluator) marker() ir.Type {
	return e.cache.ResolveType(descriptor.NotNullAttribute)
}

// paramInherits reports whether p, the same-ordinal parameter of a method m overrides, or that
// of an interface method m implements carries the not-null marker. Indexer parameters have no
// owner, so the walk starts from m rather than from p.
func (e *Evaluator) paramInherits(m *ir.Method, p *ir.Param) bool {
	marker := e.marker()
	if ir.IsMissing(marker) {
		return false
	}
	if paramMarked(p, marker) {
		return true
	}
	if m == nil {
		m = p.Owner
	}
	if m == nil {
		return false
	}
	return inherits(m, func(o *ir.Method) bool {
		return p.Ordinal < len(o.Params) && paramMarked(o.Params[p.Ordinal], marker)
	})
}

// returnInherits reports whether the return value of m, of a method it overrides, or of an
// interface method it implements carries the not-null marker.
func (e *Evaluator) returnInherits(m *ir.Method) bool {
	marker := e.marker()
	if ir.IsMissing(marker) {
		return false
	}
	return inherits(m, func(m *ir.Method) bool { return returnMarked(m, marker) })
}

// paramMarked reads the marker of p. Accessors of ordinary properties carry it on the property.
func paramMarked(p *ir.Param, marker ir.Type) bool {
	if o := p.Owner; o != nil && o.IsAccessor() && !o.Property.Indexer {
		return ir.HasAttribute(o.Property.Attributes, marker)
	}
	return ir.HasAttribute(p.Attributes, marker)
}

func returnMarked(m *ir.Method, marker ir.Type) bool {
	if ir.HasAttribute(m.ReturnAttributes, marker) || ir.HasAttribute(m.Attributes, marker) {
		return true
	}
	return m.Kind == ir.MethodPropertyGet && m.IsAccessor() && ir.HasAttribute(m.Property.Attributes, marker)
}

// inherits walks the override chain of m to its root, then the interface methods m implements
// with the same number of parameters, and returns true at the first method marked reports. No
// method is visited twice.
func inherits(m *ir.Method, marked func(*ir.Method) bool) bool {
	visited := orderedset.New[*ir.Method]()
	for _, cur := range ir.OverrideChain(m) {
		if visited.Add(cur) && marked(cur) {
			return true
		}
	}
	for _, im := range ir.ImplementedInterfaceMethods(m) {
		if len(im.Params) != len(m.Params) {
			continue
		}
		if visited.Add(im) && marked(im) {
			return true
		}
	}
	return false
}
