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

// Package rewrite injects runtime null guards into method bodies. Preconditions check inputs
// on entry; postconditions check output parameters and the returned value at every return point.
// Bodies are rewritten copy-on-write: nodes of the input tree are shared, never modified.
package rewrite

import (
	"fmt"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/nilguard/annotation"
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/guard"
	"go.uber.org/nilguard/helper"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/synth"
)

var (
	methodsRewritten      = metrics.NewCounter(`nilguard_rewrite_methods_total`)
	skippedUnexpectedBody = metrics.NewCounter(`nilguard_rewrite_skipped_total{reason="shape"}`)
	skippedNoRoutine      = metrics.NewCounter(`nilguard_rewrite_skipped_total{reason="routine"}`)
)

func guardsInserted(k guard.Kind) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`nilguard_rewrite_guards_total{kind=%q}`, k))
}

// Rewriter inserts the guards the policy evaluator asks for. It holds no per-method state and
// may rewrite several methods concurrently.
type Rewriter struct {
	eval    *annotation.Evaluator
	factory *synth.Factory
	helpers *helper.Builder

	// strictShapes makes an unexpected body shape panic instead of leaving the body alone.
	strictShapes bool
}

// New returns a rewriter deciding with eval, synthesizing with f and calling the routines of
// helpers.
func New(eval *annotation.Evaluator, f *synth.Factory, helpers *helper.Builder) *Rewriter {
	return &Rewriter{eval: eval, factory: f, helpers: helpers, strictShapes: testing.Testing()}
}

// Rewrite returns body with the guards of mode inserted. Enable runs the precondition phase and
// feeds its result to the postcondition phase.
func (r *Rewriter) Rewrite(mode config.Mode, m *ir.Method, body ir.Stmt) ir.Stmt {
	if mode.Preconditions() {
		body = r.InsertPreconditions(m, body)
	}
	if mode.Postconditions() {
		body = r.InsertPostconditions(m, body)
	}
	return body
}

// statements returns the top-level statements of a body, which lowering leaves as a block or a
// statement list.
func (r *Rewriter) statements(m *ir.Method, body ir.Stmt) ([]ir.Stmt, bool) {
	switch body := body.(type) {
	case *ir.Block:
		return body.Stmts, true
	case *ir.StatementList:
		return body.Stmts, true
	}
	if r.strictShapes {
		panic(fmt.Sprintf("rewrite: unexpected body %T of %s", body, m))
	}
	skippedUnexpectedBody.Inc()
	return nil, false
}

// replaceStatements returns a body of the same shape as body with the given statements.
func replaceStatements(body ir.Stmt, stmts []ir.Stmt) ir.Stmt {
	if b, ok := body.(*ir.Block); ok {
		return &ir.Block{Locals: b.Locals, Stmts: stmts}
	}
	return &ir.StatementList{Stmts: stmts}
}

// InsertPreconditions prepends an input guard for every parameter that needs one, in parameter
// order. Each guard is attributed to the declaration of its parameter. When no guard has a
// declaration to point at and the body starts with a sequence point, that sequence point is
// widened to cover the guards instead.
func (r *Rewriter) InsertPreconditions(m *ir.Method, body ir.Stmt) ir.Stmt {
	if len(m.Params) == 0 {
		return body
	}
	stmts, ok := r.statements(m, body)
	if !ok {
		return body
	}
	plan := r.eval.Plan(m)
	if len(plan.Inputs) == 0 {
		return body
	}
	routine, ok := r.helpers.Routine(helper.ArgumentNull)
	if !ok {
		skippedNoRoutine.Inc()
		return body
	}

	f := r.factory
	guards := make([]ir.Stmt, 0, len(plan.Inputs)+len(stmts))
	attributed := false
	for _, site := range plan.Inputs {
		var check ir.Stmt = f.If(f.IsNull(f.Param(site.Param)), f.ExprStmt(f.StaticCall(routine, f.String(site.Name()))))
		if site.Span.IsValid() {
			check = f.SequencePoint(site.Span, check)
			attributed = true
		}
		guards = append(guards, check)
	}
	guardsInserted(guard.Input).Add(len(plan.Inputs))
	methodsRewritten.Inc()

	if !attributed && len(stmts) > 0 {
		if sp, ok := stmts[0].(*ir.SequencePoint); ok {
			if sp.Stmt != nil {
				guards = append(guards, sp.Stmt)
			}
			out := make([]ir.Stmt, 0, len(stmts))
			out = append(out, f.SequencePoint(sp.Span, f.Block(nil, guards...)))
			out = append(out, stmts[1:]...)
			return replaceStatements(body, out)
		}
	}
	return replaceStatements(body, append(guards, stmts...))
}

// InsertPostconditions rewrites every return point of the body: output parameter guards run
// right before the method returns, and a returned value that needs a guard is stored in a
// temporary, checked, then returned. The checks are repeated at each return point rather than
// shared in an epilogue, since iterator and async lowering run later and need the return points
// intact. Output parameters are also checked where a non-iterator body falls off its end.
func (r *Rewriter) InsertPostconditions(m *ir.Method, body ir.Stmt) ir.Stmt {
	stmts, ok := r.statements(m, body)
	if !ok {
		return body
	}
	plan := r.eval.Plan(m)
	if !plan.HasPostconditions() {
		return body
	}

	p := &postconditions{factory: r.factory, method: m, strict: r.strictShapes}
	if len(plan.Outputs) > 0 {
		if routine, ok := r.helpers.Routine(helper.OutParameterNull); ok {
			p.outputs, p.outputRoutine = plan.Outputs, routine
		} else {
			skippedNoRoutine.Inc()
		}
	}
	if plan.Return != nil {
		if routine, ok := r.helpers.Routine(helper.NullReturn); ok {
			p.result, p.returnRoutine = plan.Return, routine
		} else {
			skippedNoRoutine.Inc()
		}
	}
	if len(p.outputs) == 0 && p.result == nil {
		return body
	}

	out, changed := p.list(stmts)
	if len(p.outputs) > 0 && !m.Iterator && ir.CanFallThrough(body) {
		if !changed {
			out = append([]ir.Stmt(nil), stmts...)
		}
		out = append(out, p.outputChecks())
		changed = true
	}
	if !changed {
		return body
	}
	methodsRewritten.Inc()
	return replaceStatements(body, out)
}

// postconditions rewrites the return points of one method body.
type postconditions struct {
	factory *synth.Factory
	method  *ir.Method
	// strict panics on a statement that may hold return points but is not walked.
	strict bool

	outputs       []guard.Site
	outputRoutine *ir.Method
	result        *guard.Site
	returnRoutine *ir.Method

	// temps numbers the return value temporaries of the method.
	temps int
}

// list rewrites a statement sequence. The returned slice is a fresh copy iff changed is true.
func (p *postconditions) list(stmts []ir.Stmt) ([]ir.Stmt, bool) {
	var out []ir.Stmt
	for i, s := range stmts {
		ns, changed := p.stmt(s)
		if changed && out == nil {
			out = make([]ir.Stmt, i, len(stmts))
			copy(out, stmts[:i])
		}
		if out != nil {
			out = append(out, ns)
		}
	}
	if out == nil {
		return stmts, false
	}
	return out, true
}

func (p *postconditions) stmt(s ir.Stmt) (ir.Stmt, bool) {
	switch s := s.(type) {
	case *ir.Return:
		ns := p.returnPoint(s, s.X)
		return ns, ns != ir.Stmt(s)
	case *ir.YieldReturn:
		ns := p.returnPoint(s, s.X)
		return ns, ns != ir.Stmt(s)
	case *ir.Block:
		stmts, changed := p.list(s.Stmts)
		if !changed {
			return s, false
		}
		return &ir.Block{Locals: s.Locals, Stmts: stmts}, true
	case *ir.StatementList:
		stmts, changed := p.list(s.Stmts)
		if !changed {
			return s, false
		}
		return &ir.StatementList{Stmts: stmts}, true
	case *ir.SequencePoint:
		if s.Stmt == nil {
			return s, false
		}
		inner, changed := p.stmt(s.Stmt)
		if !changed {
			return s, false
		}
		return &ir.SequencePoint{Span: s.Span, Stmt: inner}, true
	case *ir.If:
		then, thenChanged := p.stmt(s.Then)
		els, elseChanged := s.Else, false
		if s.Else != nil {
			els, elseChanged = p.stmt(s.Else)
		}
		if !thenChanged && !elseChanged {
			return s, false
		}
		return &ir.If{Cond: s.Cond, Then: then, Else: els}, true
	case nil, *ir.ExprStmt, *ir.Throw, *ir.YieldBreak:
		return s, false
	}
	if p.strict {
		panic(fmt.Sprintf("rewrite: unexpected statement %T in %s", s, p.method))
	}
	skippedUnexpectedBody.Inc()
	return s, false
}

// returnPoint returns the statements replacing the return (or yield return) statement s whose
// value is x.
func (p *postconditions) returnPoint(s ir.Stmt, x ir.Expr) ir.Stmt {
	f := p.factory
	var checks ir.Stmt
	if len(p.outputs) > 0 {
		checks = p.outputChecks()
	}
	value := s
	if x != nil && p.result != nil {
		value = p.valueCheck(s, x)
	}
	if checks == nil && value == s {
		return s
	}
	return f.List(checks, value)
}

func (p *postconditions) outputChecks() ir.Stmt {
	f := p.factory
	stmts := make([]ir.Stmt, 0, len(p.outputs))
	for _, site := range p.outputs {
		stmts = append(stmts, f.If(f.IsNull(f.Param(site.Param)), f.ExprStmt(f.StaticCall(p.outputRoutine, f.String(site.Name())))))
	}
	guardsInserted(guard.Output).Add(len(p.outputs))
	return f.List(stmts...)
}

// valueCheck stores x in a fresh temporary of the checked type, checks it and returns it in
// place of x.
func (p *postconditions) valueCheck(s ir.Stmt, x ir.Expr) ir.Stmt {
	f := p.factory
	tmp := f.Temp(config.ReturnTempPrefix, p.temps, p.result.Type)
	p.temps++
	guardsInserted(p.result.Kind).Inc()

	var ret ir.Stmt
	switch s.(type) {
	case *ir.YieldReturn:
		ret = &ir.YieldReturn{X: f.Local(tmp)}
	default:
		ret = f.Return(p.returned(tmp))
	}
	return f.Block([]*ir.Local{tmp},
		f.Assign(f.Local(tmp), f.Convert(tmp.Type, x)),
		f.If(f.IsNull(f.Local(tmp)), f.ExprStmt(f.StaticCall(p.returnRoutine))),
		ret,
	)
}

// returned is the expression an ordinary return statement returns the temporary with. The
// temporary has the checked type, which is the declared return type unless the method is async.
func (p *postconditions) returned(tmp *ir.Local) ir.Expr {
	m := p.method
	if m.Async || m.Iterator || m.Return.Type == nil {
		return p.factory.Local(tmp)
	}
	return p.factory.Convert(m.Return.Type, p.factory.Local(tmp))
}
