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

// Package compilation drives the runtime null-check synthesis over the methods of one output
// module. It owns the per-compilation state (the symbol cache, the helper type builder and the
// diagnostic bag), lowers method bodies in parallel and assembles the output image when the
// compilation has no errors.
package compilation

import (
	"context"
	"errors"
	"go/token"
	"io"
	"runtime"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/nilguard/annotation"
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/descriptor"
	"go.uber.org/nilguard/diagnostic"
	"go.uber.org/nilguard/emit"
	"go.uber.org/nilguard/helper"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/refs"
	"go.uber.org/nilguard/rewrite"
	"go.uber.org/nilguard/suppression"
	"go.uber.org/nilguard/symcache"
	"go.uber.org/nilguard/synth"
	"go.uber.org/nilguard/util/orderedmap"
	"go.uber.org/nilguard/util/passhelper"
	"golang.org/x/sync/errgroup"
)

var (
	_methodsLowered = metrics.NewCounter(`nilguard_compilation_methods_total`)
	_methodsFailed  = metrics.NewCounter(`nilguard_compilation_failed_methods_total`)
)

// Compilation is the state of one compilation. A Compilation is compiled at most once.
type Compilation struct {
	closure *refs.Closure
	fset    *token.FileSet
	opts    config.Options
	cache   *symcache.Cache
}

// New returns a compilation of the source assembly of closure. fset maps the positions of the
// source spans and may be nil.
func New(closure *refs.Closure, fset *token.FileSet, opts config.Options) (*Compilation, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if fset == nil {
		fset = token.NewFileSet()
	}
	return &Compilation{closure: closure, fset: fset, opts: opts, cache: symcache.New(closure)}, nil
}

// MakeTypeMissing makes the well-known type id resolve as missing. It must be called before
// Compile; tests use it to exercise the missing-member paths.
func (c *Compilation) MakeTypeMissing(id descriptor.TypeID) { c.cache.ForceTypeMissing(id) }

// MakeMemberMissing makes the well-known member id resolve as missing. It must be called before
// Compile.
func (c *Compilation) MakeMemberMissing(id descriptor.MemberID) { c.cache.ForceMemberMissing(id) }

// Result is the outcome of a compilation.
type Result struct {
	// Helper is the synthesized helper type, nil if no method needed a throw-routine.
	Helper *ir.NamedType
	// Diagnostics are the diagnostics of the compilation in a deterministic order.
	Diagnostics []diagnostic.Diagnostic
	// Image is the output module, nil when the compilation has errors.
	Image *emit.Image
	// Fset maps the positions of the diagnostics.
	Fset *token.FileSet

	// bodies holds the rewritten bodies in declaration order.
	bodies *orderedmap.OrderedMap[*ir.Method, ir.Stmt]
}

// Body returns the final body of m: the rewritten body if the pass changed it, m.Body otherwise.
func (r *Result) Body(m *ir.Method) ir.Stmt {
	if b, ok := r.bodies.Load(m); ok {
		return b
	}
	return m.Body
}

// Changed returns the methods whose bodies the pass rewrote, in declaration order.
func (r *Result) Changed() []*ir.Method { return r.bodies.Keys() }

// Print writes the rewritten methods, the routines of the helper type and the diagnostics to w,
// each method as its signature followed by its body.
func (r *Result) Print(w io.Writer) error {
	var sb strings.Builder
	printMethod := func(m *ir.Method, body ir.Stmt) {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
		sb.WriteString(ir.Sprint(r.Fset, body))
		sb.WriteByte('\n')
	}
	r.bodies.OrderedRange(func(m *ir.Method, body ir.Stmt) bool {
		printMethod(m, body)
		return true
	})
	if r.Helper != nil {
		for _, m := range r.Helper.Methods {
			printMethod(m, m.Body)
		}
	}
	for _, d := range r.Diagnostics {
		sb.WriteString(d.Format(r.Fset))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// HasErrors returns true iff the compilation reported an error.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == diagnostic.Error {
			return true
		}
	}
	return false
}

// Compile lowers every method body of the source assembly. A failure while rewriting one method
// is reported as a warning and leaves that method's body untouched; the returned error is
// non-nil only if ctx is canceled.
func (c *Compilation) Compile(ctx context.Context) (*Result, error) {
	source := c.closure.Source()
	bag := &diagnostic.Bag{}
	res := &Result{Fset: c.fset, bodies: orderedmap.New[*ir.Method, ir.Stmt]()}

	var helpers *helper.Builder
	if c.opts.Mode != config.Disable {
		factory := synth.New(c.closure, c.cache)
		helpers = helper.NewBuilder(factory, bag)
		eval := annotation.NewEvaluator(c.cache, suppression.Collect(source.Types))
		rw := rewrite.New(eval, factory, helpers)
		if err := c.lower(ctx, rw, bag, c.methods(), res.bodies); err != nil {
			return nil, err
		}
		res.Helper = helpers.Type()
	}

	res.Diagnostics = bag.Sorted(c.fset)
	if !bag.HasErrors() {
		res.Image = emit.Build(source.Name, c.fset, source.Types, res.Helper, res.Body)
	}
	return res, nil
}

// methods returns the source methods that have a body, in declaration order.
func (c *Compilation) methods() []*ir.Method {
	var methods []*ir.Method
	for _, t := range c.closure.Source().Types {
		for _, m := range t.Methods {
			if m.Body != nil && !m.Extern {
				methods = append(methods, m)
			}
		}
	}
	return methods
}

// lower rewrites methods concurrently and records the changed bodies.
func (c *Compilation) lower(ctx context.Context, rw *rewrite.Rewriter, bag *diagnostic.Bag, methods []*ir.Method, bodies *orderedmap.OrderedMap[*ir.Method, ir.Stmt]) error {
	limit := c.opts.Concurrency
	if limit == 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	lowered := make([]ir.Stmt, len(methods))
	for i, m := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := passhelper.Run(m.FullName(), func() (ir.Stmt, error) {
				return rw.Rewrite(c.opts.Mode, m, m.Body), nil
			})
			if r.Err != nil {
				_methodsFailed.Inc()
				bag.Add(diagnostic.Internal(m.FullName(), m.Span.Pos, errors.New(firstLine(r.Err.Error()))))
				lowered[i] = m.Body
				return nil
			}
			_methodsLowered.Inc()
			lowered[i] = r.Res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, m := range methods {
		if lowered[i] != m.Body {
			bodies.Store(m, lowered[i])
		}
	}
	return nil
}

// firstLine drops the stack trace a recovered panic carries.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
