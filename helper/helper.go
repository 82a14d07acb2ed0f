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

// Package helper synthesizes the helper type of an output module: an internal static class in
// the runtime's compiler services namespace whose routines construct and throw the exceptions of
// failed guards. Keeping the throw sequences out of line keeps guarded methods small.
package helper

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/descriptor"
	"go.uber.org/nilguard/diagnostic"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/synth"
)

// Routine identifies a throw-routine of the helper type.
type Routine uint8

const (
	// ArgumentNull throws the exception of a failed input guard. It takes the parameter name.
	ArgumentNull Routine = iota
	// OutParameterNull throws the exception of a failed output guard. It takes the parameter name.
	OutParameterNull
	// NullReturn throws the exception of a failed return value guard.
	NullReturn

	routineCount
)

func (r Routine) String() string {
	switch r {
	case ArgumentNull:
		return config.ArgumentNullRoutine
	case OutParameterNull:
		return config.OutParameterNullRoutine
	case NullReturn:
		return config.NullReturnRoutine
	default:
		return fmt.Sprintf("Routine(%d)", r)
	}
}

// Reporter receives diagnostics. *diagnostic.Bag implements it.
type Reporter interface {
	Add(d diagnostic.Diagnostic)
}

// _routineFlags are the code generation flags of every routine.
const _routineFlags = ir.NoInlining | ir.DebuggerHidden | ir.CompilerGenerated

type routine struct {
	once   sync.Once
	method *ir.Method
	// ok is false when the body could not be generated.
	ok bool
}

// Builder owns the helper type of one output module. The type and each routine are created at
// most once, on first use, and may be requested concurrently.
type Builder struct {
	factory  *synth.Factory
	reporter Reporter

	typeOnce sync.Once
	typ      *ir.NamedType

	routines [routineCount]routine
}

// NewBuilder returns a builder synthesizing with f and reporting missing members to reporter.
func NewBuilder(f *synth.Factory, reporter Reporter) *Builder {
	return &Builder{factory: f, reporter: reporter}
}

func (b *Builder) helperType() *ir.NamedType {
	b.typeOnce.Do(func() {
		b.typ = &ir.NamedType{
			Namespace: config.RuntimeNamespace,
			Name:      config.HelperTypeName,
			Kind:      ir.KindClass,
			Base:      b.factory.SpecialType(ir.SpecialObject),
			Internal:  true,
			Static:    true,
			Sealed:    true,
			Abstract:  true,
		}
	})
	return b.typ
}

// Routine returns the routine r, generating its body on first use. The second result is false
// when the exception constructor the body needs is missing; the missing member is then reported
// once and the routine must not be called.
func (b *Builder) Routine(r Routine) (*ir.Method, bool) {
	rt := &b.routines[r]
	rt.once.Do(func() {
		rt.method = b.declare(r)
		body, err := b.body(r, rt.method)
		var missing *synth.MissingMemberError
		switch {
		case err == nil:
			rt.method.Body = body
			rt.ok = true
		case errors.As(err, &missing):
			b.reporter.Add(diagnostic.MissingMember(missing.Member.DeclaringType.MetadataName(), missing.Member.Name))
			rt.method.Body = b.factory.Block(nil)
		default:
			panic(fmt.Sprintf("helper: generating %s: %v", r, err))
		}
	})
	return rt.method, rt.ok
}

// Type returns the helper type with the routines requested so far, in routine order, or nil
// when no routine was ever requested. It must not be called concurrently with Routine.
func (b *Builder) Type() *ir.NamedType {
	var methods []*ir.Method
	for r := range b.routines {
		if m := b.routines[r].method; m != nil {
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		return nil
	}
	t := b.helperType()
	t.Methods = methods
	return t
}

func (b *Builder) declare(r Routine) *ir.Method {
	m := &ir.Method{
		Name:      r.String(),
		Container: b.helperType(),
		Static:    true,
		Internal:  true,
		Return:    ir.TypeWithAnnotations{Type: b.factory.SpecialType(ir.SpecialVoid)},
		Impl:      _routineFlags,
	}
	if r != NullReturn {
		m.Params = []*ir.Param{{
			Name:  "name",
			Type:  ir.TypeWithAnnotations{Type: b.factory.SpecialType(ir.SpecialString), Annotation: ir.NotAnnotated},
			Owner: m,
		}}
	}
	return m
}

func (b *Builder) body(r Routine, m *ir.Method) (ir.Stmt, error) {
	f := b.factory
	var exception ir.Expr
	switch r {
	case ArgumentNull:
		ctor, err := f.Member(descriptor.ArgumentNullExceptionCtor)
		if err != nil {
			return nil, err
		}
		exception = f.New(ctor, f.Param(m.Params[0]))
	case OutParameterNull:
		ctor, err := f.Member(descriptor.ArgumentExceptionCtor)
		if err != nil {
			return nil, err
		}
		exception = f.New(ctor, f.String(config.OutParameterNullMessage), f.Param(m.Params[0]))
	case NullReturn:
		ctor, err := f.Member(descriptor.InvalidOperationExceptionCtor)
		if err != nil {
			return nil, err
		}
		exception = f.New(ctor, f.String(config.NullReturnMessage))
	default:
		return nil, fmt.Errorf("unknown routine %d", r)
	}
	return f.Block(nil, f.Throw(exception)), nil
}
