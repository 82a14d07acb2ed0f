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

// Package interp executes method bodies of the IR. It runs compiled modules in tests and from
// the command line, so that the behavior of synthesized guards can be observed: a failed guard
// surfaces as an *Exception returned from Call.
//
// Values are represented as Go values: nil for null, string, int64, bool, *Object for class
// instances and *Exception for exception objects. Boxing is the identity.
package interp

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/nilguard/ir"
)

// Value is a runtime value.
type Value = any

// Ref is a storage cell. Arguments of ref, out and in parameters are passed as *Ref.
type Ref struct {
	V Value
}

// Object is an instance of a class.
type Object struct {
	Type   *ir.NamedType
	Fields map[string]Value
}

// Exception is a thrown exception. It implements error so that it travels out of Call.
type Exception struct {
	Type      *ir.NamedType
	Message   string
	ParamName string
}

func (e *Exception) Error() string {
	s := e.Type.FullName() + ": " + e.Message
	if e.ParamName != "" {
		s += " (Parameter '" + e.ParamName + "')"
	}
	return s
}

// InstanceOf reports whether the exception's type is the type with the given full name or derives
// from it.
func (e *Exception) InstanceOf(fullName string) bool {
	for t := e.Type; t != nil; t = t.Origin().Base {
		if t.FullName() == fullName {
			return true
		}
	}
	return false
}

// TypeLookup finds types by metadata name. *refs.Closure implements it.
type TypeLookup interface {
	LookupType(metadataName string) *ir.NamedType
}

// _maxDepth bounds the call depth.
const _maxDepth = 1000

// Machine executes methods. A Machine is not safe for concurrent use.
type Machine struct {
	types   TypeLookup
	body    func(*ir.Method) ir.Stmt
	out     io.Writer
	statics map[*ir.Field]Value
	depth   int
}

// New returns a machine resolving runtime types through types and writing console output to
// out. body returns the body to execute for a method; a nil result means the method's own body.
// body may be nil.
func New(types TypeLookup, body func(*ir.Method) ir.Stmt, out io.Writer) *Machine {
	if out == nil {
		out = io.Discard
	}
	return &Machine{types: types, body: body, out: out, statics: make(map[*ir.Field]Value)}
}

type control uint8

const (
	next control = iota
	returned
	yieldBroken
)

type frame struct {
	method *ir.Method
	this   Value
	params map[*ir.Param]*Ref
	locals map[*ir.Local]*Ref
	result Value
	yields []Value
}

// Call invokes method with receiver this (nil for static methods) and the given arguments. It
// returns the returned value, or for an iterator the values it yielded. A thrown exception is
// returned as an *Exception error, together with the values an iterator yielded before it.
func (m *Machine) Call(method *ir.Method, this Value, args ...Value) (Value, error) {
	if len(args) != len(method.Params) {
		return nil, fmt.Errorf("interp: %s takes %d arguments, got %d", method, len(method.Params), len(args))
	}
	if m.depth >= _maxDepth {
		return nil, fmt.Errorf("interp: call depth exceeds %d", _maxDepth)
	}
	m.depth++
	defer func() { m.depth-- }()

	if method.Extern {
		return m.extern(method, this, args)
	}
	body := method.Body
	if m.body != nil {
		if b := m.body(method); b != nil {
			body = b
		}
	}
	if body == nil {
		return nil, fmt.Errorf("interp: %s has no body", method)
	}

	f := &frame{method: method, this: this, params: make(map[*ir.Param]*Ref, len(args)), locals: make(map[*ir.Local]*Ref)}
	for i, p := range method.Params {
		if p.RefKind == ir.RefNone {
			f.params[p] = &Ref{V: args[i]}
			continue
		}
		ref, ok := args[i].(*Ref)
		if !ok {
			return nil, fmt.Errorf("interp: argument %d of %s must be a *Ref", i, method)
		}
		f.params[p] = ref
	}
	if _, err := m.exec(f, body); err != nil {
		if method.Iterator {
			return f.yields, err
		}
		return nil, err
	}
	if method.Iterator {
		return f.yields, nil
	}
	return f.result, nil
}

// Throw returns a new exception of the type with the given metadata name.
func (m *Machine) Throw(metadataName, message string) *Exception {
	t := m.types.LookupType(metadataName)
	if t == nil {
		t = &ir.NamedType{Name: metadataName}
	}
	return &Exception{Type: t, Message: message}
}

func (m *Machine) nullReference() *Exception {
	return m.Throw("System.NullReferenceException", "Object reference not set to an instance of an object.")
}

func (m *Machine) exec(f *frame, s ir.Stmt) (control, error) {
	switch s := s.(type) {
	case *ir.Block:
		for _, l := range s.Locals {
			f.locals[l] = &Ref{}
		}
		return m.list(f, s.Stmts)
	case *ir.StatementList:
		return m.list(f, s.Stmts)
	case *ir.SequencePoint:
		if s.Stmt == nil {
			return next, nil
		}
		return m.exec(f, s.Stmt)
	case *ir.ExprStmt:
		_, err := m.eval(f, s.X)
		return next, err
	case *ir.Return:
		if s.X != nil {
			v, err := m.eval(f, s.X)
			if err != nil {
				return next, err
			}
			f.result = v
		}
		return returned, nil
	case *ir.YieldReturn:
		v, err := m.eval(f, s.X)
		if err != nil {
			return next, err
		}
		f.yields = append(f.yields, v)
		return next, nil
	case *ir.YieldBreak:
		return yieldBroken, nil
	case *ir.If:
		c, err := m.eval(f, s.Cond)
		if err != nil {
			return next, err
		}
		b, ok := c.(bool)
		if !ok {
			return next, fmt.Errorf("interp: condition of type %T", c)
		}
		if b {
			return m.exec(f, s.Then)
		}
		if s.Else != nil {
			return m.exec(f, s.Else)
		}
		return next, nil
	case *ir.Throw:
		v, err := m.eval(f, s.X)
		if err != nil {
			return next, err
		}
		if ex, ok := v.(*Exception); ok {
			return next, ex
		}
		if v == nil {
			return next, m.nullReference()
		}
		return next, fmt.Errorf("interp: throwing a non-exception %T", v)
	}
	return next, fmt.Errorf("interp: unexpected statement %T", s)
}

func (m *Machine) list(f *frame, stmts []ir.Stmt) (control, error) {
	for _, s := range stmts {
		c, err := m.exec(f, s)
		if err != nil || c != next {
			return c, err
		}
	}
	return next, nil
}

func (m *Machine) eval(f *frame, e ir.Expr) (Value, error) {
	switch e := e.(type) {
	case *ir.Literal:
		return e.Value, nil
	case *ir.This:
		return f.this, nil
	case *ir.ParamRef:
		return f.params[e.Param].V, nil
	case *ir.LocalRef:
		ref, ok := f.locals[e.Local]
		if !ok {
			return nil, fmt.Errorf("interp: local %s is not in scope", e.Local.Name)
		}
		return ref.V, nil
	case *ir.FieldRef:
		if e.Field.Static || e.Receiver == nil {
			return m.statics[e.Field], nil
		}
		obj, err := m.object(f, e.Receiver)
		if err != nil {
			return nil, err
		}
		return obj.Fields[e.Field.Name], nil
	case *ir.PropertyRef:
		recv, err := m.receiver(f, e.Receiver, e.Property.Static)
		if err != nil {
			return nil, err
		}
		if e.Property.Getter == nil {
			return nil, fmt.Errorf("interp: property %s has no getter", e.Property.Name)
		}
		return m.invoke(e.Property.Getter, recv, nil)
	case *ir.Call:
		recv, err := m.receiver(f, e.Receiver, e.Method.Static)
		if err != nil {
			return nil, err
		}
		args, err := m.args(f, e.Args)
		if err != nil {
			return nil, err
		}
		return m.invoke(e.Method, recv, args)
	case *ir.New:
		args, err := m.args(f, e.Args)
		if err != nil {
			return nil, err
		}
		return m.construct(e.Ctor, args)
	case *ir.Conversion:
		return m.eval(f, e.X)
	case *ir.Binary:
		x, err := m.eval(f, e.X)
		if err != nil {
			return nil, err
		}
		y, err := m.eval(f, e.Y)
		if err != nil {
			return nil, err
		}
		eq := x == y
		if e.Op == ir.ObjectNotEqual {
			return !eq, nil
		}
		return eq, nil
	case *ir.Assign:
		v, err := m.eval(f, e.Right)
		if err != nil {
			return nil, err
		}
		return v, m.store(f, e.Left, v)
	case *ir.AddressOf:
		return nil, errors.New("interp: a reference can only be passed as an argument")
	}
	return nil, fmt.Errorf("interp: unexpected expression %T", e)
}

func (m *Machine) receiver(f *frame, recv ir.Expr, static bool) (Value, error) {
	if static || recv == nil {
		return nil, nil
	}
	v, err := m.eval(f, recv)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, m.nullReference()
	}
	return v, nil
}

func (m *Machine) object(f *frame, recv ir.Expr) (*Object, error) {
	v, err := m.receiver(f, recv, false)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("interp: field access on %T", v)
	}
	return obj, nil
}

// args evaluates call arguments. Arguments passed by reference evaluate to the storage cell of
// the referenced parameter or local.
func (m *Machine) args(f *frame, exprs []ir.Expr) ([]Value, error) {
	args := make([]Value, len(exprs))
	for i, a := range exprs {
		if addr, ok := a.(*ir.AddressOf); ok {
			ref, err := m.cell(f, addr.X)
			if err != nil {
				return nil, err
			}
			args[i] = ref
			continue
		}
		v, err := m.eval(f, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (m *Machine) cell(f *frame, e ir.Expr) (*Ref, error) {
	switch e := e.(type) {
	case *ir.ParamRef:
		return f.params[e.Param], nil
	case *ir.LocalRef:
		if ref, ok := f.locals[e.Local]; ok {
			return ref, nil
		}
		return nil, fmt.Errorf("interp: local %s is not in scope", e.Local.Name)
	}
	return nil, fmt.Errorf("interp: cannot take a reference to %T", e)
}

func (m *Machine) store(f *frame, left ir.Expr, v Value) error {
	switch left := left.(type) {
	case *ir.ParamRef, *ir.LocalRef:
		ref, err := m.cell(f, left)
		if err != nil {
			return err
		}
		ref.V = v
		return nil
	case *ir.FieldRef:
		if left.Field.Static || left.Receiver == nil {
			m.statics[left.Field] = v
			return nil
		}
		obj, err := m.object(f, left.Receiver)
		if err != nil {
			return err
		}
		obj.Fields[left.Field.Name] = v
		return nil
	case *ir.PropertyRef:
		recv, err := m.receiver(f, left.Receiver, left.Property.Static)
		if err != nil {
			return err
		}
		if left.Property.Setter == nil {
			return fmt.Errorf("interp: property %s has no setter", left.Property.Name)
		}
		_, err = m.invoke(left.Property.Setter, recv, []Value{v})
		return err
	}
	return fmt.Errorf("interp: cannot assign to %T", left)
}

// invoke calls method on recv, dispatching virtual and interface methods on the runtime type of
// the receiver.
func (m *Machine) invoke(method *ir.Method, recv Value, args []Value) (Value, error) {
	if obj, ok := recv.(*Object); ok && !method.Static {
		method = dispatch(obj.Type, method)
	}
	return m.Call(method, recv, args...)
}

func dispatch(t *ir.NamedType, method *ir.Method) *ir.Method {
	if method.Container != nil && method.Container.IsInterface() {
		for _, iface := range ir.AllInterfaces(t) {
			if iface.Origin() == method.Container.Origin() {
				if impl := ir.FindImplementation(t, iface, method); impl != nil {
					return impl
				}
			}
		}
		return method
	}
	for cur := t; cur != nil; cur = cur.Origin().Base {
		for _, cand := range cur.Origin().Methods {
			for _, o := range ir.OverrideChain(cand) {
				if o == method {
					return cand
				}
			}
		}
		if cur.Origin() == method.Container.Origin() {
			break
		}
	}
	return method
}

func (m *Machine) construct(ctor *ir.Method, args []Value) (Value, error) {
	t := ctor.Container
	if ctor.Extern && isException(t) {
		ex := &Exception{Type: t}
		for i, p := range ctor.Params {
			s, _ := args[i].(string)
			switch p.Name {
			case "message":
				ex.Message = s
			case "paramName":
				ex.ParamName = s
			}
		}
		if ex.Message == "" {
			ex.Message = defaultMessage(t)
		}
		return ex, nil
	}
	obj := &Object{Type: t, Fields: make(map[string]Value)}
	if _, err := m.Call(ctor, obj, args...); err != nil {
		return nil, err
	}
	return obj, nil
}

func isException(t *ir.NamedType) bool {
	for cur := t; cur != nil; cur = cur.Origin().Base {
		if cur.MetadataName() == "System.Exception" {
			return true
		}
	}
	return false
}

func defaultMessage(t *ir.NamedType) string {
	if t.MetadataName() == "System.ArgumentNullException" {
		return "Value cannot be null."
	}
	return "Exception of type '" + t.FullName() + "' was thrown."
}

// extern runs a method the runtime supplies.
func (m *Machine) extern(method *ir.Method, this Value, args []Value) (Value, error) {
	switch {
	case method.Kind == ir.MethodConstructor:
		return nil, nil
	case method.FullName() == "System.Console.WriteLine":
		_, err := fmt.Fprintln(m.out, Format(args[0]))
		return nil, err
	}
	return nil, fmt.Errorf("interp: extern method %s is not supported", method)
}

// Format renders a value the way the runtime's console does.
func Format(v Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case *Object:
		return v.Type.FullName()
	case *Exception:
		return v.Error()
	case []Value:
		return fmt.Sprint(v...)
	}
	return fmt.Sprint(v)
}
