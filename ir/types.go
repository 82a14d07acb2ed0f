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

// Package ir hosts the typed intermediate representation consumed and produced by the runtime
// check pass: bound and lowered method bodies, and the symbols (types, methods, parameters,
// properties, fields, locals) they refer to. Trees are treated as immutable by the pass; every
// rewrite produces fresh nodes.
package ir

import (
	"strconv"
	"strings"
)

// Type is the static type of an expression or a symbol.
type Type interface {
	// IsValueType returns true iff values of the type can never be null.
	IsValueType() bool
	// String returns the display name of the type.
	String() string

	isType()
}

// TypeKind is the declaration kind of a named type.
type TypeKind uint8

const (
	// KindClass is a reference type.
	KindClass TypeKind = iota
	// KindStruct is a value type.
	KindStruct
	// KindInterface is an interface type.
	KindInterface
	// KindEnum is an enumeration (a value type).
	KindEnum
)

// SpecialType identifies the handful of core library types the pass and the descriptor table
// refer to by code rather than by symbol.
type SpecialType uint8

const (
	// SpecialNone marks an ordinary type.
	SpecialNone SpecialType = iota
	// SpecialVoid is System.Void.
	SpecialVoid
	// SpecialObject is System.Object.
	SpecialObject
	// SpecialString is System.String.
	SpecialString
	// SpecialInt32 is System.Int32.
	SpecialInt32
	// SpecialBoolean is System.Boolean.
	SpecialBoolean

	// SpecialTypeCount is the number of special types, it must stay last.
	SpecialTypeCount
)

// WrapperKind marks the generic iterator and task types whose element type is what an iterator
// or async method actually produces.
type WrapperKind uint8

const (
	// WrapNone is an ordinary type.
	WrapNone WrapperKind = iota
	// WrapEnumerable is IEnumerable<T>.
	WrapEnumerable
	// WrapEnumerator is IEnumerator<T>.
	WrapEnumerator
	// WrapAsyncEnumerable is IAsyncEnumerable<T>.
	WrapAsyncEnumerable
	// WrapTask is Task, Task<T> or ValueTask<T>.
	WrapTask
)

// NamedType is a declared class, struct, interface or enum, or a construction of a generic
// declaration (in which case Definition points at the declaration and TypeArgs is populated).
type NamedType struct {
	Namespace string
	Name      string
	Kind      TypeKind
	Special   SpecialType
	Wrapper   WrapperKind

	Base       *NamedType
	Interfaces []*NamedType

	TypeParams []*TypeParam
	TypeArgs   []TypeWithAnnotations
	Definition *NamedType

	Internal bool
	Static   bool
	Sealed   bool
	Abstract bool

	Methods    []*Method
	Properties []*Property
	Fields     []*Field
	Attributes []*Attribute

	Span Span
}

func (*NamedType) isType() {}

// IsValueType returns true for structs and enums.
func (t *NamedType) IsValueType() bool {
	def := t.Origin()
	return def.Kind == KindStruct || def.Kind == KindEnum
}

// Origin returns the generic declaration of a constructed type, or the type itself.
func (t *NamedType) Origin() *NamedType {
	if t.Definition != nil {
		return t.Definition
	}
	return t
}

// IsInterface returns true iff the type is an interface.
func (t *NamedType) IsInterface() bool {
	return t.Origin().Kind == KindInterface
}

// MetadataName returns the namespace-qualified name with the generic arity suffix, e.g.
// "System.Collections.Generic.IEnumerable`1".
func (t *NamedType) MetadataName() string {
	def := t.Origin()
	name := def.Name
	if n := len(def.TypeParams); n > 0 {
		name += "`" + strconv.Itoa(n)
	}
	if def.Namespace == "" {
		return name
	}
	return def.Namespace + "." + name
}

// FullName returns the namespace-qualified display name, e.g. "App.C".
func (t *NamedType) FullName() string {
	if t.Origin().Namespace == "" {
		return t.String()
	}
	return t.Origin().Namespace + "." + t.String()
}

func (t *NamedType) String() string {
	def := t.Origin()
	if len(t.TypeArgs) > 0 {
		args := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = a.String()
		}
		return def.Name + "<" + strings.Join(args, ", ") + ">"
	}
	if len(def.TypeParams) > 0 {
		params := make([]string, len(def.TypeParams))
		for i, p := range def.TypeParams {
			params[i] = p.Name
		}
		return def.Name + "<" + strings.Join(params, ", ") + ">"
	}
	return def.Name
}

// Method returns the first method declared on the type with the given name, or nil.
func (t *NamedType) Method(name string) *Method {
	for _, m := range t.Origin().Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Property returns the property declared on the type with the given name, or nil.
func (t *NamedType) Property(name string) *Property {
	for _, p := range t.Origin().Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Field returns the field declared on the type with the given name, or nil.
func (t *NamedType) Field(name string) *Field {
	for _, f := range t.Origin().Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Constructors returns the instance and static constructors declared on the type.
func (t *NamedType) Constructors() []*Method {
	var ctors []*Method
	for _, m := range t.Origin().Methods {
		if m.Kind == MethodConstructor {
			ctors = append(ctors, m)
		}
	}
	return ctors
}

// Construct returns a construction of the generic declaration t with the given arguments.
func (t *NamedType) Construct(args ...TypeWithAnnotations) *NamedType {
	if len(args) != len(t.TypeParams) {
		panic("ir: wrong number of type arguments for " + t.MetadataName())
	}
	return &NamedType{
		Namespace:  t.Namespace,
		Name:       t.Name,
		Kind:       t.Kind,
		Wrapper:    t.Wrapper,
		Definition: t,
		TypeArgs:   args,
	}
}

// Constraint is the declared constraint of a type parameter, as far as nullability goes.
type Constraint uint8

const (
	// ConstraintNone is an unconstrained type parameter.
	ConstraintNone Constraint = iota
	// ConstraintClass is a `class` constraint (non-nullable reference type in an enabled context).
	ConstraintClass
	// ConstraintNullableClass is a `class?` constraint.
	ConstraintNullableClass
	// ConstraintNotNull is a `notnull` constraint.
	ConstraintNotNull
	// ConstraintStruct is a `struct` constraint.
	ConstraintStruct
)

// TypeParam is a generic type parameter of a type or a method.
type TypeParam struct {
	Name       string
	Ordinal    int
	Constraint Constraint
	// NullableContext is true when the type parameter was declared in a context where static
	// nullable analysis is enabled.
	NullableContext bool
}

func (*TypeParam) isType() {}

// IsValueType returns true iff the type parameter has a struct constraint.
func (t *TypeParam) IsValueType() bool { return t.Constraint == ConstraintStruct }

func (t *TypeParam) String() string { return t.Name }

// NotNullable reports whether the constraints of t guarantee a non-null value. The second
// result is false when that cannot be determined, which is the case for type parameters declared
// without static nullable analysis whose constraints say nothing either way.
func (t *TypeParam) NotNullable() (notNull bool, known bool) {
	switch t.Constraint {
	case ConstraintStruct, ConstraintNotNull:
		return true, true
	case ConstraintNullableClass:
		return false, true
	case ConstraintClass:
		if t.NullableContext {
			return true, true
		}
		return false, false
	default:
		if t.NullableContext {
			return false, true
		}
		return false, false
	}
}

// MissingType is the placeholder for a type that cannot be found in the reference closure. It is
// returned in place of an error so that diagnostics can be reported at the point of actual use.
type MissingType struct {
	MetadataName string
}

func (*MissingType) isType() {}

// IsValueType returns false: nothing is known about a missing type.
func (*MissingType) IsValueType() bool { return false }

func (t *MissingType) String() string { return t.MetadataName }

// IsMissing returns true iff t is a missing type placeholder.
func IsMissing(t Type) bool {
	_, ok := t.(*MissingType)
	return ok
}

// NullableAnnotation is the static nullability state of a type usage.
type NullableAnnotation uint8

const (
	// Oblivious means no static nullable analysis applies to the type usage.
	Oblivious NullableAnnotation = iota
	// NotAnnotated is a non-nullable type usage in an enabled context, e.g. `string`.
	NotAnnotated
	// Annotated is a nullable type usage, e.g. `string?`.
	Annotated
)

func (a NullableAnnotation) String() string {
	switch a {
	case NotAnnotated:
		return "not-annotated"
	case Annotated:
		return "annotated"
	default:
		return "oblivious"
	}
}

// TypeWithAnnotations is a type usage together with its static nullability state.
type TypeWithAnnotations struct {
	Type       Type
	Annotation NullableAnnotation
}

func (t TypeWithAnnotations) String() string {
	if t.Type == nil {
		return "<nil>"
	}
	if t.Annotation == Annotated {
		return t.Type.String() + "?"
	}
	return t.Type.String()
}

// IsVoid returns true iff the usage is System.Void (or absent).
func (t TypeWithAnnotations) IsVoid() bool {
	if t.Type == nil {
		return true
	}
	n, ok := t.Type.(*NamedType)
	return ok && n.Special == SpecialVoid
}

// UnwrapResult returns the type an iterator or async method actually produces: the element type
// of IEnumerable<T>, IEnumerator<T>, IAsyncEnumerable<T> or the result type of Task<T> and
// ValueTask<T>. Only one level is unwrapped. For any other method the return type is returned
// as is. The second result is false when the method produces no value (void, or a non-generic
// wrapper).
func UnwrapResult(m *Method) (TypeWithAnnotations, bool) {
	ret := m.Return
	if m.ReturnsVoid() {
		return ret, false
	}
	if !m.Iterator && !m.Async {
		return ret, true
	}
	n, ok := ret.Type.(*NamedType)
	if !ok || n.Wrapper == WrapNone || len(n.TypeArgs) != 1 {
		return TypeWithAnnotations{}, false
	}
	return n.TypeArgs[0], true
}

// Identical reports whether x and y denote the same type.
func Identical(x, y Type) bool {
	if x == y {
		return true
	}
	switch x := x.(type) {
	case *NamedType:
		y, ok := y.(*NamedType)
		if !ok || x.Origin() != y.Origin() || len(x.TypeArgs) != len(y.TypeArgs) {
			return false
		}
		for i := range x.TypeArgs {
			if !Identical(x.TypeArgs[i].Type, y.TypeArgs[i].Type) {
				return false
			}
		}
		return true
	case *MissingType:
		y, ok := y.(*MissingType)
		return ok && x.MetadataName == y.MetadataName
	}
	return false
}
