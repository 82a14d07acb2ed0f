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
	"go/token"
	"strings"
)

// Span is a source range. The zero Span means "no syntax", which is the case for synthesized
// symbols and for parameters cloned by the host during closure conversion.
type Span struct {
	Pos token.Pos
	End token.Pos
}

// IsValid returns true iff the span refers to source.
func (s Span) IsValid() bool { return s.Pos.IsValid() }

// FlowAnnotations is the set of flow annotations attached to a parameter or a return value.
type FlowAnnotations uint8

const (
	// FlowNone means no flow annotation.
	FlowNone FlowAnnotations = 0
	// AllowNull permits null as an input even though the type is non-nullable.
	AllowNull FlowAnnotations = 1 << iota
	// DisallowNull forbids null as an input even though the type is nullable.
	DisallowNull
	// MaybeNull permits null as an output even though the type is non-nullable.
	MaybeNull
	// NotNull guarantees a non-null output even though the type is nullable.
	NotNull
)

// Has returns true iff all flags of x are set in f.
func (f FlowAnnotations) Has(x FlowAnnotations) bool { return f&x == x }

func (f FlowAnnotations) String() string {
	if f == FlowNone {
		return "none"
	}
	var names []string
	for _, e := range [...]struct {
		flag FlowAnnotations
		name string
	}{{AllowNull, "AllowNull"}, {DisallowNull, "DisallowNull"}, {MaybeNull, "MaybeNull"}, {NotNull, "NotNull"}} {
		if f.Has(e.flag) {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}

// RefKind is how a parameter is passed.
type RefKind uint8

const (
	// RefNone is a by-value parameter.
	RefNone RefKind = iota
	// RefRef is a `ref` parameter: both an input and an output.
	RefRef
	// RefOut is an `out` parameter: an output only.
	RefOut
	// RefIn is an `in` parameter: a read-only input.
	RefIn
)

func (k RefKind) String() string {
	switch k {
	case RefRef:
		return "ref"
	case RefOut:
		return "out"
	case RefIn:
		return "in"
	default:
		return ""
	}
}

// MethodKind distinguishes ordinary methods from the special forms the pass treats differently.
type MethodKind uint8

const (
	// MethodOrdinary is a plain method.
	MethodOrdinary MethodKind = iota
	// MethodConstructor is an instance or static constructor.
	MethodConstructor
	// MethodPropertyGet is a property or indexer get accessor.
	MethodPropertyGet
	// MethodPropertySet is a property or indexer set accessor.
	MethodPropertySet
	// MethodLambda is a lambda body after closure conversion.
	MethodLambda
	// MethodLocalFunction is a local function body after closure conversion.
	MethodLocalFunction
)

// ImplFlags are code generation flags of a method.
type ImplFlags uint8

const (
	// NoInlining keeps the method from being inlined into callers.
	NoInlining ImplFlags = 1 << iota
	// DebuggerHidden keeps debuggers from stepping into the method.
	DebuggerHidden
	// CompilerGenerated marks a synthesized method.
	CompilerGenerated
)

// Has returns true iff all flags of x are set in f.
func (f ImplFlags) Has(x ImplFlags) bool { return f&x == x }

// Attribute is an applied attribute, identified by its attribute class.
type Attribute struct {
	Class Type
}

// HasAttribute returns true iff attrs contains an attribute whose class is identical to class.
func HasAttribute(attrs []*Attribute, class Type) bool {
	if class == nil || IsMissing(class) {
		return false
	}
	for _, a := range attrs {
		if a.Class != nil && Identical(a.Class, class) {
			return true
		}
	}
	return false
}

// Method is a method, constructor, accessor or converted lambda / local function.
type Method struct {
	Name      string
	Container *NamedType
	Kind      MethodKind
	Static    bool
	Internal  bool

	TypeParams []*TypeParam
	Params     []*Param

	Return       TypeWithAnnotations
	ReturnFlow   FlowAnnotations
	ReturnsByRef bool

	Iterator bool
	Async    bool

	// Overridden is the base class method this method overrides, if any.
	Overridden *Method
	// ExplicitImpls are the interface methods this method explicitly implements.
	ExplicitImpls []*Method
	// Base is the source declaration of a lambda or local function whose body was moved into
	// this method by closure conversion. Its parameters carry the original syntax.
	Base *Method
	// Property is the property an accessor belongs to.
	Property *Property

	Attributes       []*Attribute
	ReturnAttributes []*Attribute
	Impl             ImplFlags
	// Extern methods have no IR body; their behavior is supplied by the runtime.
	Extern bool

	Body Stmt
	Span Span
}

// FullName returns the qualified display name, e.g. "App.C.M".
func (m *Method) FullName() string {
	if m.Container == nil {
		return m.Name
	}
	return m.Container.FullName() + "." + m.Name
}

func (m *Method) String() string {
	var sb strings.Builder
	sb.WriteString(m.FullName())
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if k := p.RefKind.String(); k != "" {
			sb.WriteString(k)
			sb.WriteByte(' ')
		}
		sb.WriteString(p.Type.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// IsAccessor returns true iff m is a property or indexer accessor.
func (m *Method) IsAccessor() bool {
	return (m.Kind == MethodPropertyGet || m.Kind == MethodPropertySet) && m.Property != nil
}

// IsClosure returns true iff m is a lambda or local function after closure conversion.
func (m *Method) IsClosure() bool {
	return m.Kind == MethodLambda || m.Kind == MethodLocalFunction
}

// ReturnsVoid returns true iff the method returns no value.
func (m *Method) ReturnsVoid() bool { return m.Return.IsVoid() }

// Param is a formal parameter.
type Param struct {
	Name       string
	Ordinal    int
	Type       TypeWithAnnotations
	Flow       FlowAnnotations
	RefKind    RefKind
	Attributes []*Attribute
	Owner      *Method
	Span       Span
}

func (p *Param) String() string { return p.Name }

// IsInput returns true iff the caller's value flows into the method through p.
func (p *Param) IsInput() bool { return p.RefKind != RefOut }

// IsOutput returns true iff the method's value flows back to the caller through p.
func (p *Param) IsOutput() bool { return p.RefKind == RefOut || p.RefKind == RefRef }

// Property is a property or an indexer.
type Property struct {
	Name       string
	Container  *NamedType
	Type       TypeWithAnnotations
	Static     bool
	Indexer    bool
	Params     []*Param
	Getter     *Method
	Setter     *Method
	Attributes []*Attribute
	// BackingField is the field of an auto-property.
	BackingField *Field
	Span         Span
}

// Field is a static or instance field.
type Field struct {
	Name      string
	Container *NamedType
	Type      TypeWithAnnotations
	Static    bool
	Span      Span
}

// Local is a local variable. Synthesized locals are introduced by compiler passes.
type Local struct {
	Name        string
	Type        Type
	Synthesized bool
}
