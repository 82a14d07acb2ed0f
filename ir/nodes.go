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

// Node is a node of a method body tree.
type Node interface {
	node()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	// Type returns the static type of the expression.
	Type() Type
	expr()
}

// Block is a statement block that scopes its locals.
type Block struct {
	Locals []*Local
	Stmts  []Stmt
}

// StatementList is a sequence of statements without a scope of its own. Lowering produces it when
// splicing several statements in the place of one.
type StatementList struct {
	Stmts []Stmt
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

// Return returns from the method, with a value unless X is nil.
type Return struct {
	X Expr
}

// YieldReturn produces the next element of an iterator.
type YieldReturn struct {
	X Expr
}

// YieldBreak ends an iterator.
type YieldBreak struct{}

// If is a conditional statement. Else may be nil.
type If struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// Throw raises the exception X.
type Throw struct {
	X Expr
}

// SequencePoint associates the wrapped statement with a source span for debugging. Stmt may be
// nil, in which case the sequence point marks a location only.
type SequencePoint struct {
	Span Span
	Stmt Stmt
}

func (*Block) node()         {}
func (*StatementList) node() {}
func (*ExprStmt) node()      {}
func (*Return) node()        {}
func (*YieldReturn) node()   {}
func (*YieldBreak) node()    {}
func (*If) node()            {}
func (*Throw) node()         {}
func (*SequencePoint) node() {}

func (*Block) stmt()         {}
func (*StatementList) stmt() {}
func (*ExprStmt) stmt()      {}
func (*Return) stmt()        {}
func (*YieldReturn) stmt()   {}
func (*YieldBreak) stmt()    {}
func (*If) stmt()            {}
func (*Throw) stmt()         {}
func (*SequencePoint) stmt() {}

// Literal is a constant. Value is nil, string, int64 or bool. A nil literal written with the
// null-forgiving operator (`null!`) has Suppressed set.
type Literal struct {
	Value      any
	T          Type
	Suppressed bool
}

// This is the receiver of an instance method.
type This struct {
	T *NamedType
}

// ParamRef reads or writes a parameter.
type ParamRef struct {
	Param *Param
}

// LocalRef reads or writes a local.
type LocalRef struct {
	Local *Local
}

// FieldRef reads or writes a field. Receiver is nil for static fields.
type FieldRef struct {
	Receiver Expr
	Field    *Field
}

// PropertyRef reads or writes a property. Receiver is nil for static properties.
type PropertyRef struct {
	Receiver Expr
	Property *Property
}

// Call invokes a method. Receiver is nil for static methods.
type Call struct {
	Receiver Expr
	Method   *Method
	Args     []Expr
}

// New creates an object by invoking the constructor Ctor.
type New struct {
	Ctor *Method
	Args []Expr
}

// ConversionKind is the kind of a conversion.
type ConversionKind uint8

const (
	// ConvIdentity changes only the static nullability of the operand.
	ConvIdentity ConversionKind = iota
	// ConvImplicitReference converts a reference to a base type or interface.
	ConvImplicitReference
	// ConvBoxing converts a value (or type parameter) to object.
	ConvBoxing
)

func (k ConversionKind) String() string {
	switch k {
	case ConvImplicitReference:
		return "reference"
	case ConvBoxing:
		return "box"
	default:
		return "identity"
	}
}

// Conversion converts X to T.
type Conversion struct {
	X    Expr
	T    Type
	Kind ConversionKind
}

// BinaryOp is a binary operator.
type BinaryOp uint8

const (
	// ObjectEqual is reference equality.
	ObjectEqual BinaryOp = iota
	// ObjectNotEqual is reference inequality.
	ObjectNotEqual
)

func (op BinaryOp) String() string {
	if op == ObjectNotEqual {
		return "!="
	}
	return "=="
}

// Binary is a binary operation.
type Binary struct {
	Op BinaryOp
	X  Expr
	Y  Expr
	T  Type
}

// Assign stores Right into Left and yields the stored value.
type Assign struct {
	Left  Expr
	Right Expr
}

// AddressOf passes X by reference to a ref, out or in parameter.
type AddressOf struct {
	X Expr
}

func (*Literal) node()     {}
func (*This) node()        {}
func (*ParamRef) node()    {}
func (*LocalRef) node()    {}
func (*FieldRef) node()    {}
func (*PropertyRef) node() {}
func (*Call) node()        {}
func (*New) node()         {}
func (*Conversion) node()  {}
func (*Binary) node()      {}
func (*Assign) node()      {}
func (*AddressOf) node()   {}

func (*Literal) expr()     {}
func (*This) expr()        {}
func (*ParamRef) expr()    {}
func (*LocalRef) expr()    {}
func (*FieldRef) expr()    {}
func (*PropertyRef) expr() {}
func (*Call) expr()        {}
func (*New) expr()         {}
func (*Conversion) expr()  {}
func (*Binary) expr()      {}
func (*Assign) expr()      {}
func (*AddressOf) expr()   {}

func (e *Literal) Type() Type     { return e.T }
func (e *This) Type() Type        { return e.T }
func (e *ParamRef) Type() Type    { return e.Param.Type.Type }
func (e *LocalRef) Type() Type    { return e.Local.Type }
func (e *FieldRef) Type() Type    { return e.Field.Type.Type }
func (e *PropertyRef) Type() Type { return e.Property.Type.Type }
func (e *Call) Type() Type        { return e.Method.Return.Type }
func (e *New) Type() Type         { return e.Ctor.Container }
func (e *Conversion) Type() Type  { return e.T }
func (e *Binary) Type() Type      { return e.T }
func (e *Assign) Type() Type      { return e.Left.Type() }
func (e *AddressOf) Type() Type   { return e.X.Type() }

// IsNullLiteral returns true iff e is the null literal, with or without the null-forgiving
// operator.
func IsNullLiteral(e Expr) bool {
	lit, ok := e.(*Literal)
	return ok && lit.Value == nil
}
