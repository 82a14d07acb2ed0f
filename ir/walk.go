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

import "fmt"

// Inspect traverses the tree rooted at n in depth-first order, in the manner of ast.Inspect: it
// calls f(n) and, if f returns true, recurses into each non-nil child of n.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *StatementList:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *ExprStmt:
		Inspect(n.X, f)
	case *Return:
		if n.X != nil {
			Inspect(n.X, f)
		}
	case *YieldReturn:
		Inspect(n.X, f)
	case *If:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *Throw:
		Inspect(n.X, f)
	case *SequencePoint:
		if n.Stmt != nil {
			Inspect(n.Stmt, f)
		}
	case *FieldRef:
		if n.Receiver != nil {
			Inspect(n.Receiver, f)
		}
	case *PropertyRef:
		if n.Receiver != nil {
			Inspect(n.Receiver, f)
		}
	case *Call:
		if n.Receiver != nil {
			Inspect(n.Receiver, f)
		}
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *New:
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *Conversion:
		Inspect(n.X, f)
	case *Binary:
		Inspect(n.X, f)
		Inspect(n.Y, f)
	case *Assign:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *AddressOf:
		Inspect(n.X, f)
	case *YieldBreak, *Literal, *This, *ParamRef, *LocalRef:
	default:
		panic(fmt.Sprintf("ir.Inspect: unexpected node type %T", n))
	}
}

// CanFallThrough reports whether control can reach the end of s without leaving through a return,
// a yield break or a throw. The answer is conservative: any conditional is assumed to be able to
// take either branch.
func CanFallThrough(s Stmt) bool {
	switch s := s.(type) {
	case nil:
		return true
	case *Return, *YieldBreak, *Throw:
		return false
	case *Block:
		return listFallsThrough(s.Stmts)
	case *StatementList:
		return listFallsThrough(s.Stmts)
	case *SequencePoint:
		return CanFallThrough(s.Stmt)
	case *If:
		if s.Else == nil {
			return true
		}
		return CanFallThrough(s.Then) || CanFallThrough(s.Else)
	default:
		return true
	}
}

func listFallsThrough(stmts []Stmt) bool {
	for _, s := range stmts {
		if !CanFallThrough(s) {
			return false
		}
	}
	return true
}
