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

// Package guard hosts the guard sites the policy evaluator produces and the rewriter consumes.
// A site lives only as long as the rewrite of the method it belongs to.
package guard

import (
	"strings"

	"go.uber.org/nilguard/ir"
)

// Kind is the kind of a guard site. The set of kinds is closed: every consumer switches over
// all of them.
type Kind uint8

const (
	// Input is a precondition on a parameter whose value flows into the method.
	Input Kind = iota
	// Output is a postcondition on an out or ref parameter, checked at every return point.
	Output
	// ReturnOrdinary is a postcondition on the value of every return statement.
	ReturnOrdinary
	// ReturnYield is a postcondition on the value of every yield return statement.
	ReturnYield
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	case ReturnOrdinary:
		return "return"
	case ReturnYield:
		return "yield"
	default:
		return "unknown"
	}
}

// IsReturn returns true for the two return kinds.
func (k Kind) IsReturn() bool { return k == ReturnOrdinary || k == ReturnYield }

// Site is one guard to synthesize.
type Site struct {
	Kind Kind
	// Param is the parameter of the rewritten method. It is nil for return sites.
	Param *ir.Param
	// Decl is the parameter the decision was made on: the declaration parameter of a converted
	// lambda or local function, the indexer parameter of an indexer accessor, or Param itself.
	Decl *ir.Param
	// Type is the checked type: the parameter type, or the unwrapped result type.
	Type ir.Type
	// Span is the source span a precondition is attributed to. It is invalid when the site has
	// no syntax.
	Span ir.Span
}

// Name returns the name reported by the thrown exception, empty for return sites.
func (s Site) Name() string {
	if s.Param == nil {
		return ""
	}
	return s.Param.Name
}

func (s Site) String() string {
	if s.Kind.IsReturn() {
		return s.Kind.String()
	}
	return s.Kind.String() + "(" + s.Name() + ")"
}

// Plan is the set of guard sites of one method.
type Plan struct {
	// Inputs are the precondition sites, in parameter order.
	Inputs []Site
	// Outputs are the out and ref parameter sites, in parameter order.
	Outputs []Site
	// Return is the return value site, nil when the return value needs no guard.
	Return *Site
}

// Empty returns true iff no guard is needed at all, in which case the method is left alone.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Inputs) == 0 && !p.HasPostconditions()
}

// HasPostconditions returns true iff some output parameter or the return value needs a guard.
func (p *Plan) HasPostconditions() bool {
	return p != nil && (len(p.Outputs) > 0 || p.Return != nil)
}

func (p *Plan) String() string {
	if p.Empty() {
		return "none"
	}
	var parts []string
	for _, s := range p.Inputs {
		parts = append(parts, s.String())
	}
	for _, s := range p.Outputs {
		parts = append(parts, s.String())
	}
	if p.Return != nil {
		parts = append(parts, p.Return.String())
	}
	return strings.Join(parts, " ")
}
