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

// Package refs models the reference closure of a compilation: the source assembly, its direct
// references and their transitive references, with lookup of types by metadata name.
package refs

import (
	"go.uber.org/nilguard/ir"
)

// Assembly is a named collection of types together with the assemblies it references.
type Assembly struct {
	Name       string
	Types      []*ir.NamedType
	References []*Assembly
}

// Type returns the type of the assembly with the given metadata name, or nil.
func (a *Assembly) Type(metadataName string) *ir.NamedType {
	for _, t := range a.Types {
		if t.MetadataName() == metadataName {
			return t
		}
	}
	return nil
}

// Closure is the transitive reference closure of a source assembly.
type Closure struct {
	source *Assembly
	// order lists every assembly of the closure once, breadth first from the source.
	order   []*Assembly
	special [ir.SpecialTypeCount]*ir.NamedType
}

// NewClosure computes the closure of source.
func NewClosure(source *Assembly) *Closure {
	c := &Closure{source: source}
	seen := map[*Assembly]bool{source: true}
	queue := []*Assembly{source}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		c.order = append(c.order, a)
		for _, r := range a.References {
			if !seen[r] {
				seen[r] = true
				queue = append(queue, r)
			}
		}
	}
	for _, a := range c.order {
		for _, t := range a.Types {
			if t.Special != ir.SpecialNone && c.special[t.Special] == nil {
				c.special[t.Special] = t
			}
		}
	}
	return c
}

// Source returns the source assembly.
func (c *Closure) Source() *Assembly { return c.source }

// Assemblies returns every assembly of the closure, source first.
func (c *Closure) Assemblies() []*Assembly { return c.order }

// LookupType returns the first type with the given metadata name found in the closure, searching
// the source assembly first and then its references breadth first. It returns nil if no assembly
// declares the type.
func (c *Closure) LookupType(metadataName string) *ir.NamedType {
	for _, a := range c.order {
		if t := a.Type(metadataName); t != nil {
			return t
		}
	}
	return nil
}

// SpecialType returns the core library type identified by s, or nil when the closure has no core
// library.
func (c *Closure) SpecialType(s ir.SpecialType) *ir.NamedType {
	if s == ir.SpecialNone || s >= ir.SpecialTypeCount {
		return nil
	}
	return c.special[s]
}

// Without returns a copy of a with the types named by metadataNames removed. It is used to model
// incomplete reference sets.
func (a *Assembly) Without(metadataNames ...string) *Assembly {
	drop := make(map[string]bool, len(metadataNames))
	for _, n := range metadataNames {
		drop[n] = true
	}
	out := &Assembly{Name: a.Name, References: a.References}
	for _, t := range a.Types {
		if !drop[t.MetadataName()] {
			out.Types = append(out.Types, t)
		}
	}
	return out
}
