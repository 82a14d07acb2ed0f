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

// Package suppression collects the properties whose value is deliberately initialized to null
// by their author: a constructor assigns them `null!`. Guards are not synthesized for the
// accessors of such properties.
package suppression

import (
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/util/orderedset"
)

// Set is the set of suppressed properties of one type.
type Set struct {
	props *orderedset.OrderedSet[*ir.Property]
}

// Has returns true iff p is in the set.
func (s *Set) Has(p *ir.Property) bool {
	return s != nil && s.props.Has(p)
}

// Properties returns the suppressed properties in the order their assignments were found.
func (s *Set) Properties() []*ir.Property {
	if s == nil {
		return nil
	}
	return s.props.Elems()
}

// CollectType walks every constructor body of t, and nothing else, recording the properties
// assigned a suppressed null.
func CollectType(t *ir.NamedType) *Set {
	s := &Set{props: orderedset.New[*ir.Property]()}
	for _, ctor := range t.Constructors() {
		if ctor.Body == nil {
			continue
		}
		ir.Inspect(ctor.Body, func(n ir.Node) bool {
			if a, ok := n.(*ir.Assign); ok && isSuppressedNull(a.Right) {
				if p := assignedProperty(t, a.Left); p != nil {
					s.props.Add(p)
				}
			}
			return true
		})
	}
	return s
}

// isSuppressedNull returns true for the conversion the binder wraps around `null!`.
func isSuppressedNull(e ir.Expr) bool {
	conv, ok := e.(*ir.Conversion)
	if !ok {
		return false
	}
	lit, ok := conv.X.(*ir.Literal)
	return ok && lit.Value == nil && lit.Suppressed
}

// assignedProperty returns the property written by an assignment to target, looking through
// the backing field of auto-properties.
func assignedProperty(t *ir.NamedType, target ir.Expr) *ir.Property {
	switch target := target.(type) {
	case *ir.PropertyRef:
		return target.Property
	case *ir.FieldRef:
		for _, p := range t.Origin().Properties {
			if p.BackingField != nil && p.BackingField == target.Field {
				return p
			}
		}
	}
	return nil
}

// Index holds the suppressed sets of every type of a compilation. It is built once before any
// method is rewritten and is read-only afterwards.
type Index struct {
	sets map[*ir.NamedType]*Set
}

// Collect builds the index for types.
func Collect(types []*ir.NamedType) *Index {
	idx := &Index{sets: make(map[*ir.NamedType]*Set, len(types))}
	for _, t := range types {
		idx.sets[t] = CollectType(t)
	}
	return idx
}

// Set returns the set of t, or nil when t was not collected.
func (idx *Index) Set(t *ir.NamedType) *Set {
	if idx == nil {
		return nil
	}
	return idx.sets[t]
}

// IsSuppressed returns true iff p is in the set of its containing type.
func (idx *Index) IsSuppressed(p *ir.Property) bool {
	if p == nil || p.Container == nil {
		return false
	}
	return idx.Set(p.Container.Origin()).Has(p)
}
