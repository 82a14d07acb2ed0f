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

// Package orderedset implements a set that remembers insertion order, so that iteration over it
// is deterministic.
package orderedset

// OrderedSet is a set of comparable elements iterated in insertion order. It is not safe for
// concurrent mutation.
type OrderedSet[T comparable] struct {
	index map[T]struct{}
	elems []T
}

// New returns an empty set containing elems.
func New[T comparable](elems ...T) *OrderedSet[T] {
	s := &OrderedSet[T]{index: make(map[T]struct{}, len(elems))}
	for _, e := range elems {
		s.Add(e)
	}
	return s
}

// Add inserts e and returns true iff it was not already present.
func (s *OrderedSet[T]) Add(e T) bool {
	if _, ok := s.index[e]; ok {
		return false
	}
	s.index[e] = struct{}{}
	s.elems = append(s.elems, e)
	return true
}

// Has returns true iff e is in the set. A nil set contains nothing.
func (s *OrderedSet[T]) Has(e T) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[e]
	return ok
}

// Len returns the number of elements.
func (s *OrderedSet[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.elems)
}

// OrderedRange calls f for each element in insertion order until f returns false.
func (s *OrderedSet[T]) OrderedRange(f func(e T) bool) {
	if s == nil {
		return
	}
	for _, e := range s.elems {
		if !f(e) {
			return
		}
	}
}

// Elems returns a copy of the elements in insertion order.
func (s *OrderedSet[T]) Elems() []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s.elems...)
}
