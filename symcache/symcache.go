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

// Package symcache implements the compilation-scoped cache of resolved catalog symbols. Each
// ordinal of the descriptor catalog owns one slot that is written at most once with
// compare-and-swap; concurrent resolutions of the same ordinal race benignly, the first writer
// wins and the others discard their result.
package symcache

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/nilguard/descriptor"
	"go.uber.org/nilguard/ir"
)

var (
	typeResolutions   = metrics.NewCounter(`nilguard_symcache_resolutions_total{kind="type"}`)
	memberResolutions = metrics.NewCounter(`nilguard_symcache_resolutions_total{kind="member"}`)
	typeRacesLost     = metrics.NewCounter(`nilguard_symcache_races_lost_total{kind="type"}`)
	memberRacesLost   = metrics.NewCounter(`nilguard_symcache_races_lost_total{kind="member"}`)
)

// Resolver looks types up in the reference closure of a compilation. *refs.Closure implements
// it.
type Resolver interface {
	// LookupType returns the type with the given metadata name, or nil.
	LookupType(metadataName string) *ir.NamedType
}

type typeSlot struct {
	t ir.Type
}

// memberSlot caches the outcome of a member resolution; a nil method records "not found".
type memberSlot struct {
	m *ir.Method
}

// Cache memoizes catalog symbol resolution for one compilation. The zero value is not usable,
// use New.
type Cache struct {
	resolver Resolver

	types   [descriptor.TypeCount]atomic.Pointer[typeSlot]
	members [descriptor.MemberCount]atomic.Pointer[memberSlot]

	// missing holds the placeholder returned for each type that cannot be found, so that every
	// caller observes the same placeholder.
	missing [descriptor.TypeCount]*ir.MissingType

	forcedTypes   [descriptor.TypeCount]atomic.Bool
	forcedMembers [descriptor.MemberCount]atomic.Bool
}

// New returns an empty cache resolving against r.
func New(r Resolver) *Cache {
	c := &Cache{resolver: r}
	for id := descriptor.TypeID(0); id < descriptor.TypeCount; id++ {
		c.missing[id] = &ir.MissingType{MetadataName: id.MetadataName()}
	}
	return c
}

// ResolveType returns the type id, or a *ir.MissingType placeholder when the reference closure
// does not declare it. It never fails.
func (c *Cache) ResolveType(id descriptor.TypeID) ir.Type {
	if c.forcedTypes[id].Load() {
		return c.missing[id]
	}
	if s := c.types[id].Load(); s != nil {
		return s.t
	}

	typeResolutions.Inc()
	var t ir.Type = c.missing[id]
	if found := c.resolver.LookupType(id.MetadataName()); found != nil {
		t = found
	}
	if !c.types[id].CompareAndSwap(nil, &typeSlot{t: t}) {
		typeRacesLost.Inc()
	}
	return c.types[id].Load().t
}

// ResolveMember returns the member id. The second result is false when the declaring type is
// missing or declares no member matching the descriptor's signature.
func (c *Cache) ResolveMember(id descriptor.MemberID) (*ir.Method, bool) {
	if c.forcedMembers[id].Load() {
		return nil, false
	}
	desc := descriptor.Describe(id)
	if c.forcedTypes[desc.DeclaringType].Load() {
		return nil, false
	}
	if s := c.members[id].Load(); s != nil {
		return s.m, s.m != nil
	}

	memberResolutions.Inc()
	var m *ir.Method
	if t, ok := c.ResolveType(desc.DeclaringType).(*ir.NamedType); ok {
		m = findMember(t, desc)
	}
	if !c.members[id].CompareAndSwap(nil, &memberSlot{m: m}) {
		memberRacesLost.Inc()
	}
	s := c.members[id].Load()
	return s.m, s.m != nil
}

// ForceTypeMissing makes every subsequent resolution of id, and of the members it declares,
// report it as missing. It is a test hook.
func (c *Cache) ForceTypeMissing(id descriptor.TypeID) {
	c.forcedTypes[id].Store(true)
}

// ForceMemberMissing makes every subsequent resolution of id report "not found". It is a test
// hook.
func (c *Cache) ForceMemberMissing(id descriptor.MemberID) {
	c.forcedMembers[id].Store(true)
}

// findMember returns the member of t matching desc: same name, same kind, same arity and
// parameters whose types are the special types the descriptor names.
func findMember(t *ir.NamedType, desc *descriptor.Member) *ir.Method {
	for _, m := range t.Origin().Methods {
		if m.Name != desc.Name || m.Static != desc.IsStatic() {
			continue
		}
		if (m.Kind == ir.MethodConstructor) != desc.IsConstructor() {
			continue
		}
		if len(m.TypeParams) != desc.Arity || len(m.Params) != len(desc.Params) {
			continue
		}
		if !matches(m.Return.Type, desc.Return) {
			continue
		}
		ok := true
		for i, p := range m.Params {
			if p.RefKind != ir.RefNone || !matches(p.Type.Type, desc.Params[i]) {
				ok = false
				break
			}
		}
		if ok {
			return m
		}
	}
	return nil
}

func matches(t ir.Type, sig descriptor.Signature) bool {
	if t == nil {
		return sig.Special == ir.SpecialVoid
	}
	n, ok := t.(*ir.NamedType)
	return ok && n.Origin().Special == sig.Special
}
