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

// AllInterfaces returns every interface t implements, directly, through its base types, or
// through other interfaces, each exactly once and in a deterministic breadth-first order.
func AllInterfaces(t *NamedType) []*NamedType {
	var (
		result []*NamedType
		seen   = make(map[*NamedType]bool)
		queue  []*NamedType
	)
	visited := make(map[*NamedType]bool)
	for cur := t; cur != nil && !visited[cur]; cur = cur.Origin().Base {
		visited[cur] = true
		queue = append(queue, cur.Origin().Interfaces...)
	}
	for len(queue) > 0 {
		iface := queue[0]
		queue = queue[1:]
		if seen[iface] || containsIdentical(result, iface) {
			continue
		}
		seen[iface] = true
		result = append(result, iface)
		queue = append(queue, iface.Origin().Interfaces...)
	}
	return result
}

func containsIdentical(ts []*NamedType, t *NamedType) bool {
	for _, x := range ts {
		if Identical(x, t) {
			return true
		}
	}
	return false
}

// OverrideChain returns m followed by the methods it transitively overrides, ending at the root
// declaration. A cyclic chain (only possible in malformed input) is cut at the first repeat.
func OverrideChain(m *Method) []*Method {
	var chain []*Method
	seen := make(map[*Method]bool)
	for cur := m; cur != nil && !seen[cur]; cur = cur.Overridden {
		seen[cur] = true
		chain = append(chain, cur)
	}
	return chain
}

// FindImplementation returns the method of t (or of its base types) that implements the
// interface method im declared on iface, or nil. Explicit implementations take precedence over
// implicit ones, and more derived types take precedence over their bases.
func FindImplementation(t *NamedType, iface *NamedType, im *Method) *Method {
	visited := make(map[*NamedType]bool)
	for cur := t; cur != nil && !visited[cur]; cur = cur.Origin().Base {
		visited[cur] = true
		for _, m := range cur.Origin().Methods {
			for _, e := range m.ExplicitImpls {
				if e == im {
					return m
				}
			}
		}
	}
	visited = make(map[*NamedType]bool)
	for cur := t; cur != nil && !visited[cur]; cur = cur.Origin().Base {
		visited[cur] = true
		for _, m := range cur.Origin().Methods {
			if m.Static || m.Kind == MethodConstructor || m.Name != im.Name || len(m.ExplicitImpls) > 0 {
				continue
			}
			if SameSignature(m, im, iface) {
				return m
			}
		}
	}
	return nil
}

// ImplementedInterfaceMethods returns the interface methods m implements, explicitly or
// implicitly, across every interface of its containing type.
func ImplementedInterfaceMethods(m *Method) []*Method {
	if m.Container == nil || m.Static {
		return nil
	}
	result := append([]*Method(nil), m.ExplicitImpls...)
	for _, iface := range AllInterfaces(m.Container) {
		for _, im := range iface.Origin().Methods {
			if im.Name != m.Name || len(im.Params) != len(m.Params) {
				continue
			}
			if FindImplementation(m.Container, iface, im) == m && !containsMethod(result, im) {
				result = append(result, im)
			}
		}
	}
	return result
}

func containsMethod(ms []*Method, m *Method) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

// SameSignature reports whether m has the parameter list of the interface method im, with the
// type parameters of iface's declaration substituted by iface's type arguments. Method type
// parameters match by ordinal.
func SameSignature(m, im *Method, iface *NamedType) bool {
	if len(m.Params) != len(im.Params) || len(m.TypeParams) != len(im.TypeParams) {
		return false
	}
	for i, p := range m.Params {
		q := im.Params[i]
		if p.RefKind != q.RefKind {
			return false
		}
		if !matchType(p.Type.Type, substitute(q.Type.Type, iface)) {
			return false
		}
	}
	return true
}

func substitute(t Type, iface *NamedType) Type {
	tp, ok := t.(*TypeParam)
	if !ok || iface == nil || len(iface.TypeArgs) == 0 {
		return t
	}
	for i, decl := range iface.Origin().TypeParams {
		if decl == tp {
			return iface.TypeArgs[i].Type
		}
	}
	return t
}

func matchType(x, y Type) bool {
	if xp, ok := x.(*TypeParam); ok {
		yp, ok := y.(*TypeParam)
		return ok && (xp == yp || xp.Ordinal == yp.Ordinal)
	}
	return Identical(x, y)
}
