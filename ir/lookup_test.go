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
	"testing"

	"github.com/stretchr/testify/require"
)

func method(container *NamedType, name string, params ...Type) *Method {
	m := &Method{Name: name, Container: container, Return: TypeWithAnnotations{Type: voidType}}
	for i, p := range params {
		m.Params = append(m.Params, &Param{Name: "p" + string(rune('0'+i)), Ordinal: i, Type: TypeWithAnnotations{Type: p}, Owner: m})
	}
	container.Methods = append(container.Methods, m)
	return m
}

func TestAllInterfacesDiamond(t *testing.T) {
	t.Parallel()

	root := &NamedType{Name: "IRoot", Kind: KindInterface}
	left := &NamedType{Name: "ILeft", Kind: KindInterface, Interfaces: []*NamedType{root}}
	right := &NamedType{Name: "IRight", Kind: KindInterface, Interfaces: []*NamedType{root}}
	base := &NamedType{Name: "Base", Base: objectType, Interfaces: []*NamedType{left}}
	derived := &NamedType{Name: "Derived", Base: base, Interfaces: []*NamedType{right, left}}

	got := AllInterfaces(derived)
	require.Equal(t, []*NamedType{right, left, root}, got)
}

func TestImplementedInterfaceMethods(t *testing.T) {
	t.Parallel()

	iface := &NamedType{Name: "I", Kind: KindInterface}
	im := method(iface, "M", stringType)
	other := method(iface, "N", stringType)

	base := &NamedType{Name: "Base", Base: objectType, Interfaces: []*NamedType{iface}}
	baseM := method(base, "M", stringType)
	derived := &NamedType{Name: "Derived", Base: base}
	derivedM := method(derived, "M", stringType)
	derivedM.Overridden = baseM
	overload := method(derived, "M", intType)

	explicit := &NamedType{Name: "Explicit", Base: objectType, Interfaces: []*NamedType{iface}}
	explicitN := method(explicit, "I.N", stringType)
	explicitN.ExplicitImpls = []*Method{other}

	require.Equal(t, []*Method{im}, ImplementedInterfaceMethods(baseM))
	require.Equal(t, []*Method{im}, ImplementedInterfaceMethods(derivedM), "the most derived override implements the member")
	require.Empty(t, ImplementedInterfaceMethods(overload))
	require.Equal(t, []*Method{other}, ImplementedInterfaceMethods(explicitN))
	require.Same(t, explicitN, FindImplementation(explicit, iface, other))
}

func TestImplementedGenericInterfaceMethods(t *testing.T) {
	t.Parallel()

	iface := &NamedType{Name: "IConsumer", Kind: KindInterface, TypeParams: []*TypeParam{{Name: "T"}}}
	im := method(iface, "Accept", iface.TypeParams[0])

	impl := &NamedType{Name: "StringConsumer", Base: objectType}
	impl.Interfaces = []*NamedType{iface.Construct(TypeWithAnnotations{Type: stringType})}
	accept := method(impl, "Accept", stringType)
	wrong := &NamedType{Name: "IntConsumer", Base: objectType}
	wrong.Interfaces = []*NamedType{iface.Construct(TypeWithAnnotations{Type: stringType})}
	acceptInt := method(wrong, "Accept", intType)

	require.Equal(t, []*Method{im}, ImplementedInterfaceMethods(accept))
	require.Empty(t, ImplementedInterfaceMethods(acceptInt))
}

func TestOverrideChain(t *testing.T) {
	t.Parallel()

	a := &Method{Name: "M"}
	b := &Method{Name: "M", Overridden: a}
	c := &Method{Name: "M", Overridden: b}
	require.Equal(t, []*Method{c, b, a}, OverrideChain(c))

	// A malformed cycle terminates.
	a.Overridden = c
	require.Len(t, OverrideChain(c), 3)
}
