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

package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/nilguard/ir"
)

func TestKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "input", Input.String())
	require.Equal(t, "yield", ReturnYield.String())
	require.Equal(t, "unknown", Kind(42).String())
	require.False(t, Input.IsReturn())
	require.False(t, Output.IsReturn())
	require.True(t, ReturnOrdinary.IsReturn())
	require.True(t, ReturnYield.IsReturn())
}

func TestSite(t *testing.T) {
	t.Parallel()

	str := &ir.NamedType{Namespace: "System", Name: "String"}
	tp := &ir.TypeParam{Name: "T"}
	s := &ir.Param{Name: "s", Type: ir.TypeWithAnnotations{Type: str}}

	in := Site{Kind: Input, Param: s, Decl: s, Type: str}
	require.Equal(t, "s", in.Name())
	require.Equal(t, "input(s)", in.String())

	ret := Site{Kind: ReturnOrdinary, Type: tp}
	require.Empty(t, ret.Name())
	require.Equal(t, "return", ret.String())
	require.Same(t, tp, ret.Type)
}

func TestPlan(t *testing.T) {
	t.Parallel()

	var nilPlan *Plan
	require.True(t, nilPlan.Empty())
	require.False(t, nilPlan.HasPostconditions())
	require.Equal(t, "none", nilPlan.String())
	require.True(t, (&Plan{}).Empty())

	a := &ir.Param{Name: "a"}
	o := &ir.Param{Name: "o", RefKind: ir.RefOut}
	p := &Plan{
		Inputs:  []Site{{Kind: Input, Param: a, Decl: a}},
		Outputs: []Site{{Kind: Output, Param: o, Decl: o}},
		Return:  &Site{Kind: ReturnYield},
	}
	require.False(t, p.Empty())
	require.True(t, p.HasPostconditions())
	require.Equal(t, "input(a) output(o) yield", p.String())

	pre := &Plan{Inputs: p.Inputs}
	require.False(t, pre.Empty())
	require.False(t, pre.HasPostconditions())
}
