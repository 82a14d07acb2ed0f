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

package suppression

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/irtext"
)

const _src = `
nullable: enable
types:
  - name: C
    fields:
      - {name: plain, type: string}
    properties:
      - {name: Auto, type: string, auto: true}
      - {name: ViaProperty, type: string, auto: true}
      - {name: FromMethod, type: string, auto: true}
      - {name: NotSuppressed, type: string, auto: true}
      - {name: Static, type: string, auto: true, static: true}
    ctors:
      - body:
          - Auto = null!
          - ViaProperty = null!
          - NotSuppressed = null
          - plain = null!
      - static: true
        body:
          - Static = null!
    methods:
      - name: Reset
        body:
          - FromMethod = null!
`

func load(t *testing.T) *irtext.Module {
	t.Helper()
	m, err := irtext.Load(token.NewFileSet(), "m.yaml", []byte(_src))
	require.NoError(t, err)
	return m
}

func names(props []*ir.Property) []string {
	var out []string
	for _, p := range props {
		out = append(out, p.Name)
	}
	return out
}

func TestCollectType(t *testing.T) {
	t.Parallel()

	m := load(t)
	c := m.Type("C")
	set := CollectType(c)
	require.Equal(t, []string{"Auto", "ViaProperty", "Static"}, names(set.Properties()))
	require.True(t, set.Has(c.Property("Auto")))
	require.False(t, set.Has(c.Property("FromMethod")), "only constructor bodies are walked")
	require.False(t, set.Has(c.Property("NotSuppressed")))
}

func TestCollectTypeBackingField(t *testing.T) {
	t.Parallel()

	m := load(t)
	c := m.Type("C")
	p := c.Property("FromMethod")
	ctor := &ir.Method{Name: ".ctor", Container: c, Kind: ir.MethodConstructor}
	ctor.Body = &ir.Block{Stmts: []ir.Stmt{&ir.ExprStmt{X: &ir.Assign{
		Left:  &ir.FieldRef{Receiver: &ir.This{T: c}, Field: p.BackingField},
		Right: &ir.Conversion{X: &ir.Literal{Suppressed: true}, T: p.Type.Type, Kind: ir.ConvImplicitReference},
	}}}}
	c.Methods = append(c.Methods, ctor)

	require.True(t, CollectType(c).Has(p))
}

func TestIndex(t *testing.T) {
	t.Parallel()

	m := load(t)
	c := m.Type("C")
	idx := Collect(m.Assembly.Types)
	require.True(t, idx.IsSuppressed(c.Property("ViaProperty")))
	require.False(t, idx.IsSuppressed(c.Property("NotSuppressed")))
	require.False(t, idx.IsSuppressed(nil))
	require.False(t, idx.IsSuppressed(&ir.Property{Name: "Orphan"}))

	var empty *Index
	require.Nil(t, empty.Set(c))
	require.False(t, empty.IsSuppressed(c.Property("Auto")))
}

func TestNilSet(t *testing.T) {
	t.Parallel()

	var s *Set
	require.False(t, s.Has(&ir.Property{}))
	require.Empty(t, s.Properties())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
