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

package refs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilguard/ir"
)

func TestClosureTransitiveLookup(t *testing.T) {
	t.Parallel()

	core := CoreLibrary()
	annotations := AnnotationsLibrary(core)
	// The source assembly references only the annotations library; the core library is reachable
	// transitively.
	src := &Assembly{Name: "App", References: []*Assembly{annotations}}
	c := NewClosure(src)

	require.Equal(t, []*Assembly{src, annotations, core}, c.Assemblies())
	require.NotNil(t, c.LookupType("System.ArgumentNullException"))
	require.NotNil(t, c.LookupType("JetBrains.Annotations.NotNullAttribute"))
	require.NotNil(t, c.LookupType("System.Collections.Generic.IEnumerable`1"))
	require.Nil(t, c.LookupType("System.Collections.Generic.IEnumerable"))
	require.Nil(t, c.LookupType("System.DoesNotExist"))

	require.Equal(t, "String", c.SpecialType(ir.SpecialString).Name)
	require.Nil(t, c.SpecialType(ir.SpecialNone))
}

func TestClosureSourceShadowsReferences(t *testing.T) {
	t.Parallel()

	core := CoreLibrary()
	own := &ir.NamedType{Namespace: "System", Name: "ArgumentNullException"}
	src := &Assembly{Name: "App", Types: []*ir.NamedType{own}, References: []*Assembly{core}}
	require.Same(t, own, NewClosure(src).LookupType("System.ArgumentNullException"))
}

func TestClosureCycle(t *testing.T) {
	t.Parallel()

	a := &Assembly{Name: "A"}
	b := &Assembly{Name: "B", References: []*Assembly{a}}
	a.References = []*Assembly{b}
	require.Len(t, NewClosure(a).Assemblies(), 2)
}

func TestWithout(t *testing.T) {
	t.Parallel()

	core := CoreLibrary()
	trimmed := core.Without("System.ArgumentNullException")
	require.Nil(t, NewClosure(trimmed).LookupType("System.ArgumentNullException"))
	require.NotNil(t, NewClosure(core).LookupType("System.ArgumentNullException"))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
