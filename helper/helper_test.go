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

package helper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/descriptor"
	"go.uber.org/nilguard/diagnostic"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/refs"
	"go.uber.org/nilguard/symcache"
	"go.uber.org/nilguard/synth"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newBuilder(t *testing.T) (*Builder, *symcache.Cache, *diagnostic.Bag) {
	t.Helper()

	closure := refs.NewClosure(&refs.Assembly{Name: "App", References: []*refs.Assembly{refs.CoreLibrary()}})
	cache := symcache.New(closure)
	bag := &diagnostic.Bag{}
	return NewBuilder(synth.New(closure, cache), bag), cache, bag
}

func TestRoutines(t *testing.T) {
	t.Parallel()

	b, _, bag := newBuilder(t)
	require.Nil(t, b.Type())

	tests := []struct {
		routine Routine
		sig     string
		body    string
	}{
		{
			routine: ArgumentNull,
			sig:     "System.Runtime.CompilerServices.ThrowHelper.ArgumentNull(String)",
			body:    "{\n  throw new ArgumentNullException(name);\n}\n",
		},
		{
			routine: OutParameterNull,
			sig:     "System.Runtime.CompilerServices.ThrowHelper.OutParameterNull(String)",
			body:    "{\n  throw new ArgumentException(\"Output parameter value cannot be null.\", name);\n}\n",
		},
		{
			routine: NullReturn,
			sig:     "System.Runtime.CompilerServices.ThrowHelper.NullReturn()",
			body:    "{\n  throw new InvalidOperationException(\"Return value cannot be null.\");\n}\n",
		},
	}
	for _, tt := range tests {
		m, ok := b.Routine(tt.routine)
		require.True(t, ok, tt.routine.String())
		require.Equal(t, tt.sig, m.String())
		require.Equal(t, tt.body, ir.Sprint(nil, m.Body))
		require.True(t, m.Static)
		require.True(t, m.ReturnsVoid())
		require.True(t, m.Impl.Has(ir.NoInlining|ir.DebuggerHidden|ir.CompilerGenerated))
	}
	require.Zero(t, bag.Len())

	typ := b.Type()
	require.Equal(t, config.RuntimeNamespace+"."+config.HelperTypeName, typ.FullName())
	require.True(t, typ.Internal && typ.Static && typ.Sealed && typ.Abstract)
	require.Equal(t, ir.SpecialObject, typ.Base.Special)
	require.Len(t, typ.Methods, 3)
	for i, m := range typ.Methods {
		require.Same(t, typ, m.Container)
		require.Equal(t, Routine(i).String(), m.Name)
	}
}

func TestTypeListsRequestedRoutinesOnly(t *testing.T) {
	t.Parallel()

	b, _, _ := newBuilder(t)
	_, ok := b.Routine(NullReturn)
	require.True(t, ok)
	typ := b.Type()
	require.Len(t, typ.Methods, 1)
	require.Equal(t, config.NullReturnRoutine, typ.Methods[0].Name)
}

func TestMissingConstructor(t *testing.T) {
	t.Parallel()

	b, cache, bag := newBuilder(t)
	cache.ForceMemberMissing(descriptor.ArgumentNullExceptionCtor)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := b.Routine(ArgumentNull)
			assert.False(t, ok)
		}()
	}
	wg.Wait()

	// One diagnostic however many guards asked for the routine.
	diags := bag.Sorted(nil)
	require.Len(t, diags, 1)
	require.Equal(t, diagnostic.MissingPredefinedMember, diags[0].Code)
	require.Equal(t, []string{"System.ArgumentNullException", ".ctor"}, diags[0].Args)
	require.False(t, diags[0].Pos.IsValid())

	m, ok := b.Routine(ArgumentNull)
	require.False(t, ok)
	require.Equal(t, "{\n}\n", ir.Sprint(nil, m.Body))

	// The other routines do not depend on the missing constructor.
	_, ok = b.Routine(NullReturn)
	require.True(t, ok)
	require.Equal(t, 1, bag.Len())
}

func TestMissingType(t *testing.T) {
	t.Parallel()

	b, cache, bag := newBuilder(t)
	cache.ForceTypeMissing(descriptor.InvalidOperationException)
	_, ok := b.Routine(NullReturn)
	require.False(t, ok)
	require.Equal(t, []string{"System.InvalidOperationException", ".ctor"}, bag.Sorted(nil)[0].Args)
}
