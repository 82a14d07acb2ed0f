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
	"go.uber.org/goleak"
)

var (
	objectType = &NamedType{Namespace: "System", Name: "Object", Special: SpecialObject}
	stringType = &NamedType{Namespace: "System", Name: "String", Special: SpecialString, Base: objectType, Sealed: true}
	voidType   = &NamedType{Namespace: "System", Name: "Void", Kind: KindStruct, Special: SpecialVoid}
	intType    = &NamedType{Namespace: "System", Name: "Int32", Kind: KindStruct, Special: SpecialInt32}
)

func generic(ns, name string, kind TypeKind, wrapper WrapperKind) *NamedType {
	return &NamedType{
		Namespace:  ns,
		Name:       name,
		Kind:       kind,
		Wrapper:    wrapper,
		TypeParams: []*TypeParam{{Name: "T"}},
	}
}

func TestTypeParamNotNullable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		constraint  Constraint
		enabled     bool
		wantNotNull bool
		wantKnown   bool
	}{
		{"StructOblivious", ConstraintStruct, false, true, true},
		{"NotNullOblivious", ConstraintNotNull, false, true, true},
		{"ClassEnabled", ConstraintClass, true, true, true},
		{"ClassOblivious", ConstraintClass, false, false, false},
		{"NullableClassEnabled", ConstraintNullableClass, true, false, true},
		{"UnconstrainedEnabled", ConstraintNone, true, false, true},
		{"UnconstrainedOblivious", ConstraintNone, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tp := &TypeParam{Name: "T", Constraint: tt.constraint, NullableContext: tt.enabled}
			notNull, known := tp.NotNullable()
			require.Equal(t, tt.wantNotNull, notNull)
			require.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestUnwrapResult(t *testing.T) {
	t.Parallel()

	enumerable := generic("System.Collections.Generic", "IEnumerable", KindInterface, WrapEnumerable)
	task := &NamedType{Namespace: "System.Threading.Tasks", Name: "Task", Wrapper: WrapTask}
	taskT := generic("System.Threading.Tasks", "Task", KindClass, WrapTask)
	str := TypeWithAnnotations{Type: stringType, Annotation: NotAnnotated}

	tests := []struct {
		name   string
		method *Method
		want   TypeWithAnnotations
		wantOK bool
	}{
		{
			name:   "Void",
			method: &Method{Return: TypeWithAnnotations{Type: voidType}},
		},
		{
			name:   "Ordinary",
			method: &Method{Return: str},
			want:   str,
			wantOK: true,
		},
		{
			name:   "OrdinaryWrapperTypeIsNotUnwrapped",
			method: &Method{Return: TypeWithAnnotations{Type: enumerable.Construct(str)}},
			want:   TypeWithAnnotations{Type: enumerable.Construct(str)},
			wantOK: true,
		},
		{
			name:   "Iterator",
			method: &Method{Iterator: true, Return: TypeWithAnnotations{Type: enumerable.Construct(str)}},
			want:   str,
			wantOK: true,
		},
		{
			name:   "AsyncGeneric",
			method: &Method{Async: true, Return: TypeWithAnnotations{Type: taskT.Construct(str)}},
			want:   str,
			wantOK: true,
		},
		{
			name:   "AsyncNonGeneric",
			method: &Method{Async: true, Return: TypeWithAnnotations{Type: task}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := UnwrapResult(tt.method)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.True(t, Identical(tt.want.Type, got.Type), "got %s, want %s", got, tt.want)
			require.Equal(t, tt.want.Annotation, got.Annotation)
		})
	}
}

func TestNamedTypeNames(t *testing.T) {
	t.Parallel()

	enumerable := generic("System.Collections.Generic", "IEnumerable", KindInterface, WrapEnumerable)
	require.Equal(t, "System.Collections.Generic.IEnumerable`1", enumerable.MetadataName())
	require.Equal(t, "IEnumerable<T>", enumerable.String())

	constructed := enumerable.Construct(TypeWithAnnotations{Type: stringType, Annotation: Annotated})
	require.Equal(t, "System.Collections.Generic.IEnumerable`1", constructed.MetadataName())
	require.Equal(t, "IEnumerable<String?>", constructed.String())
	require.True(t, constructed.IsInterface())
	require.False(t, constructed.IsValueType())

	require.Panics(t, func() { enumerable.Construct() })
}

func TestIdentical(t *testing.T) {
	t.Parallel()

	list := generic("System.Collections.Generic", "List", KindClass, WrapNone)
	a := list.Construct(TypeWithAnnotations{Type: stringType})
	b := list.Construct(TypeWithAnnotations{Type: stringType, Annotation: Annotated})
	c := list.Construct(TypeWithAnnotations{Type: intType})

	require.True(t, Identical(a, b), "nullability of type arguments does not affect identity")
	require.False(t, Identical(a, c))
	require.False(t, Identical(a, list))
	require.True(t, Identical(&MissingType{MetadataName: "X"}, &MissingType{MetadataName: "X"}))
	require.False(t, Identical(&MissingType{MetadataName: "X"}, stringType))
}

func TestFlowAnnotationsString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", FlowNone.String())
	require.Equal(t, "AllowNull|NotNull", (AllowNull | NotNull).String())
	require.True(t, (AllowNull | MaybeNull).Has(MaybeNull))
	require.False(t, AllowNull.Has(DisallowNull))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
