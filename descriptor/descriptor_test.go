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

package descriptor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilguard/ir"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	str := Signature{Code: SigTypeHandle, Special: ir.SpecialString}
	void := Signature{Code: SigTypeHandle, Special: ir.SpecialVoid}

	tests := []struct {
		id   MemberID
		want *Member
	}{
		{ArgumentNullExceptionCtor, &Member{
			ID: ArgumentNullExceptionCtor, Name: ".ctor", Flags: FlagConstructor,
			DeclaringType: ArgumentNullException, Return: void, Params: []Signature{str},
		}},
		{ArgumentExceptionCtor, &Member{
			ID: ArgumentExceptionCtor, Name: ".ctor", Flags: FlagConstructor,
			DeclaringType: ArgumentException, Return: void, Params: []Signature{str, str},
		}},
		{InvalidOperationExceptionCtor, &Member{
			ID: InvalidOperationExceptionCtor, Name: ".ctor", Flags: FlagConstructor,
			DeclaringType: InvalidOperationException, Return: void, Params: []Signature{str},
		}},
	}
	require.Len(t, tests, int(MemberCount), "every member must be covered")
	for _, tt := range tests {
		got := Describe(tt.id)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Describe(%d) mismatch (-want +got):\n%s", tt.id, diff)
		}
		require.True(t, got.IsConstructor())
		require.False(t, got.IsStatic())
	}
	require.Equal(t, "System.ArgumentException..ctor", Describe(ArgumentExceptionCtor).String())
}

func TestDescribeOutOfRange(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { Describe(MemberCount) })
	require.Panics(t, func() { _ = TypeCount.MetadataName() })
}

func TestTypeMetadataNames(t *testing.T) {
	t.Parallel()

	for id := TypeID(0); id < TypeCount; id++ {
		require.NotEmpty(t, id.MetadataName(), "type %d has no metadata name", id)
	}
	require.Equal(t, "JetBrains.Annotations.NotNullAttribute", NotNullAttribute.MetadataName())
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	ok := []byte{byte(FlagConstructor), 0, 0, 0, byte(SigTypeHandle), byte(ir.SpecialVoid)}

	tests := []struct {
		name    string
		blob    []byte
		names   []string
		wantErr string
	}{
		{"Valid", ok, []string{".ctor"}, ""},
		{"Truncated", ok[:5], []string{".ctor"}, "unexpected end of table"},
		{"Trailing", append(append([]byte{}, ok...), 0), []string{".ctor"}, "trailing bytes"},
		{"MissingEntry", ok, []string{".ctor", ".ctor"}, "unexpected end of table"},
		{"BadDeclaringType", []byte{0, byte(TypeCount), 0, 0, byte(SigTypeHandle), byte(ir.SpecialVoid)}, []string{"M"}, "declaring type"},
		{"BadSignatureCode", []byte{0, 0, 0, 0, 0x01, byte(ir.SpecialVoid)}, []string{"M"}, "signature code"},
		{"BadSpecialType", []byte{0, 0, 0, 0, byte(SigTypeHandle), byte(ir.SpecialTypeCount)}, []string{"M"}, "special type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			members, err := decode(tt.blob, tt.names)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.Len(t, members, len(tt.names))
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
