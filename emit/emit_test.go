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

package emit

import (
	"bytes"
	"go/token"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/nilguard/ir"
	"go.uber.org/nilguard/irtext"
)

func buildImage(t *testing.T) *Image {
	t.Helper()

	mod, err := irtext.Load(token.NewFileSet(), "m.yaml", []byte(`nullable: enable
types:
  - name: C
    namespace: App
    methods:
      - name: M
        sequencePoints: false
        params: [string s]
        body:
          - return
      - {name: E, extern: true}
`))
	require.NoError(t, err)
	helper := &ir.NamedType{Namespace: "System.Runtime.CompilerServices", Name: "ThrowHelper", Internal: true, Static: true}
	helper.Methods = []*ir.Method{{Name: "NullReturn", Container: helper, Impl: ir.NoInlining, Body: &ir.Block{}}}
	return Build("App", mod.Fset, mod.Assembly.Types, helper, func(m *ir.Method) ir.Stmt { return m.Body })
}

func TestBuild(t *testing.T) {
	t.Parallel()

	img := buildImage(t)
	require.Len(t, img.Types, 2)

	c := img.Type("App.C")
	require.NotNil(t, c)
	require.False(t, c.Synthetic)
	require.Equal(t, "App.C.M(String)", c.Methods[0].Signature)
	require.Equal(t, "{\n  return;\n}\n", c.Methods[0].Body)
	require.Empty(t, c.Method("App.C.E()").Body)

	h := img.Type("System.Runtime.CompilerServices.ThrowHelper")
	require.True(t, h.Synthetic)
	require.Equal(t, ir.NoInlining, h.Method("System.Runtime.CompilerServices.ThrowHelper.NullReturn()").Impl)
	require.Nil(t, img.Type("Missing"))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	img := buildImage(t)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img))
	require.Equal(t, "NGIM", buf.String()[:4])

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if diff := cmp.Diff(img, got); diff != "" {
		t.Fatalf("image mismatch (-want +got):\n%s", diff)
	}

	path := filepath.Join(t.TempDir(), "out.ngim")
	require.NoError(t, WriteFile(path, img))
	fromFile, err := ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(img, fromFile))
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, buildImage(t)))
	good := buf.Bytes()

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr string
	}{
		{name: "Truncated", mutate: func(b []byte) []byte { return b[:5] }, wantErr: "bad header"},
		{name: "Magic", mutate: func(b []byte) []byte { b[0] = 'X'; return b }, wantErr: "bad header"},
		{name: "Version", mutate: func(b []byte) []byte { b[4] = Version + 1; return b }, wantErr: "unsupported version"},
		{name: "Checksum", mutate: func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }, wantErr: "checksum mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := tt.mutate(bytes.Clone(good))
			_, err := Decode(bytes.NewReader(data))
			require.ErrorIs(t, err, ErrCorrupt)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
