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

package nilguardtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/nilguard/config"
)

func TestFindExpectedPlans(t *testing.T) {
	t.Parallel()

	src := []byte(`types:
  - name: C
    methods:
      - name: M # want: input(s) return
        params: [string s]
      - name: N # want:
      - name: O # unrelated comment
      - name: P
  - name: D
    methods:
      - name: Q # want: output(o)
`)
	got, err := FindExpectedPlans(src, "want:")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"C.M": "input(s) return",
		"C.N": "none",
		"D.Q": "output(o)",
	}, got)

	got, err = FindExpectedPlans(nil, "want:")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = FindExpectedPlans([]byte("types: [\n"), "want:")
	require.Error(t, err)
}

const _archive = `A golden case.
-- options.yaml --
mode: enable
-- module.yaml --
types: []
-- want --
old
`

func TestReadCase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "simple.txtar")
	require.NoError(t, os.WriteFile(path, []byte(_archive), 0o644))

	c, err := ReadCase(path)
	require.NoError(t, err)
	require.Equal(t, "simple", c.Name)
	require.Equal(t, config.Enable, c.Options.Mode)
	require.Equal(t, "types: []\n", string(c.Module))
	require.Equal(t, "old\n", c.Want)

	require.NoError(t, c.Update("new\n"))
	again, err := ReadCase(path)
	require.NoError(t, err)
	require.Equal(t, "new\n", again.Want)
	require.Equal(t, c.Module, again.Module)

	cases, err := ReadCases(filepath.Join(dir, "*.txtar"))
	require.NoError(t, err)
	require.Len(t, cases, 1)
}

func TestReadCaseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		archive string
		wantErr string
	}{
		{name: "NoModule", archive: "-- want --\n", wantErr: "no module.yaml"},
		{name: "UnknownFile", archive: "-- module.yaml --\n-- extra --\n", wantErr: `unexpected file "extra"`},
		{name: "BadOptions", archive: "-- module.yaml --\n-- options.yaml --\nmode: sometimes\n", wantErr: `invalid mode "sometimes"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "case.txtar")
			require.NoError(t, os.WriteFile(path, []byte(tt.archive), 0o644))
			_, err := ReadCase(path)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
