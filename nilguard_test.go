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

package nilguard

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilguard/annotation"
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/diagnostic"
	"go.uber.org/nilguard/interp"
	"go.uber.org/nilguard/irtext"
	"go.uber.org/nilguard/nilguardtest"
	"go.uber.org/nilguard/suppression"
	"go.uber.org/nilguard/symcache"
)

var _update = flag.Bool("update", false, "rewrite the expected output of the golden archives")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGoldens(t *testing.T) {
	t.Parallel()

	cases, err := nilguardtest.ReadCases(filepath.Join("testdata", "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, cases)
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			t.Parallel()

			out, err := Compile(context.Background(), nilguardtest.ModuleFile, c.Module, c.Options)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, out.Result.Print(&buf))
			got := buf.String()
			if *_update {
				require.NoError(t, c.Update(got))
				return
			}
			if diff := cmp.Diff(c.Want, got); diff != "" {
				t.Errorf("%s: output mismatch (-want +got):\n%s", c.Path, diff)
			}
		})
	}
}

func TestExpectedPlans(t *testing.T) {
	t.Parallel()

	path := filepath.Join("testdata", "plans.yaml")
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := nilguardtest.FindExpectedPlans(src, "want:")
	require.NoError(t, err)
	require.NotEmpty(t, want)

	mod, err := irtext.Load(token.NewFileSet(), path, src)
	require.NoError(t, err)
	eval := annotation.NewEvaluator(symcache.New(mod.Closure), suppression.Collect(mod.Assembly.Types))
	got := make(map[string]string, len(want))
	for name := range want {
		m := mod.Method(name)
		require.NotNil(t, m, "no method %s", name)
		got[name] = eval.Plan(m).String()
	}
	require.Equal(t, want, got)
}

const _chain = `references: [JetBrains.Annotations]
types:
  - name: A
    methods:
      - name: Put
        params:
          - {name: s, type: string%s}
        body:
          - return
  - name: B
    base: A
    methods:
      - {name: Put, override: true, params: [string s], body: [return]}
  - name: C
    base: B
    methods:
      - {name: Put, override: true, params: [string s], body: [return]}
`

func TestMarkerInheritedAlongOverrideChain(t *testing.T) {
	t.Parallel()

	changed := func(attrs string) []string {
		out, err := Compile(context.Background(), "chain.yaml", []byte(fmt.Sprintf(_chain, attrs)), config.Options{Mode: config.PreconditionsOnly})
		require.NoError(t, err)
		var names []string
		for _, m := range out.Result.Changed() {
			names = append(names, m.FullName())
		}
		return names
	}
	require.Equal(t, []string{"A.Put", "B.Put", "C.Put"}, changed(", attributes: [NotNull]"))
	require.Empty(t, changed(""))
}

const _indexer = `references: [JetBrains.Annotations]
types:
  - name: B
    abstract: true
    properties:
      - name: Item
        type: int
        extern: true
        params:
          - {name: s, type: string, attributes: [NotNull]}
        get: []
  - name: D
    base: B
    ctors:
      - body: []
    properties:
      - name: Item
        type: int
        override: true
        params: [string s]
        get: [{return: 1}]
  - name: Program
    static: true
    methods:
      - name: Lookup
        params: [string key]
        returns: int
        body:
          - local: B b = new(D)
          - return: b.get_Item(key)
`

func TestIndexerMarkerInheritedFromBase(t *testing.T) {
	t.Parallel()

	out, err := Compile(context.Background(), "indexer.yaml", []byte(_indexer), config.Options{Mode: config.Enable})
	require.NoError(t, err)
	var names []string
	for _, m := range out.Result.Changed() {
		names = append(names, m.FullName())
	}
	require.Equal(t, []string{"D.get_Item"}, names)

	_, err = out.Invoke("Program.Lookup", io.Discard, nil)
	var ex *interp.Exception
	require.ErrorAs(t, err, &ex)
	require.Equal(t, "System.ArgumentNullException", ex.Type.FullName())
	require.Equal(t, "s", ex.ParamName)

	v, err := out.Invoke("Program.Lookup", io.Discard, "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

const _generic = `references: [JetBrains.Annotations]
types:
  - name: G
    static: true
    methods:
      - name: Any
        typeParams: [T]
        params:
          - {name: t, type: T, attributes: [NotNull]}
        body:
          - Console.WriteLine(t)
`

func TestTypeParameterGuard(t *testing.T) {
	t.Parallel()

	out, err := Compile(context.Background(), "generic.yaml", []byte(_generic), config.Options{Mode: config.Enable})
	require.NoError(t, err)

	var console bytes.Buffer
	_, err = out.Invoke("G.Any", &console, nil)
	var ex *interp.Exception
	require.ErrorAs(t, err, &ex)
	require.Equal(t, "System.ArgumentNullException", ex.Type.FullName())
	require.Equal(t, "t", ex.ParamName)
	require.Empty(t, console.String())

	_, err = out.Invoke("G.Any", &console, int64(5))
	require.NoError(t, err)
	require.Equal(t, "5\n", console.String())
}

func TestRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "generic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(_generic), 0o644))
	out, err := Run(context.Background(), path, config.Options{Mode: config.Enable})
	require.NoError(t, err)
	require.Len(t, out.Result.Changed(), 1)
	require.NotNil(t, out.Result.Image)

	_, err = Run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), config.DefaultOptions())
	require.ErrorContains(t, err, "read module description")

	_, err = Compile(context.Background(), "bad.yaml", []byte("types: [{name: C, kind: union}]\n"), config.DefaultOptions())
	require.ErrorContains(t, err, `unknown type kind "union"`)

	_, err = out.Invoke("G.Missing", nil)
	require.ErrorContains(t, err, `no method "G.Missing"`)
}

func TestPrettyPrint(t *testing.T) {
	t.Parallel()

	d := diagnostic.MissingMember("System.ArgumentNullException", ".ctor")
	require.Equal(t,
		"\x1b[31merror\x1b[0m \x1b[1mNG0656\x1b[0m: Missing compiler required member \x1b[95m'System.ArgumentNullException..ctor'\x1b[0m",
		PrettyPrint(d, nil))

	fset := token.NewFileSet()
	f := fset.AddFile("m.yaml", -1, 30)
	f.SetLines([]int{0, 10, 20})
	w := diagnostic.Internal("C.M", f.Pos(12), fmt.Errorf("boom"))
	require.Equal(t,
		"\x1b[36mm.yaml:2:3\x1b[0m: \x1b[33mwarning\x1b[0m \x1b[1mNG9000\x1b[0m: Internal error while inserting runtime checks into \x1b[95m'C.M'\x1b[0m: boom",
		PrettyPrint(w, fset))
}
