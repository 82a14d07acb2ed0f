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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/nilguard/emit"
)

const _module = `nullable: enable
types:
  - name: Program
    static: true
    methods:
      - name: Main
        body:
          - Console.WriteLine("start")
          - Greet(Name())
      - name: Name
        returns: string?
        body:
          - return: null
      - name: Greet
        params:
          - string name
        body:
          - Console.WriteLine(name)
      - name: Answer
        returns: string
        body:
          - return: '"42"'
`

type run struct {
	code           int
	stdout, stderr string
}

func runMain(t *testing.T, args ...string) run {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := (&driver{}).main(context.Background(), args, &stdout, &stderr)
	return run{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeModule(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte(_module), 0o644))
	return path
}

func TestRunMethod(t *testing.T) {
	t.Parallel()

	path := writeModule(t)

	r := runMain(t, "-mode", "enable", "-run", "Program.Main", path)
	require.Equal(t, 1, r.code)
	require.Equal(t, "start\n", r.stdout)
	require.Contains(t, r.stderr, "System.ArgumentNullException: Value cannot be null. (Parameter 'name')")

	r = runMain(t, "-mode", "disable", "-run", "Program.Main", path)
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "start\n\n", r.stdout)

	r = runMain(t, "-mode", "enable", "-run", "Program.Answer", path)
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "42\n", r.stdout)
}

func TestPrintAndImage(t *testing.T) {
	t.Parallel()

	path := writeModule(t)
	image := filepath.Join(t.TempDir(), "out.ngim")

	r := runMain(t, "-mode", "preconditions", "-print", "-o", image, path)
	require.Equal(t, 0, r.code, r.stderr)
	require.Contains(t, r.stdout, "Program.Greet(String)\n")
	require.Contains(t, r.stdout, `ThrowHelper.ArgumentNull("name")`)
	require.Empty(t, r.stderr)

	img, err := emit.ReadFile(image)
	require.NoError(t, err)
	require.NotNil(t, img.Type("System.Runtime.CompilerServices.ThrowHelper"))
}

func TestConfigFile(t *testing.T) {
	t.Parallel()

	path := writeModule(t)
	conf := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("mode: postconditions\n"), 0o644))

	// The configuration file enables postconditions only, Greet keeps its body.
	r := runMain(t, "-config", conf, "-print", path)
	require.Equal(t, 0, r.code, r.stderr)
	require.NotContains(t, r.stdout, "Program.Greet")
	require.Contains(t, r.stdout, "Program.Answer()")

	// A flag overrides the file.
	r = runMain(t, "-config", conf, "-mode", "preconditions", "-print", path)
	require.Equal(t, 0, r.code, r.stderr)
	require.Contains(t, r.stdout, "Program.Greet(String)")
	require.NotContains(t, r.stdout, "Program.Answer")

	r = runMain(t, "-config", filepath.Join(t.TempDir(), "missing.yaml"), path)
	require.Equal(t, 2, r.code)
	require.Contains(t, r.stderr, "open configuration")
}

func TestUsageErrors(t *testing.T) {
	t.Parallel()

	r := runMain(t)
	require.Equal(t, 2, r.code)
	require.Contains(t, r.stderr, "usage: nilguard")

	r = runMain(t, "-mode", "sometimes", "m.yaml")
	require.Equal(t, 2, r.code)

	r = runMain(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "read module description")
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	r := runMain(t, "-mode", "enable", "-metrics", writeModule(t))
	require.Equal(t, 0, r.code, r.stderr)
	require.Contains(t, r.stdout, "nilguard_compilation_methods_total")
}
