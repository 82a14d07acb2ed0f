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

// Package nilguard runs the runtime null-check synthesis end to end: it loads a module
// description, compiles it and hands out the result, the output image and the means to execute
// the compiled methods.
package nilguard

import (
	"context"
	"fmt"
	"go/token"
	"io"
	"os"
	"regexp"

	"go.uber.org/nilguard/compilation"
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/diagnostic"
	"go.uber.org/nilguard/interp"
	"go.uber.org/nilguard/irtext"
)

// Output is a compiled module.
type Output struct {
	Module *irtext.Module
	Result *compilation.Result
}

// Run loads the module description at path and compiles it with opts.
func Run(ctx context.Context, path string, opts config.Options) (*Output, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module description: %w", err)
	}
	return Compile(ctx, path, src, opts)
}

// Compile loads the module description src, named filename in positions, and compiles it with
// opts.
func Compile(ctx context.Context, filename string, src []byte, opts config.Options) (*Output, error) {
	fset := token.NewFileSet()
	mod, err := irtext.Load(fset, filename, src, irtext.DefaultNullableContext(opts.NullableContext))
	if err != nil {
		return nil, err
	}
	c, err := compilation.New(mod.Closure, fset, opts)
	if err != nil {
		return nil, err
	}
	res, err := c.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}
	return &Output{Module: mod, Result: res}, nil
}

// Invoke executes the compiled static method name ("Type.Method") with args, writing console
// output to w. An exception thrown by the method is returned as an *interp.Exception.
func (o *Output) Invoke(name string, w io.Writer, args ...interp.Value) (interp.Value, error) {
	m := o.Module.Method(name)
	if m == nil {
		return nil, fmt.Errorf("no method %q", name)
	}
	if !m.Static {
		return nil, fmt.Errorf("method %q is not static", name)
	}
	return interp.New(o.Module.Closure, o.Result.Body, w).Call(m, nil, args...)
}

var _quotedPattern = regexp.MustCompile(`'(.*?)'`)

// PrettyPrint formats d for a terminal: the position in cyan, the severity in color, the code in
// bold and quoted names in magenta.
func PrettyPrint(d diagnostic.Diagnostic, fset *token.FileSet) string {
	color := 31 // red
	if d.Severity == diagnostic.Warning {
		color = 33 // yellow
	}
	quotedStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 95, "'${1}'") // magenta

	msg := _quotedPattern.ReplaceAllString(d.Message(), quotedStr)
	msg = fmt.Sprintf("\x1b[%dm%s\x1b[0m \x1b[1m%s\x1b[0m: %s", color, d.Severity, d.Code, msg)
	if d.Pos.IsValid() && fset != nil {
		msg = fmt.Sprintf("\x1b[36m%s\x1b[0m: %s", fset.Position(d.Pos), msg)
	}
	return msg
}
