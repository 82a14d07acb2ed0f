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

// Package passhelper provides helpers for running compiler passes over individual methods.
package passhelper

import (
	"fmt"
	"runtime/debug"
)

// Result is the result of a pass over one unit, where the actual result is accompanied by an
// optional error.
type Result[T any] struct {
	// Res is the actual result of the pass.
	Res T
	// Err is the optional error of the pass.
	Err error
}

// Run runs the pass f over the unit called name and:
// (1) puts its result and error in a Result[T] so that the caller decides whether a failed unit
// stops the compilation;
// (2) recovers from a panic and converts it to an error with stack traces for easier debugging.
// This ensures a bug in a pass over one method never crashes the whole compilation.
// Errors are prefixed with the unit name to make it easier to identify their source.
func Run[T any](name string, f func() (T, error)) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("INTERNAL PANIC from %q: %s\n%s", name, r, string(debug.Stack()))
		}
	}()

	r, err := f()
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
	}
	return Result[T]{Res: r, Err: err}
}
