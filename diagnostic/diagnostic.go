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

// Package diagnostic hosts the structured diagnostics the runtime check synthesis reports, and
// the bag that collects them across concurrently lowered methods.
package diagnostic

import (
	"cmp"
	"fmt"
	"go/token"
	"slices"
	"strings"
	"sync"
)

// Severity is the severity of a diagnostic.
type Severity uint8

const (
	// Warning does not block emission.
	Warning Severity = iota
	// Error blocks emission of the output module.
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Code identifies a diagnostic.
type Code string

const (
	// MissingPredefinedMember reports a runtime member the synthesized code needs but the
	// reference closure does not declare. Args: declaring type metadata name, member name.
	MissingPredefinedMember Code = "NG0656"
	// InternalError reports a method whose rewrite failed. The method body is left untouched.
	// Args: method name, cause.
	InternalError Code = "NG9000"
)

var _formats = map[Code]string{
	MissingPredefinedMember: "Missing compiler required member '%s.%s'",
	InternalError:           "Internal error while inserting runtime checks into '%s': %s",
}

// Diagnostic is a structured diagnostic. Pos is token.NoPos for diagnostics that are not tied to
// a source location.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Args     []string
	Pos      token.Pos
}

// MissingMember returns the diagnostic for a missing predefined member. It has no location: the
// member is missing independently of any source position that happens to need it.
func MissingMember(declaringType, member string) Diagnostic {
	return Diagnostic{Code: MissingPredefinedMember, Severity: Error, Args: []string{declaringType, member}}
}

// Internal returns the warning for a method whose rewrite failed with err.
func Internal(method string, pos token.Pos, err error) Diagnostic {
	return Diagnostic{Code: InternalError, Severity: Warning, Args: []string{method, err.Error()}, Pos: pos}
}

// Message returns the formatted message of the diagnostic.
func (d Diagnostic) Message() string {
	format, ok := _formats[d.Code]
	if !ok {
		return strings.Join(d.Args, ", ")
	}
	args := make([]any, len(d.Args))
	for i, a := range d.Args {
		args[i] = a
	}
	return fmt.Sprintf(format, args...)
}

// Format renders the diagnostic in the usual compiler form, prefixed by its position when it has
// one.
func (d Diagnostic) Format(fset *token.FileSet) string {
	msg := fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message())
	if d.Pos.IsValid() && fset != nil {
		return fset.Position(d.Pos).String() + ": " + msg
	}
	return msg
}

// Bag collects diagnostics. It is safe for concurrent use.
type Bag struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Add appends d to the bag.
func (b *Bag) Add(d Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.diags = append(b.diags, d)
}

// Len returns the number of diagnostics in the bag.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.diags)
}

// HasErrors returns true iff the bag holds at least one error.
func (b *Bag) HasErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.ContainsFunc(b.diags, func(d Diagnostic) bool { return d.Severity == Error })
}

// Sorted returns a copy of the diagnostics in a deterministic order: diagnostics without a
// location first, then by position, code and message. Methods are lowered concurrently, so the
// insertion order carries no meaning.
func (b *Bag) Sorted(fset *token.FileSet) []Diagnostic {
	b.mu.Lock()
	diags := slices.Clone(b.diags)
	b.mu.Unlock()

	position := func(p token.Pos) token.Position {
		if fset == nil || !p.IsValid() {
			return token.Position{}
		}
		return fset.Position(p)
	}
	slices.SortStableFunc(diags, func(x, y Diagnostic) int {
		if c := cmp.Compare(boolInt(x.Pos.IsValid()), boolInt(y.Pos.IsValid())); c != 0 {
			return c
		}
		px, py := position(x.Pos), position(y.Pos)
		if c := cmp.Compare(px.Filename, py.Filename); c != 0 {
			return c
		}
		if c := cmp.Compare(px.Offset, py.Offset); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Code, y.Code); c != 0 {
			return c
		}
		return cmp.Compare(x.Message(), y.Message())
	})
	return diags
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
