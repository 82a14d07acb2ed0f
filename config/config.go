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

// Package config implements the configuration surface of the runtime check synthesis: the mode
// that gates the pass and the rest of the option set of a compilation, readable from flags and
// from YAML.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Mode selects which guards are synthesized.
type Mode uint8

const (
	// Disable turns the pass off.
	Disable Mode = iota
	// PreconditionsOnly synthesizes parameter guards at method entry.
	PreconditionsOnly
	// PostconditionsOnly synthesizes output parameter and return value guards at return points.
	PostconditionsOnly
	// Enable synthesizes both, preconditions first.
	Enable
)

var _modeNames = [...]string{
	Disable:            "disable",
	PreconditionsOnly:  "preconditions",
	PostconditionsOnly: "postconditions",
	Enable:             "enable",
}

// Preconditions returns true iff the mode includes the precondition phase.
func (m Mode) Preconditions() bool { return m == PreconditionsOnly || m == Enable }

// Postconditions returns true iff the mode includes the postcondition phase.
func (m Mode) Postconditions() bool { return m == PostconditionsOnly || m == Enable }

func (m Mode) String() string {
	if int(m) < len(_modeNames) {
		return _modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if int(m) >= len(_modeNames) {
		return nil, fmt.Errorf("invalid mode %d", m)
	}
	return []byte(_modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which both flag.TextVar and the YAML
// decoder use.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode parses the name of a mode. "off" and "on" are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off":
		return Disable, nil
	case "on":
		return Enable, nil
	}
	for i, name := range _modeNames {
		if s == name {
			return Mode(i), nil
		}
	}
	return Disable, fmt.Errorf("invalid mode %q, want one of disable, preconditions, postconditions, enable", s)
}

// Options is the option set of a compilation.
type Options struct {
	// Mode gates the runtime check synthesis.
	Mode Mode `yaml:"mode"`
	// NullableContext is the ambient nullable analysis context, used for modules and types that
	// do not set their own.
	NullableContext bool `yaml:"nullable"`
	// Concurrency bounds the number of methods lowered in parallel; 0 means one per CPU.
	Concurrency int `yaml:"concurrency"`
}

// DefaultOptions returns the options of a compilation that sets nothing.
func DefaultOptions() Options {
	return Options{Mode: Disable, Concurrency: DefaultConcurrency}
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	if o.Mode > Enable {
		return fmt.Errorf("invalid mode %d", o.Mode)
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", o.Concurrency)
	}
	return nil
}

// RegisterFlags binds the options to flags of fs. Flag defaults are the current values of o.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.TextVar(&o.Mode, "mode", o.Mode, "Runtime null checks to synthesize: disable, preconditions, postconditions or enable.")
	fs.BoolVar(&o.NullableContext, "nullable", o.NullableContext, "Enable the nullable analysis context for modules that do not set one.")
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Maximum number of methods lowered in parallel, 0 for one per CPU.")
}

// Load reads options in YAML from r, on top of DefaultOptions. An empty input yields the
// defaults; unknown keys are errors.
func Load(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
