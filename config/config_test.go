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

package config

import (
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModePhases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode      Mode
		pre, post bool
	}{
		{Disable, false, false},
		{PreconditionsOnly, true, false},
		{PostconditionsOnly, false, true},
		{Enable, true, true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.pre, tt.mode.Preconditions(), tt.mode.String())
		require.Equal(t, tt.post, tt.mode.Postconditions(), tt.mode.String())
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, m := range []Mode{Disable, PreconditionsOnly, PostconditionsOnly, Enable} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		got, err := ParseMode(string(text))
		require.NoError(t, err)
		require.Equal(t, m, got)
	}

	got, err := ParseMode("on")
	require.NoError(t, err)
	require.Equal(t, Enable, got)

	_, err = ParseMode("sometimes")
	require.ErrorContains(t, err, `invalid mode "sometimes"`)

	require.Equal(t, "Mode(9)", Mode(9).String())
	_, err = Mode(9).MarshalText()
	require.Error(t, err)
}

func TestRegisterFlags(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-mode", "postconditions", "-nullable", "-concurrency", "3"}))
	require.Equal(t, Options{Mode: PostconditionsOnly, NullableContext: true, Concurrency: 3}, opts)

	require.Error(t, fs.Parse([]string{"-mode", "bogus"}))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		want    Options
		wantErr string
	}{
		{name: "Empty", src: "", want: DefaultOptions()},
		{name: "Full", src: "mode: enable\nnullable: true\nconcurrency: 2\n", want: Options{Mode: Enable, NullableContext: true, Concurrency: 2}},
		{name: "Alias", src: "mode: off\n", want: Options{Mode: Disable}},
		{name: "BadMode", src: "mode: maybe\n", wantErr: `invalid mode "maybe"`},
		{name: "UnknownKey", src: "modes: enable\n", wantErr: "field modes not found"},
		{name: "NegativeConcurrency", src: "concurrency: -1\n", wantErr: "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Load(strings.NewReader(tt.src))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
