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

package passhelper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRun_Panic(t *testing.T) {
	t.Parallel()

	r := Run("App.C.M", func() (int, error) { panic("boom") })
	require.Empty(t, r.Res)
	require.ErrorContains(t, r.Err, `INTERNAL PANIC from "App.C.M": boom`)
}

func TestRun_Error(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("my error")
	r := Run("App.C.M", func() (int, error) { return 0, sentinel })
	require.Empty(t, r.Res)
	require.ErrorIs(t, r.Err, sentinel)
	require.EqualError(t, r.Err, "App.C.M: my error")
}

func TestRun_NoPanic(t *testing.T) {
	t.Parallel()

	r := Run("App.C.M", func() (int, error) { return 42, nil })
	require.NoError(t, r.Err)
	require.Equal(t, 42, r.Res)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
