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

// This file hosts non-user-configurable parameters --- names the generated code and the
// generated helper type are bound to.

// RuntimeNamespace is the namespace of the runtime's own compiler services. Members declared in
// it are never guarded, and the helper type is emitted into it.
const RuntimeNamespace = "System.Runtime.CompilerServices"

// HelperTypeName is the simple name of the synthesized helper type.
const HelperTypeName = "ThrowHelper"

// Names of the throw-routines of the helper type.
const (
	ArgumentNullRoutine     = "ArgumentNull"
	OutParameterNullRoutine = "OutParameterNull"
	NullReturnRoutine       = "NullReturn"
)

// Messages of the exceptions thrown by the routines.
const (
	OutParameterNullMessage = "Output parameter value cannot be null."
	NullReturnMessage       = "Return value cannot be null."
)

// ReturnTempPrefix prefixes the names of the temporaries the rewriter stores checked return
// values in. The `$` keeps them from clashing with source locals.
const ReturnTempPrefix = "ret$"

// DefaultConcurrency is the default number of methods lowered in parallel, 0 meaning one per
// available CPU.
const DefaultConcurrency = 0
