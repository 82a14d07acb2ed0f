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

package refs

import (
	"go.uber.org/nilguard/ir"
)

const (
	// CoreLibraryName is the name of the core library assembly.
	CoreLibraryName = "System.Runtime"
	// AnnotationsLibraryName is the name of the assembly declaring the secondary not-null marker.
	AnnotationsLibraryName = "JetBrains.Annotations"
)

type assemblyBuilder struct {
	asm *Assembly
}

func (b *assemblyBuilder) add(ns, name string, kind ir.TypeKind, base *ir.NamedType) *ir.NamedType {
	t := &ir.NamedType{Namespace: ns, Name: name, Kind: kind, Base: base}
	b.asm.Types = append(b.asm.Types, t)
	return t
}

func (b *assemblyBuilder) generic(ns, name string, kind ir.TypeKind, base *ir.NamedType, wrapper ir.WrapperKind) *ir.NamedType {
	t := b.add(ns, name, kind, base)
	t.Wrapper = wrapper
	t.TypeParams = []*ir.TypeParam{{Name: "T"}}
	return t
}

// param is a (name, type) pair of an external method parameter.
type param struct {
	name string
	typ  ir.Type
}

func externMethod(container *ir.NamedType, name string, kind ir.MethodKind, static bool, ret ir.Type, params ...param) *ir.Method {
	m := &ir.Method{
		Name:      name,
		Container: container,
		Kind:      kind,
		Static:    static,
		Return:    ir.TypeWithAnnotations{Type: ret},
		Extern:    true,
	}
	for i, p := range params {
		m.Params = append(m.Params, &ir.Param{
			Name:    p.name,
			Ordinal: i,
			Type:    ir.TypeWithAnnotations{Type: p.typ},
			Owner:   m,
		})
	}
	container.Methods = append(container.Methods, m)
	return m
}

// CoreLibrary returns a freshly built core library. Its metadata carries no nullable annotations,
// so every type usage in it is oblivious.
func CoreLibrary() *Assembly {
	b := &assemblyBuilder{asm: &Assembly{Name: CoreLibraryName}}

	object := b.add("System", "Object", ir.KindClass, nil)
	object.Special = ir.SpecialObject
	valueType := b.add("System", "ValueType", ir.KindClass, object)
	valueType.Abstract = true
	void := b.add("System", "Void", ir.KindStruct, valueType)
	void.Special = ir.SpecialVoid
	str := b.add("System", "String", ir.KindClass, object)
	str.Special = ir.SpecialString
	str.Sealed = true
	i32 := b.add("System", "Int32", ir.KindStruct, valueType)
	i32.Special = ir.SpecialInt32
	boolean := b.add("System", "Boolean", ir.KindStruct, valueType)
	boolean.Special = ir.SpecialBoolean

	externMethod(object, ".ctor", ir.MethodConstructor, false, void)

	attribute := b.add("System", "Attribute", ir.KindClass, object)
	attribute.Abstract = true
	externMethod(attribute, ".ctor", ir.MethodConstructor, false, void)

	exception := b.add("System", "Exception", ir.KindClass, object)
	externMethod(exception, ".ctor", ir.MethodConstructor, false, void)
	externMethod(exception, ".ctor", ir.MethodConstructor, false, void, param{"message", str})

	argument := b.add("System", "ArgumentException", ir.KindClass, exception)
	externMethod(argument, ".ctor", ir.MethodConstructor, false, void, param{"message", str})
	externMethod(argument, ".ctor", ir.MethodConstructor, false, void, param{"message", str}, param{"paramName", str})

	argumentNull := b.add("System", "ArgumentNullException", ir.KindClass, argument)
	externMethod(argumentNull, ".ctor", ir.MethodConstructor, false, void)
	externMethod(argumentNull, ".ctor", ir.MethodConstructor, false, void, param{"paramName", str})
	externMethod(argumentNull, ".ctor", ir.MethodConstructor, false, void, param{"paramName", str}, param{"message", str})

	invalidOp := b.add("System", "InvalidOperationException", ir.KindClass, exception)
	externMethod(invalidOp, ".ctor", ir.MethodConstructor, false, void)
	externMethod(invalidOp, ".ctor", ir.MethodConstructor, false, void, param{"message", str})

	nullRef := b.add("System", "NullReferenceException", ir.KindClass, exception)
	externMethod(nullRef, ".ctor", ir.MethodConstructor, false, void)

	console := b.add("System", "Console", ir.KindClass, object)
	console.Static = true
	externMethod(console, "WriteLine", ir.MethodOrdinary, true, void, param{"value", object})

	b.generic("System.Collections.Generic", "IEnumerable", ir.KindInterface, nil, ir.WrapEnumerable)
	b.generic("System.Collections.Generic", "IEnumerator", ir.KindInterface, nil, ir.WrapEnumerator)
	b.generic("System.Collections.Generic", "IAsyncEnumerable", ir.KindInterface, nil, ir.WrapAsyncEnumerable)

	task := b.add("System.Threading.Tasks", "Task", ir.KindClass, object)
	task.Wrapper = ir.WrapTask
	b.generic("System.Threading.Tasks", "Task", ir.KindClass, task, ir.WrapTask)
	b.generic("System.Threading.Tasks", "ValueTask", ir.KindStruct, valueType, ir.WrapTask)

	return b.asm
}

// AnnotationsLibrary returns a freshly built library declaring the secondary not-null marker,
// JetBrains.Annotations.NotNullAttribute, against the given core library.
func AnnotationsLibrary(core *Assembly) *Assembly {
	b := &assemblyBuilder{asm: &Assembly{Name: AnnotationsLibraryName, References: []*Assembly{core}}}
	attr := b.add("JetBrains.Annotations", "NotNullAttribute", ir.KindClass, core.Type("System.Attribute"))
	attr.Sealed = true
	externMethod(attr, ".ctor", ir.MethodConstructor, false, core.Type("System.Void"))
	return b.asm
}
