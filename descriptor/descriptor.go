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

// Package descriptor hosts the fixed catalog of external runtime types and members that
// synthesized guard code refers to. Members are described by a byte-packed table decoded once at
// package initialization; ordinals of the TypeID and MemberID enums index into it.
package descriptor

import (
	"fmt"

	"go.uber.org/nilguard/ir"
)

// TypeID identifies an external type of the catalog.
type TypeID uint8

const (
	// ArgumentNullException is System.ArgumentNullException.
	ArgumentNullException TypeID = iota
	// ArgumentException is System.ArgumentException.
	ArgumentException
	// InvalidOperationException is System.InvalidOperationException.
	InvalidOperationException
	// NotNullAttribute is the secondary not-null marker, JetBrains.Annotations.NotNullAttribute.
	NotNullAttribute

	// TypeCount is the number of catalog types, it must stay last.
	TypeCount
)

var _typeMetadataNames = [TypeCount]string{
	ArgumentNullException:     "System.ArgumentNullException",
	ArgumentException:         "System.ArgumentException",
	InvalidOperationException: "System.InvalidOperationException",
	NotNullAttribute:          "JetBrains.Annotations.NotNullAttribute",
}

// MetadataName returns the namespace-qualified metadata name of the type.
func (id TypeID) MetadataName() string {
	if id >= TypeCount {
		panic(fmt.Sprintf("descriptor: type id %d out of range", id))
	}
	return _typeMetadataNames[id]
}

func (id TypeID) String() string { return id.MetadataName() }

// MemberID identifies an external member of the catalog.
type MemberID uint8

const (
	// ArgumentNullExceptionCtor is ArgumentNullException(string paramName).
	ArgumentNullExceptionCtor MemberID = iota
	// ArgumentExceptionCtor is ArgumentException(string message, string paramName).
	ArgumentExceptionCtor
	// InvalidOperationExceptionCtor is InvalidOperationException(string message).
	InvalidOperationExceptionCtor

	// MemberCount is the number of catalog members, it must stay last.
	MemberCount
)

// Flags describe the kind of a member.
type Flags uint8

const (
	// FlagConstructor marks an instance constructor.
	FlagConstructor Flags = 1 << iota
	// FlagStatic marks a static member.
	FlagStatic
)

// SignatureCode is the shape of a type in a member signature.
type SignatureCode uint8

const (
	// SigTypeHandle is a type identified by its special type code.
	SigTypeHandle SignatureCode = 0x40
)

// Signature is one type of a member signature.
type Signature struct {
	Code    SignatureCode
	Special ir.SpecialType
}

// Member is the decoded description of a catalog member.
type Member struct {
	ID            MemberID
	Name          string
	Flags         Flags
	DeclaringType TypeID
	Arity         int
	Return        Signature
	Params        []Signature
}

// IsConstructor returns true iff the member is a constructor.
func (m *Member) IsConstructor() bool { return m.Flags&FlagConstructor != 0 }

// IsStatic returns true iff the member is static.
func (m *Member) IsStatic() bool { return m.Flags&FlagStatic != 0 }

func (m *Member) String() string {
	return fmt.Sprintf("%s.%s", m.DeclaringType.MetadataName(), m.Name)
}

var _memberNames = [MemberCount]string{
	ArgumentNullExceptionCtor:     ".ctor",
	ArgumentExceptionCtor:         ".ctor",
	InvalidOperationExceptionCtor: ".ctor",
}

// _memberBlob describes each member as: flags, declaring type, generic arity, parameter count,
// then a (signature code, special type) pair for the return type and for each parameter.
var _memberBlob = []byte{
	// ArgumentNullExceptionCtor
	byte(FlagConstructor),
	byte(ArgumentNullException),
	0,
	1,
	byte(SigTypeHandle), byte(ir.SpecialVoid),
	byte(SigTypeHandle), byte(ir.SpecialString),

	// ArgumentExceptionCtor
	byte(FlagConstructor),
	byte(ArgumentException),
	0,
	2,
	byte(SigTypeHandle), byte(ir.SpecialVoid),
	byte(SigTypeHandle), byte(ir.SpecialString),
	byte(SigTypeHandle), byte(ir.SpecialString),

	// InvalidOperationExceptionCtor
	byte(FlagConstructor),
	byte(InvalidOperationException),
	0,
	1,
	byte(SigTypeHandle), byte(ir.SpecialVoid),
	byte(SigTypeHandle), byte(ir.SpecialString),
}

var _members []*Member

func init() {
	members, err := decode(_memberBlob, _memberNames[:])
	if err != nil {
		panic("descriptor: malformed member table: " + err.Error())
	}
	_members = members
}

// Describe returns the description of the member id. It panics if id is out of range.
func Describe(id MemberID) *Member {
	if id >= MemberCount {
		panic(fmt.Sprintf("descriptor: member id %d out of range", id))
	}
	return _members[id]
}

// decode decodes a member table, one entry per name.
func decode(blob []byte, names []string) ([]*Member, error) {
	r := &reader{blob: blob}
	members := make([]*Member, 0, len(names))
	for i, name := range names {
		m := &Member{ID: MemberID(i), Name: name}
		m.Flags = Flags(r.next())
		decl := r.next()
		if decl >= byte(TypeCount) {
			return nil, fmt.Errorf("entry %d: declaring type %d out of range", i, decl)
		}
		m.DeclaringType = TypeID(decl)
		m.Arity = int(r.next())
		paramCount := int(r.next())
		var err error
		if m.Return, err = r.signature(); err != nil {
			return nil, fmt.Errorf("entry %d: return type: %w", i, err)
		}
		for p := 0; p < paramCount; p++ {
			sig, err := r.signature()
			if err != nil {
				return nil, fmt.Errorf("entry %d: parameter %d: %w", i, p, err)
			}
			m.Params = append(m.Params, sig)
		}
		if r.overrun {
			return nil, fmt.Errorf("entry %d: unexpected end of table", i)
		}
		members = append(members, m)
	}
	if r.off != len(blob) {
		return nil, fmt.Errorf("%d trailing bytes after %d entries", len(blob)-r.off, len(names))
	}
	return members, nil
}

type reader struct {
	blob    []byte
	off     int
	overrun bool
}

func (r *reader) next() byte {
	if r.off >= len(r.blob) {
		r.overrun = true
		return 0
	}
	b := r.blob[r.off]
	r.off++
	return b
}

func (r *reader) signature() (Signature, error) {
	code := SignatureCode(r.next())
	special := ir.SpecialType(r.next())
	if r.overrun {
		return Signature{}, fmt.Errorf("unexpected end of table")
	}
	if code != SigTypeHandle {
		return Signature{}, fmt.Errorf("unsupported signature code %#x", byte(code))
	}
	if special == ir.SpecialNone || special >= ir.SpecialTypeCount {
		return Signature{}, fmt.Errorf("special type %d out of range", special)
	}
	return Signature{Code: code, Special: special}, nil
}
