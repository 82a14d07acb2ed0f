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

// Package emit writes the output module of a compilation as an image file. The image is a small
// header (magic, format version, xxhash64 of the payload) followed by an s2-compressed gob
// encoding of the module's types, their methods and their printed bodies.
package emit

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
	"go.uber.org/nilguard/ir"
)

const (
	_magic = "NGIM"
	// Version is the image format version.
	Version    byte = 1
	_headerLen      = len(_magic) + 1 + 8
)

// ErrCorrupt is returned when an image fails validation.
var ErrCorrupt = errors.New("corrupt image")

// Image is the serialized form of an output module.
type Image struct {
	Assembly string
	Types    []Type
}

// Type is a type of the output module.
type Type struct {
	Name      string
	Base      string
	Internal  bool
	Static    bool
	Sealed    bool
	Abstract  bool
	Methods   []Method
	Synthetic bool
}

// Method is a method of the output module. Extern methods have no body.
type Method struct {
	Signature string
	Impl      ir.ImplFlags
	Body      string
}

// Method returns the method with the given signature, or nil.
func (t *Type) Method(signature string) *Method {
	for i := range t.Methods {
		if t.Methods[i].Signature == signature {
			return &t.Methods[i]
		}
	}
	return nil
}

// Type returns the type with the given full name, or nil.
func (img *Image) Type(name string) *Type {
	for i := range img.Types {
		if img.Types[i].Name == name {
			return &img.Types[i]
		}
	}
	return nil
}

// Build assembles the image of a module named assembly from its source types and the
// synthesized helper type, which may be nil. body returns the final body of a method.
func Build(assembly string, fset *token.FileSet, types []*ir.NamedType, helper *ir.NamedType, body func(*ir.Method) ir.Stmt) *Image {
	img := &Image{Assembly: assembly}
	for _, t := range types {
		img.Types = append(img.Types, buildType(fset, t, body, false))
	}
	if helper != nil {
		img.Types = append(img.Types, buildType(fset, helper, func(m *ir.Method) ir.Stmt { return m.Body }, true))
	}
	return img
}

func buildType(fset *token.FileSet, t *ir.NamedType, body func(*ir.Method) ir.Stmt, synthetic bool) Type {
	out := Type{
		Name:      t.FullName(),
		Internal:  t.Internal,
		Static:    t.Static,
		Sealed:    t.Sealed,
		Abstract:  t.Abstract,
		Synthetic: synthetic,
	}
	if t.Base != nil {
		out.Base = t.Base.FullName()
	}
	for _, m := range t.Methods {
		em := Method{Signature: m.String(), Impl: m.Impl}
		if b := body(m); b != nil {
			em.Body = ir.Sprint(fset, b)
		}
		out.Methods = append(out.Methods, em)
	}
	return out
}

// Encode writes img to w.
func Encode(w io.Writer, img *Image) error {
	var payload bytes.Buffer
	writer := s2.NewWriter(&payload)
	if err := gob.NewEncoder(writer).Encode(img); err != nil {
		return errors.Join(fmt.Errorf("encode image: %w", err), writer.Close())
	}
	// Close the s2 writer before hashing so that the payload is complete.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("compress image: %w", err)
	}

	header := make([]byte, 0, _headerLen)
	header = append(header, _magic...)
	header = append(header, Version)
	header = binary.BigEndian.AppendUint64(header, xxhash.Sum64(payload.Bytes()))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write image header: %w", err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write image payload: %w", err)
	}
	return nil
}

// Decode reads an image written by Encode from r.
func Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) < _headerLen || string(data[:len(_magic)]) != _magic {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if v := data[len(_magic)]; v != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	payload := data[_headerLen:]
	if want, got := binary.BigEndian.Uint64(data[len(_magic)+1:_headerLen]), xxhash.Sum64(payload); want != got {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	img := &Image{}
	if err := gob.NewDecoder(s2.NewReader(bytes.NewReader(payload))).Decode(img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return img, nil
}

// WriteFile encodes img to the file at path.
func WriteFile(path string, img *Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return Encode(f, img)
}

// ReadFile decodes the image in the file at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
