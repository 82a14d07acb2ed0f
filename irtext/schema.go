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

package irtext

import (
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// nodePos is the 1-based line and column of a YAML node.
type nodePos struct {
	line, col int
	// width is the length of the text the position spans, when known.
	width int
}

func posOf(n *yaml.Node) nodePos {
	p := nodePos{line: n.Line, col: n.Column}
	if n.Kind == yaml.ScalarNode {
		p.width = len(n.Value)
	}
	return p
}

type moduleDecl struct {
	Assembly   string     `yaml:"assembly"`
	Nullable   string     `yaml:"nullable"`
	References []string   `yaml:"references"`
	Types      []typeDecl `yaml:"types"`
}

type typeDecl struct {
	Name       string         `yaml:"name"`
	Namespace  string         `yaml:"namespace"`
	Kind       string         `yaml:"kind"`
	Base       string         `yaml:"base"`
	Interfaces []string       `yaml:"interfaces"`
	TypeParams []string       `yaml:"typeParams"`
	Attributes []string       `yaml:"attributes"`
	Static     bool           `yaml:"static"`
	Sealed     bool           `yaml:"sealed"`
	Abstract   bool           `yaml:"abstract"`
	Internal   bool           `yaml:"internal"`
	Nullable   string         `yaml:"nullable"`
	Fields     []fieldDecl    `yaml:"fields"`
	Properties []propertyDecl `yaml:"properties"`
	Ctors      []methodDecl   `yaml:"ctors"`
	Methods    []methodDecl   `yaml:"methods"`

	pos nodePos
}

func (d *typeDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain typeDecl
	if err := checkKeys(n, (*plain)(d)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = namePos(n)
	return nil
}

type fieldDecl struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static"`

	pos nodePos
}

func (d *fieldDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain fieldDecl
	if err := checkKeys(n, (*plain)(d)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = namePos(n)
	return nil
}

type propertyDecl struct {
	Name       string      `yaml:"name"`
	Type       string      `yaml:"type"`
	Static     bool        `yaml:"static"`
	Params     []paramDecl `yaml:"params"`
	Flow       []string    `yaml:"flow"`
	Attributes []string    `yaml:"attributes"`
	Auto       bool        `yaml:"auto"`
	Override   bool        `yaml:"override"`
	Extern     bool        `yaml:"extern"`
	Get        []yaml.Node `yaml:"get"`
	Set        []yaml.Node `yaml:"set"`

	hasGet, hasSet bool
	pos            nodePos
}

func (d *propertyDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain propertyDecl
	if err := checkKeys(n, (*plain)(d)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.hasGet = hasKey(n, "get")
	d.hasSet = hasKey(n, "set")
	d.pos = namePos(n)
	return nil
}

type paramDecl struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Ref        string   `yaml:"ref"`
	Flow       []string `yaml:"flow"`
	Attributes []string `yaml:"attributes"`

	pos nodePos
}

func (d *paramDecl) UnmarshalYAML(n *yaml.Node) error {
	// A parameter is either "type name" or a mapping.
	if n.Kind == yaml.ScalarNode {
		typ, name, ok := strings.Cut(strings.TrimSpace(n.Value), " ")
		if !ok {
			return &yaml.TypeError{Errors: []string{"parameter must be written as \"type name\": " + n.Value}}
		}
		d.Type, d.Name = typ, strings.TrimSpace(name)
		d.pos = posOf(n)
		return nil
	}
	type plain paramDecl
	if err := checkKeys(n, (*plain)(d)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = namePos(n)
	return nil
}

type methodDecl struct {
	Name             string       `yaml:"name"`
	TypeParams       []string     `yaml:"typeParams"`
	Static           bool         `yaml:"static"`
	Internal         bool         `yaml:"internal"`
	Iterator         bool         `yaml:"iterator"`
	Async            bool         `yaml:"async"`
	Override         bool         `yaml:"override"`
	Extern           bool         `yaml:"extern"`
	Implements       []string     `yaml:"implements"`
	Params           []paramDecl  `yaml:"params"`
	Returns          string       `yaml:"returns"`
	ReturnFlow       []string     `yaml:"returnFlow"`
	ReturnAttributes []string     `yaml:"returnAttributes"`
	Attributes       []string     `yaml:"attributes"`
	Nullable         string       `yaml:"nullable"`
	SequencePoints   *bool        `yaml:"sequencePoints"`
	Body             []yaml.Node  `yaml:"body"`
	LocalFunctions   []methodDecl `yaml:"localFunctions"`
	Lambdas          []methodDecl `yaml:"lambdas"`

	pos nodePos
}

func (d *methodDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain methodDecl
	if err := checkKeys(n, (*plain)(d)); err != nil {
		return err
	}
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = namePos(n)
	return nil
}

// namePos returns the position of the "name" value of a mapping, or of the mapping itself.
func namePos(n *yaml.Node) nodePos {
	if v := valueOf(n, "name"); v != nil {
		return posOf(v)
	}
	return posOf(n)
}

func valueOf(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func hasKey(n *yaml.Node, key string) bool {
	return valueOf(n, key) != nil
}

// checkKeys rejects the keys of mapping n that name no field of *v. Node.Decode does not inherit
// the KnownFields setting of the decoder that called UnmarshalYAML.
func checkKeys(n *yaml.Node, v any) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	known := make(map[string]bool)
	rt := reflect.TypeOf(v).Elem()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		known[name] = true
	}
	var errs []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; !known[k.Value] {
			errs = append(errs, fmt.Sprintf("line %d: field %s not found", k.Line, k.Value))
		}
	}
	if len(errs) > 0 {
		return &yaml.TypeError{Errors: errs}
	}
	return nil
}
