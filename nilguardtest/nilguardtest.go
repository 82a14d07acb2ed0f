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

// Package nilguardtest implements utilities for testing the runtime null-check synthesis:
// expectations written as comments in module descriptions, and golden archives.
package nilguardtest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/nilguard/config"
	"golang.org/x/tools/txtar"
	"gopkg.in/yaml.v3"
)

// FindExpectedPlans returns the expected guard plans of the methods of the module description
// src, keyed by "Type.Method". An expectation is a line comment on the method's name, e.g.
//
//	methods:
//	  - name: M  # want: input(s) return
//
// where "want:" is the given expectedPrefix. Methods without such a comment are not included.
func FindExpectedPlans(src []byte, expectedPrefix string) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse module description: %w", err)
	}
	results := make(map[string]string)
	if len(doc.Content) == 0 {
		return results, nil
	}
	types := value(doc.Content[0], "types")
	if types == nil {
		return results, nil
	}
	for _, t := range types.Content {
		name := value(t, "name")
		methods := value(t, "methods")
		if name == nil || methods == nil {
			continue
		}
		for _, m := range methods.Content {
			key, val := pair(m, "name")
			if val == nil {
				continue
			}
			// The comment may be attached to either node of the pair.
			text := val.LineComment
			if text == "" {
				text = key.LineComment
			}
			text = strings.TrimSpace(strings.TrimPrefix(text, "#"))
			if !strings.HasPrefix(text, expectedPrefix) {
				continue
			}
			text = strings.TrimSpace(strings.TrimPrefix(text, expectedPrefix))
			// An empty expectation means that the method gets no guard.
			if text == "" {
				text = "none"
			}
			results[name.Value+"."+val.Value] = text
		}
	}
	return results, nil
}

func pair(n *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i], n.Content[i+1]
		}
	}
	return nil, nil
}

func value(n *yaml.Node, key string) *yaml.Node {
	_, v := pair(n, key)
	return v
}

// Golden archive file names.
const (
	ModuleFile  = "module.yaml"
	OptionsFile = "options.yaml"
	WantFile    = "want"
)

// Case is a golden test case read from a txtar archive holding a module description, optional
// compilation options and the expected printed output.
type Case struct {
	// Name is the archive's base name without extension.
	Name string
	// Path is the path of the archive.
	Path string
	// Module is the module description.
	Module []byte
	// Options are the compilation options, the defaults if the archive has none.
	Options config.Options
	// Want is the expected output.
	Want string

	archive *txtar.Archive
}

// ReadCases reads every archive matching the glob pattern, in lexical order.
func ReadCases(pattern string) ([]*Case, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	cases := make([]*Case, 0, len(paths))
	for _, p := range paths {
		c, err := ReadCase(p)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// ReadCase reads the archive at path.
func ReadCase(path string) (*Case, error) {
	ar, err := txtar.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("read golden archive: %w", err)
	}
	c := &Case{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:    path,
		Options: config.DefaultOptions(),
		archive: ar,
	}
	var hasModule bool
	for _, f := range ar.Files {
		switch f.Name {
		case ModuleFile:
			c.Module, hasModule = f.Data, true
		case OptionsFile:
			if c.Options, err = config.Load(bytes.NewReader(f.Data)); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		case WantFile:
			c.Want = string(f.Data)
		default:
			return nil, fmt.Errorf("%s: unexpected file %q", path, f.Name)
		}
	}
	if !hasModule {
		return nil, fmt.Errorf("%s: no %s", path, ModuleFile)
	}
	return c, nil
}

// Update replaces the expected output of the case with got and rewrites the archive.
func (c *Case) Update(got string) error {
	c.Want = got
	for i := range c.archive.Files {
		if c.archive.Files[i].Name == WantFile {
			c.archive.Files[i].Data = []byte(got)
			return os.WriteFile(c.Path, txtar.Format(c.archive), 0o644)
		}
	}
	c.archive.Files = append(c.archive.Files, txtar.File{Name: WantFile, Data: []byte(got)})
	return os.WriteFile(c.Path, txtar.Format(c.archive), 0o644)
}
