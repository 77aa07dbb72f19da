// Package annotations reads sensitivity annotations from annotation files and
// source directives and resolves them against a program.
package annotations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// FunctionSpec annotates one function by name.
type FunctionSpec struct {
	Function  string `json:"function" yaml:"function"`
	Arguments []int  `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Return    bool   `json:"return,omitempty" yaml:"return,omitempty"`
}

// Entry groups the functions carrying one annotation label.
type Entry struct {
	Annotation string         `json:"annotation" yaml:"annotation"`
	Functions  []FunctionSpec `json:"functions" yaml:"functions"`
}

// ParseJSON decodes an annotation file in JSON form:
//
//	[{"annotation": "sensitive", "functions": [{"function": "F", "arguments": [0], "return": true}]}]
func ParseJSON(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse JSON annotations: %w", err)
	}
	if err := validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ParseYAML decodes the same structure written as YAML.
func ParseYAML(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse YAML annotations: %w", err)
	}
	if err := validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadFile reads an annotation file, choosing the format by extension.
// Anything other than .yaml or .yml is read as JSON.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) // #nosec G304 - user supplied annotation file
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return ParseJSON(data)
}

func validate(entries []Entry) error {
	for i, e := range entries {
		if e.Annotation == "" {
			return fmt.Errorf("annotation entry %d has no label", i)
		}
		for j, f := range e.Functions {
			if f.Function == "" {
				return fmt.Errorf("annotation %q: function %d has no name", e.Annotation, j)
			}
			for _, arg := range f.Arguments {
				if arg < 0 {
					return fmt.Errorf("annotation %q: function %s has negative argument %d", e.Annotation, f.Function, arg)
				}
			}
		}
	}
	return nil
}
