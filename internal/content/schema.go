// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema declares field kinds for known sections and item policies for list
// keys. Fields it does not mention are classified by shape.
//
//	pages:
//	  home:
//	    next-steps:
//	      /steps/*/image: image
//	items:
//	  leaders: {max: 8}
type Schema struct {
	Pages map[string]map[string]map[string]Kind `yaml:"pages"`
	Items map[string]ItemPolicy                 `yaml:"items"`

	compiled map[string]map[string][]fieldRule
}

type fieldRule struct {
	pattern Pointer
	kind    Kind
}

// ParseSchema parses a YAML schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	s.compiled = make(map[string]map[string][]fieldRule)
	for page, sections := range s.Pages {
		s.compiled[page] = make(map[string][]fieldRule)
		for section, fields := range sections {
			for raw, kind := range fields {
				ptr, err := ParsePointer(raw)
				if err != nil {
					return nil, fmt.Errorf("schema %s/%s: %w", page, section, err)
				}
				s.compiled[page][section] = append(s.compiled[page][section], fieldRule{pattern: ptr, kind: kind})
			}
		}
	}
	for key, p := range s.Items {
		if p.Max < 0 {
			return nil, fmt.Errorf("schema items %s: max must not be negative", key)
		}
	}
	return &s, nil
}

// LoadSchema reads a schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return ParseSchema(data)
}

// Lookup returns the declared kind of the field at ptr. A nil schema declares nothing.
func (s *Schema) Lookup(page, section string, ptr Pointer) (Kind, bool) {
	if s == nil {
		return 0, false
	}
	for _, rule := range s.compiled[page][section] {
		if ptr.Match(rule.pattern) {
			return rule.kind, true
		}
	}
	return 0, false
}
