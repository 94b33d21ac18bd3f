// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sitepatch

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olegiv/chapel-cms/internal/content"
)

//go:embed selectors.yaml
var defaultTable []byte

// Binding modes.
const (
	ModeText       = "text"
	ModeHTML       = "html"
	ModeSrc        = "src"
	ModeHref       = "href"
	ModeAttr       = "attr"
	ModeBackground = "background"
	ModeRepeat     = "repeat"
)

// SelfSelector targets the scope element itself instead of a descendant.
const SelfSelector = "&"

// Binding maps one content field to the DOM nodes matched by Selector.
type Binding struct {
	// Field is a dotted path into the section content; empty means the whole value.
	Field    string `yaml:"field"`
	Selector string `yaml:"selector"`
	Mode     string `yaml:"mode"`
	Attr     string `yaml:"attr"`
	// Template selects the element cloned per item in repeat mode,
	// relative to the container. Defaults to the container's first child.
	Template string    `yaml:"template"`
	Fields   []Binding `yaml:"fields"`
}

// Table maps page and section to bindings.
type Table struct {
	Pages map[string]map[string][]Binding `yaml:"pages"`
}

// ParseTable parses and validates a YAML selector table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing selector table: %w", err)
	}
	for page, sections := range t.Pages {
		for section, bindings := range sections {
			if err := validateBindings(bindings); err != nil {
				return nil, fmt.Errorf("selector table %s/%s: %w", page, section, err)
			}
		}
	}
	return &t, nil
}

// LoadTable reads the selector table from path, or the embedded default when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return ParseTable(defaultTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading selector table: %w", err)
	}
	return ParseTable(data)
}

func validateBindings(bindings []Binding) error {
	for i := range bindings {
		b := &bindings[i]
		if b.Mode == "" {
			b.Mode = ModeText
		}
		if b.Selector == "" {
			return fmt.Errorf("binding %q: selector is required", b.Field)
		}
		switch b.Mode {
		case ModeText, ModeHTML, ModeSrc, ModeHref, ModeBackground:
		case ModeAttr:
			if b.Attr == "" {
				return fmt.Errorf("binding %q: attr mode needs attr", b.Field)
			}
		case ModeRepeat:
			if err := validateBindings(b.Fields); err != nil {
				return err
			}
		default:
			return fmt.Errorf("binding %q: unknown mode %q", b.Field, b.Mode)
		}
	}
	return nil
}

// Bindings returns the bindings of a section.
func (t *Table) Bindings(page, section string) ([]Binding, bool) {
	if t == nil {
		return nil, false
	}
	b, ok := t.Pages[page][section]
	return b, ok
}

// fieldPointer converts a dotted field path to a content pointer.
func fieldPointer(field string) content.Pointer {
	if field == "" {
		return content.Pointer{}
	}
	return content.Pointer(strings.Split(field, "."))
}
