// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import "fmt"

// Kind is the editing shape of a content value.
type Kind int

// Kinds in classification precedence order.
const (
	KindText Kind = iota
	KindLongText
	KindImage
	KindBool
	KindGallery
	KindList
	KindObject
	KindRaw
)

var kindNames = map[Kind]string{
	KindText:     "text",
	KindLongText: "longtext",
	KindImage:    "image",
	KindBool:     "boolean",
	KindGallery:  "gallery",
	KindList:     "list",
	KindObject:   "object",
	KindRaw:      "raw",
}

// String returns the lower-case kind name used in schema files and templates.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown content kind %q", name)
}

// IsContainer reports whether the kind holds child nodes.
func (k Kind) IsContainer() bool {
	return k == KindGallery || k == KindList || k == KindObject
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML schema files.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
