// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"fmt"
	"strconv"
	"strings"
)

// Pointer addresses a node inside a content value (RFC 6901).
// The empty pointer is the root.
type Pointer []string

var (
	tokenEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	tokenUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// ParsePointer parses "/steps/1/image" style pointers.
func ParsePointer(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("pointer %q must start with /", s)
	}
	parts := strings.Split(s[1:], "/")
	p := make(Pointer, len(parts))
	for i, part := range parts {
		p[i] = tokenUnescaper.Replace(part)
	}
	return p, nil
}

// String formats the pointer.
func (p Pointer) String() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, tok := range p {
		sb.WriteByte('/')
		sb.WriteString(tokenEscaper.Replace(tok))
	}
	return sb.String()
}

// Child returns a new pointer extended by token.
func (p Pointer) Child(token string) Pointer {
	c := make(Pointer, len(p), len(p)+1)
	copy(c, p)
	return append(c, token)
}

// Index returns a new pointer extended by an array index.
func (p Pointer) Index(i int) Pointer {
	return p.Child(strconv.Itoa(i))
}

// Last returns the final token, or "" for the root.
func (p Pointer) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Match reports whether p matches pattern, where a "*" token in the pattern
// matches any single token.
func (p Pointer) Match(pattern Pointer) bool {
	if len(p) != len(pattern) {
		return false
	}
	for i, tok := range pattern {
		if tok != "*" && tok != p[i] {
			return false
		}
	}
	return true
}
