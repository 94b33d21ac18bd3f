// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"
)

// Edit errors.
var (
	ErrPathNotFound = errors.New("content: path not found")
	ErrNotAList     = errors.New("content: value is not a list")
	ErrItemLimit    = errors.New("content: item limit reached")
	ErrNoPolicy     = errors.New("content: items cannot be added or removed here")
)

// ItemPolicy allows items of a list to be added and removed in the editor.
type ItemPolicy struct {
	Max      int            `yaml:"max"`      // 0 means unlimited
	Template map[string]any `yaml:"template"` // shape of a new item when the list is empty
}

// DefaultPolicies is the built-in item policy table, keyed by list key.
func DefaultPolicies() map[string]ItemPolicy {
	return map[string]ItemPolicy{
		EventsKey: {
			Max: 4,
			Template: map[string]any{
				"title":       "",
				"date":        "",
				"time":        "",
				"location":    "",
				"description": "",
				"image":       "",
			},
		},
	}
}

// Get returns the value addressed by p.
func Get(root any, p Pointer) (any, bool) {
	cur := root
	for _, tok := range p {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of root with the value at p replaced by v. Containers on
// the path are copied; root itself is never modified. The final object key may
// be new; every other step must exist.
func Set(root any, p Pointer, v any) (any, error) {
	if len(p) == 0 {
		return v, nil
	}
	tok, rest := p[0], p[1:]

	switch c := root.(type) {
	case map[string]any:
		child, ok := c[tok]
		if !ok && len(rest) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, tok)
		}
		updated, err := Set(child, rest, v)
		if err != nil {
			return nil, err
		}
		out := maps.Clone(c)
		out[tok] = updated
		return out, nil
	case []any:
		i, err := strconv.Atoi(tok)
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Errorf("%w: index %s", ErrPathNotFound, tok)
		}
		updated, err := Set(c[i], rest, v)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(c))
		copy(out, c)
		out[i] = updated
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, tok)
	}
}

// AppendItem returns a copy of root with a new item appended to the list at p.
// The item copies the keys of the first existing item with zero values, or the
// policy template when the list is empty.
func AppendItem(root any, p Pointer, policy ItemPolicy) (any, error) {
	cur, ok := Get(root, p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	list, ok := cur.([]any)
	if !ok {
		return nil, ErrNotAList
	}
	if policy.Max > 0 && len(list) >= policy.Max {
		return nil, fmt.Errorf("%w: at most %d items", ErrItemLimit, policy.Max)
	}

	var item any
	if len(list) > 0 {
		item = zeroLike(list[0])
	} else {
		item = zeroLike(policy.Template)
		if policy.Template == nil {
			item = ""
		}
	}

	out := make([]any, len(list), len(list)+1)
	copy(out, list)
	return Set(root, p, append(out, item))
}

// RemoveItem returns a copy of root without item index of the list at p.
func RemoveItem(root any, p Pointer, index int) (any, error) {
	cur, ok := Get(root, p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	list, ok := cur.([]any)
	if !ok {
		return nil, ErrNotAList
	}
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: index %d", ErrPathNotFound, index)
	}

	out := make([]any, 0, len(list)-1)
	out = append(out, list[:index]...)
	out = append(out, list[index+1:]...)
	return Set(root, p, out)
}

// zeroLike returns a value with the same shape as v and empty leaves.
func zeroLike(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			out[k] = zeroLike(child)
		}
		return out
	case []any:
		return []any{}
	case bool:
		return false
	case json.Number, float64, int:
		return json.Number("0")
	case nil:
		return nil
	default:
		return ""
	}
}

// ParseRaw parses text typed into a raw JSON field. Text that is not valid
// JSON is kept as a plain string.
func ParseRaw(text string) any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return text
	}
	if _, err := dec.Token(); err != io.EOF {
		return text
	}
	return v
}

// FormatRaw renders a value for a raw JSON field.
func FormatRaw(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Coerce converts a submitted form string to the type of the current value.
// Booleans and numbers keep their type when the input parses; otherwise the
// submitted string replaces the value.
func Coerce(current any, submitted string) any {
	switch current.(type) {
	case bool:
		if b, err := strconv.ParseBool(submitted); err == nil {
			return b
		}
	case json.Number, float64:
		s := strings.TrimSpace(submitted)
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s)
		}
	}
	return submitted
}
