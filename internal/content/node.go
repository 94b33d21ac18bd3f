// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Node is one classified value in a content tree. The editor and the preview
// both render from the same tree, so a value always gets the same kind in both.
type Node struct {
	Kind     Kind
	Section  string
	Key      string
	Label    string
	Pointer  Pointer
	Value    any
	Children []*Node
	// Policy is set on lists whose items can be added and removed.
	Policy *ItemPolicy
	// Index is the position of a list item in its parent, -1 otherwise.
	Index int
}

// Path returns the pointer of the node as a string.
func (n *Node) Path() string {
	return n.Pointer.String()
}

// CanAdd reports whether another item may be appended.
func (n *Node) CanAdd() bool {
	return n.Policy != nil && (n.Policy.Max == 0 || len(n.Children) < n.Policy.Max)
}

// Classifier builds node trees, consulting an optional schema before the
// shape heuristic.
type Classifier struct {
	schema   *Schema
	policies map[string]ItemPolicy
}

// NewClassifier creates a classifier. schema may be nil.
func NewClassifier(schema *Schema) *Classifier {
	policies := DefaultPolicies()
	if schema != nil {
		for key, p := range schema.Items {
			policies[key] = p
		}
	}
	return &Classifier{schema: schema, policies: policies}
}

// Policy returns the item policy for a list key.
func (c *Classifier) Policy(key string) (ItemPolicy, bool) {
	p, ok := c.policies[key]
	return p, ok
}

// ListKey names the list at p for policy lookups. The section's root list
// is named after the section.
func ListKey(section string, p Pointer) string {
	if len(p) == 0 {
		return section
	}
	return p.Last()
}

// Build classifies the content of one section into a tree rooted at the section.
func (c *Classifier) Build(page, section string, value any) *Node {
	return c.build(page, section, section, Pointer{}, value, -1)
}

func (c *Classifier) build(page, section, key string, ptr Pointer, value any, index int) *Node {
	kind := Classify(key, value)
	if k, ok := c.schema.Lookup(page, section, ptr); ok {
		kind = k
	}

	n := &Node{
		Kind:    kind,
		Section: section,
		Key:     key,
		Label:   Humanize(key),
		Pointer: ptr,
		Value:   value,
		Index:   index,
	}
	if index >= 0 {
		n.Label = "Item " + strconv.Itoa(index+1)
	}

	switch kind {
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			n.Kind = KindRaw
			break
		}
		for _, k := range SortedKeys(obj) {
			n.Children = append(n.Children, c.build(page, section, k, ptr.Child(k), obj[k], -1))
		}
	case KindList, KindGallery:
		list, ok := value.([]any)
		if !ok {
			n.Kind = KindRaw
			break
		}
		for i, item := range list {
			n.Children = append(n.Children, c.build(page, section, key, ptr.Index(i), item, i))
		}
		if p, ok := c.policies[key]; ok && index < 0 {
			n.Policy = &p
		}
	}
	return n
}

// SortedKeys returns object keys in display order.
func SortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Humanize turns a field key such as "backgroundImage" or "next-steps" into a label.
func Humanize(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '-' || r == '_' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
