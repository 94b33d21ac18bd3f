// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package editor

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/olegiv/chapel-cms/internal/content"
)

// ActionKind is the button that submitted an editor form.
type ActionKind string

// Editor form actions.
const (
	ActionSave   ActionKind = "save"
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
)

// Action describes what a submitted form asks for.
type Action struct {
	Kind ActionKind
	// List is the pointer of the list for add and remove.
	List content.Pointer
	// Index is the item removed.
	Index int
}

// ParseAction reads the add/remove buttons; any other submission is a save.
// An empty add value addresses a section whose whole content is the list.
func ParseAction(form url.Values) (Action, error) {
	if form.Has("add") {
		v := form.Get("add")
		ptr, err := content.ParsePointer(v)
		if err != nil {
			return Action{}, fmt.Errorf("add: %w", err)
		}
		return Action{Kind: ActionAdd, List: ptr}, nil
	}
	if form.Has("remove") {
		v := form.Get("remove")
		ptr, err := content.ParsePointer(v)
		if err != nil || len(ptr) == 0 {
			return Action{}, fmt.Errorf("remove: invalid item %q", v)
		}
		index, err := strconv.Atoi(ptr.Last())
		if err != nil {
			return Action{}, fmt.Errorf("remove: invalid index in %q", v)
		}
		return Action{Kind: ActionRemove, List: ptr[:len(ptr)-1], Index: index}, nil
	}
	return Action{Kind: ActionSave}, nil
}

// ApplyForm applies every submitted field to current and returns the new
// value. Scalar fields are coerced to the type of the value they replace, raw
// JSON fields are parsed with a plain-string fallback, and uploads maps
// pointers to stored media paths. Fields not present in the form keep their
// current value. Fields must address existing values; only uploads may
// create a new final key.
func ApplyForm(current any, form url.Values, uploads map[string]string) (any, error) {
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	slices.Sort(names)

	value := current
	for _, name := range names {
		var (
			raw    bool
			ptrStr string
		)
		switch {
		case strings.HasPrefix(name, FieldPrefix):
			ptrStr = strings.TrimPrefix(name, FieldPrefix)
		case strings.HasPrefix(name, RawPrefix):
			ptrStr = strings.TrimPrefix(name, RawPrefix)
			raw = true
		default:
			continue
		}

		ptr, err := content.ParsePointer(ptrStr)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		submitted := form.Get(name)

		old, ok := content.Get(value, ptr)
		if !ok {
			return nil, fmt.Errorf("field %q: %w", name, content.ErrPathNotFound)
		}
		var next any
		if raw {
			next = content.ParseRaw(submitted)
		} else {
			next = content.Coerce(old, submitted)
		}

		value, err = content.Set(value, ptr, next)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
	}

	uploadPtrs := make([]string, 0, len(uploads))
	for p := range uploads {
		uploadPtrs = append(uploadPtrs, p)
	}
	slices.Sort(uploadPtrs)
	for _, p := range uploadPtrs {
		ptr, err := content.ParsePointer(p)
		if err != nil {
			return nil, fmt.Errorf("upload %q: %w", p, err)
		}
		if value, err = content.Set(value, ptr, uploads[p]); err != nil {
			return nil, fmt.Errorf("upload %q: %w", p, err)
		}
	}

	return value, nil
}

// UploadFields returns the pointers of file inputs in a multipart form field list.
func UploadFields(names []string) []string {
	var ptrs []string
	for _, name := range names {
		if strings.HasPrefix(name, UploadPrefix) {
			ptrs = append(ptrs, strings.TrimPrefix(name, UploadPrefix))
		}
	}
	slices.Sort(ptrs)
	return ptrs
}
