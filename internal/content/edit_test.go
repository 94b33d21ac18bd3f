// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextSteps() map[string]any {
	return map[string]any{
		"title": "Next Steps",
		"steps": []any{
			map[string]any{"title": "Connect", "image": "/uploads/a.jpg"},
			map[string]any{"title": "Serve", "image": "/uploads/b.jpg"},
		},
	}
}

func mustPointer(t *testing.T, s string) Pointer {
	t.Helper()
	p, err := ParsePointer(s)
	require.NoError(t, err)
	return p
}

func TestPointer_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "/title", "/steps/1/image", "/a~1b/c~0d"} {
		p := mustPointer(t, s)
		assert.Equal(t, s, p.String())
	}

	p := mustPointer(t, "/a~1b")
	assert.Equal(t, Pointer{"a/b"}, p)

	_, err := ParsePointer("title")
	assert.Error(t, err)
}

func TestPointer_Match(t *testing.T) {
	p := mustPointer(t, "/steps/3/image")
	assert.True(t, p.Match(mustPointer(t, "/steps/*/image")))
	assert.False(t, p.Match(mustPointer(t, "/steps/*")))
	assert.False(t, p.Match(mustPointer(t, "/events/*/image")))
}

func TestSet_ReplacesOnlyAddressedLeaf(t *testing.T) {
	orig := nextSteps()
	before, _ := json.Marshal(orig)

	updated, err := Set(orig, mustPointer(t, "/steps/1/image"), "/uploads/new.jpg")
	require.NoError(t, err)

	after, _ := json.Marshal(orig)
	assert.JSONEq(t, string(before), string(after), "input must not be mutated")

	got, ok := Get(updated, mustPointer(t, "/steps/1/image"))
	require.True(t, ok)
	assert.Equal(t, "/uploads/new.jpg", got)

	want := nextSteps()
	want["steps"].([]any)[1].(map[string]any)["image"] = "/uploads/new.jpg"
	assert.True(t, reflect.DeepEqual(want, updated), "only the addressed leaf may change")
}

func TestSet_Root(t *testing.T) {
	got, err := Set(map[string]any{"a": "b"}, Pointer{}, "replaced")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)
}

func TestSet_NewKeyAtLeaf(t *testing.T) {
	got, err := Set(map[string]any{"a": "b"}, mustPointer(t, "/c"), true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "b", "c": true}, got)
}

func TestSet_MissingPath(t *testing.T) {
	_, err := Set(nextSteps(), mustPointer(t, "/missing/x"), "v")
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Set(nextSteps(), mustPointer(t, "/steps/9/title"), "v")
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Set(nextSteps(), mustPointer(t, "/title/deeper"), "v")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestAppendItem_CopiesFirstItemShape(t *testing.T) {
	value := map[string]any{
		"events": []any{
			map[string]any{"title": "Picnic", "date": "2026-06-14", "featured": true, "seats": json.Number("40")},
		},
	}

	updated, err := AppendItem(value, mustPointer(t, "/events"), DefaultPolicies()[EventsKey])
	require.NoError(t, err)

	events := updated.(map[string]any)["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, map[string]any{
		"title": "", "date": "", "featured": false, "seats": json.Number("0"),
	}, events[1])
	assert.Len(t, value["events"], 1, "input must not be mutated")
}

func TestAppendItem_EmptyListUsesTemplate(t *testing.T) {
	value := map[string]any{"events": []any{}}

	updated, err := AppendItem(value, mustPointer(t, "/events"), DefaultPolicies()[EventsKey])
	require.NoError(t, err)

	item := updated.(map[string]any)["events"].([]any)[0].(map[string]any)
	for _, k := range []string{"title", "date", "time", "location", "description", "image"} {
		assert.Contains(t, item, k)
	}
}

func TestAppendItem_CapOfFour(t *testing.T) {
	var value any = map[string]any{"events": []any{}}
	policy := DefaultPolicies()[EventsKey]

	var err error
	for i := 0; i < 4; i++ {
		value, err = AppendItem(value, mustPointer(t, "/events"), policy)
		require.NoError(t, err, "append %d", i+1)
	}

	_, err = AppendItem(value, mustPointer(t, "/events"), policy)
	assert.True(t, errors.Is(err, ErrItemLimit), "fifth append error = %v", err)
	assert.Len(t, value.(map[string]any)["events"], 4)
}

func TestAppendItem_NotAList(t *testing.T) {
	_, err := AppendItem(nextSteps(), mustPointer(t, "/title"), ItemPolicy{})
	assert.ErrorIs(t, err, ErrNotAList)
}

func TestRemoveItem(t *testing.T) {
	orig := nextSteps()
	updated, err := RemoveItem(orig, mustPointer(t, "/steps"), 0)
	require.NoError(t, err)

	steps := updated.(map[string]any)["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "Serve", steps[0].(map[string]any)["title"])
	assert.Len(t, orig["steps"], 2, "input must not be mutated")

	_, err = RemoveItem(orig, mustPointer(t, "/steps"), 5)
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestParseRaw(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{`{"a": 1}`, map[string]any{"a": json.Number("1")}},
		{`[1, "x"]`, []any{json.Number("1"), "x"}},
		{`true`, true},
		{`null`, nil},
		{`{"a": 1`, `{"a": 1`},
		{`not json`, `not json`},
		{`{"a":1} trailing`, `{"a":1} trailing`},
		{``, ``},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRaw(tt.in), "ParseRaw(%q)", tt.in)
	}
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, true, Coerce(false, "true"))
	assert.Equal(t, false, Coerce(true, "false"))
	assert.Equal(t, "maybe", Coerce(true, "maybe"))
	assert.Equal(t, json.Number("12"), Coerce(json.Number("3"), " 12 "))
	assert.Equal(t, "twelve", Coerce(json.Number("3"), "twelve"))
	assert.Equal(t, "new", Coerce("old", "new"))
	assert.Equal(t, "7", Coerce("old", "7"), "strings stay strings")
}
