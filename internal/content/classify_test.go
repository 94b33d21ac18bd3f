// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	long := strings.Repeat("a", 101)
	exactly100 := strings.Repeat("a", 100)

	tests := []struct {
		name  string
		key   string
		value any
		want  Kind
	}{
		{"gallery of image paths", "images", []any{"/uploads/a.jpg", "/uploads/b.PNG"}, KindGallery},
		{"gallery of image objects", "slides", []any{map[string]any{"src": "x", "caption": "c"}}, KindGallery},
		{"gallery via img key", "photos", []any{map[string]any{"img": "x"}}, KindGallery},
		{"events never a gallery", "events", []any{map[string]any{"image": "/a.jpg", "title": "t"}}, KindList},
		{"events of image paths is a list", "events", []any{"/a.jpg"}, KindList},
		{"empty array", "images", []any{}, KindList},
		{"array of plain objects", "steps", []any{map[string]any{"title": "t"}}, KindList},
		{"array of non-image strings", "tags", []any{"a", "b"}, KindList},
		{"object", "hero", map[string]any{"title": "x"}, KindObject},
		{"image by key", "backgroundImage", "", KindImage},
		{"image by photo key", "leaderPhoto", "anything", KindImage},
		{"image by img key", "IMG", "x", KindImage},
		{"image by extension", "logo", "/uploads/logo.svg", KindImage},
		{"image by uppercase extension", "file", "PIC.JPEG", KindImage},
		{"long text by length", "summary", long, KindLongText},
		{"100 chars is plain text", "summary", exactly100, KindText},
		{"long text by text key", "text", "short", KindLongText},
		{"long text by description key", "Description", "short", KindLongText},
		{"boolean", "showAll", true, KindBool},
		{"plain string", "title", "Welcome", KindText},
		{"number", "count", json.Number("3"), KindText},
		{"float", "price", 4.5, KindText},
		{"null falls back to raw", "extra", nil, KindRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.key, tt.value); got != tt.want {
				t.Errorf("Classify(%q, %v) = %v, want %v", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestClassify_ImageKeyBeatsLength(t *testing.T) {
	if got := Classify("image", strings.Repeat("x", 200)); got != KindImage {
		t.Errorf("Classify() = %v, want image", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	value := map[string]any{"images": []any{"/a.jpg"}}
	first := Classify("gallery", value)
	for range 10 {
		if got := Classify("gallery", value); got != first {
			t.Fatalf("Classify() changed between calls: %v vs %v", first, got)
		}
	}
}

func TestGalleryImage(t *testing.T) {
	tests := []struct {
		item any
		want string
	}{
		{"/a.jpg", "/a.jpg"},
		{map[string]any{"src": "/s.jpg", "image": "/i.jpg"}, "/s.jpg"},
		{map[string]any{"img": "/g.png"}, "/g.png"},
		{map[string]any{"title": "none"}, ""},
		{json.Number("1"), ""},
	}

	for _, tt := range tests {
		if got := GalleryImage(tt.item); got != tt.want {
			t.Errorf("GalleryImage(%v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestKind_ParseRoundTrip(t *testing.T) {
	for k := KindText; k <= KindRaw; k++ {
		parsed, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), parsed, k)
		}
	}
	if _, err := ParseKind("video"); err == nil {
		t.Error("ParseKind(video) should fail")
	}
}
