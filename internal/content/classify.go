// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// EventsKey is the one array key never treated as an image gallery.
const EventsKey = "events"

// LongTextThreshold is the string length in characters above which a field becomes a textarea.
const LongTextThreshold = 100

var imageExtPattern = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|svg)$`)

// LooksLikeImagePath reports whether s ends in a known image extension.
func LooksLikeImagePath(s string) bool {
	return imageExtPattern.MatchString(s)
}

// Classify infers the editing shape of value from its runtime type, its key
// and, for strings, its content. The first matching rule wins.
func Classify(key string, value any) Kind {
	switch v := value.(type) {
	case []any:
		if len(v) > 0 && key != EventsKey && isGalleryItem(v[0]) {
			return KindGallery
		}
		return KindList
	case map[string]any:
		return KindObject
	case string:
		lower := strings.ToLower(key)
		if strings.Contains(lower, "image") || strings.Contains(lower, "photo") ||
			strings.Contains(lower, "img") || LooksLikeImagePath(v) {
			return KindImage
		}
		if utf8.RuneCountInString(v) > LongTextThreshold || lower == "text" || lower == "description" {
			return KindLongText
		}
		return KindText
	case bool:
		return KindBool
	case nil:
		return KindRaw
	default:
		return KindText
	}
}

func isGalleryItem(first any) bool {
	switch item := first.(type) {
	case string:
		return LooksLikeImagePath(item)
	case map[string]any:
		for _, k := range []string{"src", "image", "img"} {
			if _, ok := item[k]; ok {
				return true
			}
		}
	}
	return false
}

// GalleryImage returns the image path of a gallery item: the string itself,
// or the first of src/image/img on an object item.
func GalleryImage(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, k := range []string{"src", "image", "img"} {
			if s, ok := v[k].(string); ok {
				return s
			}
		}
	}
	return ""
}
