// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlTagPattern = regexp.MustCompile(`<[a-zA-Z!/]`)
	videoEmbedSrc  = regexp.MustCompile(`^https://(www\.)?(youtube\.com/embed/|youtube-nocookie\.com/embed/|player\.vimeo\.com/video/)`)
)

// ContainsHTML reports whether s looks like it carries markup.
func ContainsHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}

// Sanitizer cleans HTML embedded in content values before they are stored.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer allows user-generated-content markup plus images, h1/h2 headings
// and iframes pointing at YouTube or Vimeo players.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowElements("h1", "h2")
	p.AllowImages()
	p.AllowElements("iframe")
	p.AllowAttrs("src").Matching(videoEmbedSrc).OnElements("iframe")
	p.AllowAttrs("width", "height").Matching(bluemonday.Number).OnElements("iframe")
	p.AllowAttrs("title").OnElements("iframe")
	p.AllowAttrs("allowfullscreen").Matching(regexp.MustCompile(`^(|allowfullscreen|true)$`)).OnElements("iframe")
	p.AllowAttrs("frameborder").Matching(bluemonday.Number).OnElements("iframe")

	return &Sanitizer{policy: p, strict: bluemonday.StrictPolicy()}
}

// Value returns a copy of v in which every string that contains HTML has been
// sanitized. Plain strings and non-string leaves are returned unchanged.
func (s *Sanitizer) Value(v any) any {
	switch x := v.(type) {
	case string:
		if ContainsHTML(x) {
			return s.policy.Sanitize(x)
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			out[k] = s.Value(child)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, child := range x {
			out[i] = s.Value(child)
		}
		return out
	default:
		return v
	}
}

// StripHTML removes all markup and returns plain text with entities decoded.
func (s *Sanitizer) StripHTML(text string) string {
	if !ContainsHTML(text) {
		return text
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(text)))
}
