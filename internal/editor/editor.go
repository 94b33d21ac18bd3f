// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package editor renders classified content trees as HTML edit forms and as
// read-only previews, and applies submitted forms back onto content values.
package editor

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/olegiv/chapel-cms/internal/content"
)

//go:embed templates/*.html
var templatesFS embed.FS

// GalleryPreviewLimit is the number of thumbnails shown before "+N more".
const GalleryPreviewLimit = 6

// Form field name prefixes. The remainder of a name is a content pointer.
const (
	FieldPrefix  = "f:"
	RawPrefix    = "r:"
	UploadPrefix = "u:"
)

// Renderer renders editor and preview HTML for content nodes.
type Renderer struct {
	tmpl      *template.Template
	sanitizer *content.Sanitizer
	mediaBase string
}

// New parses the embedded templates. mediaBase resolves relative media paths.
func New(sanitizer *content.Sanitizer, mediaBase string) (*Renderer, error) {
	r := &Renderer{sanitizer: sanitizer, mediaBase: mediaBase}

	tmpl, err := template.New("").Funcs(r.funcs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing editor templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Editor renders the edit controls for a section tree.
func (r *Renderer) Editor(n *content.Node) (template.HTML, error) {
	return r.execute("editor", n)
}

// Preview renders the read-only view of a section tree.
func (r *Renderer) Preview(n *content.Node) (template.HTML, error) {
	return r.execute("preview", n)
}

func (r *Renderer) execute(name string, n *content.Node) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, n); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of html/template
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"kind": func(n *content.Node) string { return n.Kind.String() },
		"text": func(n *content.Node) string { return scalarText(n.Value) },
		"plain": func(n *content.Node) string {
			return r.sanitizer.StripHTML(scalarText(n.Value))
		},
		"hasHTML":   func(n *content.Node) bool { return content.ContainsHTML(scalarText(n.Value)) },
		"isTrue": func(n *content.Node) bool {
			b, _ := n.Value.(bool)
			return b
		},
		"formatRaw": func(n *content.Node) string { return content.FormatRaw(n.Value) },
		"fieldName": func(n *content.Node) string { return FieldPrefix + n.Path() },
		"rawName":   func(n *content.Node) string { return RawPrefix + n.Path() },
		"uploadName": func(n *content.Node) string {
			return UploadPrefix + n.Path()
		},
		"fieldID": fieldID,
		"mediaURL": func(p string) string {
			return content.ResolveURL(r.mediaBase, p)
		},
		"galleryHead": func(n *content.Node) []*content.Node {
			if len(n.Children) > GalleryPreviewLimit {
				return n.Children[:GalleryPreviewLimit]
			}
			return n.Children
		},
		"galleryMore": func(n *content.Node) int {
			return max(len(n.Children)-GalleryPreviewLimit, 0)
		},
		"galleryImage": func(n *content.Node) string { return content.GalleryImage(n.Value) },
	}
}

// scalarText formats a leaf value for display and form inputs.
func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

var idReplacer = strings.NewReplacer("/", "-", "~", "-", " ", "-")

// fieldID derives an element id from the section and pointer.
func fieldID(n *content.Node) string {
	return "field-" + idReplacer.Replace(n.Section+n.Path())
}
