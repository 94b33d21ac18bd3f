// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sitepatch splices stored content into the static public site.
// Each content section is mapped onto DOM nodes through a selector table;
// sections without a table entry fall back to a generic image matcher.
package sitepatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/olegiv/chapel-cms/internal/content"
	"github.com/olegiv/chapel-cms/internal/store"
)

var (
	backgroundImageDecl = regexp.MustCompile(`(?i)background-image\s*:[^;]*;?`)
	safeIdentifier      = regexp.MustCompile(`^[A-Za-z][\w-]*$`)

	allowedSchemes = map[string]bool{"http": true, "https": true, "mailto": true, "tel": true}
	urlAttrs       = map[string]bool{
		"href": true, "src": true, "srcset": true, "action": true, "formaction": true,
		"poster": true, "cite": true, "data": true, "background": true, "xlink:href": true,
	}
)

// Patcher applies content sections to parsed HTML documents.
type Patcher struct {
	table     *Table
	sanitizer *content.Sanitizer
	mediaBase string
	logger    *slog.Logger
}

// NewPatcher creates a patcher for the given selector table.
func NewPatcher(table *Table, sanitizer *content.Sanitizer, mediaBase string, logger *slog.Logger) *Patcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Patcher{table: table, sanitizer: sanitizer, mediaBase: mediaBase, logger: logger}
}

// Patch applies every section to doc and returns the number of sections that
// were applied without error. A failing section is logged and skipped.
func (p *Patcher) Patch(doc *goquery.Document, sections []store.Content) int {
	applied := 0
	for _, section := range sections {
		if err := p.patchSection(doc, section); err != nil {
			p.logger.Warn("failed to patch section",
				"page", section.Page, "section", section.Section, "error", err)
			continue
		}
		applied++
	}
	return applied
}

func (p *Patcher) patchSection(doc *goquery.Document, section store.Content) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	bindings, ok := p.table.Bindings(section.Page, section.Section)
	if !ok {
		return p.fallback(doc.Selection, section.Section, section.Value)
	}
	p.apply(doc.Selection, bindings, section.Value, section.Section)
	return nil
}

// apply runs bindings against the elements under scope.
func (p *Patcher) apply(scope *goquery.Selection, bindings []Binding, value any, section string) {
	for _, b := range bindings {
		v, ok := content.Get(value, fieldPointer(b.Field))
		if !ok || v == nil {
			p.logger.Debug("content field missing", "section", section, "field", b.Field)
			continue
		}
		target := find(scope, b.Selector)
		if target.Length() == 0 {
			p.logger.Debug("selector matched nothing", "section", section, "selector", b.Selector)
			continue
		}

		if b.Mode == ModeRepeat {
			items, ok := v.([]any)
			if !ok {
				p.logger.Debug("repeat field is not a list", "section", section, "field", b.Field)
				continue
			}
			p.repeat(target, b, items, section)
			continue
		}

		text, ok := scalarString(v)
		if !ok {
			p.logger.Debug("field is not a scalar", "section", section, "field", b.Field)
			continue
		}
		p.set(target, b, text)
	}
}

func (p *Patcher) set(target *goquery.Selection, b Binding, text string) {
	switch b.Mode {
	case ModeText:
		target.SetText(text)
	case ModeHTML:
		target.SetHtml(p.sanitizeHTML(text))
	case ModeSrc:
		src := content.ResolveURL(p.mediaBase, text)
		if !safeURL(src) {
			p.logger.Debug("unsafe URL skipped", "field", b.Field)
			return
		}
		target.SetAttr("src", src)
	case ModeHref:
		if !safeURL(text) {
			p.logger.Debug("unsafe URL skipped", "field", b.Field)
			return
		}
		target.SetAttr("href", text)
	case ModeAttr:
		attr := strings.ToLower(b.Attr)
		if strings.HasPrefix(attr, "on") || attr == "style" || (urlAttrs[attr] && !safeURL(text)) {
			p.logger.Debug("unsafe attribute value skipped", "field", b.Field, "attr", b.Attr)
			return
		}
		target.SetAttr(b.Attr, text)
	case ModeBackground:
		src := content.ResolveURL(p.mediaBase, text)
		if !safeCSSURL(src) {
			p.logger.Debug("unsafe background URL skipped", "field", b.Field)
			return
		}
		target.Each(func(_ int, s *goquery.Selection) {
			setBackground(s, src)
		})
	}
}

// safeURL reports whether u is relative or uses a scheme that cannot run script.
func safeURL(u string) bool {
	if strings.ContainsFunc(u, unicode.IsControl) {
		return false
	}
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	return parsed.Scheme == "" || allowedSchemes[parsed.Scheme]
}

// safeCSSURL reports whether u can be quoted inside url('...') unchanged.
func safeCSSURL(u string) bool {
	return safeURL(u) && !strings.ContainsAny(u, `'"()\;`)
}

// repeat rebuilds each container with one copy of the item template per list item.
func (p *Patcher) repeat(containers *goquery.Selection, b Binding, items []any, section string) {
	containers.Each(func(_ int, c *goquery.Selection) {
		existing := c.Children()
		if b.Template != "" {
			existing = c.ChildrenFiltered(b.Template)
		}
		if existing.Length() == 0 {
			p.logger.Debug("repeat template not found", "section", section, "selector", b.Selector)
			return
		}
		proto := existing.First().Clone()
		existing.Remove()

		for _, item := range items {
			clone := proto.Clone()
			p.apply(clone, b.Fields, item, section)
			c.AppendSelection(clone)
		}
	})
}

// fallback fills image-like fields of a section that has no table entry by
// probing conventional selectors built from the section and field names.
func (p *Patcher) fallback(scope *goquery.Selection, section string, value any) error {
	if !safeIdentifier.MatchString(section) {
		return fmt.Errorf("section %q cannot be used in a selector", section)
	}
	p.walkImages(scope, section, value, -1)
	return nil
}

func (p *Patcher) walkImages(scope *goquery.Selection, section string, value any, index int) {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range content.SortedKeys(v) {
			child := v[key]
			if s, ok := child.(string); ok {
				if s != "" && isImageKey(key) && safeIdentifier.MatchString(key) {
					p.fallbackImage(scope, section, key, s, index)
				}
				continue
			}
			p.walkImages(scope, section, child, index)
		}
	case []any:
		for i, item := range v {
			p.walkImages(scope, section, item, i)
		}
	}
}

func (p *Patcher) fallbackImage(scope *goquery.Selection, section, key, src string, index int) {
	for _, selector := range fallbackSelectors(section, key) {
		matched := scope.Find(selector)
		if matched.Length() == 0 {
			continue
		}
		if index >= 0 {
			matched = matched.Eq(index)
		}
		resolved := content.ResolveURL(p.mediaBase, src)
		if !safeCSSURL(resolved) {
			p.logger.Debug("unsafe image URL skipped", "section", section, "field", key)
			return
		}
		matched.Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "img" {
				s.SetAttr("src", resolved)
				return
			}
			setBackground(s, resolved)
		})
		return
	}
	p.logger.Debug("no element for image field", "section", section, "field", key)
}

func fallbackSelectors(section, key string) []string {
	return []string{
		fmt.Sprintf(`[data-cms="%s.%s"]`, section, key),
		fmt.Sprintf(`#%s [data-field="%s"]`, section, key),
		fmt.Sprintf(`#%s-%s`, section, key),
		fmt.Sprintf(`.%s .%s`, section, key),
		fmt.Sprintf(`.%s-%s`, section, key),
	}
}

func isImageKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "image") || strings.Contains(lower, "img") ||
		key == "src" || key == "backgroundImage"
}

func (p *Patcher) sanitizeHTML(text string) string {
	if p.sanitizer == nil {
		return text
	}
	clean, _ := p.sanitizer.Value(text).(string)
	return clean
}

func find(scope *goquery.Selection, selector string) *goquery.Selection {
	if selector == SelfSelector {
		return scope
	}
	return scope.Find(selector)
}

func setBackground(s *goquery.Selection, src string) {
	style, _ := s.Attr("style")
	style = strings.TrimSpace(backgroundImageDecl.ReplaceAllString(style, ""))
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	if style != "" {
		style += " "
	}
	s.SetAttr("style", style+fmt.Sprintf("background-image: url('%s');", src))
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	default:
		return "", false
	}
}

// PageName maps a request path to a content page identifier.
func PageName(urlPath string) string {
	switch urlPath {
	case "", "/", "/index", "/index.html":
		return "home"
	}
	base := path.Base(strings.TrimRight(urlPath, "/"))
	if base == "." || base == "/" {
		return "home"
	}
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "index" {
		// Directory index pages take the directory name.
		return path.Base(path.Dir(strings.TrimRight(urlPath, "/")))
	}
	return name
}
