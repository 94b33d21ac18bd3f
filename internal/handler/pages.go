// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/content"
	"github.com/olegiv/chapel-cms/internal/editor"
	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
	"github.com/olegiv/chapel-cms/internal/util"
)

// multipartMemory is the in-memory part of a parsed editor form.
const multipartMemory = 8 << 20

// maxEditorUploads bounds the files accepted in one editor submission.
const maxEditorUploads = 10

// PagesHandler handles the page editor.
type PagesHandler struct {
	contents   *service.ContentService
	media      *service.MediaService
	classifier *content.Classifier
	editor     *editor.Renderer
	renderer   *render.Renderer
	metrics    *metrics.Metrics
}

// NewPagesHandler creates a new PagesHandler. m may be nil.
func NewPagesHandler(contents *service.ContentService, mediaSvc *service.MediaService, classifier *content.Classifier,
	ed *editor.Renderer, renderer *render.Renderer, m *metrics.Metrics) *PagesHandler {
	return &PagesHandler{
		contents:   contents,
		media:      mediaSvc,
		classifier: classifier,
		editor:     ed,
		renderer:   renderer,
		metrics:    m,
	}
}

// SectionView is one section of the page editor.
type SectionView struct {
	Section   string
	Editor    template.HTML
	Preview   template.HTML
	UpdatedAt time.Time
	Error     string
	Unsaved   bool
}

// PageEditorData holds data for the page editor.
type PageEditorData struct {
	Page        string
	Pages       []string
	Sections    []SectionView
	MaxUploadMB int64
}

// editorState overrides one section with unsaved, posted content.
type editorState struct {
	section string
	value   any
	err     string
}

// Edit handles GET /admin/pages/{page}.
func (h *PagesHandler) Edit(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	if !model.ValidPage(page) {
		http.NotFound(w, r)
		return
	}
	h.renderEditor(w, r, page, http.StatusOK, nil)
}

func (h *PagesHandler) renderEditor(w http.ResponseWriter, r *http.Request, page string, status int, state *editorState) {
	sections, err := h.contents.Sections(r.Context(), page)
	if err != nil {
		logAndInternalError(w, "failed to load sections", "page", page, "error", err)
		return
	}

	data := PageEditorData{Page: page, Pages: model.Pages, MaxUploadMB: h.media.MaxBytes() >> 20}
	for _, s := range sections {
		value := s.Value
		view := SectionView{Section: s.Section, UpdatedAt: s.UpdatedAt}
		if state != nil && state.section == s.Section {
			value = state.value
			view.Error = state.err
			view.Unsaved = true
		}

		node := h.classifier.Build(page, s.Section, value)
		if view.Editor, err = h.editor.Editor(node); err != nil {
			logAndInternalError(w, "failed to render editor", "page", page, "section", s.Section, "error", err)
			return
		}
		if view.Preview, err = h.editor.Preview(node); err != nil {
			logAndInternalError(w, "failed to render preview", "page", page, "section", s.Section, "error", err)
			return
		}
		data.Sections = append(data.Sections, view)
	}

	h.renderer.RenderPageStatus(w, r, "admin/page_editor", status, render.TemplateData{
		Title: "Edit " + content.Humanize(page),
		User:  middleware.GetUser(r),
		Nav:   navPages,
		Data:  data,
		Breadcrumbs: []render.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: content.Humanize(page), Active: true},
		},
	})
}

// SaveSection handles POST /admin/pages/{page}/{section}. The submit button
// decides between a plain save and adding or removing a list item; all
// three apply the posted fields first. On failure the editor is shown again
// with the posted values so no edit is lost.
func (h *PagesHandler) SaveSection(w http.ResponseWriter, r *http.Request) {
	page, section := chi.URLParam(r, "page"), chi.URLParam(r, "section")
	if !model.ValidPage(page) {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEditorUploads*h.media.MaxBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				flashError(w, r, h.renderer, pageURL(page, section), "The upload is too large.")
				return
			}
			flashError(w, r, h.renderer, pageURL(page, section), "Invalid form data")
			return
		}
		if !parseFormOrRedirect(w, r, h.renderer, pageURL(page, section)) {
			return
		}
	}

	current, err := h.contents.Section(r.Context(), page, section)
	if err != nil {
		flashServiceError(w, r, h.renderer, pageURL(page, ""), "load section", err)
		return
	}

	action, err := editor.ParseAction(r.PostForm)
	if err != nil {
		flashError(w, r, h.renderer, pageURL(page, section), "Invalid editor action")
		return
	}

	fail := func(msg string) {
		posted, aerr := editor.ApplyForm(current.Value, r.PostForm, nil)
		if aerr != nil {
			posted = current.Value
		}
		h.renderEditor(w, r, page, http.StatusUnprocessableEntity, &editorState{section: section, value: posted, err: msg})
	}

	uploads, err := h.storeUploads(r)
	if err != nil {
		fail(uploadMessage(err, h.media.MaxBytes()))
		return
	}

	value, err := editor.ApplyForm(current.Value, r.PostForm, uploads)
	if err == nil {
		value, err = h.applyAction(value, section, action)
	}
	if err != nil {
		h.discard(r.Context(), uploads)
		fail(actionMessage(err))
		return
	}

	if _, err := h.contents.Save(r.Context(), page, section, value, actor(r)); err != nil {
		h.discard(r.Context(), uploads)
		if msg := serviceMessage(err); msg != "" {
			fail(msg)
			return
		}
		slog.Error("failed to save section", "page", page, "section", section, "error", err)
		fail("Saving failed. Your changes are still in the form; please try again.")
		return
	}
	h.metrics.IncContentWrite(page, "save")

	switch action.Kind {
	case editor.ActionAdd:
		flashSuccess(w, r, h.renderer, pageURL(page, section), "Item added.")
	case editor.ActionRemove:
		flashSuccess(w, r, h.renderer, pageURL(page, section), "Item removed.")
	default:
		flashSuccess(w, r, h.renderer, pageURL(page, section), content.Humanize(section)+" saved.")
	}
}

func (h *PagesHandler) applyAction(value any, section string, action editor.Action) (any, error) {
	key := content.ListKey(section, action.List)
	switch action.Kind {
	case editor.ActionAdd:
		policy, ok := h.classifier.Policy(key)
		if !ok {
			return nil, content.ErrNoPolicy
		}
		return content.AppendItem(value, action.List, policy)
	case editor.ActionRemove:
		if _, ok := h.classifier.Policy(key); !ok {
			return nil, content.ErrNoPolicy
		}
		return content.RemoveItem(value, action.List, action.Index)
	}
	return value, nil
}

// storeUploads stores every file of the form and maps its content pointer to
// the stored path. Either all files are stored or none.
func (h *PagesHandler) storeUploads(r *http.Request) (map[string]string, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(r.MultipartForm.File))
	for name := range r.MultipartForm.File {
		names = append(names, name)
	}
	ptrs := editor.UploadFields(names)
	if len(ptrs) > maxEditorUploads {
		return nil, fmt.Errorf("%w: too many files", media.ErrUnsupportedType)
	}

	uploads := make(map[string]string, len(ptrs))
	for _, ptr := range ptrs {
		headers := r.MultipartForm.File[editor.UploadPrefix+ptr]
		if len(headers) == 0 || headers[0].Filename == "" {
			continue
		}
		fh := headers[0]
		if fh.Size > h.media.MaxBytes() {
			h.metrics.ObserveUpload("rejected", 0)
			h.discard(r.Context(), uploads)
			return nil, media.ErrTooLarge
		}

		f, err := fh.Open()
		if err != nil {
			h.discard(r.Context(), uploads)
			return nil, err
		}
		file, err := h.media.Upload(r.Context(), f, fh.Filename)
		_ = f.Close()
		if err != nil {
			h.metrics.ObserveUpload("rejected", 0)
			h.discard(r.Context(), uploads)
			return nil, err
		}
		h.metrics.ObserveUpload("success", file.Size)
		uploads[ptr] = file.Path
	}
	return uploads, nil
}

// discard removes files stored for a submission that was not saved.
func (h *PagesHandler) discard(ctx context.Context, uploads map[string]string) {
	for _, p := range uploads {
		name := strings.TrimPrefix(p, service.UploadURLPrefix)
		if err := h.media.Delete(ctx, name); err != nil {
			slog.Warn("failed to discard upload", "file", name, "error", err)
		}
	}
}

// NewSection handles POST /admin/pages/{page}. The section id is a
// slug of the submitted name; the optional JSON body seeds its content.
func (h *PagesHandler) NewSection(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	if !model.ValidPage(page) {
		http.NotFound(w, r)
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, pageURL(page, "")) {
		return
	}

	section := util.Slugify(r.FormValue("name"))
	if section == "" || !util.IsValidSlug(section) {
		flashError(w, r, h.renderer, pageURL(page, ""), "Please enter a section name using letters or numbers.")
		return
	}

	if _, err := h.contents.Section(r.Context(), page, section); err == nil {
		flashError(w, r, h.renderer, pageURL(page, section), fmt.Sprintf("Section %q already exists.", section))
		return
	} else if !errors.Is(err, service.ErrNotFound) {
		flashServiceError(w, r, h.renderer, pageURL(page, ""), "create section", err)
		return
	}

	var value any = map[string]any{"title": "", "text": ""}
	if raw := strings.TrimSpace(r.FormValue("content")); raw != "" {
		value = content.ParseRaw(raw)
	}

	if _, err := h.contents.Save(r.Context(), page, section, value, actor(r)); err != nil {
		flashServiceError(w, r, h.renderer, pageURL(page, ""), "create section", err)
		return
	}
	h.metrics.IncContentWrite(page, "create")
	flashSuccess(w, r, h.renderer, pageURL(page, section), fmt.Sprintf("Section %q created.", section))
}

// DeleteSection handles POST /admin/pages/{page}/{section}/delete.
func (h *PagesHandler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	page, section := chi.URLParam(r, "page"), chi.URLParam(r, "section")
	if !model.ValidPage(page) {
		http.NotFound(w, r)
		return
	}

	if err := h.contents.Delete(r.Context(), page, section, actor(r)); err != nil {
		flashServiceError(w, r, h.renderer, pageURL(page, ""), "delete section", err)
		return
	}
	h.metrics.IncContentWrite(page, "delete")
	flashSuccess(w, r, h.renderer, pageURL(page, ""), fmt.Sprintf("Section %q deleted.", section))
}

func uploadMessage(err error, maxBytes int64) string {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return "Upload failed: files may be at most " + render.FormatBytes(maxBytes) + ". Your other changes were not saved yet."
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmptyFile):
		return "Upload failed: " + err.Error() + ". Allowed types: " + strings.Join(media.AllowedExtensions(), ", ") + "."
	}
	slog.Error("editor upload failed", "error", err)
	return "Upload failed. Your changes were not saved yet; please try again."
}

func actionMessage(err error) string {
	switch {
	case errors.Is(err, content.ErrItemLimit):
		return "This list already has the maximum number of items."
	case errors.Is(err, content.ErrNoPolicy):
		return "Items cannot be added or removed here."
	case errors.Is(err, content.ErrPathNotFound), errors.Is(err, content.ErrNotAList):
		return "The form no longer matches the stored content. Reload the page and try again."
	}
	return "Could not apply the changes: " + err.Error()
}
