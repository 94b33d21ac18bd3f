// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/chapel-cms/internal/content"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/store"
)

// MaxSectionLength limits section identifiers.
const MaxSectionLength = 100

// Actor identifies who performs a write, for audit records.
type Actor struct {
	UserID string
	Email  string
	IP     string
}

// ContentService validates, sanitizes and stores content sections.
type ContentService struct {
	repo      store.ContentRepository
	sanitizer *content.Sanitizer
	events    *EventService
	now       func() time.Time
}

// NewContentService creates a content service. events may be nil.
func NewContentService(repo store.ContentRepository, sanitizer *content.Sanitizer, events *EventService) *ContentService {
	return &ContentService{repo: repo, sanitizer: sanitizer, events: events, now: time.Now}
}

// Pages returns the distinct pages that have stored sections.
func (s *ContentService) Pages(ctx context.Context) ([]string, error) {
	return s.repo.ListPages(ctx)
}

// PageCounts returns the number of sections per page.
func (s *ContentService) PageCounts(ctx context.Context) ([]store.PageCount, error) {
	return s.repo.CountSectionsByPage(ctx)
}

// Sections returns every section of page.
func (s *ContentService) Sections(ctx context.Context, page string) ([]store.Content, error) {
	if err := validatePage(page); err != nil {
		return nil, err
	}
	return s.repo.ListContentByPage(ctx, page)
}

// Section returns one section.
func (s *ContentService) Section(ctx context.Context, page, section string) (store.Content, error) {
	if err := validatePage(page); err != nil {
		return store.Content{}, err
	}
	doc, err := s.repo.GetContent(ctx, page, section)
	if errors.Is(err, store.ErrNotFound) {
		return store.Content{}, ErrNotFound
	}
	return doc, err
}

// Save sanitizes value and upserts it as the content of (page, section).
func (s *ContentService) Save(ctx context.Context, page, section string, value any, actor Actor) (store.Content, error) {
	if err := validatePage(page); err != nil {
		return store.Content{}, err
	}
	if err := validateSection(section); err != nil {
		return store.Content{}, err
	}
	if value == nil {
		return store.Content{}, invalidField("content", "Content is required")
	}

	doc, err := s.repo.UpsertContent(ctx, store.UpsertContentParams{
		Page:      page,
		Section:   section,
		Value:     s.sanitizer.Value(value),
		UpdatedBy: actor.UserID,
		Now:       s.now().UTC(),
	})
	if err != nil {
		return store.Content{}, fmt.Errorf("saving %s/%s: %w", page, section, err)
	}

	s.audit(ctx, "Content saved", page, section, actor)
	return doc, nil
}

// Delete removes a section.
func (s *ContentService) Delete(ctx context.Context, page, section string, actor Actor) error {
	if err := validatePage(page); err != nil {
		return err
	}
	if err := s.repo.DeleteContent(ctx, page, section); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting %s/%s: %w", page, section, err)
	}

	s.audit(ctx, "Content deleted", page, section, actor)
	return nil
}

func (s *ContentService) audit(ctx context.Context, message, page, section string, actor Actor) {
	if s.events == nil {
		return
	}
	_ = s.events.LogContentEvent(ctx, model.EventLevelInfo, message, actor.UserID, actor.IP, map[string]any{
		"page":    page,
		"section": section,
	})
}

func validatePage(page string) error {
	if !model.ValidPage(page) {
		return invalidField("page", fmt.Sprintf("Invalid page: must be one of %s", strings.Join(model.Pages, ", ")))
	}
	return nil
}

func validateSection(section string) error {
	if strings.TrimSpace(section) == "" {
		return invalidField("section", "Section is required")
	}
	if utf8.RuneCountInString(section) > MaxSectionLength {
		return invalidField("section", fmt.Sprintf("Section must be at most %d characters", MaxSectionLength))
	}
	return nil
}
