// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeValue serializes a content value for storage.
func EncodeValue(v any) (string, error) {
	if v == nil {
		return "", errors.New("content value must not be null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding content: %w", err)
	}
	return string(b), nil
}

// DecodeValue parses stored content, keeping numbers as json.Number so they
// round-trip without float conversion.
func DecodeValue(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	return v, nil
}

const listPages = `SELECT DISTINCT page FROM content_documents ORDER BY page`

// ListPages returns the distinct pages that have at least one section.
func (q *Queries) ListPages(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listPages)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pages := []string{}
	for rows.Next() {
		var page string
		if err := rows.Scan(&page); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

const countSectionsByPage = `SELECT page, COUNT(*) FROM content_documents GROUP BY page ORDER BY page`

// CountSectionsByPage returns the number of sections per page.
func (q *Queries) CountSectionsByPage(ctx context.Context) ([]PageCount, error) {
	rows, err := q.db.QueryContext(ctx, countSectionsByPage)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var counts []PageCount
	for rows.Next() {
		var c PageCount
		if err := rows.Scan(&c.Page, &c.Sections); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

const listContentByPage = `SELECT page, section, content, updated_by, created_at, updated_at
FROM content_documents WHERE page = ? ORDER BY id`

// ListContentByPage returns every section of a page in creation order.
func (q *Queries) ListContentByPage(ctx context.Context, page string) ([]Content, error) {
	rows, err := q.db.QueryContext(ctx, listContentByPage, page)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getContent = `SELECT page, section, content, updated_by, created_at, updated_at
FROM content_documents WHERE page = ? AND section = ?`

// GetContent returns one section or ErrNotFound.
func (q *Queries) GetContent(ctx context.Context, page, section string) (Content, error) {
	c, err := scanContent(q.db.QueryRowContext(ctx, getContent, page, section))
	if errors.Is(err, sql.ErrNoRows) {
		return Content{}, ErrNotFound
	}
	return c, err
}

const upsertContent = `INSERT INTO content_documents (page, section, content, updated_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (page, section) DO UPDATE SET
    content = excluded.content,
    updated_by = excluded.updated_by,
    updated_at = excluded.updated_at
RETURNING page, section, content, updated_by, created_at, updated_at`

// UpsertContent creates or replaces the content of (page, section).
func (q *Queries) UpsertContent(ctx context.Context, arg UpsertContentParams) (Content, error) {
	raw, err := EncodeValue(arg.Value)
	if err != nil {
		return Content{}, err
	}
	row := q.db.QueryRowContext(ctx, upsertContent,
		arg.Page, arg.Section, raw, arg.UpdatedBy, arg.Now, arg.Now)
	return scanContent(row)
}

const deleteContent = `DELETE FROM content_documents WHERE page = ? AND section = ?`

// DeleteContent removes one section; ErrNotFound when nothing matched.
func (q *Queries) DeleteContent(ctx context.Context, page, section string) error {
	res, err := q.db.ExecContext(ctx, deleteContent, page, section)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (Content, error) {
	var (
		c   Content
		raw string
	)
	if err := row.Scan(&c.Page, &c.Section, &raw, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Content{}, err
	}
	v, err := DecodeValue(raw)
	if err != nil {
		return Content{}, fmt.Errorf("section %s/%s: %w", c.Page, c.Section, err)
	}
	c.Value = v
	return c, nil
}
