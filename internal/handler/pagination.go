// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"net/http"
	"strconv"
)

// Pagination holds page links for admin lists.
type Pagination struct {
	Current int
	Total   int
	Items   int64
	PrevURL string
	NextURL string
	Links   []PageLink
}

// PageLink is one numbered link; Number 0 marks an ellipsis.
type PageLink struct {
	Number  int
	URL     string
	Current bool
}

// pageParam reads ?page=N, defaulting to 1.
func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// buildPagination links at most five pages around current, plus the first
// and last page.
func buildPagination(current int, items int64, perPage int, baseURL string) Pagination {
	total := int((items + int64(perPage) - 1) / int64(perPage))
	if total < 1 {
		total = 1
	}
	current = min(max(current, 1), total)

	link := func(n int) string { return fmt.Sprintf("%s?page=%d", baseURL, n) }
	p := Pagination{Current: current, Total: total, Items: items}
	if current > 1 {
		p.PrevURL = link(current - 1)
	}
	if current < total {
		p.NextURL = link(current + 1)
	}

	start := max(current-2, 1)
	end := min(start+4, total)
	start = max(end-4, 1)

	if start > 1 {
		p.Links = append(p.Links, PageLink{Number: 1, URL: link(1)})
		if start > 2 {
			p.Links = append(p.Links, PageLink{})
		}
	}
	for i := start; i <= end; i++ {
		p.Links = append(p.Links, PageLink{Number: i, URL: link(i), Current: i == current})
	}
	if end < total {
		if end < total-1 {
			p.Links = append(p.Links, PageLink{})
		}
		p.Links = append(p.Links, PageLink{Number: total, URL: link(total)})
	}
	return p
}
