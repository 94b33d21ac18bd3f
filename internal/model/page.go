// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Site pages. PageShared holds sections rendered on every page (header, footer).
const (
	PageHome        = "home"
	PageAbout       = "about"
	PageDepartments = "departments"
	PageMedia       = "media"
	PageContact     = "contact"
	PageEvents      = "events"
	PageGive        = "give"
	PageShared      = "shared"
)

// Pages lists every valid page identifier in navigation order.
var Pages = []string{
	PageHome,
	PageAbout,
	PageDepartments,
	PageMedia,
	PageContact,
	PageEvents,
	PageGive,
	PageShared,
}

// ValidPage reports whether page is a known page identifier.
func ValidPage(page string) bool {
	for _, p := range Pages {
		if p == page {
			return true
		}
	}
	return false
}
