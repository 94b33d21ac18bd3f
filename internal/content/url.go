// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import "strings"

// ResolveURL resolves a stored media path against base. Absolute URLs and
// root-relative paths are returned unchanged.
func ResolveURL(base, p string) string {
	if p == "" || strings.HasPrefix(p, "http") || strings.HasPrefix(p, "/") {
		return p
	}
	if base == "" {
		return "/" + p
	}
	return strings.TrimRight(base, "/") + "/" + p
}
