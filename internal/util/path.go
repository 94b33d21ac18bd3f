// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BaseName strips directory components from a client-supplied file name.
func BaseName(filename string) (string, error) {
	safe := filepath.Base(filepath.FromSlash(strings.ReplaceAll(filename, `\`, "/")))
	if safe == "." || safe == ".." || safe == "" || safe == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return safe, nil
}

// SafeJoinPath joins components onto base and fails if the result escapes it.
func SafeJoinPath(base string, components ...string) (string, error) {
	absBase, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	full, err := filepath.Abs(filepath.Join(append([]string{absBase}, components...)...))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if full != absBase && !strings.HasPrefix(full, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: path escapes base directory")
	}
	return full, nil
}

// ContainsPathTraversal reports whether path climbs out of its root once cleaned.
func ContainsPathTraversal(path string) bool {
	cleaned := filepath.Clean(path)
	return cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) ||
		strings.Contains(cleaned, string(filepath.Separator)+".."+string(filepath.Separator))
}
