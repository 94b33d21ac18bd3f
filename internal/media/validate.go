// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package media validates uploads and stores them on local disk or in an
// S3-compatible bucket.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

// Validation errors.
var (
	ErrTooLarge        = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("file type is not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

// MIME types accepted for upload.
const (
	MimeTypeJPEG      = "image/jpeg"
	MimeTypePNG       = "image/png"
	MimeTypeGIF       = "image/gif"
	MimeTypeWebP      = "image/webp"
	MimeTypeSVG       = "image/svg+xml"
	MimeTypeMP4       = "video/mp4"
	MimeTypeWebM      = "video/webm"
	MimeTypeQuickTime = "video/quicktime"
)

var svgActiveContent = regexp.MustCompile(`(?i)<script|<foreignobject|\son[a-z]+\s*=|javascript:`)

// SniffLen is the number of leading bytes inspected for content detection.
const SniffLen = 512

// allowedTypes maps each accepted extension to the content types it may carry.
var allowedTypes = map[string][]string{
	".jpg":  {MimeTypeJPEG},
	".jpeg": {MimeTypeJPEG},
	".png":  {MimeTypePNG},
	".gif":  {MimeTypeGIF},
	".webp": {MimeTypeWebP},
	".svg":  {MimeTypeSVG},
	".mp4":  {MimeTypeMP4},
	".webm": {MimeTypeWebM},
	".mov":  {MimeTypeQuickTime, MimeTypeMP4},
}

// AllowedExtensions returns the accepted file extensions.
func AllowedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".mp4", ".webm", ".mov"}
}

// Validate checks the extension of filename against the sniffed content type
// of head and returns the normalized extension and MIME type.
func Validate(filename string, head []byte) (ext, mimeType string, err error) {
	if len(head) == 0 {
		return "", "", ErrEmptyFile
	}

	ext = strings.ToLower(filepath.Ext(filename))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}

	mimeType = DetectMimeType(head)
	for _, want := range allowed {
		if mimeType == want {
			if ext == ".jpeg" {
				ext = ".jpg"
			}
			return ext, mimeType, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s content in a %s file", ErrUnsupportedType, mimeType, ext)
}

// DetectMimeType sniffs the content type of data. SVG and QuickTime, which
// http.DetectContentType does not recognize, are detected separately.
func DetectMimeType(data []byte) string {
	if len(data) > SniffLen {
		data = data[:SniffLen]
	}
	if isQuickTime(data) {
		return MimeTypeQuickTime
	}

	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	if (contentType == "text/xml" || contentType == "text/plain") && isSVG(data) {
		return MimeTypeSVG
	}
	return contentType
}

func isSVG(data []byte) bool {
	return bytes.Contains(bytes.ToLower(data), []byte("<svg"))
}

// CheckSVG rejects SVG documents that carry scripts or event handlers.
func CheckSVG(data []byte) error {
	if svgActiveContent.Match(data) {
		return fmt.Errorf("%w: svg with active content", ErrUnsupportedType)
	}
	return nil
}

// isQuickTime matches an ftyp box with the "qt  " major brand.
func isQuickTime(data []byte) bool {
	return len(data) >= 12 && string(data[4:8]) == "ftyp" && string(data[8:12]) == "qt  "
}

// IsImage reports whether mimeType is one of the accepted image types.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// ValidName reports whether name is a stored file name: a single path element
// with an accepted extension.
func ValidName(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := allowedTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MimeTypeForName returns the canonical MIME type for a stored file name.
func MimeTypeForName(name string) string {
	if types, ok := allowedTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return types[0]
	}
	return "application/octet-stream"
}
