// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package media

import (
	"errors"
	"testing"
)

var (
	pngHead  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHead = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	gifHead  = []byte("GIF89a\x01\x00\x01\x00")
	svgDoc   = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	qtHead   = []byte("\x00\x00\x00\x14ftypqt  \x00\x00\x00\x00")
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		head     []byte
		wantExt  string
		wantMime string
		wantErr  error
	}{
		{"png", "cross.png", pngHead, ".png", MimeTypePNG, nil},
		{"jpeg normalized", "Choir.JPEG", jpegHead, ".jpg", MimeTypeJPEG, nil},
		{"gif", "bell.gif", gifHead, ".gif", MimeTypeGIF, nil},
		{"svg", "logo.svg", svgDoc, ".svg", MimeTypeSVG, nil},
		{"quicktime", "sermon.mov", qtHead, ".mov", MimeTypeQuickTime, nil},
		{"empty", "cross.png", nil, "", "", ErrEmptyFile},
		{"extension not allowed", "notes.txt", []byte("hello"), "", "", ErrUnsupportedType},
		{"no extension", "cross", pngHead, "", "", ErrUnsupportedType},
		{"content mismatch", "cross.png", []byte("just some text"), "", "", ErrUnsupportedType},
		{"jpeg named png", "cross.png", jpegHead, "", "", ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, mimeType, err := Validate(tt.filename, tt.head)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if ext != tt.wantExt || mimeType != tt.wantMime {
				t.Errorf("Validate() = %q, %q; want %q, %q", ext, mimeType, tt.wantExt, tt.wantMime)
			}
		})
	}
}

func TestCheckSVG(t *testing.T) {
	if err := CheckSVG(svgDoc); err != nil {
		t.Errorf("CheckSVG(plain) = %v", err)
	}

	bad := []string{
		`<svg><script>alert(1)</script></svg>`,
		`<svg onload="alert(1)"></svg>`,
		`<svg><a href="javascript:alert(1)">x</a></svg>`,
		`<svg><foreignObject><div/></foreignObject></svg>`,
	}
	for _, doc := range bad {
		if err := CheckSVG([]byte(doc)); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("CheckSVG(%q) = %v, want ErrUnsupportedType", doc, err)
		}
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"3f2b8c1e-0000-4000-8000-000000000000.jpg", true},
		{"photo.PNG", true},
		{"", false},
		{".hidden.png", false},
		{"../etc/passwd.png", false},
		{`dir\photo.png`, false},
		{"thumbs/photo.jpg", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMimeTypeForName(t *testing.T) {
	if got := MimeTypeForName("a.mov"); got != MimeTypeQuickTime {
		t.Errorf("MimeTypeForName(a.mov) = %q", got)
	}
	if got := MimeTypeForName("a.bin"); got != "application/octet-stream" {
		t.Errorf("MimeTypeForName(a.bin) = %q", got)
	}
	if !IsImage(MimeTypeSVG) || IsImage(MimeTypeMP4) {
		t.Error("IsImage classification wrong")
	}
}
