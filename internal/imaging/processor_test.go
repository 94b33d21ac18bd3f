// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strconv"
	"testing"
)

// createTestImage creates a simple test image with the given dimensions.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(width, height)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(width, height), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_PNGKeptAsIs(t *testing.T) {
	data := encodePNG(t, 30, 20)

	res, err := NewProcessor().Normalize(data)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(res.Data, data) {
		t.Error("PNG data should be stored unchanged")
	}
	if res.Width != 30 || res.Height != 20 {
		t.Errorf("dimensions = %dx%d, want 30x20", res.Width, res.Height)
	}
	if res.MimeType != "image/png" || res.Ext() != ".png" {
		t.Errorf("MimeType = %q, Ext = %q", res.MimeType, res.Ext())
	}
}

func TestNormalize_JPEGReencoded(t *testing.T) {
	res, err := NewProcessor().Normalize(encodeJPEG(t, 40, 10))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Format != "jpeg" || res.Ext() != ".jpg" {
		t.Errorf("Format = %q, Ext = %q", res.Format, res.Ext())
	}
	if res.Width != 40 || res.Height != 10 {
		t.Errorf("dimensions = %dx%d, want 40x10", res.Width, res.Height)
	}
}

func TestNormalize_RejectsNonImages(t *testing.T) {
	_, err := NewProcessor().Normalize([]byte("plain text, not an image"))
	if err != ErrUnsupportedFormat {
		t.Errorf("Normalize() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestThumbnail(t *testing.T) {
	p := NewProcessor()

	small, err := p.Thumbnail(encodePNG(t, 100, 50))
	if err != nil {
		t.Fatalf("Thumbnail(small): %v", err)
	}
	if small != nil {
		t.Error("image within the thumbnail box should not get a thumbnail")
	}

	large, err := p.Thumbnail(encodePNG(t, 800, 200))
	if err != nil {
		t.Fatalf("Thumbnail(large): %v", err)
	}
	if large == nil {
		t.Fatal("expected a thumbnail for an oversized image")
	}
	if large.Width != DefaultThumbnailWidth || large.Height != 100 {
		t.Errorf("thumbnail = %dx%d, want %dx100", large.Width, large.Height, DefaultThumbnailWidth)
	}
	if large.Format != "png" {
		t.Errorf("thumbnail format = %q, want png", large.Format)
	}
}

func TestIsProcessable(t *testing.T) {
	tests := []struct {
		mimeType string
		want     bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/gif", true},
		{"image/webp", true},
		{"image/svg+xml", false},
		{"video/mp4", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			if got := IsProcessable(tt.mimeType); got != tt.want {
				t.Errorf("IsProcessable(%q) = %v, want %v", tt.mimeType, got, tt.want)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg magic bytes", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png magic bytes", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"gif magic bytes", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "gif"},
		{"unknown", []byte{0x00, 0x01, 0x02, 0x03}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.data); got != tt.want {
				t.Errorf("detectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyOrientation(t *testing.T) {
	img := createTestImage(20, 10)

	for _, orientation := range []int{0, 1, 2, 3, 4, 9} {
		t.Run("keeps_size_"+strconv.Itoa(orientation), func(t *testing.T) {
			b := applyOrientation(img, orientation).Bounds()
			if b.Dx() != 20 || b.Dy() != 10 {
				t.Errorf("orientation %d: got %dx%d, want 20x10", orientation, b.Dx(), b.Dy())
			}
		})
	}

	for _, orientation := range []int{5, 6, 7, 8} {
		t.Run("swaps_size_"+strconv.Itoa(orientation), func(t *testing.T) {
			b := applyOrientation(img, orientation).Bounds()
			if b.Dx() != 10 || b.Dy() != 20 {
				t.Errorf("orientation %d: got %dx%d, want 10x20", orientation, b.Dx(), b.Dy())
			}
		})
	}
}
