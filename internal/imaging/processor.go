// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded raster images and builds thumbnails.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// ErrUnsupportedFormat is returned for data that is not a processable raster image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Default processing settings.
const (
	DefaultQuality         = 90
	DefaultThumbnailWidth  = 400
	DefaultThumbnailHeight = 400
)

// Result is an encoded image and its dimensions.
type Result struct {
	Data     []byte
	Width    int
	Height   int
	Format   string // jpeg, png, gif or webp
	MimeType string
}

// Ext returns the file extension matching the encoded format.
func (r *Result) Ext() string {
	if r.Format == "jpeg" {
		return ".jpg"
	}
	return "." + r.Format
}

// Processor handles image processing operations using pure Go libraries.
type Processor struct {
	quality     int
	thumbWidth  int
	thumbHeight int
}

// NewProcessor creates a processor with the default quality and thumbnail box.
func NewProcessor() *Processor {
	return &Processor{
		quality:     DefaultQuality,
		thumbWidth:  DefaultThumbnailWidth,
		thumbHeight: DefaultThumbnailHeight,
	}
}

// Normalize prepares an uploaded image for storage. JPEGs are rotated
// according to their EXIF orientation and re-encoded, which also drops the
// EXIF block. Other formats are kept byte for byte.
func (p *Processor) Normalize(data []byte) (*Result, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	if format != "jpeg" {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read image config: %w", err)
		}
		return &Result{
			Data:     data,
			Width:    cfg.Width,
			Height:   cfg.Height,
			Format:   format,
			MimeType: formatToMimeType(format),
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	processed, err := encodeImage(img, format, p.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	bounds := img.Bounds()
	return &Result{
		Data:     processed,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Format:   format,
		MimeType: formatToMimeType(format),
	}, nil
}

// Thumbnail returns a copy of the image fitted into the thumbnail box, or nil
// when the image already fits.
func (p *Processor) Thumbnail(data []byte) (*Result, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= p.thumbWidth && bounds.Dy() <= p.thumbHeight {
		return nil, nil
	}

	resized := imaging.Fit(img, p.thumbWidth, p.thumbHeight, imaging.Lanczos)

	// WebP has no pure Go encoder.
	if format == "webp" {
		format = "jpeg"
	}
	out, err := encodeImage(resized, format, p.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	rb := resized.Bounds()
	return &Result{
		Data:     out,
		Width:    rb.Dx(),
		Height:   rb.Dy(),
		Format:   format,
		MimeType: formatToMimeType(format),
	}, nil
}

// IsProcessable reports whether the MIME type is a raster format this package can decode.
func IsProcessable(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
// Orientation values:
// 1: Normal
// 2: Flip horizontal
// 3: Rotate 180°
// 4: Flip vertical
// 5: Rotate 90° CW + flip horizontal
// 6: Rotate 90° CW
// 7: Rotate 90° CCW + flip horizontal
// 8: Rotate 90° CCW
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func formatToMimeType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
