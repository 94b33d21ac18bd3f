// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/testutil"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newMediaService(t *testing.T, maxBytes int64) (*MediaService, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := media.NewLocal(dir)
	require.NoError(t, err)
	return NewMediaService(storage, maxBytes, testutil.TestLoggerSilent()), dir
}

func TestMediaUpload_StoresUnderRandomName(t *testing.T) {
	svc, dir := newMediaService(t, 1<<20)

	file, err := svc.Upload(context.Background(), bytes.NewReader(pngBytes(t, 20, 10)), "Church Picnic.PNG")
	require.NoError(t, err)

	assert.Equal(t, "Church Picnic.PNG", file.OriginalName)
	assert.True(t, strings.HasSuffix(file.Filename, ".png"))
	assert.NotContains(t, file.Filename, "Picnic")
	assert.Equal(t, "/uploads/"+file.Filename, file.Path)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, 20, file.Width)
	assert.Empty(t, file.Thumbnail, "small images get no thumbnail")

	info, err := os.Stat(filepath.Join(dir, file.Filename))
	require.NoError(t, err)
	assert.Equal(t, file.Size, info.Size())
}

func TestMediaUpload_LargeImageGetsThumbnail(t *testing.T) {
	svc, dir := newMediaService(t, 5<<20)

	file, err := svc.Upload(context.Background(), bytes.NewReader(pngBytes(t, 900, 300)), "banner.png")
	require.NoError(t, err)
	require.NotEmpty(t, file.Thumbnail)

	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(file.Thumbnail, "/uploads/")))
	assert.NoError(t, err)

	// Thumbnails are not listed as library files.
	files, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, file.Filename, files[0].Filename)

	require.NoError(t, svc.Delete(context.Background(), file.Filename))
	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(file.Thumbnail, "/uploads/")))
	assert.True(t, os.IsNotExist(err), "thumbnail should be deleted with the file")
}

func TestMediaUpload_TooLarge(t *testing.T) {
	svc, _ := newMediaService(t, 100)

	_, err := svc.Upload(context.Background(), bytes.NewReader(make([]byte, 101)), "big.png")
	assert.ErrorIs(t, err, media.ErrTooLarge)
}

func TestMediaUpload_RejectsDisallowedTypes(t *testing.T) {
	svc, _ := newMediaService(t, 1<<20)

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"executable extension", "setup.exe", []byte("MZ\x90\x00")},
		{"text renamed to png", "notes.png", []byte("just some text")},
		{"png renamed to mp4", "clip.mp4", pngBytes(t, 2, 2)},
		{"svg with script", "logo.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)},
		{"empty file", "empty.jpg", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), bytes.NewReader(tt.data), tt.filename)
			require.Error(t, err)
			assert.True(t, errors.Is(err, media.ErrUnsupportedType) || errors.Is(err, media.ErrEmptyFile), "got %v", err)
		})
	}
}

func TestMediaUpload_AcceptsSVG(t *testing.T) {
	svc, _ := newMediaService(t, 1<<20)

	svg := `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`
	file, err := svc.Upload(context.Background(), strings.NewReader(svg), "logo.svg")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", file.MimeType)
}

func TestMediaDelete(t *testing.T) {
	svc, _ := newMediaService(t, 1<<20)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, "../config.png"), ErrValidation)
	assert.ErrorIs(t, svc.Delete(ctx, "missing.png"), ErrNotFound)

	file, err := svc.Upload(ctx, bytes.NewReader(pngBytes(t, 4, 4)), "a.png")
	require.NoError(t, err)

	f, obj, err := svc.Open(ctx, file.Filename)
	require.NoError(t, err)
	_ = f.Close()
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, svc.Delete(ctx, file.Filename))
	_, _, err = svc.Open(ctx, file.Filename)
	assert.ErrorIs(t, err, ErrNotFound)
}
