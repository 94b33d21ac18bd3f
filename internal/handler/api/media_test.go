// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/service"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.RGBA{B: 180, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func listFiles(t *testing.T, env *testEnv, token string) []service.MediaFile {
	t.Helper()
	rec := env.do(http.MethodGet, "/api/media/files", token, nil)
	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Data []service.MediaFile `json:"data"`
	}
	decode(t, rec, &resp)
	return resp.Data
}

func TestUpload_StoresAndLists(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login("editor@church.test")

	rec := env.upload("/api/media/upload", token, "file", map[string][]byte{"choir.png": pngBytes(t, 40, 30)})
	assertStatusCode(t, rec, http.StatusCreated)

	var resp struct {
		Data service.MediaFile `json:"data"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "choir.png", resp.Data.OriginalName)
	assert.Equal(t, "image/png", resp.Data.MimeType)
	assert.True(t, strings.HasPrefix(resp.Data.Path, "/uploads/"))
	assert.Equal(t, "/uploads/"+resp.Data.Filename, resp.Data.Path)

	_, err := os.Stat(filepath.Join(env.dir, resp.Data.Filename))
	require.NoError(t, err)

	files := listFiles(t, env, token)
	require.Len(t, files, 1)
	assert.Equal(t, resp.Data.Filename, files[0].Filename)

	rec = env.do(http.MethodDelete, "/api/media/files/"+resp.Data.Filename, token, nil)
	assertStatusCode(t, rec, http.StatusNoContent)
	assert.Empty(t, listFiles(t, env, token))

	events, _, err := env.events.List(t.Context(), 10, 0)
	require.NoError(t, err)
	var messages []string
	for _, e := range events {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Media uploaded")
	assert.Contains(t, messages, "Media deleted")
}

func TestUpload_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.upload("/api/media/upload", "", "file", map[string][]byte{"a.png": pngBytes(t, 2, 2)})
	assertStatusCode(t, rec, http.StatusUnauthorized)
}

func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, envOptions{maxUploadBytes: 512})
	token := env.login("editor@church.test")

	big := append(pngBytes(t, 4, 4), bytes.Repeat([]byte{0}, 2048)...)
	rec := env.upload("/api/media/upload", token, "file", map[string][]byte{"banner.png": big})
	assertStatusCode(t, rec, http.StatusRequestEntityTooLarge)
	assertErrorResponse(t, rec, "file_too_large")

	assert.Empty(t, listFiles(t, env, token), "no file may be stored for a rejected upload")
}

func TestUpload_RejectsDisallowedTypes(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login("editor@church.test")

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"extension not allowed", "notes.txt", []byte("hello")},
		{"content does not match extension", "photo.png", []byte("#!/bin/sh\necho pwned\n")},
		{"script in svg", "logo.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload("/api/media/upload", token, "file", map[string][]byte{tt.file: tt.data})
			assertStatusCode(t, rec, http.StatusUnprocessableEntity)
			resp := assertErrorResponse(t, rec, "validation_error")
			assert.Contains(t, resp.Error.Details, "file")
		})
	}
	assert.Empty(t, listFiles(t, env, token))
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login("editor@church.test")

	rec := env.upload("/api/media/upload", token, "other", map[string][]byte{"a.png": pngBytes(t, 2, 2)})
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
}

func TestUploadMultiple(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login("editor@church.test")

	rec := env.upload("/api/media/upload-multiple", token, "files", map[string][]byte{
		"one.png": pngBytes(t, 3, 3),
		"two.png": pngBytes(t, 5, 5),
	})
	assertStatusCode(t, rec, http.StatusCreated)
	var resp struct {
		Data []service.MediaFile `json:"data"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Data, 2)
	assert.Len(t, listFiles(t, env, token), 2)
}

func TestUploadMultiple_AllOrNothing(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login("editor@church.test")

	rec := env.upload("/api/media/upload-multiple", token, "files", map[string][]byte{
		"good.png": pngBytes(t, 3, 3),
		"bad.exe":  []byte("MZ"),
	})
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
	assert.Empty(t, listFiles(t, env, token))
}

func TestUpload_RateLimited(t *testing.T) {
	env := newTestEnv(t, envOptions{uploadLimiter: middleware.NewRateLimiter("upload", 0.01, 1)})
	token := env.login("editor@church.test")

	rec := env.upload("/api/media/upload", token, "file", map[string][]byte{"a.png": pngBytes(t, 2, 2)})
	assertStatusCode(t, rec, http.StatusCreated)

	rec = env.upload("/api/media/upload", token, "file", map[string][]byte{"b.png": pngBytes(t, 2, 2)})
	assertStatusCode(t, rec, http.StatusTooManyRequests)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
