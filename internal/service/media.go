// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/chapel-cms/internal/imaging"
	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/util"
)

// UploadURLPrefix is the public path under which stored files are served.
const UploadURLPrefix = "/uploads/"

// MediaFile describes a stored upload as returned to clients.
type MediaFile struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName,omitempty"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	Path         string    `json:"path"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	ModifiedAt   time.Time `json:"modifiedAt,omitzero"`
}

// MediaService handles media file operations.
type MediaService struct {
	storage   media.Storage
	processor *imaging.Processor
	maxBytes  int64
	logger    *slog.Logger
}

// NewMediaService creates a media service writing to storage. Uploads larger
// than maxBytes are rejected.
func NewMediaService(storage media.Storage, maxBytes int64, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{
		storage:   storage,
		processor: imaging.NewProcessor(),
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// MaxBytes returns the upload size cap.
func (s *MediaService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates and stores one file. The stored name is a random UUID with
// the validated extension; the original name is only echoed back.
func (s *MediaService) Upload(ctx context.Context, r io.Reader, originalName string) (*MediaFile, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, media.ErrTooLarge
	}

	ext, mimeType, err := media.Validate(originalName, data)
	if err != nil {
		return nil, err
	}
	if mimeType == media.MimeTypeSVG {
		if err := media.CheckSVG(data); err != nil {
			return nil, err
		}
	}

	stem := uuid.New().String()
	file := &MediaFile{Filename: stem + ext, MimeType: mimeType}
	if base, err := util.BaseName(originalName); err == nil {
		file.OriginalName = base
	}

	if imaging.IsProcessable(mimeType) {
		res, err := s.processor.Normalize(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", media.ErrUnsupportedType, err)
		}
		data = res.Data
		file.Width, file.Height = res.Width, res.Height

		thumb, err := s.processor.Thumbnail(data)
		if err != nil {
			s.logger.Warn("failed to create thumbnail", "file", file.Filename, "error", err)
		} else if thumb != nil {
			name := media.ThumbnailPrefix + stem + thumb.Ext()
			if err := s.storage.Put(ctx, name, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), thumb.MimeType); err != nil {
				s.logger.Warn("failed to store thumbnail", "file", name, "error", err)
			} else {
				file.Thumbnail = UploadURLPrefix + name
			}
		}
	}

	if err := s.storage.Put(ctx, file.Filename, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	file.Size = int64(len(data))
	file.Path = UploadURLPrefix + file.Filename
	file.ModifiedAt = time.Now().UTC()
	return file, nil
}

// List returns the stored files, newest first.
func (s *MediaService) List(ctx context.Context) ([]MediaFile, error) {
	objects, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]MediaFile, 0, len(objects))
	for _, o := range objects {
		if !media.ValidName(o.Name) {
			continue
		}
		files = append(files, MediaFile{
			Filename:   o.Name,
			Size:       o.Size,
			MimeType:   media.MimeTypeForName(o.Name),
			Path:       UploadURLPrefix + o.Name,
			ModifiedAt: o.ModTime,
		})
	}
	return files, nil
}

// Delete removes a stored file and its thumbnail.
func (s *MediaService) Delete(ctx context.Context, name string) error {
	if !media.ValidName(name) {
		return fmt.Errorf("%w: invalid file name", ErrValidation)
	}
	if err := s.storage.Delete(ctx, name); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, ext := range []string{".jpg", ".png", ".gif"} {
		err := s.storage.Delete(ctx, media.ThumbnailPrefix+stem+ext)
		if err == nil || !errors.Is(err, media.ErrNotFound) {
			if err != nil {
				s.logger.Warn("failed to delete thumbnail", "file", name, "error", err)
			}
			break
		}
	}
	return nil
}

// Open opens a stored file or thumbnail for serving.
func (s *MediaService) Open(ctx context.Context, name string) (media.ReadSeekCloser, media.Object, error) {
	check := strings.TrimPrefix(name, media.ThumbnailPrefix)
	if !media.ValidName(check) {
		return nil, media.Object{}, ErrNotFound
	}
	f, obj, err := s.storage.Open(ctx, name)
	if errors.Is(err, media.ErrNotFound) {
		return nil, media.Object{}, ErrNotFound
	}
	if err != nil {
		return nil, media.Object{}, err
	}
	if obj.ContentType == "" {
		obj.ContentType = media.MimeTypeForName(name)
	}
	return f, obj, nil
}
