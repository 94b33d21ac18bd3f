// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olegiv/chapel-cms/internal/util"
)

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("media file not found")

// ThumbnailPrefix is the key prefix of generated thumbnails.
const ThumbnailPrefix = "thumbs/"

// Object describes a stored file.
type Object struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ReadSeekCloser is a stored file opened for serving.
type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

// Storage persists uploaded files under flat names. Names may carry the
// ThumbnailPrefix; List returns top-level files only.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (ReadSeekCloser, Object, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Object, error)
}

// Local stores files in a directory on disk.
type Local struct {
	dir string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, ThumbnailPrefix), 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// path resolves name inside the upload directory and rejects traversal.
func (l *Local) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || util.ContainsPathTraversal(clean) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return util.SafeJoinPath(l.dir, clean)
}

// Put writes r to name, replacing any existing file.
func (l *Local) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	target, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return fmt.Errorf("writing file: %w", err)
	}
	return out.Close()
}

// Open opens name for reading.
func (l *Local) Open(_ context.Context, name string) (ReadSeekCloser, Object, error) {
	target, err := l.path(name)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Object{}, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, Object{}, ErrNotFound
	}
	return f, Object{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes name.
func (l *Local) Delete(_ context.Context, name string) error {
	target, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List returns the top-level files, newest first.
func (l *Local) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}

	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sortNewestFirst(objects)
	return objects, nil
}

func sortNewestFirst(objects []Object) {
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].ModTime.Equal(objects[j].ModTime) {
			return objects[i].Name < objects[j].Name
		}
		return objects[i].ModTime.After(objects[j].ModTime)
	})
}
