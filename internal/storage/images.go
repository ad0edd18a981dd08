// Package storage manages uploaded image files on disk.
package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ImageStore stores uploaded images in one directory and hands out the
// public URLs they are served under.
// Thread-safe for concurrent operations.
type ImageStore struct {
	dir       string
	urlPrefix string
	mu        sync.Mutex
}

// NewImageStore creates an image store under {baseDir}/{subdir}. Files
// are addressed publicly as {urlPrefix}{filename}.
func NewImageStore(baseDir, subdir, urlPrefix string) (*ImageStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	if subdir == "" {
		return nil, fmt.Errorf("subdirectory cannot be empty")
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}

	dir := filepath.Join(baseDir, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", subdir, err)
	}

	return &ImageStore{
		dir:       dir,
		urlPrefix: urlPrefix,
	}, nil
}

// Dir returns the directory files are stored in, for static serving.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save writes an uploaded image under the given name stem, picking the
// file extension from the image bytes (falling back to the declared
// MIME type), and returns the public URL. Returns an error for content
// that is not a JPG, PNG, WEBP or GIF image.
func (s *ImageStore) Save(stem string, data []byte, mimeType string) (string, error) {
	if stem == "" {
		return "", fmt.Errorf("file name cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	ext := DetectImageExtension(data)
	if ext == "" {
		ext = ExtensionForMIME(mimeType)
	}
	if ext == "" {
		return "", fmt.Errorf("unsupported image type")
	}

	filename := stem + "." + ext

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return s.urlPrefix + filename, nil
}

// Owns reports whether a public URL points into this store.
func (s *ImageStore) Owns(url string) bool {
	return strings.HasPrefix(url, s.urlPrefix)
}

// Remove deletes the file behind a public URL. URLs outside this store,
// path traversal attempts and already-missing files are ignored;
// cleanup must never break the update that triggered it.
func (s *ImageStore) Remove(url string) {
	if !s.Owns(url) {
		return
	}
	filename := strings.TrimPrefix(url, s.urlPrefix)
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = os.Remove(filepath.Join(s.dir, filename))
}

// DetectImageExtension sniffs the image format from magic bytes.
// Returns "" for anything that is not JPG, PNG, GIF or WEBP.
func DetectImageExtension(data []byte) string {
	if len(data) < 12 {
		return ""
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "jpg"
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}):
		return "png"
	case bytes.HasPrefix(data, []byte("GIF8")) && (data[4] == '7' || data[4] == '9') && data[5] == 'a':
		return "gif"
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	}
	return ""
}

// ExtensionForMIME maps an image MIME type to its file extension.
func ExtensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return ""
}
