package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0, 1, 2, 3}

func newTestImageStore(t *testing.T) *ImageStore {
	t.Helper()
	s, err := NewImageStore(t.TempDir(), "profile-images", "/api/uploads/profile-images/")
	if err != nil {
		t.Fatalf("NewImageStore: %v", err)
	}
	return s
}

func TestSaveAndRemove(t *testing.T) {
	s := newTestImageStore(t)

	url, err := s.Save("user-1-abc", pngHeader, "application/octet-stream")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "/api/uploads/profile-images/user-1-abc.png" {
		t.Errorf("url: got %q", url)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "user-1-abc.png")); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}

	s.Remove(url)
	if _, err := os.Stat(filepath.Join(s.Dir(), "user-1-abc.png")); !os.IsNotExist(err) {
		t.Error("file survived Remove")
	}
	// Removing again is fine.
	s.Remove(url)
}

func TestSave_FallsBackToMIME(t *testing.T) {
	s := newTestImageStore(t)

	// No recognizable magic bytes, but a declared image type.
	url, err := s.Save("user-1-xyz", []byte("not really an image, but long enough"), "image/webp")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(url, ".webp") {
		t.Errorf("url: got %q, want .webp suffix", url)
	}
}

func TestSave_RejectsUnknownContent(t *testing.T) {
	s := newTestImageStore(t)

	if _, err := s.Save("user-1-bad", []byte("plain text content here"), "text/plain"); err == nil {
		t.Error("Save accepted non-image content")
	}
	if _, err := s.Save("user-1-empty", nil, "image/png"); err == nil {
		t.Error("Save accepted empty data")
	}
}

func TestRemove_IgnoresForeignAndTraversalURLs(t *testing.T) {
	s := newTestImageStore(t)

	outside := filepath.Join(s.Dir(), "..", "escape.txt")
	if err := os.WriteFile(outside, []byte("keep me"), 0644); err != nil {
		t.Fatal(err)
	}

	s.Remove("/api/uploads/featured-images/other.png")
	s.Remove("/api/uploads/profile-images/../escape.txt")

	if _, err := os.Stat(outside); err != nil {
		t.Error("traversal URL escaped the store directory")
	}
}

func TestOwns(t *testing.T) {
	s := newTestImageStore(t)

	if !s.Owns("/api/uploads/profile-images/a.png") {
		t.Error("Owns rejected a store URL")
	}
	if s.Owns("https://example.com/a.png") {
		t.Error("Owns accepted an external URL")
	}
}

func TestDetectImageExtension(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", append([]byte{0xff, 0xd8, 0xff}, make([]byte, 12)...), "jpg"},
		{"png", pngHeader, "png"},
		{"gif89a", append([]byte("GIF89a"), make([]byte, 8)...), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"short", []byte{0xff, 0xd8}, ""},
		{"unknown", []byte("0123456789abcdef"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectImageExtension(tt.data); got != tt.want {
				t.Errorf("DetectImageExtension(%s) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
