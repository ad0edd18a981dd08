package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/normalize"
	"github.com/bookclubapp/bookclub-server/internal/storage"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// SettingsService manages club-wide settings, currently the rotating
// pool of featured-image fallback URLs.
type SettingsService struct {
	store          *sqlite.Store
	featuredImages *storage.ImageStore
	logger         *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store *sqlite.Store, featuredImages *storage.ImageStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{store: store, featuredImages: featuredImages, logger: logger}
}

// FallbackURLs returns the sanitized featured-image fallback pool. A
// stored value that sanitization changes is rewritten in place, so bad
// entries heal themselves on read.
func (s *SettingsService) FallbackURLs(ctx context.Context) ([]string, error) {
	raw, err := s.store.GetSetting(ctx, domain.SettingFeaturedImageFallbacks)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return []string{}, nil
	}

	var stored []string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("discarding unreadable fallback pool setting", "error", err)
		stored = nil
	}

	urls := sanitizeFallbackURLs(stored)
	if encoded := encodeFallbackURLs(urls); encoded != raw {
		if err := s.store.SetSetting(ctx, domain.SettingFeaturedImageFallbacks, encoded); err != nil {
			return nil, err
		}
	}
	return urls, nil
}

// SaveFallbackURLs replaces the fallback pool. Uploaded images dropped
// from the pool are deleted from disk when nothing else references
// them.
func (s *SettingsService) SaveFallbackURLs(ctx context.Context, urls []string) ([]string, error) {
	previous, err := s.FallbackURLs(ctx)
	if err != nil {
		return nil, err
	}

	sanitized := sanitizeFallbackURLs(urls)
	if err := s.store.SetSetting(ctx, domain.SettingFeaturedImageFallbacks, encodeFallbackURLs(sanitized)); err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(sanitized))
	for _, url := range sanitized {
		kept[url] = true
	}
	for _, url := range previous {
		if !kept[url] {
			if err := s.ReleaseFeaturedImageIfUnused(ctx, url); err != nil {
				s.logger.Warn("failed to clean up removed fallback image", "url", url, "error", err)
			}
		}
	}
	return sanitized, nil
}

// AddFallbackURL appends a URL to the pool, subject to the pool cap.
func (s *SettingsService) AddFallbackURL(ctx context.Context, url string) ([]string, error) {
	urls, err := s.FallbackURLs(ctx)
	if err != nil {
		return nil, err
	}
	if len(urls) >= domain.FeaturedImageFallbackLimit {
		return nil, apperrors.Validationf("The fallback pool is limited to %d images.", domain.FeaturedImageFallbackLimit)
	}

	sanitized := sanitizeFallbackURLs(append(urls, url))
	if err := s.store.SetSetting(ctx, domain.SettingFeaturedImageFallbacks, encodeFallbackURLs(sanitized)); err != nil {
		return nil, err
	}
	return sanitized, nil
}

// RemoveFallbackURL drops one URL from the pool and cleans up its
// stored image when orphaned.
func (s *SettingsService) RemoveFallbackURL(ctx context.Context, url string) ([]string, error) {
	urls, err := s.FallbackURLs(ctx)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(urls))
	found := false
	for _, existing := range urls {
		if existing == url {
			found = true
			continue
		}
		remaining = append(remaining, existing)
	}
	if !found {
		return nil, apperrors.NotFound("Fallback image not found.")
	}

	if err := s.store.SetSetting(ctx, domain.SettingFeaturedImageFallbacks, encodeFallbackURLs(remaining)); err != nil {
		return nil, err
	}
	if err := s.ReleaseFeaturedImageIfUnused(ctx, url); err != nil {
		s.logger.Warn("failed to clean up removed fallback image", "url", url, "error", err)
	}
	return remaining, nil
}

// ReleaseFeaturedImageIfUnused deletes a stored featured image from
// disk once no book and no fallback-pool entry references it. URLs not
// served from the featured-image store are left alone.
func (s *SettingsService) ReleaseFeaturedImageIfUnused(ctx context.Context, url string) error {
	if url == "" || !s.featuredImages.Owns(url) {
		return nil
	}

	count, err := s.store.CountBooksByFeaturedImage(ctx, url)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	urls, err := s.FallbackURLs(ctx)
	if err != nil {
		return err
	}
	for _, existing := range urls {
		if existing == url {
			return nil
		}
	}

	s.featuredImages.Remove(url)
	return nil
}

func sanitizeFallbackURLs(raw []string) []string {
	urls := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, entry := range raw {
		url := normalize.HTTPOrRootRelativeURL(entry)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		urls = append(urls, url)
		if len(urls) == domain.FeaturedImageFallbackLimit {
			break
		}
	}
	return urls
}

func encodeFallbackURLs(urls []string) string {
	encoded, _ := json.Marshal(urls)
	return string(encoded)
}
