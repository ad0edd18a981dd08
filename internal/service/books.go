package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/normalize"
	"github.com/bookclubapp/bookclub-server/internal/storage"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// BooksService handles the admin operations that fan out across every
// member's copy of a book identity: featuring, meetings, covers,
// featured images, ISBNs, and deletion.
type BooksService struct {
	store          *sqlite.Store
	covers         *CoverService
	settings       *SettingsService
	featuredImages *storage.ImageStore
	logger         *slog.Logger
}

// NewBooksService creates a new admin book-operations service.
func NewBooksService(store *sqlite.Store, covers *CoverService, settings *SettingsService, featuredImages *storage.ImageStore, logger *slog.Logger) *BooksService {
	return &BooksService{
		store:          store,
		covers:         covers,
		settings:       settings,
		featuredImages: featuredImages,
		logger:         logger,
	}
}

// Feature makes the referenced book the featured pick of its volume in
// every member's catalog.
func (s *BooksService) Feature(ctx context.Context, adminID, bookID string) (*domain.FeatureResult, error) {
	return s.store.FeatureBookForAllUsers(ctx, adminID, bookID)
}

// AssignMeeting schedules a discussion for the book across every
// member's copy.
func (s *BooksService) AssignMeeting(ctx context.Context, adminID, bookID string, startsAt time.Time, location *string) (*domain.FanOutResult, error) {
	if location != nil {
		trimmed := strings.TrimSpace(*location)
		if trimmed == "" {
			location = nil
		} else {
			location = &trimmed
		}
	}
	return s.store.AssignMeetingForAllUsers(ctx, adminID, bookID, startsAt.UTC().Format(time.RFC3339Nano), location)
}

// ClearMeeting removes the book's scheduled discussion everywhere.
func (s *BooksService) ClearMeeting(ctx context.Context, adminID, bookID string) (*domain.FanOutResult, error) {
	return s.store.ClearMeetingForAllUsers(ctx, adminID, bookID)
}

// UpdateThumbnail sets or clears the cover image on every member's
// copy. An empty URL clears the cover.
func (s *BooksService) UpdateThumbnail(ctx context.Context, adminID, bookID, thumbnailURL string) (*domain.FanOutResult, error) {
	var next *string
	if strings.TrimSpace(thumbnailURL) != "" {
		normalized := normalize.CoerceHTTPURL(thumbnailURL)
		if normalized == "" {
			return nil, apperrors.Validation("Cover image URL must be a valid URL.")
		}
		next = &normalized
	}
	return s.store.UpdateThumbnailForAllUsers(ctx, adminID, bookID, next)
}

// SetFeaturedImage stores an uploaded hero image and applies it to
// every member's copy. The replaced image is deleted from disk once
// nothing references it.
func (s *BooksService) SetFeaturedImage(ctx context.Context, adminID, bookID string, data []byte, mimeType string) (*domain.FanOutResult, string, error) {
	url, err := s.featuredImages.Save(fmt.Sprintf("featured-%s-%s", adminID, uuid.NewString()), data, mimeType)
	if err != nil {
		return nil, "", apperrors.Validation("Unsupported image format.")
	}

	result, previous, err := s.store.UpdateFeaturedImageForAllUsers(ctx, adminID, bookID, &url)
	if err != nil {
		s.featuredImages.Remove(url)
		return nil, "", err
	}
	s.releaseFeaturedImage(ctx, previous)
	return result, url, nil
}

// ClearFeaturedImage removes the hero image from every member's copy
// and cleans up the stored file when orphaned.
func (s *BooksService) ClearFeaturedImage(ctx context.Context, adminID, bookID string) (*domain.FanOutResult, error) {
	result, previous, err := s.store.UpdateFeaturedImageForAllUsers(ctx, adminID, bookID, nil)
	if err != nil {
		return nil, err
	}
	s.releaseFeaturedImage(ctx, previous)
	return result, nil
}

// UpdateISBN sets or clears the ISBN on every member's copy. Setting
// an ISBN also resolves a cover (when enrichment is on) and rewrites
// the ThriftBooks purchase link; clearing it removes the link.
func (s *BooksService) UpdateISBN(ctx context.Context, adminID, bookID, isbnInput string) (*domain.ISBNResult, error) {
	var (
		isbn           *string
		coverURL       *string
		thriftBooksURL *string
	)
	if strings.TrimSpace(isbnInput) != "" {
		normalized := normalize.ISBN(isbnInput)
		if normalized == "" {
			return nil, apperrors.Validation("ISBN must be a valid ISBN-10 or ISBN-13.")
		}
		isbn = &normalized

		if cover := s.covers.ResolveCover(ctx, normalized); cover != "" {
			coverURL = &cover
		}
		thrift := ThriftBooksURL(normalized)
		thriftBooksURL = &thrift
	}

	return s.store.UpdateISBNForAllUsers(ctx, adminID, bookID, isbn, coverURL, thriftBooksURL, s.covers.Enabled())
}

// Delete removes the book from every member's catalog and cleans up
// any hero images the copies pointed at.
func (s *BooksService) Delete(ctx context.Context, adminID, bookID string) (*domain.DeleteResult, error) {
	result, err := s.store.DeleteBookForAllUsers(ctx, adminID, bookID)
	if err != nil {
		return nil, err
	}
	for _, url := range result.FeaturedImageURLs {
		s.releaseFeaturedImage(ctx, url)
	}
	return result, nil
}

func (s *BooksService) releaseFeaturedImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.settings.ReleaseFeaturedImageIfUnused(ctx, url); err != nil {
		s.logger.Warn("failed to clean up featured image", "url", url, "error", err)
	}
}

// LookupISBN resolves book metadata for a normalized ISBN, for the
// single-record entry form.
func (s *BooksService) LookupISBN(ctx context.Context, isbnInput string) (*ISBNLookup, error) {
	isbn := normalize.ISBN(isbnInput)
	if isbn == "" {
		return nil, apperrors.Validation("ISBN must be a valid ISBN-10 or ISBN-13.")
	}
	lookup, err := s.covers.LookupBook(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, apperrors.NotFound("No matching book found for that ISBN.")
	}
	return lookup, nil
}
