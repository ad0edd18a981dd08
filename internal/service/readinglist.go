package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/readinglist"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// ReadingListService applies uploaded reading lists across every member
// catalog and keeps the upload audit trail.
type ReadingListService struct {
	store  *sqlite.Store
	covers *CoverService
	club   config.ClubConfig
	logger *slog.Logger
}

// NewReadingListService creates a new reading-list service.
func NewReadingListService(store *sqlite.Store, covers *CoverService, club config.ClubConfig, logger *slog.Logger) *ReadingListService {
	return &ReadingListService{
		store:  store,
		covers: covers,
		club:   club,
		logger: logger,
	}
}

// Apply parses an uploaded reading list, enriches it with covers and
// purchase links, and reconciles it into every member's catalog.
func (s *ReadingListService) Apply(ctx context.Context, adminID string, data []byte, filename, mimeType string, mode domain.UploadMode, defaultVolume int) (*domain.ApplySummary, error) {
	if !mode.Valid() {
		return nil, apperrors.Validation("Invalid mode. Use append or replace.")
	}

	rows, err := readinglist.Parse(data, filename, mimeType, readinglist.Options{
		DefaultVolume: defaultVolume,
		LegacyYear:    s.club.LegacyYear,
	})
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if len(rows) == 0 {
		return nil, apperrors.Validation("No rows found in the uploaded file.")
	}

	rows = s.covers.EnrichRows(ctx, rows)

	summary, err := s.store.ApplyReadingList(ctx, rows, mode)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, adminID, filename, string(mode), len(rows))
	s.logger.Info("reading list applied",
		"admin", adminID,
		"mode", mode,
		"rows", summary.RowsReceived,
		"inserted", summary.BooksInserted,
		"updated", summary.BooksUpdated,
	)
	return summary, nil
}

// ApplyRecord reconciles a single hand-entered row into every member's
// catalog. Records added this way are never featured on arrival.
func (s *ReadingListService) ApplyRecord(ctx context.Context, adminID string, row readinglist.Row) (*domain.ApplySummary, error) {
	row.IsFeatured = false
	if row.Year == 0 {
		row.Year = s.club.LegacyYear(row.Volume)
	}

	rows := s.covers.EnrichRows(ctx, []readinglist.Row{row})

	summary, err := s.store.ApplyReadingList(ctx, rows, domain.UploadModeAppend)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, adminID, "single-record", string(domain.UploadModeAppend), 1)
	return summary, nil
}

// ClearVolume removes every book in the volume from every member's
// catalog.
func (s *ReadingListService) ClearVolume(ctx context.Context, adminID string, volume int) (*domain.ClearVolumeResult, error) {
	if volume < 1 {
		return nil, apperrors.Validation("Volume must be a positive number.")
	}

	result, err := s.store.ClearVolumeForAllUsers(ctx, volume)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, adminID, fmt.Sprintf("clear-volume-%d", volume), "clear", result.BooksDeleted)
	return result, nil
}

// BackfillCovers resolves missing covers across the whole catalog and
// records the pass in the audit trail.
func (s *ReadingListService) BackfillCovers(ctx context.Context, adminID string) (*CoverBackfillSummary, error) {
	summary, err := s.covers.BackfillCovers(ctx)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, adminID, "backfill-covers", "backfill", summary.BooksUpdated)
	return summary, nil
}

// BackfillThriftBooks ensures every ISBN-carrying book has its purchase
// link and records the pass in the audit trail.
func (s *ReadingListService) BackfillThriftBooks(ctx context.Context, adminID string) (*ThriftBooksBackfillSummary, error) {
	summary, err := s.covers.BackfillThriftBooks(ctx)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, adminID, "backfill-thriftbooks", "backfill-thriftbooks", summary.BooksUpdated)
	return summary, nil
}

// ListUploads returns the most recent upload audit rows.
func (s *ReadingListService) ListUploads(ctx context.Context) ([]domain.ReadingListUpload, error) {
	return s.store.ListUploads(ctx, 20)
}

// ClearUploads wipes the upload audit trail, returning how many rows
// were removed.
func (s *ReadingListService) ClearUploads(ctx context.Context) (int, error) {
	return s.store.ClearUploads(ctx)
}

func (s *ReadingListService) audit(ctx context.Context, adminID, filename, mode string, rowsImported int) {
	err := s.store.RecordUpload(ctx, &domain.ReadingListUpload{
		ID:           id.MustGenerate(id.PrefixUpload),
		AdminUserID:  adminID,
		Filename:     filename,
		Mode:         mode,
		RowsImported: rowsImported,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		// The reconciliation already committed; a missing audit row is
		// not worth failing the request over.
		s.logger.Error("failed to record upload audit row", "error", err)
	}
}
