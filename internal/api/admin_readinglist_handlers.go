package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/http/response"
	"github.com/bookclubapp/bookclub-server/internal/readinglist"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

func (s *Server) registerAdminReadingListRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "addBookRecord",
		Method:        http.MethodPost,
		Path:          "/api/admin/books",
		Summary:       "Add a single book to every member's catalog",
		Tags:          []string{"Admin"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddBookRecord)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearVolume",
		Method:      http.MethodPost,
		Path:        "/api/admin/reading-list/clear-volume",
		Summary:     "Delete a volume from every member's catalog",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleClearVolume)

	huma.Register(s.api, huma.Operation{
		OperationID: "backfillCovers",
		Method:      http.MethodPost,
		Path:        "/api/admin/backfill-covers",
		Summary:     "Resolve covers for books that have none",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleBackfillCovers)

	huma.Register(s.api, huma.Operation{
		OperationID: "backfillThriftBooks",
		Method:      http.MethodPost,
		Path:        "/api/admin/backfill-thriftbooks",
		Summary:     "Rebuild purchase links for books with an ISBN",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleBackfillThriftBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUploads",
		Method:      http.MethodGet,
		Path:        "/api/admin/uploads",
		Summary:     "List recent reading list uploads",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUploads)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearUploads",
		Method:      http.MethodDelete,
		Path:        "/api/admin/uploads",
		Summary:     "Clear the upload audit log",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleClearUploads)
}

// === DTOs ===

// BookRecordRequest is a single book entered by hand.
type BookRecordRequest struct {
	Volume       int    `json:"volume" validate:"required,gte=1" doc:"Club volume the book belongs to"`
	Year         int    `json:"year,omitempty" doc:"Reading year; derived from the volume when omitted"`
	Title        string `json:"title" validate:"required" doc:"Book title"`
	Author       string `json:"author" validate:"required" doc:"Book author"`
	Month        string `json:"month,omitempty" doc:"Reading month"`
	ISBN         string `json:"isbn,omitempty" doc:"ISBN-10 or ISBN-13"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty" doc:"Cover image URL"`
}

// AddBookRecordInput wraps a hand-entered book for huma.
type AddBookRecordInput struct {
	Authorization string `header:"Authorization"`
	Body          BookRecordRequest
}

// ApplySummaryOutput wraps a reconciliation summary.
type ApplySummaryOutput struct {
	Body *domain.ApplySummary
}

// ClearVolumeInput identifies a volume to delete.
type ClearVolumeInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		Volume int `json:"volume" doc:"Volume number to delete"`
	}
}

// ClearVolumeOutput wraps a volume deletion result.
type ClearVolumeOutput struct {
	Body *domain.ClearVolumeResult
}

// CoverBackfillOutput wraps a cover backfill summary.
type CoverBackfillOutput struct {
	Body *service.CoverBackfillSummary
}

// ThriftBooksBackfillOutput wraps a purchase-link backfill summary.
type ThriftBooksBackfillOutput struct {
	Body *service.ThriftBooksBackfillSummary
}

// UploadsOutput wraps the upload audit log.
type UploadsOutput struct {
	Body struct {
		Uploads []domain.ReadingListUpload `json:"uploads"`
	}
}

// ClearUploadsOutput reports how many audit rows were removed.
type ClearUploadsOutput struct {
	Body struct {
		Deleted int `json:"deleted"`
	}
}

// === Handlers ===

func (s *Server) handleAddBookRecord(ctx context.Context, input *AddBookRecordInput) (*ApplySummaryOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	row := readinglist.Row{
		Volume:       input.Body.Volume,
		Year:         input.Body.Year,
		Title:        input.Body.Title,
		Author:       input.Body.Author,
		Month:        input.Body.Month,
		ISBN:         input.Body.ISBN,
		ThumbnailURL: input.Body.ThumbnailURL,
	}

	summary, err := s.services.ReadingLists.ApplyRecord(ctx, admin.ID, row)
	if err != nil {
		return nil, err
	}
	return &ApplySummaryOutput{Body: summary}, nil
}

func (s *Server) handleClearVolume(ctx context.Context, input *ClearVolumeInput) (*ClearVolumeOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.ReadingLists.ClearVolume(ctx, admin.ID, input.Body.Volume)
	if err != nil {
		return nil, err
	}
	return &ClearVolumeOutput{Body: result}, nil
}

func (s *Server) handleBackfillCovers(ctx context.Context, input *AuthedInput) (*CoverBackfillOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	summary, err := s.services.ReadingLists.BackfillCovers(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	return &CoverBackfillOutput{Body: summary}, nil
}

func (s *Server) handleBackfillThriftBooks(ctx context.Context, input *AuthedInput) (*ThriftBooksBackfillOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	summary, err := s.services.ReadingLists.BackfillThriftBooks(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	return &ThriftBooksBackfillOutput{Body: summary}, nil
}

func (s *Server) handleListUploads(ctx context.Context, input *AuthedInput) (*UploadsOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	uploads, err := s.services.ReadingLists.ListUploads(ctx)
	if err != nil {
		return nil, err
	}

	out := &UploadsOutput{}
	out.Body.Uploads = uploads
	return out, nil
}

func (s *Server) handleClearUploads(ctx context.Context, input *AuthedInput) (*ClearUploadsOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	deleted, err := s.services.ReadingLists.ClearUploads(ctx)
	if err != nil {
		return nil, err
	}

	out := &ClearUploadsOutput{}
	out.Body.Deleted = deleted
	return out, nil
}

// handleUploadReadingList accepts a multipart CSV or JSON reading list and
// reconciles it into every member's catalog. Plain chi handler since huma
// does not do multipart.
func (s *Server) handleUploadReadingList(w http.ResponseWriter, r *http.Request) {
	admin, err := requireAdmin(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	data, mimeType, filename, err := readFormFile(r, "file", maxReadingListBytes)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	mode := domain.UploadMode(r.FormValue("mode"))
	if mode == "" {
		mode = domain.UploadModeAppend
	}

	defaultVolume := s.club.CurrentVolume
	if v := r.FormValue("volume"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			response.BadRequest(w, "Volume must be a positive number.", s.logger)
			return
		}
		defaultVolume = parsed
	}

	summary, err := s.services.ReadingLists.Apply(r.Context(), admin.ID, data, filename, mimeType, mode, defaultVolume)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, summary, s.logger)
}
