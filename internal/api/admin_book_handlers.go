package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/http/response"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

func (s *Server) registerAdminBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "featureBook",
		Method:      http.MethodPost,
		Path:        "/api/admin/books/{bookID}/feature",
		Summary:     "Feature a book for every member",
		Description: "Makes the book the featured pick of its volume in every member's catalog",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleFeatureBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/admin/books/{bookID}",
		Summary:     "Delete a book from every member's catalog",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "assignMeeting",
		Method:      http.MethodPut,
		Path:        "/api/admin/books/{bookID}/meeting",
		Summary:     "Schedule a discussion for a book",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAssignMeeting)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearMeeting",
		Method:      http.MethodDelete,
		Path:        "/api/admin/books/{bookID}/meeting",
		Summary:     "Remove a book's scheduled discussion",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleClearMeeting)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateThumbnail",
		Method:      http.MethodPut,
		Path:        "/api/admin/books/{bookID}/thumbnail",
		Summary:     "Set or clear a book's cover image URL",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateThumbnail)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateISBN",
		Method:      http.MethodPut,
		Path:        "/api/admin/books/{bookID}/isbn",
		Summary:     "Set or clear a book's ISBN",
		Description: "Setting an ISBN also resolves a cover and rewrites the purchase link on every member's copy",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateISBN)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearFeaturedImage",
		Method:      http.MethodDelete,
		Path:        "/api/admin/books/{bookID}/featured-image",
		Summary:     "Remove a book's hero image",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleClearFeaturedImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookupISBN",
		Method:      http.MethodPost,
		Path:        "/api/admin/isbn-lookup",
		Summary:     "Look up book metadata by ISBN",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLookupISBN)
}

// === DTOs ===

// AdminBookInput identifies a book for an admin fan-out operation.
type AdminBookInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
}

// FeatureOutput wraps a feature fan-out result.
type FeatureOutput struct {
	Body *domain.FeatureResult
}

// DeleteBookOutput wraps a delete fan-out result.
type DeleteBookOutput struct {
	Body *domain.DeleteResult
}

// AssignMeetingInput carries a meeting assignment.
type AssignMeetingInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	Body          struct {
		StartsAt time.Time `json:"startsAt" doc:"Meeting start time (RFC 3339)"`
		Location *string   `json:"location,omitempty" doc:"Optional meeting place"`
	}
}

// FanOutOutput wraps a generic fan-out result.
type FanOutOutput struct {
	Body *domain.FanOutResult
}

// UpdateThumbnailInput carries a cover URL update. An empty URL clears
// the cover.
type UpdateThumbnailInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	Body          struct {
		ThumbnailURL string `json:"thumbnailUrl" doc:"Cover image URL; empty clears the cover"`
	}
}

// UpdateISBNInput carries an ISBN update. An empty ISBN clears it.
type UpdateISBNInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	Body          struct {
		ISBN string `json:"isbn" doc:"ISBN-10 or ISBN-13; empty clears it"`
	}
}

// ISBNResultOutput wraps an ISBN fan-out result.
type ISBNResultOutput struct {
	Body *domain.ISBNResult
}

// LookupISBNInput carries an ISBN to resolve.
type LookupISBNInput struct {
	Body struct {
		ISBN string `json:"isbn" doc:"ISBN-10 or ISBN-13"`
	}
	Authorization string `header:"Authorization"`
}

// LookupISBNOutput wraps resolved book metadata.
type LookupISBNOutput struct {
	Body *service.ISBNLookup
}

// === Handlers ===

func (s *Server) handleFeatureBook(ctx context.Context, input *AdminBookInput) (*FeatureOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.Feature(ctx, admin.ID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &FeatureOutput{Body: result}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *AdminBookInput) (*DeleteBookOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.Delete(ctx, admin.ID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &DeleteBookOutput{Body: result}, nil
}

func (s *Server) handleAssignMeeting(ctx context.Context, input *AssignMeetingInput) (*FanOutOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.AssignMeeting(ctx, admin.ID, input.BookID, input.Body.StartsAt, input.Body.Location)
	if err != nil {
		return nil, err
	}
	return &FanOutOutput{Body: result}, nil
}

func (s *Server) handleClearMeeting(ctx context.Context, input *AdminBookInput) (*FanOutOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.ClearMeeting(ctx, admin.ID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &FanOutOutput{Body: result}, nil
}

func (s *Server) handleUpdateThumbnail(ctx context.Context, input *UpdateThumbnailInput) (*FanOutOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.UpdateThumbnail(ctx, admin.ID, input.BookID, input.Body.ThumbnailURL)
	if err != nil {
		return nil, err
	}
	return &FanOutOutput{Body: result}, nil
}

func (s *Server) handleUpdateISBN(ctx context.Context, input *UpdateISBNInput) (*ISBNResultOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.UpdateISBN(ctx, admin.ID, input.BookID, input.Body.ISBN)
	if err != nil {
		return nil, err
	}
	return &ISBNResultOutput{Body: result}, nil
}

func (s *Server) handleClearFeaturedImage(ctx context.Context, input *AdminBookInput) (*FanOutOutput, error) {
	admin, err := s.authenticateAndRequireAdmin(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Books.ClearFeaturedImage(ctx, admin.ID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &FanOutOutput{Body: result}, nil
}

func (s *Server) handleLookupISBN(ctx context.Context, input *LookupISBNInput) (*LookupISBNOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	lookup, err := s.services.Books.LookupISBN(ctx, input.Body.ISBN)
	if err != nil {
		return nil, err
	}
	return &LookupISBNOutput{Body: lookup}, nil
}

// handleUploadFeaturedImage accepts a multipart hero image upload and
// applies it to every member's copy of the book. Plain chi handler since
// huma does not do multipart.
func (s *Server) handleUploadFeaturedImage(w http.ResponseWriter, r *http.Request) {
	admin, err := requireAdmin(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	bookID := chi.URLParam(r, "bookID")
	data, mimeType, _, err := readFormFile(r, "image", maxImageUploadBytes)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	result, url, err := s.services.Books.SetFeaturedImage(r.Context(), admin.ID, bookID, data, mimeType)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{
		"featuredImageUrl": url,
		"usersAffected":    result.UsersAffected,
		"booksUpdated":     result.BooksUpdated,
	}, s.logger)
}
