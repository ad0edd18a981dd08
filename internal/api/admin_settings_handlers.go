package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/bookclubapp/bookclub-server/internal/http/response"
)

func (s *Server) registerAdminSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getFallbackImages",
		Method:      http.MethodGet,
		Path:        "/api/admin/settings/featured-fallbacks",
		Summary:     "Get the featured image fallback pool",
		Description: "Fallback images decorate featured books that have no hero image of their own",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetFallbackImages)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveFallbackImages",
		Method:      http.MethodPut,
		Path:        "/api/admin/settings/featured-fallbacks",
		Summary:     "Replace the featured image fallback pool",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSaveFallbackImages)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeFallbackImage",
		Method:      http.MethodDelete,
		Path:        "/api/admin/settings/featured-fallbacks",
		Summary:     "Remove one image from the fallback pool",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveFallbackImage)
}

// === DTOs ===

// FallbackImagesOutput wraps the fallback URL pool.
type FallbackImagesOutput struct {
	Body struct {
		URLs []string `json:"urls"`
	}
}

// SaveFallbackImagesInput carries a full replacement pool.
type SaveFallbackImagesInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		URLs []string `json:"urls" doc:"Replacement fallback image URLs"`
	}
}

// RemoveFallbackImageInput identifies one pool entry by URL.
type RemoveFallbackImageInput struct {
	Authorization string `header:"Authorization"`
	URL           string `query:"url" required:"true" doc:"Fallback image URL to remove"`
}

// === Handlers ===

func (s *Server) handleGetFallbackImages(ctx context.Context, input *AuthedInput) (*FallbackImagesOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	urls, err := s.services.Settings.FallbackURLs(ctx)
	if err != nil {
		return nil, err
	}

	out := &FallbackImagesOutput{}
	out.Body.URLs = urls
	return out, nil
}

func (s *Server) handleSaveFallbackImages(ctx context.Context, input *SaveFallbackImagesInput) (*FallbackImagesOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	urls, err := s.services.Settings.SaveFallbackURLs(ctx, input.Body.URLs)
	if err != nil {
		return nil, err
	}

	out := &FallbackImagesOutput{}
	out.Body.URLs = urls
	return out, nil
}

func (s *Server) handleRemoveFallbackImage(ctx context.Context, input *RemoveFallbackImageInput) (*FallbackImagesOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	urls, err := s.services.Settings.RemoveFallbackURL(ctx, input.URL)
	if err != nil {
		return nil, err
	}

	out := &FallbackImagesOutput{}
	out.Body.URLs = urls
	return out, nil
}

// handleUploadFallbackImage stores an uploaded image and adds it to the
// fallback pool. Plain chi handler since huma does not do multipart.
func (s *Server) handleUploadFallbackImage(w http.ResponseWriter, r *http.Request) {
	admin, err := requireAdmin(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	data, mimeType, _, err := readFormFile(r, "image", maxImageUploadBytes)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	url, err := s.storage.FeaturedImages.Save(fmt.Sprintf("fallback-%s-%s", admin.ID, uuid.NewString()), data, mimeType)
	if err != nil {
		response.BadRequest(w, "Unsupported image format.", s.logger)
		return
	}

	urls, err := s.services.Settings.AddFallbackURL(r.Context(), url)
	if err != nil {
		// The pool rejected it (cap reached); drop the orphaned file.
		s.storage.FeaturedImages.Remove(url)
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{"urls": urls, "uploadedUrl": url}, s.logger)
}
