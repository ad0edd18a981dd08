package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	domainerrors "github.com/bookclubapp/bookclub-server/internal/errors"
)

// maxImageUploadBytes caps multipart image uploads.
const maxImageUploadBytes = 8 << 20 // 8 MiB

// maxReadingListBytes caps reading list uploads.
const maxReadingListBytes = 4 << 20 // 4 MiB

// authenticateRequest validates the Authorization header and returns the user.
func (s *Server) authenticateRequest(ctx context.Context, authHeader string) (*domain.User, error) {
	if authHeader == "" {
		return nil, huma.Error401Unauthorized("Missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, huma.Error401Unauthorized("Invalid authorization header format")
	}

	user, _, err := s.services.Auth.VerifyAccessToken(ctx, parts[1])
	if err != nil {
		return nil, err
	}
	return user, nil
}

// authenticateAndRequireAdmin validates the token and requires admin role.
func (s *Server) authenticateAndRequireAdmin(ctx context.Context, authHeader string) (*domain.User, error) {
	user, err := s.authenticateRequest(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Admin access required")
	}
	return user, nil
}

// requireAdmin is the chi-handler counterpart of authenticateAndRequireAdmin,
// reading the user placed in context by authMiddleware.
func requireAdmin(ctx context.Context) (*domain.User, error) {
	user, err := GetUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Admin access required")
	}
	return user, nil
}

// readFormFile extracts a single uploaded file from a multipart request.
// Returns the file bytes, its declared content type, and its filename.
func readFormFile(r *http.Request, field string, maxBytes int64) ([]byte, string, string, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", "", domainerrors.Validation("Could not parse the uploaded form.")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", "", domainerrors.Validationf("Missing %q file field.", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, "", "", domainerrors.Validation("Could not read the uploaded file.")
	}
	if int64(len(data)) > maxBytes {
		return nil, "", "", domainerrors.Validation("The uploaded file is too large.")
	}

	return data, header.Header.Get("Content-Type"), header.Filename, nil
}
