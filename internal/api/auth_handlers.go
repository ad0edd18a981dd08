package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/http/response"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/auth/register",
		Summary:       "Register a new member",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/auth/login",
		Summary:     "Sign in",
		Tags:        []string{"Auth"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/api/auth/logout",
		Summary:       "Sign out",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleLogout)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/auth/me",
		Summary:     "Get the signed-in member",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProfile",
		Method:      http.MethodPut,
		Path:        "/api/auth/profile",
		Summary:     "Update the signed-in member's profile",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeProfileImage",
		Method:      http.MethodDelete,
		Path:        "/api/auth/profile-image",
		Summary:     "Remove the signed-in member's profile picture",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveProfileImage)
}

// === DTOs ===

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=80" doc:"Display name"`
	Email    string `json:"email" validate:"required,email" doc:"Email address"`
	Password string `json:"password" validate:"required" doc:"Password (min 8 chars, letters and numbers)"`
}

// RegisterInput wraps the registration payload for huma.
type RegisterInput struct {
	Body RegisterRequest
}

// LoginInput wraps the login payload for huma.
type LoginInput struct {
	Body struct {
		Email    string `json:"email" doc:"Email address"`
		Password string `json:"password" doc:"Password"`
	}
}

// AuthResponse carries an account plus its session token. Token is empty
// and Message explains why when the account still awaits approval.
type AuthResponse struct {
	User             *domain.User `json:"user"`
	Token            string       `json:"token,omitempty"`
	Message          string       `json:"message,omitempty"`
	RequiresApproval bool         `json:"requiresApproval,omitempty"`
}

// AuthOutput wraps AuthResponse for huma.
type AuthOutput struct {
	Body AuthResponse
}

// UserOutput wraps a bare user for huma.
type UserOutput struct {
	Body struct {
		User *domain.User `json:"user"`
	}
}

// AuthedInput is the input for operations that only need a token.
type AuthedInput struct {
	Authorization string `header:"Authorization"`
}

// UpdateProfileInput carries a profile update.
type UpdateProfileInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		Name string `json:"name" doc:"New display name"`
	}
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Auth.Register(ctx, input.Body.Name, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, err
	}

	resp := AuthResponse{
		User:             result.User,
		Token:            result.Token,
		RequiresApproval: result.RequiresApproval,
	}
	if result.RequiresApproval {
		resp.Message = service.PendingApprovalMessage
	}
	return &AuthOutput{Body: resp}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	user, token, err := s.services.Auth.Login(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: AuthResponse{User: user, Token: token}}, nil
}

func (s *Server) handleLogout(_ context.Context, _ *AuthedInput) (*struct{}, error) {
	// Access tokens are stateless PASETO; the client just drops its copy.
	return nil, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, input *AuthedInput) (*UserOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	// Me re-checks the configured admin email so a promoted account picks
	// up its role without logging out.
	user, err = s.services.Auth.Me(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := &UserOutput{}
	out.Body.User = user
	return out, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, input *UpdateProfileInput) (*UserOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	updated, err := s.services.Auth.UpdateProfile(ctx, user.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}

	out := &UserOutput{}
	out.Body.User = updated
	return out, nil
}

func (s *Server) handleRemoveProfileImage(ctx context.Context, input *AuthedInput) (*UserOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	updated, err := s.services.Auth.RemoveProfileImage(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := &UserOutput{}
	out.Body.User = updated
	return out, nil
}

// handleUploadProfileImage accepts a multipart profile picture upload.
// Multipart stays outside huma, so this is a plain chi handler.
func (s *Server) handleUploadProfileImage(w http.ResponseWriter, r *http.Request) {
	user, err := GetUser(r.Context())
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}

	data, mimeType, _, err := readFormFile(r, "image", maxImageUploadBytes)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	updated, err := s.services.Auth.SetProfileImage(r.Context(), user.ID, data, mimeType)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{"user": updated}, s.logger)
}
