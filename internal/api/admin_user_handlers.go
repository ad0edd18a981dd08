package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

func (s *Server) registerAdminUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPendingUsers",
		Method:      http.MethodGet,
		Path:        "/api/admin/users/pending",
		Summary:     "List accounts awaiting approval",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListPendingUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "approveUser",
		Method:      http.MethodPost,
		Path:        "/api/admin/users/{userID}/approve",
		Summary:     "Approve a pending account",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleApproveUser)

	huma.Register(s.api, huma.Operation{
		OperationID:   "denyUser",
		Method:        http.MethodPost,
		Path:          "/api/admin/users/{userID}/deny",
		Summary:       "Deny and delete a pending account",
		Tags:          []string{"Admin"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDenyUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "promoteUser",
		Method:      http.MethodPost,
		Path:        "/api/admin/users/{userID}/promote",
		Summary:     "Grant an approved member the admin role",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePromoteUser)
}

// === DTOs ===

// PendingUsersOutput wraps the pending-approval queue.
type PendingUsersOutput struct {
	Body struct {
		Users []*domain.User `json:"users"`
	}
}

// UserActionInput identifies an account for an admin operation.
type UserActionInput struct {
	Authorization string `header:"Authorization"`
	UserID        string `path:"userID"`
}

// === Handlers ===

func (s *Server) handleListPendingUsers(ctx context.Context, input *AuthedInput) (*PendingUsersOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	users, err := s.services.Auth.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	out := &PendingUsersOutput{}
	out.Body.Users = users
	return out, nil
}

func (s *Server) handleApproveUser(ctx context.Context, input *UserActionInput) (*UserOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	user, err := s.services.Auth.Approve(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &UserOutput{}
	out.Body.User = user
	return out, nil
}

func (s *Server) handleDenyUser(ctx context.Context, input *UserActionInput) (*struct{}, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Auth.Deny(ctx, input.UserID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handlePromoteUser(ctx context.Context, input *UserActionInput) (*UserOutput, error) {
	if _, err := s.authenticateAndRequireAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	user, err := s.services.Auth.Promote(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &UserOutput{}
	out.Body.User = user
	return out, nil
}
