package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getBooks",
		Method:      http.MethodGet,
		Path:        "/api/books",
		Summary:     "Get the signed-in member's catalog",
		Description: "Returns the member's books grouped by volume with club-wide ratings, completion counts, and discussion threads folded in",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCompletion",
		Method:      http.MethodPut,
		Path:        "/api/books/{bookID}/completion",
		Summary:     "Mark a book finished or unfinished",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetCompletion)

	huma.Register(s.api, huma.Operation{
		OperationID: "setRating",
		Method:      http.MethodPut,
		Path:        "/api/books/{bookID}/rating",
		Summary:     "Rate a book",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetRating)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearRating",
		Method:        http.MethodDelete,
		Path:          "/api/books/{bookID}/rating",
		Summary:       "Remove a book rating",
		Tags:          []string{"Books"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearRating)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDashboard",
		Method:      http.MethodGet,
		Path:        "/api/dashboard",
		Summary:     "Get the club dashboard",
		Tags:        []string{"Club"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetDashboard)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMembers",
		Method:      http.MethodGet,
		Path:        "/api/members",
		Summary:     "List club members",
		Tags:        []string{"Club"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMembers)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMemberProfile",
		Method:      http.MethodGet,
		Path:        "/api/members/{memberID}",
		Summary:     "Get a member's profile",
		Description: "Includes the member's recent comments, resolved to the viewer's copy of each book when one exists",
		Tags:        []string{"Club"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMemberProfile)
}

// === DTOs ===

// CatalogOutput wraps the member catalog payload.
type CatalogOutput struct {
	Body *domain.CatalogPayload
}

// BookActionInput identifies a book owned by the signed-in member.
type BookActionInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
}

// SetCompletionInput carries a completion toggle.
type SetCompletionInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	Body          struct {
		Completed bool `json:"completed" doc:"Whether the member finished the book"`
	}
}

// SetRatingInput carries a rating.
type SetRatingInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	Body          struct {
		Rating int `json:"rating" doc:"Star rating from 1 to 5"`
	}
}

// OKOutput is the generic acknowledgement body.
type OKOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

// DashboardOutput wraps the dashboard payload.
type DashboardOutput struct {
	Body *domain.DashboardPayload
}

// MembersOutput wraps the member roster.
type MembersOutput struct {
	Body struct {
		Members []domain.MemberSummary `json:"members"`
	}
}

// MemberProfileInput identifies a member.
type MemberProfileInput struct {
	Authorization string `header:"Authorization"`
	MemberID      string `path:"memberID"`
}

// MemberProfileOutput wraps a member profile.
type MemberProfileOutput struct {
	Body *domain.MemberProfile
}

// === Handlers ===

func (s *Server) handleGetBooks(ctx context.Context, input *AuthedInput) (*CatalogOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	payload, err := s.services.Catalog.BooksPayload(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &CatalogOutput{Body: payload}, nil
}

func (s *Server) handleSetCompletion(ctx context.Context, input *SetCompletionInput) (*OKOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.SetCompletion(ctx, user.ID, input.BookID, input.Body.Completed); err != nil {
		return nil, err
	}

	out := &OKOutput{}
	out.Body.OK = true
	return out, nil
}

func (s *Server) handleSetRating(ctx context.Context, input *SetRatingInput) (*OKOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.SetRating(ctx, user.ID, input.BookID, input.Body.Rating); err != nil {
		return nil, err
	}

	out := &OKOutput{}
	out.Body.OK = true
	return out, nil
}

func (s *Server) handleClearRating(ctx context.Context, input *BookActionInput) (*struct{}, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.ClearRating(ctx, user.ID, input.BookID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleGetDashboard(ctx context.Context, input *AuthedInput) (*DashboardOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	payload, err := s.services.Catalog.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardOutput{Body: payload}, nil
}

func (s *Server) handleGetMembers(ctx context.Context, input *AuthedInput) (*MembersOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}

	members, err := s.services.Catalog.Members(ctx)
	if err != nil {
		return nil, err
	}

	out := &MembersOutput{}
	out.Body.Members = members
	return out, nil
}

func (s *Server) handleGetMemberProfile(ctx context.Context, input *MemberProfileInput) (*MemberProfileOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	profile, err := s.services.Catalog.MemberProfile(ctx, input.MemberID, user.ID)
	if err != nil {
		return nil, err
	}
	return &MemberProfileOutput{Body: profile}, nil
}
