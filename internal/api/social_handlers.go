package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

func (s *Server) registerSocialRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "addComment",
		Method:        http.MethodPost,
		Path:          "/api/books/{bookID}/comments",
		Summary:       "Comment on a book",
		Description:   "Comments attach to the book identity, so they appear under every member's copy of the book",
		Tags:          []string{"Social"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddComment)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteComment",
		Method:        http.MethodDelete,
		Path:          "/api/books/{bookID}/comments/{commentID}",
		Summary:       "Delete a comment and its replies",
		Tags:          []string{"Social"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteComment)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCommentLike",
		Method:      http.MethodPut,
		Path:        "/api/books/{bookID}/comments/{commentID}/like",
		Summary:     "Like or unlike a comment",
		Tags:        []string{"Social"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetCommentLike)
}

// === DTOs ===

// AddCommentInput carries a new comment or reply.
type AddCommentInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	Body          struct {
		Text            string  `json:"text" doc:"Comment text"`
		ParentCommentID *string `json:"parentCommentId,omitempty" doc:"Comment being replied to, if any"`
	}
}

// CommentOutput wraps a created comment.
type CommentOutput struct {
	Body struct {
		Comment *domain.CommentView `json:"comment"`
	}
}

// CommentActionInput identifies a comment under one of the member's books.
type CommentActionInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	CommentID     string `path:"commentID"`
}

// SetLikeInput carries a like toggle.
type SetLikeInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookID"`
	CommentID     string `path:"commentID"`
	Body          struct {
		Liked bool `json:"liked" doc:"Whether the member likes the comment"`
	}
}

// LikesOutput wraps the updated like state of a comment.
type LikesOutput struct {
	Body *domain.CommentLikes
}

// === Handlers ===

func (s *Server) handleAddComment(ctx context.Context, input *AddCommentInput) (*CommentOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	comment, err := s.services.Social.AddComment(ctx, user, input.BookID, input.Body.Text, input.Body.ParentCommentID)
	if err != nil {
		return nil, err
	}

	out := &CommentOutput{}
	out.Body.Comment = comment
	return out, nil
}

func (s *Server) handleDeleteComment(ctx context.Context, input *CommentActionInput) (*struct{}, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Social.DeleteComment(ctx, user, input.BookID, input.CommentID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleSetCommentLike(ctx context.Context, input *SetLikeInput) (*LikesOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	likes, err := s.services.Social.SetLike(ctx, user, input.BookID, input.CommentID, input.Body.Liked)
	if err != nil {
		return nil, err
	}
	return &LikesOutput{Body: likes}, nil
}
