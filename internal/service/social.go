package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// SocialService handles discussion comments and likes. Comments are
// written against the poster's own copy of a book but belong to the
// book's identity, so every member sees them on their own copy.
type SocialService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewSocialService creates a new social service.
func NewSocialService(store *sqlite.Store, logger *slog.Logger) *SocialService {
	return &SocialService{store: store, logger: logger}
}

// AddComment posts a comment on the user's copy of a book. A reply
// must target a comment on the same book identity; the parent may live
// on any member's copy.
func (s *SocialService) AddComment(ctx context.Context, user *domain.User, bookID, text string, parentCommentID *string) (*domain.CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("Comment text is required.")
	}

	book, err := s.store.GetBookForUser(ctx, bookID, user.ID)
	if err != nil {
		return nil, err
	}

	if parentCommentID != nil {
		parent, err := s.store.GetCommentRow(ctx, *parentCommentID)
		if err != nil || parent.Identity() != book.Identity() {
			return nil, apperrors.Validation("Reply target not found for this book.")
		}
	}

	comment := &domain.Comment{
		ID:              id.MustGenerate(id.PrefixComment),
		UserID:          user.ID,
		BookID:          bookID,
		ParentCommentID: parentCommentID,
		Text:            text,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	return &domain.CommentView{
		ID:              comment.ID,
		Text:            comment.Text,
		AuthorName:      user.Name,
		AuthorUserID:    user.ID,
		ParentCommentID: parentCommentID,
		CreatedAt:       comment.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// DeleteComment removes a comment and its whole reply subtree. The
// comment must belong to the identity of the caller's copy of the
// book; only the author or an admin may delete it.
func (s *SocialService) DeleteComment(ctx context.Context, user *domain.User, bookID, commentID string) error {
	book, err := s.store.GetBookForUser(ctx, bookID, user.ID)
	if err != nil {
		return err
	}

	comment, err := s.store.GetCommentRow(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.Identity() != book.Identity() {
		return apperrors.NotFound("Comment not found for this book.")
	}
	if !user.IsAdmin() && comment.AuthorUserID != user.ID {
		return apperrors.Forbidden("You can only delete your own comments.")
	}

	return s.store.DeleteCommentTree(ctx, commentID)
}

// SetLike likes or unlikes a comment for the user and returns the
// resulting like state.
func (s *SocialService) SetLike(ctx context.Context, user *domain.User, bookID, commentID string, liked bool) (*domain.CommentLikes, error) {
	book, err := s.store.GetBookForUser(ctx, bookID, user.ID)
	if err != nil {
		return nil, err
	}

	comment, err := s.store.GetCommentRow(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Identity() != book.Identity() {
		return nil, apperrors.NotFound("Comment not found for this book.")
	}

	if err := s.store.SetCommentLike(ctx, user.ID, commentID, liked); err != nil {
		return nil, err
	}
	return s.store.GetCommentLikes(ctx, commentID, user.ID)
}
