package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/store"
)

// InsertComment stores a new discussion comment against the author's
// copy of the book.
func (s *Store) InsertComment(ctx context.Context, c *domain.Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, user_id, book_id, parent_comment_id, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.UserID,
		c.BookID,
		nullableString(c.ParentCommentID),
		c.Text,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetCommentRow fetches a comment joined with its book's identity
// fields, so callers can verify it belongs to the same shared book.
func (s *Store) GetCommentRow(ctx context.Context, commentID string) (*domain.CommentRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.book_id, c.text, c.created_at, c.parent_comment_id,
			c.user_id, u.name, b.volume, b.title, b.author
		FROM comments c
		INNER JOIN books b ON b.id = c.book_id
		INNER JOIN users u ON u.id = c.user_id
		WHERE c.id = ?`, commentID)

	c, err := scanCommentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("comment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func scanCommentRow(scanner interface{ Scan(dest ...any) error }) (*domain.CommentRow, error) {
	var (
		c      domain.CommentRow
		parent sql.NullString
	)
	err := scanner.Scan(
		&c.ID, &c.BookID, &c.Text, &c.CreatedAt, &parent,
		&c.AuthorUserID, &c.AuthorName, &c.Volume, &c.Title, &c.Author,
	)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		c.ParentCommentID = &parent.String
	}
	return &c, nil
}

// DeleteCommentTree deletes a comment and its whole reply subtree.
func (s *Store) DeleteCommentTree(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM comments WHERE id = ?
			UNION ALL
			SELECT c.id
			FROM comments c
			INNER JOIN descendants d ON c.parent_comment_id = d.id
		)
		DELETE FROM comments
		WHERE id IN (SELECT id FROM descendants)`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment tree: %w", err)
	}
	return nil
}

// SetCommentLike records or removes one member's like on a comment.
// Liking twice is a no-op.
func (s *Store) SetCommentLike(ctx context.Context, userID, commentID string, liked bool) error {
	if liked {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO comment_likes (user_id, comment_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id, comment_id) DO NOTHING`,
			userID, commentID, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("like comment: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM comment_likes WHERE user_id = ? AND comment_id = ?`, userID, commentID)
	if err != nil {
		return fmt.Errorf("unlike comment: %w", err)
	}
	return nil
}

// GetCommentLikes returns the like summary for one comment as seen by
// the given member.
func (s *Store) GetCommentLikes(ctx context.Context, commentID, userID string) (*domain.CommentLikes, error) {
	var likes domain.CommentLikes
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comment_likes WHERE comment_id = ?`, commentID).Scan(&likes.Count)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	var liked int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comment_likes WHERE comment_id = ? AND user_id = ?`,
		commentID, userID).Scan(&liked)
	if err != nil {
		return nil, fmt.Errorf("check liked: %w", err)
	}
	likes.LikedByUser = liked > 0
	return &likes, nil
}

// ListVisibleComments lists every comment by an approved member, joined
// with its book's identity fields, oldest first. Identity correlation
// against a viewer's catalog is up to the caller.
func (s *Store) ListVisibleComments(ctx context.Context) ([]domain.CommentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.book_id, c.text, c.created_at, c.parent_comment_id,
			c.user_id, u.name, b.volume, b.title, b.author
		FROM comments c
		INNER JOIN books b ON b.id = c.book_id
		INNER JOIN users u ON u.id = c.user_id
		WHERE u.is_approved = 1
		ORDER BY c.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.CommentRow
	for rows.Next() {
		c, err := scanCommentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// GetLikeCounts returns like totals keyed by comment ID.
func (s *Store) GetLikeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT comment_id, COUNT(*) FROM comment_likes GROUP BY comment_id`)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			commentID string
			count     int
		)
		if err := rows.Scan(&commentID, &count); err != nil {
			return nil, fmt.Errorf("scan like count: %w", err)
		}
		counts[commentID] = count
	}
	return counts, rows.Err()
}

// ListLikedCommentIDs returns the set of comments one member has liked.
func (s *Store) ListLikedCommentIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT comment_id FROM comment_likes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list liked comments: %w", err)
	}
	defer rows.Close()

	liked := make(map[string]bool)
	for rows.Next() {
		var commentID string
		if err := rows.Scan(&commentID); err != nil {
			return nil, fmt.Errorf("scan liked comment: %w", err)
		}
		liked[commentID] = true
	}
	return liked, rows.Err()
}
