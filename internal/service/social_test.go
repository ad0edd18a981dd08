package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
)

func TestAddComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	book := env.insertBook(t, alice.ID, "Book", testClub.CurrentVolume)

	comment, err := env.social.AddComment(ctx, alice, book.ID, "  First thoughts.  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "First thoughts.", comment.Text)
	assert.Equal(t, alice.ID, comment.AuthorUserID)
	assert.Nil(t, comment.ParentCommentID)

	_, err = env.social.AddComment(ctx, alice, book.ID, "   ", nil)
	assert.Error(t, err)
}

func TestAddComment_RequiresOwnCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bob := env.createUser(t, "Bob", true, domain.RoleMember)
	aliceBook := env.insertBook(t, alice.ID, "Book", testClub.CurrentVolume)

	// Bob cannot comment through Alice's copy.
	_, err := env.social.AddComment(ctx, bob, aliceBook.ID, "Sneaky.", nil)
	assert.Error(t, err)
}

func TestAddComment_ReplyAcrossCopies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bob := env.createUser(t, "Bob", true, domain.RoleMember)
	aliceBook := env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	bobBook := env.insertBook(t, bob.ID, "Shared Book", testClub.CurrentVolume)

	parent, err := env.social.AddComment(ctx, alice, aliceBook.ID, "Opening thread.", nil)
	require.NoError(t, err)

	// A reply may target a comment made on another member's copy of the
	// same book.
	reply, err := env.social.AddComment(ctx, bob, bobBook.ID, "Replying.", &parent.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentCommentID)
	assert.Equal(t, parent.ID, *reply.ParentCommentID)
}

func TestAddComment_ReplyToDifferentBookRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bookA := env.insertBook(t, alice.ID, "Book A", testClub.CurrentVolume)
	bookB := env.insertBook(t, alice.ID, "Book B", testClub.CurrentVolume)

	parent, err := env.social.AddComment(ctx, alice, bookA.ID, "On book A.", nil)
	require.NoError(t, err)

	_, err = env.social.AddComment(ctx, alice, bookB.ID, "Wrong thread.", &parent.ID)
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.HTTPStatus())
	assert.Contains(t, appErr.Error(), "Reply target not found for this book.")
}

func TestDeleteComment_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.createUser(t, "Admin", true, domain.RoleAdmin)
	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bob := env.createUser(t, "Bob", true, domain.RoleMember)
	adminBook := env.insertBook(t, admin.ID, "Shared Book", testClub.CurrentVolume)
	aliceBook := env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	bobBook := env.insertBook(t, bob.ID, "Shared Book", testClub.CurrentVolume)

	comment, err := env.social.AddComment(ctx, alice, aliceBook.ID, "Mine.", nil)
	require.NoError(t, err)

	// Another member cannot delete it.
	err = env.social.DeleteComment(ctx, bob, bobBook.ID, comment.ID)
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 403, appErr.HTTPStatus())

	// An admin can.
	require.NoError(t, env.social.DeleteComment(ctx, admin, adminBook.ID, comment.ID))
}

func TestDeleteComment_RemovesReplySubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	book := env.insertBook(t, alice.ID, "Book", testClub.CurrentVolume)

	root, err := env.social.AddComment(ctx, alice, book.ID, "root", nil)
	require.NoError(t, err)
	child, err := env.social.AddComment(ctx, alice, book.ID, "child", &root.ID)
	require.NoError(t, err)
	_, err = env.social.AddComment(ctx, alice, book.ID, "grandchild", &child.ID)
	require.NoError(t, err)
	sibling, err := env.social.AddComment(ctx, alice, book.ID, "sibling", nil)
	require.NoError(t, err)

	require.NoError(t, env.social.DeleteComment(ctx, alice, book.ID, root.ID))

	payload, err := env.catalog.BooksPayload(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, payload.CurrentBooks, 1)
	require.Len(t, payload.CurrentBooks[0].Comments, 1)
	assert.Equal(t, sibling.ID, payload.CurrentBooks[0].Comments[0].ID)
}

func TestSetLike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bob := env.createUser(t, "Bob", true, domain.RoleMember)
	aliceBook := env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	bobBook := env.insertBook(t, bob.ID, "Shared Book", testClub.CurrentVolume)

	comment, err := env.social.AddComment(ctx, alice, aliceBook.ID, "Like me.", nil)
	require.NoError(t, err)

	likes, err := env.social.SetLike(ctx, bob, bobBook.ID, comment.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, likes.Count)
	assert.True(t, likes.LikedByUser)

	// Liking twice is idempotent.
	likes, err = env.social.SetLike(ctx, bob, bobBook.ID, comment.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, likes.Count)

	likes, err = env.social.SetLike(ctx, bob, bobBook.ID, comment.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, likes.Count)
	assert.False(t, likes.LikedByUser)
}
