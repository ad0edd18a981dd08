package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

func TestBooksPayload_GroupsByVolume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleAdmin)
	env.insertBook(t, alice.ID, "Current Pick", testClub.CurrentVolume)
	env.insertBook(t, alice.ID, "Past Pick", testClub.PastVolume())
	env.insertBook(t, alice.ID, "Archive Pick", 5)

	payload, err := env.catalog.BooksPayload(ctx, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, testClub.CurrentVolume, payload.CurrentVolume)
	assert.Equal(t, testClub.PastVolume(), payload.PastVolume)

	require.Len(t, payload.CurrentBooks, 1)
	assert.Equal(t, "Current Pick", payload.CurrentBooks[0].Title)
	require.Len(t, payload.PastBooks, 1)
	assert.Equal(t, "Past Pick", payload.PastBooks[0].Title)
	require.Len(t, payload.OtherBooks, 1)
	assert.Equal(t, "Archive Pick", payload.OtherBooks[0].Title)

	// Volumes are sorted newest first and never include the current
	// volume in pastVolumes.
	require.Len(t, payload.Volumes, 3)
	assert.Equal(t, 5, payload.Volumes[0].Volume)
	require.Len(t, payload.PastVolumes, 2)
	for _, group := range payload.PastVolumes {
		assert.NotEqual(t, testClub.CurrentVolume, group.Volume)
	}
}

func TestBooksPayload_EmptyCatalogStillHasShelves(t *testing.T) {
	env := newTestEnv(t)

	alice := env.createUser(t, "Alice", true, domain.RoleMember)

	payload, err := env.catalog.BooksPayload(context.Background(), alice.ID)
	require.NoError(t, err)

	assert.Empty(t, payload.CurrentBooks)
	assert.Empty(t, payload.PastBooks)
	require.Len(t, payload.Volumes, 2)
	assert.NotNil(t, payload.FeaturedImageFallbackURLs)
}

func TestBooksPayload_CorrelatesCommentsByIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bob := env.createUser(t, "Bob", true, domain.RoleMember)
	aliceBook := env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	env.insertBook(t, bob.ID, "shared book", testClub.CurrentVolume)

	// Bob comments on his copy; Alice sees it on hers.
	comment, err := env.social.AddComment(ctx, bob, mustBookID(t, env, bob.ID, "shared book"), "Loved the ending.", nil)
	require.NoError(t, err)

	payload, err := env.catalog.BooksPayload(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, payload.CurrentBooks, 1)
	require.Len(t, payload.CurrentBooks[0].Comments, 1)
	assert.Equal(t, comment.ID, payload.CurrentBooks[0].Comments[0].ID)
	assert.Equal(t, "Bob", payload.CurrentBooks[0].Comments[0].AuthorName)
	assert.Equal(t, aliceBook.ID, payload.CurrentBooks[0].ID)
}

func TestBooksPayload_HidesUnapprovedAuthors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	mallory := env.createUser(t, "Mallory", false, domain.RoleMember)
	env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	malloryBook := env.insertBook(t, mallory.ID, "Shared Book", testClub.CurrentVolume)

	_, err := env.social.AddComment(ctx, mallory, malloryBook.ID, "First!", nil)
	require.NoError(t, err)

	payload, err := env.catalog.BooksPayload(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, payload.CurrentBooks, 1)
	assert.Empty(t, payload.CurrentBooks[0].Comments)
}

func TestBooksPayload_FlattensOrphanedReplies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	mallory := env.createUser(t, "Mallory", false, domain.RoleMember)
	env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	malloryBook := env.insertBook(t, mallory.ID, "Shared Book", testClub.CurrentVolume)

	// An unapproved member's comment is invisible; a visible reply to it
	// surfaces as a top-level comment.
	parent, err := env.social.AddComment(ctx, mallory, malloryBook.ID, "hidden parent", nil)
	require.NoError(t, err)
	aliceBookID := mustBookID(t, env, alice.ID, "Shared Book")
	reply, err := env.social.AddComment(ctx, alice, aliceBookID, "visible reply", &parent.ID)
	require.NoError(t, err)

	payload, err := env.catalog.BooksPayload(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, payload.CurrentBooks, 1)
	require.Len(t, payload.CurrentBooks[0].Comments, 1)
	assert.Equal(t, reply.ID, payload.CurrentBooks[0].Comments[0].ID)
	assert.Nil(t, payload.CurrentBooks[0].Comments[0].ParentCommentID)
}

func TestSetRating_Bounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	book := env.insertBook(t, alice.ID, "Rated Book", testClub.CurrentVolume)
	require.NoError(t, env.catalog.SetCompletion(ctx, alice.ID, book.ID, true))

	require.Error(t, env.catalog.SetRating(ctx, alice.ID, book.ID, 0))
	require.Error(t, env.catalog.SetRating(ctx, alice.ID, book.ID, 6))
	require.NoError(t, env.catalog.SetRating(ctx, alice.ID, book.ID, 4))

	views, err := env.store.ListBookViews(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].UserRating)
	assert.Equal(t, 4, *views[0].UserRating)

	require.NoError(t, env.catalog.ClearRating(ctx, alice.ID, book.ID))
	views, err = env.store.ListBookViews(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, views[0].UserRating)
}

func TestSetRating_RequiresCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	book := env.insertBook(t, alice.ID, "Unread Book", testClub.CurrentVolume)

	err := env.catalog.SetRating(ctx, alice.ID, book.ID, 4)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Complete the book before leaving a rating.")

	views, err := env.store.ListBookViews(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].UserRating)
}

func TestSetCompletion_UncompleteResetsRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	book := env.insertBook(t, alice.ID, "Finished Book", testClub.CurrentVolume)

	require.NoError(t, env.catalog.SetCompletion(ctx, alice.ID, book.ID, true))
	require.NoError(t, env.catalog.SetRating(ctx, alice.ID, book.ID, 4))

	require.NoError(t, env.catalog.SetCompletion(ctx, alice.ID, book.ID, false))

	record, err := env.store.GetBookForUser(ctx, book.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, record.IsCompleted)
	assert.Nil(t, record.CompletedAt)
	assert.Nil(t, record.Rating)
	assert.Nil(t, record.RatedAt)
}

func TestSeedStarterCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	require.NoError(t, env.catalog.SeedStarterCatalog(ctx, alice.ID))

	payload, err := env.catalog.BooksPayload(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, payload.CurrentBooks, 5)
	assert.Len(t, payload.PastBooks, 3)

	var featured int
	for _, book := range payload.CurrentBooks {
		if book.IsFeatured {
			featured++
			assert.Equal(t, "The Ministry for the Future", book.Title)
		}
	}
	assert.Equal(t, 1, featured)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleAdmin)
	env.createUser(t, "Bob", false, domain.RoleMember)
	book := env.insertBook(t, alice.ID, "Current Pick", testClub.CurrentVolume)
	_, err := env.social.AddComment(ctx, alice, book.ID, "Kickoff thread.", nil)
	require.NoError(t, err)

	payload, err := env.catalog.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, payload.Stats.ActiveMembers)
	assert.Equal(t, 1, payload.Stats.Discussions)
	assert.Equal(t, 1, payload.Stats.CurrentVolumeBooks)
	require.Len(t, payload.Members, 1)
	assert.Equal(t, "Alice", payload.Members[0].Name)
}

func TestMemberProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "Alice", true, domain.RoleMember)
	bob := env.createUser(t, "Bob", true, domain.RoleMember)
	aliceBook := env.insertBook(t, alice.ID, "Shared Book", testClub.CurrentVolume)
	bobBook := env.insertBook(t, bob.ID, "Shared Book", testClub.CurrentVolume)

	_, err := env.social.AddComment(ctx, bob, bobBook.ID, "My thoughts.", nil)
	require.NoError(t, err)

	profile, err := env.catalog.MemberProfile(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", profile.Member.Name)
	assert.Equal(t, 1, profile.Member.CommentsCount)
	require.Len(t, profile.RecentComments, 1)
	require.NotNil(t, profile.RecentComments[0].ViewerBookID)
	assert.Equal(t, aliceBook.ID, *profile.RecentComments[0].ViewerBookID)
}

// mustBookID resolves a member's copy of a book by title.
func mustBookID(t *testing.T, env *testEnv, userID, title string) string {
	t.Helper()
	views, err := env.store.ListBookViews(context.Background(), userID)
	require.NoError(t, err)
	for _, view := range views {
		if view.Title == title {
			return view.ID
		}
	}
	t.Fatalf("no book titled %q for user %s", title, userID)
	return ""
}
