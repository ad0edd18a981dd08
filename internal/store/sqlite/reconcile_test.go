package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/readinglist"
	"github.com/bookclubapp/bookclub-server/internal/store"
)

func testRow(title string, volume int) readinglist.Row {
	return readinglist.Row{
		Volume: volume,
		Year:   2025 + volume,
		Title:  title,
		Author: "Test Author",
		Month:  "March",
	}
}

func TestApplyReadingList_InsertsForEveryUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")
	mustCreateUser(t, s, "user-2", "b@example.com")

	rows := []readinglist.Row{testRow("Pachinko", 2), testRow("Station Eleven", 2)}
	summary, err := s.ApplyReadingList(ctx, rows, domain.UploadModeAppend)
	if err != nil {
		t.Fatalf("ApplyReadingList: %v", err)
	}

	if summary.UsersAffected != 2 {
		t.Errorf("UsersAffected: got %d, want 2", summary.UsersAffected)
	}
	if summary.BooksInserted != 4 {
		t.Errorf("BooksInserted: got %d, want 4", summary.BooksInserted)
	}
	if summary.BooksUpdated != 0 {
		t.Errorf("BooksUpdated: got %d, want 0", summary.BooksUpdated)
	}
	if summary.RowsReceived != 2 {
		t.Errorf("RowsReceived: got %d, want 2", summary.RowsReceived)
	}

	for _, userID := range []string{"user-1", "user-2"} {
		views, err := s.ListBookViews(ctx, userID)
		if err != nil {
			t.Fatalf("ListBookViews(%s): %v", userID, err)
		}
		if len(views) != 2 {
			t.Errorf("%s catalog size: got %d, want 2", userID, len(views))
		}
		for _, v := range views {
			if !strings.HasPrefix(v.ID, id.PrefixBook+"-") {
				t.Errorf("book ID %q missing %q prefix", v.ID, id.PrefixBook)
			}
		}
	}
}

func TestApplyReadingList_MergePreservesMemberState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")

	existing := makeTestBook("book-1", "user-1", "Pachinko", 2)
	existing.IsCompleted = true
	now := time.Now()
	existing.CompletedAt = &now
	rating := 5
	existing.Rating = &rating
	loc := "Library"
	existing.MeetingLocation = &loc
	mustInsertBook(t, s, existing)

	// Same identity (case differs), new month, no optional fields.
	row := testRow("PACHINKO", 2)
	row.Month = "June"
	summary, err := s.ApplyReadingList(ctx, []readinglist.Row{row}, domain.UploadModeAppend)
	if err != nil {
		t.Fatalf("ApplyReadingList: %v", err)
	}
	if summary.BooksUpdated != 1 || summary.BooksInserted != 0 {
		t.Fatalf("summary: got inserted=%d updated=%d, want 0/1", summary.BooksInserted, summary.BooksUpdated)
	}

	got, err := s.GetBookForUser(ctx, "book-1", "user-1")
	if err != nil {
		t.Fatalf("GetBookForUser: %v", err)
	}
	if got.Month != "June" {
		t.Errorf("Month: got %q, want June", got.Month)
	}
	if !got.IsCompleted || got.Rating == nil || *got.Rating != 5 {
		t.Error("completion/rating was not preserved across merge")
	}
	if got.MeetingLocation == nil || *got.MeetingLocation != "Library" {
		t.Error("absent row field overwrote existing meeting location")
	}
	// Title keeps the original casing; the incoming row only matched it.
	if got.Title != "Pachinko" {
		t.Errorf("Title: got %q, want Pachinko", got.Title)
	}
}

func TestApplyReadingList_ReplaceClearsTouchedVolumes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "user-1", "Old Pick", 2))
	mustInsertBook(t, s, makeTestBook("book-2", "user-1", "Untouched", 1))

	summary, err := s.ApplyReadingList(ctx, []readinglist.Row{testRow("New Pick", 2)}, domain.UploadModeReplace)
	if err != nil {
		t.Fatalf("ApplyReadingList: %v", err)
	}
	if summary.BooksInserted != 1 {
		t.Errorf("BooksInserted: got %d, want 1", summary.BooksInserted)
	}

	views, err := s.ListBookViews(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	titles := make(map[string]bool)
	for _, v := range views {
		titles[v.Title] = true
	}
	if titles["Old Pick"] {
		t.Error("replace mode kept a row in the touched volume")
	}
	if !titles["Untouched"] {
		t.Error("replace mode cleared a volume the upload never touched")
	}
	if !titles["New Pick"] {
		t.Error("replace mode did not insert the new row")
	}
}

func TestApplyReadingList_FeaturedRowUnfeaturesVolume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")
	old := makeTestBook("book-1", "user-1", "Old Featured", 2)
	old.IsFeatured = true
	mustInsertBook(t, s, old)

	row := testRow("New Featured", 2)
	row.IsFeatured = true
	if _, err := s.ApplyReadingList(ctx, []readinglist.Row{row}, domain.UploadModeAppend); err != nil {
		t.Fatalf("ApplyReadingList: %v", err)
	}

	views, err := s.ListBookViews(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range views {
		want := v.Title == "New Featured"
		if v.IsFeatured != want {
			t.Errorf("%s IsFeatured: got %v, want %v", v.Title, v.IsFeatured, want)
		}
	}
}

func TestFeatureBookForAllUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "admin-1", "admin@example.com")
	mustCreateUser(t, s, "user-2", "b@example.com")

	// Same identity in both catalogs, plus an already-featured book.
	mustInsertBook(t, s, makeTestBook("book-1", "admin-1", "Pachinko", 2))
	mustInsertBook(t, s, makeTestBook("book-2", "user-2", "pachinko", 2))
	other := makeTestBook("book-3", "user-2", "Other", 2)
	other.IsFeatured = true
	mustInsertBook(t, s, other)

	result, err := s.FeatureBookForAllUsers(ctx, "admin-1", "book-1")
	if err != nil {
		t.Fatalf("FeatureBookForAllUsers: %v", err)
	}
	if result.BooksFeatured != 2 {
		t.Errorf("BooksFeatured: got %d, want 2", result.BooksFeatured)
	}
	if result.UsersAffected != 2 {
		t.Errorf("UsersAffected: got %d, want 2", result.UsersAffected)
	}

	views, err := s.ListBookViews(ctx, "user-2")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range views {
		want := v.Title == "pachinko"
		if v.IsFeatured != want {
			t.Errorf("%s IsFeatured: got %v, want %v", v.Title, v.IsFeatured, want)
		}
	}
}

func TestFeatureBookForAllUsers_ReferenceMustBeOwned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "admin-1", "admin@example.com")
	mustCreateUser(t, s, "user-2", "b@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "user-2", "Pachinko", 2))

	_, err := s.FeatureBookForAllUsers(ctx, "admin-1", "book-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign reference book: got %v, want ErrNotFound", err)
	}
}

func TestMeetingFanOut(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "admin-1", "admin@example.com")
	mustCreateUser(t, s, "user-2", "b@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "admin-1", "Pachinko", 2))
	mustInsertBook(t, s, makeTestBook("book-2", "user-2", "Pachinko", 2))

	location := "Community Hall"
	result, err := s.AssignMeetingForAllUsers(ctx, "admin-1", "book-1", "2026-09-12T18:00:00.000Z", &location)
	if err != nil {
		t.Fatalf("AssignMeetingForAllUsers: %v", err)
	}
	if result.BooksUpdated != 2 {
		t.Errorf("BooksUpdated: got %d, want 2", result.BooksUpdated)
	}

	got, err := s.GetBookForUser(ctx, "book-2", "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.MeetingStartsAt == nil || got.MeetingLocation == nil || *got.MeetingLocation != "Community Hall" {
		t.Error("meeting did not propagate to the other member's copy")
	}

	if _, err := s.ClearMeetingForAllUsers(ctx, "admin-1", "book-1"); err != nil {
		t.Fatalf("ClearMeetingForAllUsers: %v", err)
	}
	got, err = s.GetBookForUser(ctx, "book-2", "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.MeetingStartsAt != nil || got.MeetingLocation != nil {
		t.Error("meeting was not cleared from the other member's copy")
	}
}

func TestUpdateISBNForAllUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "admin-1", "admin@example.com")
	mustCreateUser(t, s, "user-2", "b@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "admin-1", "Pachinko", 2))
	withLinks := makeTestBook("book-2", "user-2", "Pachinko", 2)
	withLinks.Resources = []domain.ResourceLink{{Label: "Bookshop", URL: "https://bookshop.org/p/1"}}
	mustInsertBook(t, s, withLinks)

	isbn := "9781455563937"
	cover := "https://covers.openlibrary.org/b/isbn/9781455563937-L.jpg"
	thrift := "https://www.thriftbooks.com/browse/?b.search=9781455563937"
	result, err := s.UpdateISBNForAllUsers(ctx, "admin-1", "book-1", &isbn, &cover, &thrift, true)
	if err != nil {
		t.Fatalf("UpdateISBNForAllUsers: %v", err)
	}
	if result.BooksUpdated != 2 || result.CoversUpdated != 2 {
		t.Errorf("updates: got books=%d covers=%d, want 2/2", result.BooksUpdated, result.CoversUpdated)
	}
	if result.ResourcesUpdated != 2 {
		t.Errorf("ResourcesUpdated: got %d, want 2", result.ResourcesUpdated)
	}

	got, err := s.GetBookForUser(ctx, "book-2", "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.ISBN == nil || *got.ISBN != isbn {
		t.Errorf("ISBN: got %v, want %s", got.ISBN, isbn)
	}
	if got.ThumbnailURL == nil || *got.ThumbnailURL != cover {
		t.Errorf("ThumbnailURL: got %v, want %s", got.ThumbnailURL, cover)
	}
	var hasThrift, hasBookshop bool
	for _, link := range got.Resources {
		switch link.Label {
		case domain.ThriftBooksLabel:
			hasThrift = link.URL == thrift
		case "Bookshop":
			hasBookshop = true
		}
	}
	if !hasThrift || !hasBookshop {
		t.Errorf("resources: got %v, want existing Bookshop plus ThriftBooks link", got.Resources)
	}

	// Clearing the ISBN removes the purchase link again.
	if _, err := s.UpdateISBNForAllUsers(ctx, "admin-1", "book-1", nil, nil, nil, false); err != nil {
		t.Fatalf("clear isbn: %v", err)
	}
	got, err = s.GetBookForUser(ctx, "book-2", "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.ISBN != nil {
		t.Errorf("ISBN after clear: got %v, want nil", got.ISBN)
	}
	for _, link := range got.Resources {
		if link.Label == domain.ThriftBooksLabel {
			t.Error("ThriftBooks link survived ISBN clear")
		}
	}
}

func TestDeleteBookForAllUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "admin-1", "admin@example.com")
	mustCreateUser(t, s, "user-2", "b@example.com")

	hero := "/uploads/featured-images/hero.jpg"
	a := makeTestBook("book-1", "admin-1", "Pachinko", 2)
	a.FeaturedImageURL = &hero
	mustInsertBook(t, s, a)
	mustInsertBook(t, s, makeTestBook("book-2", "user-2", "Pachinko", 2))
	mustInsertBook(t, s, makeTestBook("book-3", "user-2", "Other", 2))

	result, err := s.DeleteBookForAllUsers(ctx, "admin-1", "book-1")
	if err != nil {
		t.Fatalf("DeleteBookForAllUsers: %v", err)
	}
	if result.BooksDeleted != 2 {
		t.Errorf("BooksDeleted: got %d, want 2", result.BooksDeleted)
	}
	if len(result.FeaturedImageURLs) != 1 || result.FeaturedImageURLs[0] != hero {
		t.Errorf("FeaturedImageURLs: got %v, want [%s]", result.FeaturedImageURLs, hero)
	}

	if _, err := s.GetBookForUser(ctx, "book-3", "user-2"); err != nil {
		t.Error("delete fan-out removed a different identity")
	}
}

func TestClearVolumeForAllUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "user-1", "Pachinko", 2))
	mustInsertBook(t, s, makeTestBook("book-2", "user-1", "Kept", 1))

	result, err := s.ClearVolumeForAllUsers(ctx, 2)
	if err != nil {
		t.Fatalf("ClearVolumeForAllUsers: %v", err)
	}
	if result.BooksDeleted != 1 {
		t.Errorf("BooksDeleted: got %d, want 1", result.BooksDeleted)
	}
	if _, err := s.GetBookForUser(ctx, "book-2", "user-1"); err != nil {
		t.Error("clear volume removed a row from another volume")
	}
}

func TestUpdateBookThumbnail_OnlyFillsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "user-1", "Pachinko", 2))

	updated, err := s.UpdateBookThumbnail(ctx, "book-1", "https://covers.example/first.jpg")
	if err != nil {
		t.Fatalf("UpdateBookThumbnail: %v", err)
	}
	if !updated {
		t.Error("empty thumbnail should be filled")
	}

	// A backfill result resolved against a stale candidate list must not
	// overwrite a cover set in the meantime.
	updated, err = s.UpdateBookThumbnail(ctx, "book-1", "https://covers.example/second.jpg")
	if err != nil {
		t.Fatalf("UpdateBookThumbnail: %v", err)
	}
	if updated {
		t.Error("existing thumbnail should not be overwritten")
	}

	got, err := s.GetBookForUser(ctx, "book-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ThumbnailURL == nil || *got.ThumbnailURL != "https://covers.example/first.jpg" {
		t.Errorf("ThumbnailURL: got %v, want the first cover", got.ThumbnailURL)
	}
}
