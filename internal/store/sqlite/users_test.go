package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/store"
)

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("user-1", "Alice@Example.com")
	user.Role = domain.RoleAdmin

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUserByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email: got %q, want lowercased %q", got.Email, "alice@example.com")
	}
	if got.Role != domain.RoleAdmin {
		t.Errorf("Role: got %q, want %q", got.Role, domain.RoleAdmin)
	}
	if !got.IsApproved {
		t.Error("IsApproved: got false, want true")
	}

	// Lookup is case-insensitive.
	byEmail, err := s.GetUserByEmail(ctx, "ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != "user-1" {
		t.Errorf("GetUserByEmail ID: got %q, want user-1", byEmail.ID)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "dup@example.com")

	err := s.CreateUser(ctx, makeTestUser("user-2", "dup@example.com"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate email: got %v, want ErrAlreadyExists", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUserByID(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestApproveAndPromote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := makeTestUser("user-1", "pending@example.com")
	pending.IsApproved = false
	if err := s.CreateUser(ctx, pending); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	listed, err := s.ListPendingUsers(ctx)
	if err != nil {
		t.Fatalf("ListPendingUsers: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "user-1" {
		t.Fatalf("pending users: got %v, want [user-1]", listed)
	}

	if err := s.ApproveUser(ctx, "user-1"); err != nil {
		t.Fatalf("ApproveUser: %v", err)
	}
	got, _ := s.GetUserByID(ctx, "user-1")
	if !got.IsApproved {
		t.Error("user not approved after ApproveUser")
	}

	// Promoting to admin implies approval.
	unapproved := makeTestUser("user-2", "other@example.com")
	unapproved.IsApproved = false
	if err := s.CreateUser(ctx, unapproved); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.SetUserRole(ctx, "user-2", domain.RoleAdmin); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	got, _ = s.GetUserByID(ctx, "user-2")
	if got.Role != domain.RoleAdmin || !got.IsApproved {
		t.Errorf("promoted user: role=%q approved=%v, want admin/true", got.Role, got.IsApproved)
	}
}

func TestDeleteUser_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")
	mustInsertBook(t, s, makeTestBook("book-1", "user-1", "Pachinko", 2))

	if err := s.DeleteUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetBookForUser(ctx, "book-1", "user-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("book after user delete: got %v, want ErrNotFound", err)
	}
}

func TestListMemberSummaries_OnlyApproved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	approved := makeTestUser("user-1", "zoe@example.com")
	approved.Name = "Zoe"
	if err := s.CreateUser(ctx, approved); err != nil {
		t.Fatal(err)
	}
	pending := makeTestUser("user-2", "pending@example.com")
	pending.IsApproved = false
	if err := s.CreateUser(ctx, pending); err != nil {
		t.Fatal(err)
	}

	members, err := s.ListMemberSummaries(ctx)
	if err != nil {
		t.Fatalf("ListMemberSummaries: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("members: got %d, want 1", len(members))
	}
	if members[0].Name != "Zoe" {
		t.Errorf("member name: got %q, want Zoe", members[0].Name)
	}
}

func TestGetMemberDetail_BooksReadCountsIdentities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "user-1", "a@example.com")

	// Two completed copies of the same identity and one of another.
	first := makeTestBook("book-1", "user-1", "Station Eleven", 1)
	first.IsCompleted = true
	mustInsertBook(t, s, first)
	dupe := makeTestBook("book-2", "user-1", "station eleven", 1)
	dupe.IsCompleted = true
	mustInsertBook(t, s, dupe)
	other := makeTestBook("book-3", "user-1", "Demon Copperhead", 1)
	other.IsCompleted = true
	mustInsertBook(t, s, other)

	detail, err := s.GetMemberDetail(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetMemberDetail: %v", err)
	}
	if detail.BooksRead != 2 {
		t.Errorf("BooksRead: got %d, want 2 distinct identities", detail.BooksRead)
	}
}
