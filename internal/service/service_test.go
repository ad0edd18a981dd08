package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookclubapp/bookclub-server/internal/auth"
	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/storage"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

const testTokenKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var testClub = config.ClubConfig{CurrentVolume: 2, BaseLegacyYear: 2025}

type testEnv struct {
	store          *sqlite.Store
	covers         *CoverService
	settings       *SettingsService
	catalog        *CatalogService
	social         *SocialService
	books          *BooksService
	readingLists   *ReadingListService
	auth           *AuthService
	featuredImages *storage.ImageStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	uploadsDir := t.TempDir()
	profileImages, err := storage.NewImageStore(uploadsDir, "profile-images", "/api/uploads/profile-images/")
	require.NoError(t, err)
	featuredImages, err := storage.NewImageStore(uploadsDir, "featured-images", "/api/uploads/featured-images/")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(testTokenKey, 15*time.Minute)
	require.NoError(t, err)

	// Enrichment stays disabled so no test touches the network.
	covers := NewCoverService(store, config.EnrichmentConfig{Enabled: false, LookupTimeout: time.Second}, logger)
	settings := NewSettingsService(store, featuredImages, logger)
	catalog := NewCatalogService(store, settings, testClub, logger)

	return &testEnv{
		store:          store,
		covers:         covers,
		settings:       settings,
		catalog:        catalog,
		social:         NewSocialService(store, logger),
		books:          NewBooksService(store, covers, settings, featuredImages, logger),
		readingLists:   NewReadingListService(store, covers, testClub, logger),
		auth:           NewAuthService(store, catalog, tokens, profileImages, "club-admin@example.com", logger),
		featuredImages: featuredImages,
	}
}

func (e *testEnv) createUser(t *testing.T, name string, approved bool, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           id.MustGenerate(id.PrefixUser),
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsApproved:   approved,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) insertBook(t *testing.T, userID, title string, volume int) *domain.BookRecord {
	t.Helper()
	book := &domain.BookRecord{
		ID:        id.MustGenerate(id.PrefixBook),
		UserID:    userID,
		Volume:    volume,
		Year:      testClub.LegacyYear(volume),
		Title:     title,
		Author:    "Test Author",
		Month:     "January",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.store.InsertBook(context.Background(), book))
	return book
}
