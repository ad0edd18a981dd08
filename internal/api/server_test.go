package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookclubapp/bookclub-server/internal/auth"
	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/service"
	"github.com/bookclubapp/bookclub-server/internal/storage"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

const testTokenKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var testClub = config.ClubConfig{CurrentVolume: 2, BaseLegacyYear: 2025}

// envelope mirrors the wire shape every endpoint emits.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	uploadsDir := t.TempDir()
	profileImages, err := storage.NewImageStore(uploadsDir, "profile-images", "/api/uploads/profile-images/")
	require.NoError(t, err)
	featuredImages, err := storage.NewImageStore(uploadsDir, "featured-images", "/api/uploads/featured-images/")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(testTokenKey, 15*time.Minute)
	require.NoError(t, err)

	covers := service.NewCoverService(st, config.EnrichmentConfig{Enabled: false, LookupTimeout: time.Second}, logger)
	settings := service.NewSettingsService(st, featuredImages, logger)
	catalog := service.NewCatalogService(st, settings, testClub, logger)

	services := &Services{
		Auth:         service.NewAuthService(st, catalog, tokens, profileImages, "", logger),
		Catalog:      catalog,
		Social:       service.NewSocialService(st, logger),
		Books:        service.NewBooksService(st, covers, settings, featuredImages, logger),
		ReadingLists: service.NewReadingListService(st, covers, testClub, logger),
		Settings:     settings,
		Covers:       covers,
	}

	return NewServer(st, services, &StorageServices{
		ProfileImages:  profileImages,
		FeaturedImages: featuredImages,
	}, testClub, logger)
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

// registerUser registers an account and returns its token. The first
// account on a fresh server is the auto-approved admin.
func registerUser(t *testing.T, s *Server, name, email string) string {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "readmore1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	token := registerUser(t, s, "Alice", "alice@example.com")
	require.NotEmpty(t, token, "first account should be auto-approved")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "readmore1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var data struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice@example.com", data.User.Email)
	assert.Equal(t, "admin", data.User.Role)
}

func TestLoginFailureEnvelope(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "Alice", "alice@example.com")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrongwrong1",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid email or password.", env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "A",
		"email":    "not-an-email",
		"password": "readmore1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION", env.Code)
}

func TestGetBooksRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetBooksReturnsSeededCatalog(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "Alice", "alice@example.com")

	rec := doJSON(t, s, http.MethodGet, "/api/books", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var data struct {
		CurrentVolume int `json:"currentVolume"`
		CurrentBooks  []struct {
			Title string `json:"title"`
		} `json:"currentBooks"`
		PastBooks []json.RawMessage `json:"pastBooks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, testClub.CurrentVolume, data.CurrentVolume)
	assert.Len(t, data.CurrentBooks, 5)
	assert.Len(t, data.PastBooks, 3)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	adminToken := registerUser(t, s, "Alice", "alice@example.com")

	// Second account is a pending member; approve it so it can sign in.
	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Bob",
		"email":    "bob@example.com",
		"password": "readmore1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	var pending struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		RequiresApproval bool `json:"requiresApproval"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.True(t, pending.RequiresApproval)

	rec = doJSON(t, s, http.MethodPost, "/api/admin/users/"+pending.User.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "bob@example.com",
		"password": "readmore1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	loginEnv := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(loginEnv.Data, &login))

	rec = doJSON(t, s, http.MethodGet, "/api/admin/uploads", login.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/uploads", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadingListUpload(t *testing.T) {
	s := newTestServer(t)
	adminToken := registerUser(t, s, "Alice", "alice@example.com")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "list.csv")
	require.NoError(t, err)
	fmt.Fprintln(part, "volume,year,title,author,month")
	fmt.Fprintln(part, "2,2026,The Ministry for the Future,Kim Stanley Robinson,February")
	fmt.Fprintln(part, "2,2026,Sea of Tranquility,Emily St. John Mandel,July")
	require.NoError(t, form.WriteField("mode", "append"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reading-list", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var summary struct {
		RowsReceived  int `json:"rowsReceived"`
		BooksInserted int `json:"booksInserted"`
		BooksUpdated  int `json:"booksUpdated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 2, summary.RowsReceived)
	// Ministry is already seeded, Sea of Tranquility is new.
	assert.Equal(t, 1, summary.BooksInserted)
	assert.Equal(t, 1, summary.BooksUpdated)
}

func TestCommentFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "Alice", "alice@example.com")

	rec := doJSON(t, s, http.MethodGet, "/api/books", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var data struct {
		CurrentBooks []struct {
			ID string `json:"id"`
		} `json:"currentBooks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.CurrentBooks)
	bookID := data.CurrentBooks[0].ID

	rec = doJSON(t, s, http.MethodPost, "/api/books/"+bookID+"/comments", token, map[string]any{
		"text": "Loved the opening chapters.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env = decodeEnvelope(t, rec)
	var created struct {
		Comment struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Loved the opening chapters.", created.Comment.Text)

	rec = doJSON(t, s, http.MethodPut, "/api/books/"+bookID+"/comments/"+created.Comment.ID+"/like", token, map[string]any{
		"liked": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env = decodeEnvelope(t, rec)
	var likes struct {
		Count       int  `json:"count"`
		LikedByUser bool `json:"likedByUser"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &likes))
	assert.Equal(t, 1, likes.Count)
	assert.True(t, likes.LikedByUser)

	rec = doJSON(t, s, http.MethodDelete, "/api/books/"+bookID+"/comments/"+created.Comment.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
