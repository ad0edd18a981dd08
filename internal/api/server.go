// Package api provides the HTTP API server and handlers for the book club application.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/http/response"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
	"github.com/bookclubapp/bookclub-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           *sqlite.Store
	services        *Services
	storage         *StorageServices
	club            config.ClubConfig
	router          *chi.Mux
	api             huma.API
	validator       *validation.Validator
	logger          *slog.Logger
	authRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *sqlite.Store, services *Services, storageServices *StorageServices, club config.ClubConfig, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	humaConfig := huma.DefaultConfig("Book Club API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s := &Server{
		store:           store,
		services:        services,
		storage:         storageServices,
		club:            club,
		router:          router,
		validator:       validation.New(),
		logger:          logger,
		authRateLimiter: NewRateLimiter(20, time.Minute, 10),
	}

	s.setupMiddleware()

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(authMiddleware(s.services.Auth))
	s.router.Use(s.credentialRateLimit)
}

// credentialRateLimit applies the auth rate limiter to the credential
// endpoints only. Failed logins are the abuse vector; everything else is
// already gated by a valid token.
func (s *Server) credentialRateLimit(next http.Handler) http.Handler {
	limited := RateLimitMiddleware(s.authRateLimiter, s.logger)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/auth/login") || strings.HasPrefix(r.URL.Path, "/api/auth/register") {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// Uploaded images are served straight off disk.
	s.serveUploads("/api/uploads/profile-images", s.storage.ProfileImages.Dir())
	s.serveUploads("/api/uploads/featured-images", s.storage.FeaturedImages.Dir())

	// Multipart endpoints stay on plain chi handlers; everything else is huma.
	s.router.Post("/api/auth/profile-image", s.handleUploadProfileImage)
	s.router.Post("/api/admin/books/{bookID}/featured-image", s.handleUploadFeaturedImage)
	s.router.Post("/api/admin/reading-list", s.handleUploadReadingList)
	s.router.Post("/api/admin/settings/featured-fallbacks/upload", s.handleUploadFallbackImage)

	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerSocialRoutes()
	s.registerAdminUserRoutes()
	s.registerAdminBookRoutes()
	s.registerAdminReadingListRoutes()
	s.registerAdminSettingsRoutes()
}

// serveUploads mounts a static file server for an uploads directory.
func (s *Server) serveUploads(prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	s.router.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}
