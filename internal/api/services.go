package api

import (
	"github.com/bookclubapp/bookclub-server/internal/service"
	"github.com/bookclubapp/bookclub-server/internal/storage"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth         *service.AuthService
	Catalog      *service.CatalogService
	Social       *service.SocialService
	Books        *service.BooksService
	ReadingLists *service.ReadingListService
	Settings     *service.SettingsService
	Covers       *service.CoverService
}

// StorageServices groups file storage handlers used by the API server.
type StorageServices struct {
	ProfileImages  *storage.ImageStore // Member profile pictures
	FeaturedImages *storage.ImageStore // Uploaded hero images for books
}
