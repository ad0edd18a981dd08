package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookclubapp/bookclub-server/internal/auth"
	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/logger"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

// ProvideCoverService provides the cover and metadata enrichment service.
func ProvideCoverService(i do.Injector) (*service.CoverService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCoverService(storeHandle.Store, cfg.Enrichment, log.Logger), nil
}

// ProvideSettingsService provides the club settings service.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	storages := do.MustInvoke[*ImageStorages](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSettingsService(storeHandle.Store, storages.FeaturedImages, log.Logger), nil
}

// ProvideCatalogService provides the member catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	settings := do.MustInvoke[*service.SettingsService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, settings, cfg.Club, log.Logger), nil
}

// ProvideSocialService provides the comments and likes service.
func ProvideSocialService(i do.Injector) (*service.SocialService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSocialService(storeHandle.Store, log.Logger), nil
}

// ProvideBooksService provides the admin book fan-out service.
func ProvideBooksService(i do.Injector) (*service.BooksService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	covers := do.MustInvoke[*service.CoverService](i)
	settings := do.MustInvoke[*service.SettingsService](i)
	storages := do.MustInvoke[*ImageStorages](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBooksService(storeHandle.Store, covers, settings, storages.FeaturedImages, log.Logger), nil
}

// ProvideReadingListService provides the reading list reconciliation service.
func ProvideReadingListService(i do.Injector) (*service.ReadingListService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	covers := do.MustInvoke[*service.CoverService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReadingListService(storeHandle.Store, covers, cfg.Club, log.Logger), nil
}

// ProvideAuthService provides the account and approval service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	storages := do.MustInvoke[*ImageStorages](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, catalog, tokens, storages.ProfileImages, cfg.Auth.AdminEmail, log.Logger), nil
}
