// Package di provides dependency injection configuration for the book club server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bookclubapp/bookclub-server/internal/auth"
	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/di/providers"
	"github.com/bookclubapp/bookclub-server/internal/logger"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database and storage
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideImageStorages)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideCoverService)
	do.Provide(injector, providers.ProvideSettingsService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideSocialService)
	do.Provide(injector, providers.ProvideBooksService)
	do.Provide(injector, providers.ProvideReadingListService)
	do.Provide(injector, providers.ProvideAuthService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.ImageStorages](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.CoverService](injector)
	_ = do.MustInvoke[*service.SettingsService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.SocialService](injector)
	_ = do.MustInvoke[*service.BooksService](injector)
	_ = do.MustInvoke[*service.ReadingListService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
