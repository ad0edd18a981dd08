package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/bookclubapp/bookclub-server/internal/api"
	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/logger"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	storages := do.MustInvoke[*ImageStorages](i)

	services := &api.Services{
		Auth:         do.MustInvoke[*service.AuthService](i),
		Catalog:      do.MustInvoke[*service.CatalogService](i),
		Social:       do.MustInvoke[*service.SocialService](i),
		Books:        do.MustInvoke[*service.BooksService](i),
		ReadingLists: do.MustInvoke[*service.ReadingListService](i),
		Settings:     do.MustInvoke[*service.SettingsService](i),
		Covers:       do.MustInvoke[*service.CoverService](i),
	}

	storage := &api.StorageServices{
		ProfileImages:  storages.ProfileImages,
		FeaturedImages: storages.FeaturedImages,
	}

	handler := api.NewServer(storeHandle.Store, services, storage, cfg.Club, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
