package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/logger"
	"github.com/bookclubapp/bookclub-server/internal/storage"
)

// ImageStorages groups the on-disk image stores.
type ImageStorages struct {
	ProfileImages  *storage.ImageStore
	FeaturedImages *storage.ImageStore
}

// ProvideImageStorages provides the on-disk image stores under the data path.
func ProvideImageStorages(i do.Injector) (*ImageStorages, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	uploadsDir := filepath.Join(cfg.Data.BasePath, "uploads")

	profileImages, err := storage.NewImageStore(uploadsDir, "profile-images", "/api/uploads/profile-images/")
	if err != nil {
		return nil, err
	}

	featuredImages, err := storage.NewImageStore(uploadsDir, "featured-images", "/api/uploads/featured-images/")
	if err != nil {
		return nil, err
	}

	log.Info("Image storage ready", "path", uploadsDir)

	return &ImageStorages{
		ProfileImages:  profileImages,
		FeaturedImages: featuredImages,
	}, nil
}
