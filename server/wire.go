package server

import (
	"audio-service/config"
	"audio-service/constant"
	"audio-service/repository"
	"audio-service/storage"
	"context"

	"gorm.io/gorm/logger"
)

func NewRepository(cfg *config.Config) (repository.AudioRepository, error) {
	level := logger.Warn
	switch cfg.App.Environment {
	case constant.EnvironmentProduction.String():
		level = logger.Error
	case constant.EnvironmentDevelop.String():
		level = logger.Info
	}
	return repository.NewRepo(cfg.DB, level)
}

// NewBlobStore builds the backend selected by storage.driver.
func NewBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.Storage.Driver == constant.StorageDriverMinio {
		return storage.NewMinioStore(ctx, cfg.Minio, cfg.Storage.MinioBucket)
	}
	return storage.NewLocalStore(cfg.Storage.Root)
}
