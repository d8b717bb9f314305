package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

// BlobStore is the object storage contract used by the pipeline. Upload always overwrites.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "minio":
		return NewMinioStore(ctx, cfg, logger)
	case "s3":
		return NewS3Store(ctx, cfg, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func notFound(key string, cause error) error {
	return common.NewAppError("BLOB_NOT_FOUND", key, fmt.Errorf("%w: %v", common.ErrNotFound, cause))
}
