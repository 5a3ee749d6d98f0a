package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/storage/gcs"
	"github.com/seramic/shop-backend/pkg/storage/s3"
)

// ObjectStore is the image store collaborator used by the media pipeline.
type ObjectStore interface {
	// Put writes data under key and returns the public URL of the object.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the object store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, gcp config.GCPConfig, logg *logger.Logger) (ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.StorageDriverGCS, "":
		return gcs.NewClient(ctx, gcs.Options{
			Bucket:          cfg.Bucket,
			PublicBaseURL:   cfg.PublicBaseURL,
			CredentialsJSON: gcp.CredentialsJSON,
		}, logg)
	case config.StorageDriverS3:
		return s3.NewClient(ctx, s3.Options{
			Bucket:        cfg.Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.PublicBaseURL,
		}, logg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// ObjectKey joins a folder and path segments into a clean object key.
func ObjectKey(folder string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if f := strings.Trim(folder, "/ "); f != "" {
		segments = append(segments, f)
	}
	for _, p := range parts {
		if p = strings.Trim(p, "/ "); p != "" {
			segments = append(segments, p)
		}
	}
	return path.Join(segments...)
}
