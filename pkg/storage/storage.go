// Package storage saves uploaded delivery receipts and returns the URL they
// are served from. Local disk, Google Cloud Storage and MinIO/S3 backends
// are supported.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"p9e.in/launchpad/config"
)

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// New builds the store selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket)
	case "minio":
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "local", "":
		return NewLocalStore(cfg.UploadDir, strings.TrimRight(cfg.PublicBaseURL, "/")+"/uploads")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// CleanKey rejects keys that would escape the store root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

// SafeFilename strips directories and characters that do not belong in an
// object key.
func SafeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "receipt"
	}
	return out
}
