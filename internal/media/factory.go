package media

import (
	"context"
	"fmt"
	"log/slog"
)

type BackendType string

const (
	FSBackend BackendType = "fs"
	S3Backend BackendType = "s3"
)

func (t BackendType) IsValid() bool {
	switch t {
	case FSBackend, S3Backend:
		return true
	}
	return false
}

// Config selects and configures a Store.
type Config struct {
	Backend BackendType
	Dir     string
	BaseURL string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// NewStore builds the configured backend.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Backend.IsValid() {
		return nil, fmt.Errorf("invalid media backend: %s", cfg.Backend)
	}

	switch cfg.Backend {
	case S3Backend:
		client, err := NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.S3PathStyle)
		if err != nil {
			return nil, err
		}
		logger.Info("Initialized S3 media store", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
		return NewS3Store(client, cfg.S3Bucket, cfg.BaseURL), nil
	default:
		store, err := NewFSStore(cfg.Dir, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Initialized filesystem media store", "dir", cfg.Dir)
		return store, nil
	}
}
