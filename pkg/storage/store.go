package storage

import (
	"context"
	"fmt"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

// BlobStore is a durable key-value store holding one JSON document per key.
type BlobStore interface {
	// Load reads the document stored under key and unmarshals it into
	// "into". It returns false with a nil error when the key is absent,
	// in which case "into" is left untouched.
	Load(ctx context.Context, key string, into any) (bool, error)

	// Save marshals value to JSON and stores it under key, replacing any
	// previous document.
	Save(ctx context.Context, key string, value any) error

	// Delete removes the document stored under key. Deleting an absent
	// key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}

// Open creates a BlobStore for the configured backend.
func Open(cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(cfg)
	case "bolt":
		return OpenBolt(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
