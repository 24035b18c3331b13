package repository

import (
	"context"
	"fmt"

	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository/bolt"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/scorepoll/internal/config"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeBolt     StorageType = "bolt"
	StorageTypePostgres StorageType = "postgres"
)

// GetSupportedTypes returns a list of supported storage types
func GetSupportedTypes() []StorageType {
	return []StorageType{
		StorageTypeBolt,
		StorageTypePostgres,
	}
}

// ValidateStorageType validates if a storage type is supported
func ValidateStorageType(storageType string) (StorageType, error) {
	st := StorageType(storageType)

	for _, supported := range GetSupportedTypes() {
		if st == supported {
			return st, nil
		}
	}

	return "", fmt.Errorf("unsupported storage type: %s. Supported types: %v", storageType, GetSupportedTypes())
}

// OpenStore builds the poll store selected by cfg.Storage.Backend. The caller
// owns the returned store and must Close it.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.PollStore, error) {
	st, err := ValidateStorageType(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}

	switch st {
	case StorageTypePostgres:
		db, err := postgres.Connect(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, err
		}
		return postgres.NewPollRepository(db), nil
	default:
		return bolt.Open(cfg.Storage.BoltPath, cfg.Storage.BoltTimeout)
	}
}
