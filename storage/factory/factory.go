// Package factory opens the storage backend named by STORAGE_DRIVER.
package factory

import (
	"context"
	"fmt"

	"telematics/config"
	"telematics/pkg/logger"
	"telematics/storage"
	"telematics/storage/memory"
	"telematics/storage/postgres"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func Open(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	switch cfg.StorageDriver {
	case DriverPostgres, "":
		return postgres.New(ctx, cfg, log)
	case DriverMemory:
		log.Warning("using in-memory storage, data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
