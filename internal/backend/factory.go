// Package backend wires a storage implementation from configuration.
package backend

import (
	"context"
	"fmt"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/postgres"
	"fintrack/internal/storage/sqlite"
)

// Open creates the store selected by cfg.DataBackend.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.Store, error) {
	switch cfg.DataBackend {
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized sqlite backend", log.FieldBackend, cfg.DataBackend, "db_path", cfg.SQLiteDBPath)
		return store, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres backend: %w", err)
		}
		logger.Info("Initialized postgres backend", log.FieldBackend, cfg.DataBackend)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported data backend %q", cfg.DataBackend)
	}
}
