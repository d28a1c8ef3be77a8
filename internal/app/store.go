package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-relay-bot/internal/envstore"
	"github.com/lueurxax/telegram-relay-bot/internal/platform/config"
	"github.com/lueurxax/telegram-relay-bot/internal/registry"
	db "github.com/lueurxax/telegram-relay-bot/internal/storage"
)

// OpenStore returns the settings store selected by cfg: postgres when a DSN is set, the env file
// otherwise. The close func is non-nil whenever err is nil.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (registry.SettingsStore, func(), error) {
	if !cfg.UsesPostgres() {
		logger.Info().Str("path", cfg.SettingsFile).Msg("using env-file settings store")

		return envstore.New(cfg.SettingsFile, logger), func() {}, nil
	}

	poolOpts := db.PoolOptions{
		MaxConns:          cfg.MaxConnections,
		MinConns:          cfg.MinConnections,
		MaxConnIdleTime:   cfg.MaxConnIdleTime,
		MaxConnLifetime:   cfg.MaxConnLifetime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()

		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, database.Close, nil
}
