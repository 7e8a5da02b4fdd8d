package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data"
)

// OpenInfra connects to PostgreSQL and Redis as the configuration requires.
// needDB forces a PostgreSQL connection. The returned cleanup closes whatever was opened.
func OpenInfra(ctx context.Context, cfg *config.AppConfig, needDB bool, logger *slog.Logger) (Infra, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var infra Infra
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	cleanup := func() {
		if infra.Redis != nil {
			if err := infra.Redis.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}
		if infra.DB != nil {
			if err := infra.DB.Close(); err != nil {
				logger.Warn("close database", "error", err)
			}
		}
	}

	if needDB || cfg.NeedsPostgres() {
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return Infra{}, func() {}, err
		}
		infra.DB = db
	}
	if cfg.NeedsRedis() {
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			cleanup()
			return Infra{}, func() {}, err
		}
		infra.Redis = client
	}
	return infra, cleanup, nil
}

// RunServer runs the credential verifier HTTP service until ctx is done.
func RunServer(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	needDB := !cfg.UsesDevCredentials()
	infra, cleanup, err := OpenInfra(ctx, cfg, needDB, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if infra.DB != nil && cfg.Postgres.RunMigrationsOnStart {
		if err := data.RunMigrations(ctx, infra.DB, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	verifier, err := BuildLocalVerifier(AuthDeps{Config: cfg, Infra: infra, Logger: logger})
	if err != nil {
		return err
	}
	if cfg.UsesDevCredentials() {
		logger.Warn("credential verifier is using the DEV_AUTH_* credential")
	}

	server := NewHTTPServer(HTTPServerConfig{Config: cfg, Verifier: verifier, Logger: logger})
	return ServeHTTP(ctx, server, nil, cfg.HTTP, logger)
}
