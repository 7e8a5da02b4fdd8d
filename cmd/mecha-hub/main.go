package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "fatal error", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.InitLogger(cfg.Observability.Logging)
	logStartupInfo(ctx, logger, &cfg)

	return bootstrap.RunServer(ctx, &cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting mecha-hub",
		"addr", cfg.HTTP.Addr,
		"dev", cfg.IsDev,
		"dev_credentials", cfg.UsesDevCredentials(),
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"metrics", cfg.Observability.Metrics.Enabled)
}
