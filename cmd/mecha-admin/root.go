package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/bootstrap"
)

// app carries what every subcommand needs. Tests replace loadConfig and logger.
type app struct {
	loadConfig func() (config.AppConfig, error)
	logger     *slog.Logger
}

func newApp() *app {
	return &app{loadConfig: bootstrap.LoadConfig}
}

// setup loads configuration and returns a logger writing to stderr.
func (a *app) setup() (config.AppConfig, *slog.Logger, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	logger := a.logger
	if logger == nil {
		logger = bootstrap.NewLogger(os.Stderr, cfg.Observability.Logging)
	}
	return cfg, logger, nil
}

func (a *app) connectDB(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*sql.DB, error) {
	return bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mecha-admin",
		Short:         "Manage mecha-hub admin credentials and sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(a),
		newProvisionAdminCmd(a),
		newHashPasswordCmd(),
		newListAdminsCmd(a),
		newLoginCmd(a),
		newResyncIdentityCmd(a),
		newRevokeSessionsCmd(a),
	)
	return root
}
