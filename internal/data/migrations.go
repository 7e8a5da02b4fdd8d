package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/migrate"
)

// RunMigrations applies the embedded schema and logs how many versions were new.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	applied, err := migrate.Run(ctx, db)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "database schema up to date", "applied", len(applied))
	return nil
}
